// users.go

package sessionforge

import (
	"context"
	"strings"
	"sync"
)

// UserRecord is the slice of a stored account the engine needs: identity
// plus the stored password hash. Status filtering is the store's concern;
// disabled accounts must be reported as absent.
type UserRecord struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
}

// UserStore supplies username/email to credential-hash lookups from the
// persistent user storage. Implementations return ErrUserNotFound for
// accounts that are absent or disabled.
type UserStore interface {
	FindByUsername(ctx context.Context, username string) (*UserRecord, error)
	FindByEmail(ctx context.Context, email string) (*UserRecord, error)
}

type memoryUser struct {
	record   UserRecord
	disabled bool
}

// MemoryUserStore is an in-process UserStore for tests and examples.
type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]*memoryUser // keyed by username
}

// NewMemoryUserStore creates a store seeded with the given records.
func NewMemoryUserStore(users ...UserRecord) *MemoryUserStore {
	s := &MemoryUserStore{users: make(map[string]*memoryUser)}
	for _, u := range users {
		s.Add(u)
	}
	return s
}

// Add inserts or replaces a record.
func (s *MemoryUserStore) Add(u UserRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.Username] = &memoryUser{record: u}
}

// Disable marks an account disabled; lookups then report it as absent.
func (s *MemoryUserStore) Disable(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[username]; ok {
		u.disabled = true
	}
}

func (s *MemoryUserStore) FindByUsername(ctx context.Context, username string) (*UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[username]
	if !ok || u.disabled {
		return nil, ErrUserNotFound
	}
	record := u.record
	return &record, nil
}

func (s *MemoryUserStore) FindByEmail(ctx context.Context, email string) (*UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if !u.disabled && strings.EqualFold(u.record.Email, email) {
			record := u.record
			return &record, nil
		}
	}
	return nil, ErrUserNotFound
}
