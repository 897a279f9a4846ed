// File: sessionforge.kvstore.inmemory.imp.go

package sessionforge

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryKeyValueStore is an in-process KeyValueStore with per-key expiry.
// Exec applies the whole operation list under one lock, giving the same
// serialization guarantee the Redis backend gets from Lua. Intended for
// tests and single-process deployments.
type MemoryKeyValueStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryKeyValueStore creates an empty in-memory key/value store.
func NewMemoryKeyValueStore() *MemoryKeyValueStore {
	return &MemoryKeyValueStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// lookup returns the live entry for key, lazily dropping it if expired.
// Callers must hold mu.
func (s *MemoryKeyValueStore) lookup(key string) (memoryEntry, bool) {
	entry, ok := s.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !entry.expiresAt.After(s.now()) {
		delete(s.entries, key)
		return memoryEntry{}, false
	}
	return entry, true
}

func (s *MemoryKeyValueStore) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.lookup(key)
	if !ok {
		return "", ErrKeyNotFound
	}
	return entry.value, nil
}

func (s *MemoryKeyValueStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = memoryEntry{value: value, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryKeyValueStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.lookup(key)
	return ok, nil
}

func (s *MemoryKeyValueStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.lookup(key)
	if !ok {
		return 0, nil
	}
	return entry.expiresAt.Sub(s.now()), nil
}

func (s *MemoryKeyValueStore) Del(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		delete(s.entries, key)
	}
	return nil
}

func (s *MemoryKeyValueStore) Exec(ctx context.Context, ops []ScriptOp) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(ops) == 0 {
		return 0, fmt.Errorf("empty operation list")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, op := range ops {
		switch op.Op {
		case OpCheckEqual:
			entry, ok := s.lookup(op.Key)
			if !ok || entry.value != op.Value {
				return 0, nil
			}
		case OpCheckAbsent:
			if _, ok := s.lookup(op.Key); ok {
				return 0, nil
			}
		case OpSet:
			if op.TTL <= 0 {
				return 0, fmt.Errorf("set op for %q requires a positive ttl", op.Key)
			}
			s.entries[op.Key] = memoryEntry{value: op.Value, expiresAt: s.now().Add(op.TTL)}
		case OpDel:
			delete(s.entries, op.Key)
		default:
			return 0, fmt.Errorf("unsupported script op: %s", op.Op)
		}
	}
	return 1, nil
}
