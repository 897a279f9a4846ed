// registry.go

package sessionforge

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

const (
	sessionKeyPrefix = "session:"
	revokedKeyPrefix = "revoked:"
)

// SessionRegistry owns the mapping from session identifier to owning subject
// and the revocation set. Existence of a registry entry means "this refresh
// chain link is currently the live one"; existence of a revocation entry
// means "this session must never be honored again", independent of the
// registry entry.
type SessionRegistry struct {
	kv KeyValueStore
}

// NewSessionRegistry creates a registry on top of the given store.
func NewSessionRegistry(kv KeyValueStore) *SessionRegistry {
	return &SessionRegistry{kv: kv}
}

func sessionKey(sessionID string) string { return sessionKeyPrefix + sessionID }
func revokedKey(sessionID string) string { return revokedKeyPrefix + sessionID }

// Create registers sessionID as the live link for the subject with the
// given lifetime.
func (r *SessionRegistry) Create(ctx context.Context, subjectID int64, sessionID string, ttl time.Duration) error {
	return r.kv.Set(ctx, sessionKey(sessionID), strconv.FormatInt(subjectID, 10), ttl)
}

// IsLive reports whether sessionID is the current live link for subjectID:
// a registry entry exists, its value matches the subject, and the session is
// not in the revocation set.
func (r *SessionRegistry) IsLive(ctx context.Context, sessionID string, subjectID int64) (bool, error) {
	val, err := r.kv.Get(ctx, sessionKey(sessionID))
	if errors.Is(err, ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if val != strconv.FormatInt(subjectID, 10) {
		return false, nil
	}

	revoked, err := r.kv.Exists(ctx, revokedKey(sessionID))
	if err != nil {
		return false, err
	}
	return !revoked, nil
}

// Revoke inserts sessionID into the revocation set. The TTL should be the
// remaining lifetime of the credential being blocked, so the blacklist entry
// expires exactly when the credential would have expired anyway.
func (r *SessionRegistry) Revoke(ctx context.Context, sessionID string, ttl time.Duration) error {
	return r.kv.Set(ctx, revokedKey(sessionID), "1", ttl)
}

// Rotate atomically replaces oldSessionID with newSessionID: it revokes the
// old link, deletes its registry entry, and creates the new link as one
// indivisible store operation. The rotation is guarded: it applies only if
// the old link is still live and owned by subjectID, so two refreshes racing
// on one link can never both succeed. Returns false, without error, when the
// guard rejected the rotation.
func (r *SessionRegistry) Rotate(ctx context.Context, oldSessionID, newSessionID string, subjectID int64, newTTL, revokeTTL time.Duration) (bool, error) {
	subject := strconv.FormatInt(subjectID, 10)
	res, err := r.kv.Exec(ctx, []ScriptOp{
		{Op: OpCheckEqual, Key: sessionKey(oldSessionID), Value: subject},
		{Op: OpCheckAbsent, Key: revokedKey(oldSessionID)},
		{Op: OpSet, Key: revokedKey(oldSessionID), Value: "1", TTL: revokeTTL},
		{Op: OpDel, Key: sessionKey(oldSessionID)},
		{Op: OpSet, Key: sessionKey(newSessionID), Value: subject, TTL: newTTL},
	})
	if err != nil {
		return false, fmt.Errorf("rotate session: %w", err)
	}
	return res == 1, nil
}

// Destroy revokes sessionID and removes its registry entry. The revocation
// TTL is the entry's remaining lifetime when known, fallbackTTL otherwise,
// so an immediately replayed cookie stays blocked.
// Destroy is idempotent: destroying an already-gone session is not an error.
func (r *SessionRegistry) Destroy(ctx context.Context, sessionID string, fallbackTTL time.Duration) error {
	ttl, err := r.RemainingTTL(ctx, sessionID)
	if err != nil || ttl <= 0 {
		ttl = fallbackTTL
	}
	if err := r.Revoke(ctx, sessionID, ttl); err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}
	return r.kv.Del(ctx, sessionKey(sessionID))
}

// RemainingTTL returns the remaining lifetime of the registry entry for
// sessionID, or zero when the entry is gone.
func (r *SessionRegistry) RemainingTTL(ctx context.Context, sessionID string) (time.Duration, error) {
	return r.kv.TTL(ctx, sessionKey(sessionID))
}
