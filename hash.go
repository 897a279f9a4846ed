// hash.go

package sessionforge

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher hashes passwords for storage and compares candidates
// against stored hashes. Compare must run in constant time with respect to
// the candidate and fail with ErrInvalidCredentials on mismatch.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Compare(storedHash, plain string) error
}

// BcryptHasher is the default PasswordHasher.
type BcryptHasher struct {
	// Cost overrides bcrypt.DefaultCost when positive.
	Cost int
}

func (h BcryptHasher) cost() int {
	if h.Cost > 0 {
		return h.Cost
	}
	return bcrypt.DefaultCost
}

func (h BcryptHasher) Hash(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost())
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

func (h BcryptHasher) Compare(storedHash, plain string) error {
	err := bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(plain))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrInvalidCredentials
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	return nil
}

// SHA256Hasher stores hex-encoded SHA-256 digests and compares them in
// constant time. It exists for user stores that keep digest passwords;
// prefer BcryptHasher for new deployments.
type SHA256Hasher struct{}

func (SHA256Hasher) Hash(plain string) (string, error) {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:]), nil
}

func (SHA256Hasher) Compare(storedHash, plain string) error {
	sum := sha256.Sum256([]byte(plain))
	candidate := hex.EncodeToString(sum[:])
	if subtle.ConstantTimeCompare([]byte(candidate), []byte(storedHash)) != 1 {
		return ErrInvalidCredentials
	}
	return nil
}
