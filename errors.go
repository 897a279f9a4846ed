// errors.go

package sessionforge

import "errors"

// Error kinds surfaced by the engine. Each kind is stable and
// machine-matchable with errors.Is; transports map them to wire codes.
var (
	// ErrInvalidCredentials is returned when the supplied password does not
	// match the stored hash.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrUserNotFound is returned when no enabled account matches the
	// supplied username or email.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidCaptcha is returned when a challenge answer does not match.
	ErrInvalidCaptcha = errors.New("invalid captcha")

	// ErrExpiredCaptcha is returned when a challenge is absent from the
	// store, either expired or already consumed.
	ErrExpiredCaptcha = errors.New("captcha expired")

	// ErrInvalidToken is returned for a malformed, expired or wrong-kind
	// access credential.
	ErrInvalidToken = errors.New("invalid access token")

	// ErrInvalidRefreshToken is returned for a malformed, expired or
	// wrong-kind refresh credential.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")

	// ErrExpiredRefreshToken is returned when a well-formed refresh
	// credential is no longer live: revoked, expired from the registry,
	// bound to another subject, or superseded by a concurrent rotation.
	// The sub-reason is deliberately not distinguished.
	ErrExpiredRefreshToken = errors.New("refresh token expired")

	// ErrUnauthorized is the guard-level composite failure.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrKeyNotFound is returned by KeyValueStore.Get for absent keys.
	ErrKeyNotFound = errors.New("key not found")
)
