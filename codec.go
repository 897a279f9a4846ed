// codec.go

package sessionforge

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CredentialCodec encodes and decodes signed, tamper-evident credentials.
// Access and refresh credentials are signed with independent secrets and
// carry independent expiries. The codec is pure crypto: it never consults
// the session registry and is safe for concurrent use.
type CredentialCodec struct {
	signingMethod jwt.SigningMethod
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewCredentialCodec creates a codec from the JWT section of the
// configuration. The configuration must already be validated.
func NewCredentialCodec(cfg JWTConfig) (*CredentialCodec, error) {
	codec := &CredentialCodec{
		accessSecret:  []byte(cfg.Secret),
		refreshSecret: []byte(cfg.RefreshTokenSecret),
		accessTTL:     cfg.ExpiresIn.Std(),
		refreshTTL:    cfg.RefreshTokenExpiresIn.Std(),
	}

	switch cfg.Algorithm {
	case "", "HS256":
		codec.signingMethod = jwt.SigningMethodHS256
	case "HS384":
		codec.signingMethod = jwt.SigningMethodHS384
	case "HS512":
		codec.signingMethod = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("unsupported algorithm: %s", cfg.Algorithm)
	}

	return codec, nil
}

// AccessTTL returns the configured access credential lifetime.
func (c *CredentialCodec) AccessTTL() time.Duration { return c.accessTTL }

// RefreshTTL returns the configured refresh credential lifetime.
func (c *CredentialCodec) RefreshTTL() time.Duration { return c.refreshTTL }

// SignAccess signs a new access credential for the subject and session.
func (c *CredentialCodec) SignAccess(subject Subject, sessionID string) (*Credential, error) {
	return c.sign(subject, sessionID, AccessKind, c.accessSecret, c.accessTTL)
}

// SignRefresh signs a new refresh credential for the subject and session.
func (c *CredentialCodec) SignRefresh(subject Subject, sessionID string) (*Credential, error) {
	return c.sign(subject, sessionID, RefreshKind, c.refreshSecret, c.refreshTTL)
}

// VerifyAccess validates an access credential string and returns its claims.
// It fails with ErrInvalidToken on a bad signature, expiry, or wrong kind.
func (c *CredentialCodec) VerifyAccess(tokenString string) (*CredentialClaims, error) {
	claims, err := c.verify(tokenString, AccessKind, c.accessSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// VerifyRefresh validates a refresh credential string and returns its
// claims. It fails with ErrInvalidRefreshToken on a bad signature, expiry,
// or wrong kind. Liveness against the registry is not checked here.
func (c *CredentialCodec) VerifyRefresh(tokenString string) (*CredentialClaims, error) {
	claims, err := c.verify(tokenString, RefreshKind, c.refreshSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRefreshToken, err)
	}
	return claims, nil
}

func (c *CredentialCodec) sign(subject Subject, sessionID string, kind TokenKind, secret []byte, ttl time.Duration) (*Credential, error) {
	now := time.Now()
	claims := CredentialClaims{
		Subject:   subject.ID,
		Username:  subject.Username,
		SessionID: sessionID,
		Kind:      kind,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}

	token := jwt.NewWithClaims(c.signingMethod, toMapClaims(claims))

	signed, err := token.SignedString(secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign %s credential: %w", kind, err)
	}

	return &Credential{
		Token:     signed,
		SessionID: sessionID,
		IssuedAt:  claims.IssuedAt,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

func (c *CredentialCodec) verify(tokenString string, kind TokenKind, secret []byte) (*CredentialClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != c.signingMethod.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	if err := validateCredentialClaims(claims, kind); err != nil {
		return nil, err
	}

	return mapToCredentialClaims(claims)
}
