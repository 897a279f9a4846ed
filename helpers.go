// helpers.go

package sessionforge

import (
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// toMapClaims converts credential claims to jwt.MapClaims.
func toMapClaims(claims CredentialClaims) jwt.MapClaims {
	return jwt.MapClaims{
		"sub": strconv.FormatInt(claims.Subject, 10),
		"usr": claims.Username,
		"sid": claims.SessionID,
		"typ": string(claims.Kind),
		"iat": claims.IssuedAt.Unix(),
		"exp": claims.ExpiresAt.Unix(),
	}
}

// validateCredentialClaims validates the decoded claim set against the
// expected credential kind.
func validateCredentialClaims(claims jwt.MapClaims, expectedKind TokenKind) error {
	requiredClaims := []string{"sub", "usr", "sid", "typ", "iat", "exp"}
	for _, claim := range requiredClaims {
		if _, ok := claims[claim]; !ok {
			return fmt.Errorf("missing required claim: %s", claim)
		}
	}

	kind, ok := claims["typ"].(string)
	if !ok || TokenKind(kind) != expectedKind {
		return fmt.Errorf("invalid credential kind: expected %s", expectedKind)
	}

	exp, ok := claims["exp"].(float64)
	if !ok {
		return fmt.Errorf("invalid exp claim type")
	}
	if time.Unix(int64(exp), 0).Before(time.Now()) {
		return fmt.Errorf("credential has expired")
	}

	if iat, ok := claims["iat"].(float64); ok {
		if time.Unix(int64(iat), 0).After(time.Now().Add(time.Minute)) {
			return fmt.Errorf("credential issued in the future")
		}
	}

	return nil
}

// mapToCredentialClaims converts JWT claims to CredentialClaims.
func mapToCredentialClaims(claims jwt.MapClaims) (*CredentialClaims, error) {
	sub, ok := claims["sub"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid subject type: expected string")
	}
	subjectID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid subject ID: %w", err)
	}

	username, ok := claims["usr"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid username type: expected string")
	}

	sessionID, ok := claims["sid"].(string)
	if !ok || sessionID == "" {
		return nil, fmt.Errorf("invalid session ID")
	}

	return &CredentialClaims{
		Subject:   subjectID,
		Username:  username,
		SessionID: sessionID,
		Kind:      TokenKind(claims["typ"].(string)),
		IssuedAt:  time.Unix(int64(claims["iat"].(float64)), 0),
		ExpiresAt: time.Unix(int64(claims["exp"].(float64)), 0),
	}, nil
}

// randomChallengeText draws n characters from the challenge charset using
// crypto/rand.
func randomChallengeText(n int) (string, error) {
	out := make([]byte, n)
	max := big.NewInt(int64(len(challengeCharset)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate challenge text: %w", err)
		}
		out[i] = challengeCharset[idx.Int64()]
	}
	return string(out), nil
}

// ttlSeconds converts a duration to whole seconds for store expiries,
// rounding up so a positive TTL never truncates to zero.
func ttlSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 1
	}
	return int64(math.Ceil(d.Seconds()))
}
