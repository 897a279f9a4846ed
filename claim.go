// claim.go

package sessionforge

import "time"

// TokenKind represents the kind of credential (access or refresh).
type TokenKind string

const (
	AccessKind  TokenKind = "access"  // Access credential kind
	RefreshKind TokenKind = "refresh" // Refresh credential kind
)

// Subject is the authenticated identity carried inside credentials.
// It is immutable once loaded for a given operation.
type Subject struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// CredentialClaims contains the decoded claims of a signed credential.
//
// Fields:
//   - Subject: User ID (subject)
//   - Username: Username
//   - SessionID: Session identifier of the refresh chain link
//   - Kind: Credential kind (access or refresh)
//   - IssuedAt: Credential issuance time
//   - ExpiresAt: Credential expiration time
type CredentialClaims struct {
	Subject   int64     `json:"sub"`
	Username  string    `json:"usr"`
	SessionID string    `json:"sid"`
	Kind      TokenKind `json:"typ"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

// Credential represents a freshly signed credential and its metadata.
type Credential struct {
	Token     string    `json:"token"`
	SessionID string    `json:"sid"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

// Session is the result of a successful login or refresh: the subject, the
// live session identifier, and the signed access/refresh credential pair.
type Session struct {
	Subject      Subject    `json:"subject"`
	SessionID    string     `json:"session_id"`
	AccessToken  Credential `json:"access_token"`
	RefreshToken Credential `json:"refresh_token"`
}
