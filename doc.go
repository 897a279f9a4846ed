// Package sessionforge implements a session and credential lifecycle engine:
// it issues short-lived access credentials and longer-lived rotating refresh
// credentials, tracks which refresh sessions are currently valid in a shared
// key/value store, revokes them atomically on rotation or logout, and rejects
// stolen or replayed credentials.
//
// Features:
// - Login, refresh (single-use rotation), logout and access validation flows
// - Signed access and refresh credentials with independent secrets and expiries
// - Redis-backed session registry with an atomic, guarded rotation script
// - Blacklist-based revocation bounded to the credential's remaining lifetime
// - One-time CAPTCHA challenges with a pluggable image renderer
package sessionforge
