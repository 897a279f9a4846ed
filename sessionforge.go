// sessionforge.go

package sessionforge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SessionManager defines the credential lifecycle operations.
//
// Methods:
//   - Login: authenticates an account and opens a new refresh chain
//   - Refresh: rotates a refresh credential into a new access/refresh pair
//   - Logout: terminates a refresh chain
//   - ValidateAccess: stateless access credential check
//   - ValidateForGuard: access credential check plus revocation/registry check
type SessionManager interface {
	Login(ctx context.Context, req LoginRequest) (*Session, error)
	Refresh(ctx context.Context, refreshToken string) (*Session, error)
	Logout(ctx context.Context, sessionID string) error
	ValidateAccess(tokenString string) (*CredentialClaims, error)
	ValidateForGuard(ctx context.Context, tokenString string) (*CredentialClaims, error)
}

// LoginRequest carries the credentials supplied by the caller. CaptchaID
// and Captcha are consulted only when CAPTCHA enforcement is configured on.
type LoginRequest struct {
	Account   string
	Password  string
	CaptchaID string
	Captcha   string
}

// Manager is the concrete SessionManager. All session state lives in the
// key/value store behind the registry; the manager itself holds no mutable
// state and is safe for concurrent use.
type Manager struct {
	cfg        Config
	codec      *CredentialCodec
	registry   *SessionRegistry
	challenges *ChallengeStore
	users      UserStore
	hasher     PasswordHasher
	logger     *slog.Logger
}

// NewSessionManager wires a Manager from explicitly constructed parts.
// The configuration is validated here: a missing or short signing secret is
// a construction error. A nil hasher defaults to bcrypt; the challenge
// store may be nil only when CAPTCHA enforcement is off.
func NewSessionManager(cfg Config, codec *CredentialCodec, registry *SessionRegistry, challenges *ChallengeStore, users UserStore, hasher PasswordHasher) (*Manager, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if codec == nil {
		return nil, fmt.Errorf("credential codec is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("session registry is required")
	}
	if users == nil {
		return nil, fmt.Errorf("user store is required")
	}
	if cfg.Captcha.Enable && challenges == nil {
		return nil, fmt.Errorf("challenge store is required when captcha is enabled")
	}
	if hasher == nil {
		hasher = BcryptHasher{}
	}

	return &Manager{
		cfg:        cfg,
		codec:      codec,
		registry:   registry,
		challenges: challenges,
		users:      users,
		hasher:     hasher,
		logger:     slog.Default(),
	}, nil
}

// WithLogger sets the structured logger used for lifecycle events.
func (m *Manager) WithLogger(logger *slog.Logger) *Manager {
	if logger != nil {
		m.logger = logger
	}
	return m
}

// storeCtx bounds a store round-trip. Operations that outlive the timeout
// fail closed at the call sites.
func (m *Manager) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.cfg.StoreTimeout.Std())
}

// Login authenticates the account and opens a new refresh chain: it mints a
// SessionID, registers it with the refresh lifetime, and signs an
// access/refresh credential pair.
func (m *Manager) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	if m.cfg.Captcha.Enable {
		sctx, cancel := m.storeCtx(ctx)
		err := m.challenges.Validate(sctx, req.CaptchaID, req.Captcha)
		cancel()
		if err != nil {
			return nil, err
		}
	}

	sctx, cancel := m.storeCtx(ctx)
	user, err := m.lookupAccount(sctx, req.Account)
	cancel()
	if err != nil {
		return nil, err
	}

	if err := m.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		m.logger.Warn("login rejected", "account", req.Account)
		return nil, err
	}

	sessionID := uuid.NewString()
	sctx, cancel = m.storeCtx(ctx)
	err = m.registry.Create(sctx, user.ID, sessionID, m.codec.RefreshTTL())
	cancel()
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	session, err := m.signPair(Subject{ID: user.ID, Username: user.Username}, sessionID)
	if err != nil {
		return nil, err
	}

	m.logger.Info("login", "user", user.Username, "session", sessionID)
	return session, nil
}

// Refresh validates and rotates a refresh credential. Rotation is single
// use: the presented credential becomes unusable even if captured before
// this call returns, and two concurrent refreshes on the same credential
// yield exactly one success.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	claims, err := m.codec.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, err
	}

	sctx, cancel := m.storeCtx(ctx)
	live, err := m.registry.IsLive(sctx, claims.SessionID, claims.Subject)
	cancel()
	if err != nil {
		m.logger.Warn("refresh liveness check failed", "session", claims.SessionID, "error", err)
		return nil, ErrExpiredRefreshToken
	}
	if !live {
		return nil, ErrExpiredRefreshToken
	}

	sctx, cancel = m.storeCtx(ctx)
	user, err := m.users.FindByUsername(sctx, claims.Username)
	cancel()
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		m.logger.Warn("refresh user lookup failed", "session", claims.SessionID, "error", err)
		return nil, ErrExpiredRefreshToken
	}

	newSessionID := uuid.NewString()
	revokeTTL := time.Until(claims.ExpiresAt)

	sctx, cancel = m.storeCtx(ctx)
	rotated, err := m.registry.Rotate(sctx, claims.SessionID, newSessionID, user.ID, m.codec.RefreshTTL(), revokeTTL)
	cancel()
	if err != nil {
		m.logger.Warn("refresh rotation failed", "session", claims.SessionID, "error", err)
		return nil, ErrExpiredRefreshToken
	}
	if !rotated {
		// Lost the race against a concurrent refresh or logout.
		return nil, ErrExpiredRefreshToken
	}

	session, err := m.signPair(Subject{ID: user.ID, Username: user.Username}, newSessionID)
	if err != nil {
		return nil, err
	}

	m.logger.Info("refresh", "user", user.Username, "old_session", claims.SessionID, "session", newSessionID)
	return session, nil
}

// Logout terminates the refresh chain link: the session is revoked for its
// remaining lifetime (or a full refresh lifetime when unknown) and removed
// from the registry. Logging out an already-gone session is a no-op.
func (m *Manager) Logout(ctx context.Context, sessionID string) error {
	sctx, cancel := m.storeCtx(ctx)
	defer cancel()

	if err := m.registry.Destroy(sctx, sessionID, m.codec.RefreshTTL()); err != nil {
		return err
	}
	m.logger.Info("logout", "session", sessionID)
	return nil
}

// ValidateAccess verifies an access credential without consulting the
// registry. Access credentials are intentionally stateless: a revoked
// session can keep authorizing with an already-issued access credential
// until that credential's own short expiry elapses. Call sites that need
// immediate revocation must use ValidateForGuard.
func (m *Manager) ValidateAccess(tokenString string) (*CredentialClaims, error) {
	return m.codec.VerifyAccess(tokenString)
}

// ValidateForGuard verifies an access credential and additionally requires
// the embedded session to be absent from the revocation set and still bound
// to the embedded subject in the registry. Store failures fail closed as
// ErrUnauthorized.
func (m *Manager) ValidateForGuard(ctx context.Context, tokenString string) (*CredentialClaims, error) {
	claims, err := m.codec.VerifyAccess(tokenString)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	sctx, cancel := m.storeCtx(ctx)
	live, err := m.registry.IsLive(sctx, claims.SessionID, claims.Subject)
	cancel()
	if err != nil {
		m.logger.Warn("guard liveness check failed", "session", claims.SessionID, "error", err)
		return nil, ErrUnauthorized
	}
	if !live {
		return nil, ErrUnauthorized
	}

	return claims, nil
}

// lookupAccount resolves an account by email when it looks like one,
// username otherwise.
func (m *Manager) lookupAccount(ctx context.Context, account string) (*UserRecord, error) {
	if strings.Contains(account, "@") {
		return m.users.FindByEmail(ctx, account)
	}
	return m.users.FindByUsername(ctx, account)
}

func (m *Manager) signPair(subject Subject, sessionID string) (*Session, error) {
	access, err := m.codec.SignAccess(subject, sessionID)
	if err != nil {
		return nil, err
	}
	refresh, err := m.codec.SignRefresh(subject, sessionID)
	if err != nil {
		return nil, err
	}
	return &Session{
		Subject:      subject,
		SessionID:    sessionID,
		AccessToken:  *access,
		RefreshToken: *refresh,
	}, nil
}
