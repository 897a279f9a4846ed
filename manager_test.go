// manager_test.go

package sessionforge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type managerFixture struct {
	manager    *Manager
	store      KeyValueStore
	registry   *SessionRegistry
	challenges *ChallengeStore
	users      *MemoryUserStore
}

// newManagerFixture wires a manager over the given store with one seeded
// account: alice (ID 7), password testPassword, hashed with SHA-256 to keep
// the suite fast.
func newManagerFixture(t *testing.T, store KeyValueStore, mutateCfg func(*Config)) *managerFixture {
	t.Helper()

	cfg := testConfig()
	if mutateCfg != nil {
		mutateCfg(&cfg)
	}

	hasher := SHA256Hasher{}
	users := NewMemoryUserStore(UserRecord{
		ID:           7,
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: mustHash(t, hasher, testPassword),
	})

	codec := newTestCodec(t, cfg.JWT)
	registry := NewSessionRegistry(store)
	challenges := NewChallengeStore(store, cfg.Captcha, staticRenderer{})

	manager, err := NewSessionManager(cfg, codec, registry, challenges, users, hasher)
	require.NoError(t, err)

	return &managerFixture{
		manager:    manager,
		store:      store,
		registry:   registry,
		challenges: challenges,
		users:      users,
	}
}

func (f *managerFixture) login(t *testing.T) *Session {
	t.Helper()
	session, err := f.manager.Login(context.Background(), LoginRequest{
		Account:  "alice",
		Password: testPassword,
	})
	require.NoError(t, err)
	return session
}

func TestManagerLogin(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			f := newManagerFixture(t, store, nil)
			ctx := context.Background()

			session := f.login(t)
			require.Equal(t, int64(7), session.Subject.ID)
			require.Equal(t, "alice", session.Subject.Username)
			require.NotEmpty(t, session.SessionID)
			require.NotEqual(t, session.AccessToken.Token, session.RefreshToken.Token)

			// Both credentials carry the registered session.
			claims, err := f.manager.ValidateAccess(session.AccessToken.Token)
			require.NoError(t, err)
			require.Equal(t, session.SessionID, claims.SessionID)

			live, err := f.registry.IsLive(ctx, session.SessionID, 7)
			require.NoError(t, err)
			require.True(t, live)
		})
	}
}

func TestManagerLoginByEmail(t *testing.T) {
	f := newManagerFixture(t, NewMemoryKeyValueStore(), nil)

	session, err := f.manager.Login(context.Background(), LoginRequest{
		Account:  "Alice@Example.com",
		Password: testPassword,
	})
	require.NoError(t, err)
	require.Equal(t, "alice", session.Subject.Username)
}

func TestManagerLoginFailures(t *testing.T) {
	f := newManagerFixture(t, NewMemoryKeyValueStore(), nil)
	ctx := context.Background()

	t.Run("Wrong Password", func(t *testing.T) {
		_, err := f.manager.Login(ctx, LoginRequest{Account: "alice", Password: "wrong"})
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("Unknown Account", func(t *testing.T) {
		_, err := f.manager.Login(ctx, LoginRequest{Account: "mallory", Password: testPassword})
		require.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("Disabled Account", func(t *testing.T) {
		f.users.Add(UserRecord{ID: 8, Username: "bob", PasswordHash: mustHash(t, SHA256Hasher{}, testPassword)})
		f.users.Disable("bob")
		_, err := f.manager.Login(ctx, LoginRequest{Account: "bob", Password: testPassword})
		require.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestManagerLoginWithCaptcha(t *testing.T) {
	f := newManagerFixture(t, NewMemoryKeyValueStore(), func(c *Config) {
		c.Captcha.Enable = true
	})
	ctx := context.Background()

	issue := func(t *testing.T) (string, string) {
		t.Helper()
		ch, err := f.challenges.Issue(ctx, 0, 0)
		require.NoError(t, err)
		answer, err := f.store.Get(ctx, challengeKey(ch.ID))
		require.NoError(t, err)
		return ch.ID, answer
	}

	t.Run("Valid Captcha", func(t *testing.T) {
		id, answer := issue(t)
		session, err := f.manager.Login(ctx, LoginRequest{
			Account:   "alice",
			Password:  testPassword,
			CaptchaID: id,
			Captcha:   answer,
		})
		require.NoError(t, err)
		require.Equal(t, "alice", session.Subject.Username)

		// The challenge was consumed by the successful login.
		_, err = f.manager.Login(ctx, LoginRequest{
			Account:   "alice",
			Password:  testPassword,
			CaptchaID: id,
			Captcha:   answer,
		})
		require.ErrorIs(t, err, ErrExpiredCaptcha)
	})

	t.Run("Captcha Checked Before Credentials", func(t *testing.T) {
		id, _ := issue(t)
		_, err := f.manager.Login(ctx, LoginRequest{
			Account:   "mallory",
			Password:  "wrong",
			CaptchaID: id,
			Captcha:   "nope",
		})
		require.ErrorIs(t, err, ErrInvalidCaptcha)
	})

	t.Run("Unknown Challenge", func(t *testing.T) {
		_, err := f.manager.Login(ctx, LoginRequest{
			Account:   "alice",
			Password:  testPassword,
			CaptchaID: "no-such-id",
			Captcha:   "abcd",
		})
		require.ErrorIs(t, err, ErrExpiredCaptcha)
	})
}

func TestManagerRefresh(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			f := newManagerFixture(t, store, nil)
			ctx := context.Background()

			first := f.login(t)

			second, err := f.manager.Refresh(ctx, first.RefreshToken.Token)
			require.NoError(t, err)
			require.Equal(t, first.Subject, second.Subject)
			require.NotEqual(t, first.SessionID, second.SessionID)

			// The presented credential is single use.
			_, err = f.manager.Refresh(ctx, first.RefreshToken.Token)
			require.ErrorIs(t, err, ErrExpiredRefreshToken)

			// The replacement still works.
			third, err := f.manager.Refresh(ctx, second.RefreshToken.Token)
			require.NoError(t, err)
			require.NotEqual(t, second.SessionID, third.SessionID)
		})
	}
}

func TestManagerRefreshRejectsWrongCredential(t *testing.T) {
	f := newManagerFixture(t, NewMemoryKeyValueStore(), nil)
	ctx := context.Background()

	session := f.login(t)

	t.Run("Access Credential", func(t *testing.T) {
		_, err := f.manager.Refresh(ctx, session.AccessToken.Token)
		require.ErrorIs(t, err, ErrInvalidRefreshToken)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := f.manager.Refresh(ctx, "not-a-token")
		require.ErrorIs(t, err, ErrInvalidRefreshToken)
	})
}

func TestManagerRefreshConcurrent(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			f := newManagerFixture(t, store, nil)
			session := f.login(t)

			const attempts = 2
			errs := make([]error, attempts)
			var wg sync.WaitGroup
			wg.Add(attempts)
			for i := 0; i < attempts; i++ {
				go func(i int) {
					defer wg.Done()
					_, errs[i] = f.manager.Refresh(context.Background(), session.RefreshToken.Token)
				}(i)
			}
			wg.Wait()

			var successes, expired int
			for _, err := range errs {
				switch {
				case err == nil:
					successes++
				case errors.Is(err, ErrExpiredRefreshToken):
					expired++
				default:
					t.Fatalf("unexpected error: %v", err)
				}
			}
			require.Equal(t, 1, successes)
			require.Equal(t, attempts-1, expired)
		})
	}
}

func TestManagerRefreshAfterLogout(t *testing.T) {
	f := newManagerFixture(t, NewMemoryKeyValueStore(), nil)
	ctx := context.Background()

	session := f.login(t)
	require.NoError(t, f.manager.Logout(ctx, session.SessionID))

	_, err := f.manager.Refresh(ctx, session.RefreshToken.Token)
	require.ErrorIs(t, err, ErrExpiredRefreshToken)
}

func TestManagerRefreshRevokedSession(t *testing.T) {
	// A revoked but not-yet-expired credential fails the same way an expired
	// one does; the caller cannot tell revocation from expiry.
	f := newManagerFixture(t, NewMemoryKeyValueStore(), nil)
	ctx := context.Background()

	session := f.login(t)
	require.NoError(t, f.registry.Revoke(ctx, session.SessionID, time.Hour))

	_, err := f.manager.Refresh(ctx, session.RefreshToken.Token)
	require.ErrorIs(t, err, ErrExpiredRefreshToken)
	require.NotErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestManagerRefreshDisabledUser(t *testing.T) {
	f := newManagerFixture(t, NewMemoryKeyValueStore(), nil)

	session := f.login(t)
	f.users.Disable("alice")

	_, err := f.manager.Refresh(context.Background(), session.RefreshToken.Token)
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestManagerLogoutIdempotent(t *testing.T) {
	f := newManagerFixture(t, NewMemoryKeyValueStore(), nil)
	ctx := context.Background()

	session := f.login(t)
	require.NoError(t, f.manager.Logout(ctx, session.SessionID))
	require.NoError(t, f.manager.Logout(ctx, session.SessionID))
	require.NoError(t, f.manager.Logout(ctx, "never-existed"))
}

func TestManagerValidateAccessIsStateless(t *testing.T) {
	f := newManagerFixture(t, NewMemoryKeyValueStore(), nil)
	ctx := context.Background()

	session := f.login(t)
	require.NoError(t, f.manager.Logout(ctx, session.SessionID))

	// The access credential keeps verifying after logout; only the guard
	// path consults the revocation set.
	claims, err := f.manager.ValidateAccess(session.AccessToken.Token)
	require.NoError(t, err)
	require.Equal(t, session.SessionID, claims.SessionID)

	_, err = f.manager.ValidateForGuard(ctx, session.AccessToken.Token)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestManagerValidateForGuard(t *testing.T) {
	f := newManagerFixture(t, NewMemoryKeyValueStore(), nil)
	ctx := context.Background()

	session := f.login(t)

	claims, err := f.manager.ValidateForGuard(ctx, session.AccessToken.Token)
	require.NoError(t, err)
	require.Equal(t, int64(7), claims.Subject)

	t.Run("Garbage Token", func(t *testing.T) {
		_, err := f.manager.ValidateForGuard(ctx, "not-a-token")
		require.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("Refresh Credential", func(t *testing.T) {
		_, err := f.manager.ValidateForGuard(ctx, session.RefreshToken.Token)
		require.ErrorIs(t, err, ErrUnauthorized)
	})
}

// failingStore errors on every operation so fail-closed paths can be
// exercised.
type failingStore struct{}

var errStoreDown = errors.New("store down")

func (failingStore) Get(context.Context, string) (string, error)              { return "", errStoreDown }
func (failingStore) Set(context.Context, string, string, time.Duration) error { return errStoreDown }
func (failingStore) Exists(context.Context, string) (bool, error)             { return false, errStoreDown }
func (failingStore) TTL(context.Context, string) (time.Duration, error)       { return 0, errStoreDown }
func (failingStore) Del(context.Context, ...string) error                     { return errStoreDown }
func (failingStore) Exec(context.Context, []ScriptOp) (int64, error)          { return 0, errStoreDown }

func TestManagerFailsClosedOnStoreErrors(t *testing.T) {
	// Mint valid credentials against a healthy store, then point the same
	// configuration at a broken one.
	healthy := newManagerFixture(t, NewMemoryKeyValueStore(), nil)
	session := healthy.login(t)

	broken := newManagerFixture(t, failingStore{}, nil)
	ctx := context.Background()

	_, err := broken.manager.Refresh(ctx, session.RefreshToken.Token)
	require.ErrorIs(t, err, ErrExpiredRefreshToken)

	_, err = broken.manager.ValidateForGuard(ctx, session.AccessToken.Token)
	require.ErrorIs(t, err, ErrUnauthorized)

	t.Run("Captcha Fails Closed", func(t *testing.T) {
		challenges := NewChallengeStore(failingStore{}, testCaptchaConfig(), staticRenderer{})
		err := challenges.Validate(ctx, "some-id", "abcd")
		require.ErrorIs(t, err, ErrExpiredCaptcha)
	})
}

func TestNewSessionManagerValidation(t *testing.T) {
	store := NewMemoryKeyValueStore()
	cfg := testConfig()
	codec := newTestCodec(t, cfg.JWT)
	registry := NewSessionRegistry(store)
	users := NewMemoryUserStore()

	t.Run("Nil Codec", func(t *testing.T) {
		_, err := NewSessionManager(cfg, nil, registry, nil, users, nil)
		require.Error(t, err)
	})

	t.Run("Nil Registry", func(t *testing.T) {
		_, err := NewSessionManager(cfg, codec, nil, nil, users, nil)
		require.Error(t, err)
	})

	t.Run("Nil User Store", func(t *testing.T) {
		_, err := NewSessionManager(cfg, codec, registry, nil, nil, nil)
		require.Error(t, err)
	})

	t.Run("Captcha Without Challenge Store", func(t *testing.T) {
		captchaCfg := cfg
		captchaCfg.Captcha.Enable = true
		_, err := NewSessionManager(captchaCfg, codec, registry, nil, users, nil)
		require.Error(t, err)
	})

	t.Run("Invalid Config", func(t *testing.T) {
		bad := cfg
		bad.JWT.Secret = "short"
		_, err := NewSessionManager(bad, codec, registry, nil, users, nil)
		require.Error(t, err)
	})
}
