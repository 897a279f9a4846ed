// helpers_test.go

package sessionforge

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

const (
	testAccessSecret  = "test-access-secret-0123456789abcdef-0123456789"
	testRefreshSecret = "test-refresh-secret-0123456789abcdef-012345678"

	testPassword = "s3cret-password"
)

func testConfig() Config {
	return Config{
		JWT: JWTConfig{
			Secret:                testAccessSecret,
			ExpiresIn:             Duration(15 * time.Minute),
			RefreshTokenSecret:    testRefreshSecret,
			RefreshTokenExpiresIn: Duration(7 * 24 * time.Hour),
		},
		Captcha: CaptchaConfig{
			Enable: false,
			TTL:    Duration(2 * time.Minute),
		},
	}
}

func newTestCodec(t *testing.T, cfg JWTConfig) *CredentialCodec {
	t.Helper()
	codec, err := NewCredentialCodec(cfg)
	require.NoError(t, err)
	return codec
}

func newMiniredisStore(t *testing.T) *RedisKeyValueStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store, err := NewRedisKeyValueStore(client)
	require.NoError(t, err)
	return store
}

// testStores returns one store per backend so suites run against both.
func testStores(t *testing.T) map[string]KeyValueStore {
	t.Helper()
	return map[string]KeyValueStore{
		"memory": NewMemoryKeyValueStore(),
		"redis":  newMiniredisStore(t),
	}
}

// staticRenderer avoids real image rendering in engine-level tests.
type staticRenderer struct{}

func (staticRenderer) Render(text string, width, height int) (string, error) {
	return "data:image/png;base64,stub", nil
}

func mustHash(t *testing.T, hasher PasswordHasher, plain string) string {
	t.Helper()
	hash, err := hasher.Hash(plain)
	require.NoError(t, err)
	return hash
}
