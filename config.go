// config.go

package sessionforge

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultStoreTimeout   = 5 * time.Second
	defaultChallengeChars = 4
	minSecretLength       = 32
)

// Config holds the complete configuration for the session engine.
//
// Both signing secrets are required at startup; a missing or short secret is
// a construction error, never a per-request failure.
type Config struct {
	JWT          JWTConfig     `yaml:"jwt"`
	Captcha      CaptchaConfig `yaml:"captcha"`
	StoreTimeout Duration      `yaml:"storeTimeout"`
}

// JWTConfig configures credential signing. Access and refresh credentials
// use independent secrets and expiries so that compromise of one secret does
// not allow forging the other kind.
type JWTConfig struct {
	Secret                string   `yaml:"secret"`
	ExpiresIn             Duration `yaml:"expiresIn"`
	RefreshTokenSecret    string   `yaml:"refreshTokenSecret"`
	RefreshTokenExpiresIn Duration `yaml:"refreshTokenExpiresIn"`
	Algorithm             string   `yaml:"algorithm"`
}

// CaptchaConfig configures challenge issuance and enforcement.
type CaptchaConfig struct {
	Enable bool     `yaml:"enable"`
	TTL    Duration `yaml:"ttl"`
	Length int      `yaml:"length"`
}

// Duration is a time.Duration that unmarshals from YAML either as a bare
// number of seconds or as a duration string. Beyond the standard Go units it
// accepts day ("7d") and week ("2w") suffixes.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseDuration(value.Value)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// ParseDuration parses a duration value: bare integers are seconds,
// "d"/"w" suffixes are days/weeks, everything else goes through
// time.ParseDuration.
func ParseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("empty duration")
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	if n, ok := strings.CutSuffix(raw, "d"); ok {
		days, err := strconv.ParseFloat(n, 64)
		if err == nil {
			return time.Duration(days * 24 * float64(time.Hour)), nil
		}
	}
	if n, ok := strings.CutSuffix(raw, "w"); ok {
		weeks, err := strconv.ParseFloat(n, 64)
		if err == nil {
			return time.Duration(weeks * 7 * 24 * float64(time.Hour)), nil
		}
	}
	return time.ParseDuration(raw)
}

// LoadConfig reads and validates a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validateConfig validates the configuration and applies defaults.
func validateConfig(cfg *Config) error {
	if cfg.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required")
	}
	if len(cfg.JWT.Secret) < minSecretLength {
		return fmt.Errorf("jwt.secret must be at least %d bytes", minSecretLength)
	}
	if cfg.JWT.RefreshTokenSecret == "" {
		return fmt.Errorf("jwt.refreshTokenSecret is required")
	}
	if len(cfg.JWT.RefreshTokenSecret) < minSecretLength {
		return fmt.Errorf("jwt.refreshTokenSecret must be at least %d bytes", minSecretLength)
	}
	if cfg.JWT.RefreshTokenSecret == cfg.JWT.Secret {
		return fmt.Errorf("jwt.refreshTokenSecret must differ from jwt.secret")
	}
	if cfg.JWT.ExpiresIn <= 0 {
		return fmt.Errorf("jwt.expiresIn must be positive")
	}
	if cfg.JWT.RefreshTokenExpiresIn <= 0 {
		return fmt.Errorf("jwt.refreshTokenExpiresIn must be positive")
	}
	if cfg.JWT.Algorithm == "" {
		cfg.JWT.Algorithm = "HS256"
	}
	if cfg.Captcha.Enable && cfg.Captcha.TTL <= 0 {
		return fmt.Errorf("captcha.ttl must be positive when captcha.enable is set")
	}
	if cfg.Captcha.Length <= 0 {
		cfg.Captcha.Length = defaultChallengeChars
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = Duration(defaultStoreTimeout)
	}
	return nil
}
