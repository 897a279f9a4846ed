// challenge.go

package sessionforge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mojocn/base64Captcha"
)

const (
	challengeKeyPrefix = "captcha:"
	challengeCharset   = "1234567890abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

	defaultChallengeWidth  = 100
	defaultChallengeHeight = 32
)

// Challenge is an issued CAPTCHA: an opaque id and a rendered image as a
// base64 data URI.
type Challenge struct {
	ID    string `json:"id"`
	Image string `json:"image"`
}

// ChallengeRenderer renders a challenge text into an image data URI.
// Implementations are pure; the store never inspects the rendering.
type ChallengeRenderer interface {
	Render(text string, width, height int) (string, error)
}

// CaptchaRenderer renders challenges as noisy PNG images.
type CaptchaRenderer struct {
	NoiseCount int
}

func (r CaptchaRenderer) Render(text string, width, height int) (string, error) {
	noise := r.NoiseCount
	if noise <= 0 {
		noise = 4
	}
	driver := base64Captcha.NewDriverString(
		height, width, noise,
		base64Captcha.OptionShowHollowLine,
		len(text), challengeCharset, nil, nil, nil,
	)
	item, err := driver.DrawCaptcha(text)
	if err != nil {
		return "", fmt.Errorf("failed to draw captcha: %w", err)
	}
	return item.EncodeB64string(), nil
}

// ChallengeStore issues and validates short-lived, one-time CAPTCHA
// challenges in a dedicated key namespace of the shared store.
type ChallengeStore struct {
	kv       KeyValueStore
	renderer ChallengeRenderer
	ttl      time.Duration
	length   int
}

// NewChallengeStore creates a challenge store. A nil renderer falls back to
// the built-in PNG renderer.
func NewChallengeStore(kv KeyValueStore, cfg CaptchaConfig, renderer ChallengeRenderer) *ChallengeStore {
	if renderer == nil {
		renderer = CaptchaRenderer{}
	}
	length := cfg.Length
	if length <= 0 {
		length = defaultChallengeChars
	}
	return &ChallengeStore{
		kv:       kv,
		renderer: renderer,
		ttl:      cfg.TTL.Std(),
		length:   length,
	}
}

func challengeKey(id string) string { return challengeKeyPrefix + id }

// Issue generates a random challenge, stores its answer under a fresh id,
// and returns the id with the rendered image.
func (s *ChallengeStore) Issue(ctx context.Context, width, height int) (*Challenge, error) {
	if width <= 0 {
		width = defaultChallengeWidth
	}
	if height <= 0 {
		height = defaultChallengeHeight
	}

	text, err := randomChallengeText(s.length)
	if err != nil {
		return nil, err
	}

	image, err := s.renderer.Render(text, width, height)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	if err := s.kv.Set(ctx, challengeKey(id), text, s.ttl); err != nil {
		return nil, fmt.Errorf("store challenge: %w", err)
	}

	return &Challenge{ID: id, Image: image}, nil
}

// Validate checks an answer against the stored challenge. An absent entry
// fails with ErrExpiredCaptcha; a case-insensitive mismatch fails with
// ErrInvalidCaptcha and leaves the entry in place until its TTL elapses. A
// match consumes the entry: the challenge is one-time use.
func (s *ChallengeStore) Validate(ctx context.Context, id, answer string) error {
	stored, err := s.kv.Get(ctx, challengeKey(id))
	if errors.Is(err, ErrKeyNotFound) {
		return ErrExpiredCaptcha
	}
	if err != nil {
		// Fail closed: an unreachable store never lets a challenge through.
		return fmt.Errorf("%w: %v", ErrExpiredCaptcha, err)
	}
	if !strings.EqualFold(stored, answer) {
		return ErrInvalidCaptcha
	}
	return s.kv.Del(ctx, challengeKey(id))
}
