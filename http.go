// http.go

package sessionforge

import (
	"errors"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
)

// RefreshCookieName is the cookie carrying the refresh credential.
const RefreshCookieName = "refresh_token"

// LoginPayload is the login request body.
type LoginPayload struct {
	Account   string `json:"account"`
	Password  string `json:"password"`
	CaptchaID string `json:"captcha_id"`
	Captcha   string `json:"captcha"`
}

// Validate implements request validation for LoginPayload.
func (p LoginPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Account, validation.Required, validation.Length(1, 128)),
		validation.Field(&p.Password, validation.Required, validation.Length(1, 128)),
	)
}

// AccessTokenBody is the response body for login and refresh.
type AccessTokenBody struct {
	AccessToken string `json:"access_token"`
}

// ErrorBody is the wire shape of a recoverable failure.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Controller exposes the session lifecycle over HTTP. The transport is
// deliberately thin: every decision lives in the SessionManager.
type Controller struct {
	manager    SessionManager
	challenges *ChallengeStore
	refreshTTL time.Duration
	logger     *slog.Logger
}

// NewController creates an HTTP controller. The challenge store may be nil
// when the captcha endpoint is not wanted.
func NewController(manager SessionManager, challenges *ChallengeStore, refreshTTL time.Duration) *Controller {
	return &Controller{
		manager:    manager,
		challenges: challenges,
		refreshTTL: refreshTTL,
		logger:     slog.Default(),
	}
}

// WithLogger sets the structured logger used by the controller.
func (c *Controller) WithLogger(logger *slog.Logger) *Controller {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// RegisterRoutes mounts the auth routes. The guard middleware protects
// logout; login, captcha and refresh are public.
func (c *Controller) RegisterRoutes(router fiber.Router) {
	guard := NewGuard(c.manager)
	router.Post("/auth/login", c.Login)
	router.Get("/auth/captcha", c.Captcha)
	router.Post("/auth/refresh-token", c.RefreshToken)
	router.Post("/auth/logout", guard, c.Logout)
}

// Login handles POST /auth/login.
func (c *Controller) Login(ctx *fiber.Ctx) error {
	var payload LoginPayload
	if err := ctx.BodyParser(&payload); err != nil {
		return respondError(ctx, fiber.StatusBadRequest, "INVALID_REQUEST", "malformed request body")
	}
	if err := payload.Validate(); err != nil {
		return respondError(ctx, fiber.StatusBadRequest, "INVALID_REQUEST", err.Error())
	}

	session, err := c.manager.Login(ctx.UserContext(), LoginRequest{
		Account:   payload.Account,
		Password:  payload.Password,
		CaptchaID: payload.CaptchaID,
		Captcha:   payload.Captcha,
	})
	if err != nil {
		return c.respondTaxonomy(ctx, err)
	}

	setRefreshCookie(ctx, session.RefreshToken.Token, c.refreshTTL)
	return ctx.JSON(AccessTokenBody{AccessToken: session.AccessToken.Token})
}

// Captcha handles GET /auth/captcha.
func (c *Controller) Captcha(ctx *fiber.Ctx) error {
	if c.challenges == nil {
		return respondError(ctx, fiber.StatusNotFound, "NOT_FOUND", "captcha is not enabled")
	}
	challenge, err := c.challenges.Issue(ctx.UserContext(), ctx.QueryInt("width"), ctx.QueryInt("height"))
	if err != nil {
		c.logger.Error("captcha issue failed", "error", err)
		return respondError(ctx, fiber.StatusInternalServerError, "INTERNAL", "failed to issue captcha")
	}
	return ctx.JSON(challenge)
}

// RefreshToken handles POST /auth/refresh-token. The refresh credential
// travels in the refresh cookie, never in the body.
func (c *Controller) RefreshToken(ctx *fiber.Ctx) error {
	token := ctx.Cookies(RefreshCookieName)
	if token == "" {
		return c.respondTaxonomy(ctx, ErrInvalidRefreshToken)
	}

	session, err := c.manager.Refresh(ctx.UserContext(), token)
	if err != nil {
		return c.respondTaxonomy(ctx, err)
	}

	setRefreshCookie(ctx, session.RefreshToken.Token, c.refreshTTL)
	return ctx.JSON(AccessTokenBody{AccessToken: session.AccessToken.Token})
}

// Logout handles POST /auth/logout. The session to terminate comes from the
// guard-validated access credential, not from caller input.
func (c *Controller) Logout(ctx *fiber.Ctx) error {
	claims := ClaimsFromCtx(ctx)
	if claims == nil {
		return c.respondTaxonomy(ctx, ErrUnauthorized)
	}
	if err := c.manager.Logout(ctx.UserContext(), claims.SessionID); err != nil {
		c.logger.Error("logout failed", "session", claims.SessionID, "error", err)
		return respondError(ctx, fiber.StatusInternalServerError, "INTERNAL", "failed to log out")
	}
	clearRefreshCookie(ctx)
	return ctx.SendStatus(fiber.StatusNoContent)
}

func setRefreshCookie(ctx *fiber.Ctx, token string, ttl time.Duration) {
	ctx.Cookie(&fiber.Cookie{
		Name:     RefreshCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		Expires:  time.Now().Add(ttl),
		HTTPOnly: true,
		Secure:   true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func clearRefreshCookie(ctx *fiber.Ctx) {
	ctx.Cookie(&fiber.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		Secure:   true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// respondTaxonomy maps an error kind to its stable wire code and status.
func (c *Controller) respondTaxonomy(ctx *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrInvalidCaptcha):
		return respondError(ctx, fiber.StatusBadRequest, "INVALID_CAPTCHA", ErrInvalidCaptcha.Error())
	case errors.Is(err, ErrExpiredCaptcha):
		return respondError(ctx, fiber.StatusBadRequest, "EXPIRED_CAPTCHA", ErrExpiredCaptcha.Error())
	case errors.Is(err, ErrUserNotFound):
		return respondError(ctx, fiber.StatusNotFound, "USER_NOT_FOUND", ErrUserNotFound.Error())
	case errors.Is(err, ErrInvalidCredentials):
		return respondError(ctx, fiber.StatusUnauthorized, "INVALID_CREDENTIALS", ErrInvalidCredentials.Error())
	case errors.Is(err, ErrInvalidRefreshToken):
		return respondError(ctx, fiber.StatusUnauthorized, "INVALID_REFRESH_TOKEN", ErrInvalidRefreshToken.Error())
	case errors.Is(err, ErrExpiredRefreshToken):
		return respondError(ctx, fiber.StatusUnauthorized, "EXPIRED_REFRESH_TOKEN", ErrExpiredRefreshToken.Error())
	case errors.Is(err, ErrInvalidToken):
		return respondError(ctx, fiber.StatusUnauthorized, "INVALID_TOKEN", ErrInvalidToken.Error())
	case errors.Is(err, ErrUnauthorized):
		return respondError(ctx, fiber.StatusUnauthorized, "UNAUTHORIZED", ErrUnauthorized.Error())
	default:
		c.logger.Error("unexpected failure", "error", err)
		return respondError(ctx, fiber.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

func respondError(ctx *fiber.Ctx, status int, code, message string) error {
	return ctx.Status(status).JSON(ErrorBody{Code: code, Message: message})
}
