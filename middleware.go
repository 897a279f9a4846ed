// middleware.go

package sessionforge

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// claimsLocalKey is the fiber locals key holding the guard-validated claims.
const claimsLocalKey = "sessionforge.claims"

// NewGuard returns a middleware that authorizes requests with a bearer
// access credential. It runs the guard-level check (signature, expiry, kind,
// revocation set, registry binding) and stores the claims in request locals
// for downstream handlers.
func NewGuard(manager SessionManager) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		token, ok := bearerToken(ctx.Get(fiber.HeaderAuthorization))
		if !ok {
			return respondError(ctx, fiber.StatusUnauthorized, "UNAUTHORIZED", ErrUnauthorized.Error())
		}

		claims, err := manager.ValidateForGuard(ctx.UserContext(), token)
		if err != nil {
			return respondError(ctx, fiber.StatusUnauthorized, "UNAUTHORIZED", ErrUnauthorized.Error())
		}

		ctx.Locals(claimsLocalKey, claims)
		return ctx.Next()
	}
}

// ClaimsFromCtx returns the claims stored by the guard, or nil when the
// request did not pass through it.
func ClaimsFromCtx(ctx *fiber.Ctx) *CredentialClaims {
	claims, _ := ctx.Locals(claimsLocalKey).(*CredentialClaims)
	return claims
}

func bearerToken(header string) (string, bool) {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", false
	}
	return token, true
}
