package auth

import (
	"strings"

	"faulty-asset-tracker/internal/apperr"

	"github.com/gofiber/fiber/v2"
)

func JWTMiddleware(tokens *Tokens) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return apperr.Unauthorized("authorization header missing")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
			return apperr.Unauthorized("authorization header must be 'Bearer <token>'")
		}

		principal, err := tokens.Parse(strings.TrimSpace(parts[1]))
		if err != nil {
			return apperr.Unauthorized("invalid or expired token")
		}

		c.Locals(CtxPrincipalKey, principal)
		return c.Next()
	}
}

func RequireRole(allowedRoles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFrom(c)
		if !ok {
			return apperr.Unauthorized("not authenticated")
		}
		if !principal.HasAnyRole(allowedRoles...) {
			return apperr.Forbidden("you are not allowed to perform this action")
		}
		return c.Next()
	}
}
