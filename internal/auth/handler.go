package auth

import (
	"strings"

	"faulty-asset-tracker/internal/apperr"
	"faulty-asset-tracker/internal/users"

	"github.com/gofiber/fiber/v2"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ChangeNameRequest struct {
	NewName string `json:"newName"`
}

// POST /api/auth/login
// Credentials come from a JSON body or, when the body is empty, from the
// email/password query parameters.
func LoginHandler(svc *users.Service, tokens *Tokens) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body LoginRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return apperr.InvalidArgument("invalid request body")
			}
		}
		if strings.TrimSpace(body.Email) == "" && body.Password == "" {
			body.Email = c.Query("email")
			body.Password = c.Query("password")
		}

		user, err := svc.Authenticate(c.UserContext(), body.Email, body.Password)
		if err != nil {
			return err
		}

		token, err := tokens.Generate(user)
		if err != nil {
			return apperr.Internal(err, "sign token")
		}

		return c.JSON(fiber.Map{
			"token": token,
		})
	}
}

// GET /api/auth/me
func MeHandler(svc *users.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFrom(c)
		if !ok {
			return apperr.Unauthorized("not authenticated")
		}

		user, err := svc.Get(c.UserContext(), principal.UserID)
		if err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				return apperr.Unauthorized("user not found")
			}
			return err
		}

		return c.JSON(fiber.Map{
			"id":    user.ID,
			"name":  user.Name,
			"email": user.Email,
			"roles": user.RoleNames(),
		})
	}
}

// PUT /api/auth/change-name
// Names are embedded in issued tokens, so a fresh token is returned.
func ChangeNameHandler(svc *users.Service, tokens *Tokens) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFrom(c)
		if !ok || principal.UserID == 0 {
			return apperr.Unauthorized("invalid token context")
		}

		var body ChangeNameRequest
		if err := c.BodyParser(&body); err != nil {
			return apperr.InvalidArgument("invalid request body")
		}

		user, err := svc.ChangeName(c.UserContext(), principal.UserID, body.NewName)
		if err != nil {
			return err
		}

		token, err := tokens.Generate(user)
		if err != nil {
			return apperr.Internal(err, "sign token")
		}

		return c.JSON(fiber.Map{
			"token":       token,
			"displayName": user.Name,
		})
	}
}
