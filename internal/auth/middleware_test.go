package auth

import (
	"net/http/httptest"
	"testing"

	"faulty-asset-tracker/internal/apperr"
	"faulty-asset-tracker/internal/models"

	"github.com/gofiber/fiber/v2"
)

func newTestApp(tokens *Tokens, roles ...string) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(apperr.HTTPStatus(apperr.KindOf(err))).JSON(fiber.Map{"error": apperr.PublicMessage(err)})
		},
	})
	app.Get("/private", JWTMiddleware(tokens), RequireRole(roles...), func(c *fiber.Ctx) error {
		p, _ := PrincipalFrom(c)
		return c.SendString(p.Name)
	})
	return app
}

func TestJWTMiddleware(t *testing.T) {
	tokens := NewTokens(testConfig())
	employee, err := tokens.Generate(testUser())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	admin, err := tokens.Generate(&models.User{ID: 1, Name: "root", Roles: []models.Role{{Name: models.RoleAdmin}}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	app := newTestApp(tokens, models.RoleAdmin)

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", fiber.StatusUnauthorized},
		{"wrong scheme", "Basic abc", fiber.StatusUnauthorized},
		{"garbage token", "Bearer not-a-token", fiber.StatusUnauthorized},
		{"insufficient role", "Bearer " + employee, fiber.StatusForbidden},
		{"admin", "Bearer " + admin, fiber.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/private", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			if resp.StatusCode != tc.want {
				t.Errorf("expected %d, got %d", tc.want, resp.StatusCode)
			}
		})
	}
}
