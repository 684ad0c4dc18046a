package admin

import (
	"faulty-asset-tracker/internal/apperr"
	"faulty-asset-tracker/internal/users"

	"github.com/gofiber/fiber/v2"
)

type CreateUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

type UserResponse struct {
	ID        uint     `json:"id"`
	Name      string   `json:"name"`
	Email     string   `json:"email"`
	Roles     []string `json:"roles"`
	CreatedAt string   `json:"createdAt"`
}

// ----------------------------------------
// USERS
// ----------------------------------------

// POST /api/admin/users
// Accepts a JSON body, or email/password/name/role query parameters when the
// body is empty.
func CreateUserHandler(svc *users.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateUserRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return apperr.InvalidArgument("invalid request body")
			}
		} else {
			body = CreateUserRequest{
				Email:    c.Query("email"),
				Password: c.Query("password"),
				Name:     c.Query("name"),
				Role:     c.Query("role"),
			}
		}

		user, err := svc.CreateUser(c.UserContext(), users.CreateUserInput{
			Email:    body.Email,
			Password: body.Password,
			Name:     body.Name,
			Role:     body.Role,
		})
		if err != nil {
			return err
		}

		return c.Status(fiber.StatusCreated).JSON(UserResponse{
			ID:        user.ID,
			Name:      user.Name,
			Email:     user.Email,
			Roles:     user.RoleNames(),
			CreatedAt: user.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
}

// GET /api/admin/users
func ListUserNamesHandler(svc *users.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		names, err := svc.ListNames(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(names)
	}
}
