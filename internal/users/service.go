package users

import (
	"context"
	"errors"
	"strings"

	"faulty-asset-tracker/internal/apperr"
	"faulty-asset-tracker/internal/models"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type CreateUserInput struct {
	Email    string
	Password string
	Name     string // defaults to Email
	Role     string // defaults to Employee
}

// Service owns platform identities and their roles.
type Service struct {
	db  *gorm.DB
	log zerolog.Logger
}

func NewService(db *gorm.DB, log zerolog.Logger) *Service {
	return &Service{db: db, log: log.With().Str("component", "users").Logger()}
}

func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = email
	}
	roleName := strings.TrimSpace(in.Role)
	if roleName == "" {
		roleName = models.RoleEmployee
	}

	if email == "" || in.Password == "" {
		return nil, apperr.InvalidArgument("email and password are required")
	}
	if len(in.Password) < 8 {
		return nil, apperr.InvalidArgument("password must be at least 8 characters")
	}

	var user models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var role models.Role
		if err := tx.Where("name = ?", roleName).First(&role).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.InvalidArgument("unknown role %q", roleName)
			}
			return apperr.Internal(err, "load role")
		}

		var count int64
		if err := tx.Model(&models.User{}).
			Where("email = ? OR name = ?", email, name).
			Count(&count).Error; err != nil {
			return apperr.Internal(err, "check existing user")
		}
		if count > 0 {
			return apperr.Conflict("a user with this email or name already exists")
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
		if err != nil {
			return apperr.Internal(err, "hash password")
		}

		user = models.User{
			Name:         name,
			Email:        email,
			PasswordHash: string(hash),
			Roles:        []models.Role{role},
		}
		if err := tx.Create(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.Conflict("a user with this email or name already exists")
			}
			return apperr.Internal(err, "create user")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("user", user.Name).Str("role", roleName).Msg("user created")
	return &user, nil
}

// Authenticate returns the user for valid credentials. Unknown email and
// wrong password are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperr.Unauthorized("invalid credentials")
	}

	var user models.User
	if err := s.db.WithContext(ctx).Preload("Roles").Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Unauthorized("invalid credentials")
		}
		return nil, apperr.Internal(err, "load user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apperr.Unauthorized("invalid credentials")
	}
	return &user, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Preload("Roles").First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, apperr.Internal(err, "load user")
	}
	return &user, nil
}

// ChangeName renames a user. The new name must be non-blank and unused by
// any other user.
func (s *Service) ChangeName(ctx context.Context, userID uint, newName string) (*models.User, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return nil, apperr.InvalidArgument("name cannot be empty")
	}

	var user models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Roles").First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.Unauthorized("user not found")
			}
			return apperr.Internal(err, "load user")
		}

		var count int64
		if err := tx.Model(&models.User{}).
			Where("name = ? AND id <> ?", newName, user.ID).
			Count(&count).Error; err != nil {
			return apperr.Internal(err, "check name")
		}
		if count > 0 {
			return apperr.Conflict("name already exists")
		}

		if err := tx.Model(&user).Update("name", newName).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.Conflict("name already exists")
			}
			return apperr.Internal(err, "update name")
		}
		user.Name = newName
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &user, nil
}

// ListNames returns every user name, alphabetically.
func (s *Service) ListNames(ctx context.Context) ([]string, error) {
	names := []string{}
	if err := s.db.WithContext(ctx).Model(&models.User{}).Order("name ASC").Pluck("name", &names).Error; err != nil {
		return nil, apperr.Internal(err, "list users")
	}
	return names, nil
}
