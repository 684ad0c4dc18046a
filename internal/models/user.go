package models

import "time"

const (
	RoleAdmin    = "Admin"
	RoleEmployee = "Employee"
)

// DefaultRoles are seeded on startup.
var DefaultRoles = []string{RoleAdmin, RoleEmployee}

type User struct {
	ID           uint   `gorm:"primaryKey"`
	Name         string `gorm:"size:100;not null;uniqueIndex"`
	Email        string `gorm:"size:100;not null;uniqueIndex"`
	PasswordHash string `gorm:"size:255;not null"`
	Roles        []Role `gorm:"many2many:user_roles"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (u *User) RoleNames() []string {
	out := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		out = append(out, r.Name)
	}
	return out
}

type Role struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"size:50;not null;uniqueIndex"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
