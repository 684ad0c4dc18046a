package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

const CtxPrincipalKey = "principal"

// SystemUser is recorded in the audit log when no principal name is known.
const SystemUser = "system"

// Principal is the authenticated caller as resolved from the bearer token.
type Principal struct {
	UserID uint
	Name   string
	Roles  []string
}

func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

func (p Principal) HasAnyRole(roles ...string) bool {
	for _, r := range roles {
		if p.HasRole(r) {
			return true
		}
	}
	return false
}

// AuditName is the name written to audit entries.
func (p Principal) AuditName() string {
	if name := strings.TrimSpace(p.Name); name != "" {
		return name
	}
	return SystemUser
}

// UserIDPtr returns nil for principals without a backing user row.
func (p Principal) UserIDPtr() *uint {
	if p.UserID == 0 {
		return nil
	}
	id := p.UserID
	return &id
}

func PrincipalFrom(c *fiber.Ctx) (Principal, bool) {
	p, ok := c.Locals(CtxPrincipalKey).(Principal)
	return p, ok
}
