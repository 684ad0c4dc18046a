package audit

import (
	"strconv"

	"faulty-asset-tracker/internal/apperr"
	"faulty-asset-tracker/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// GET /api/audit-logs?asset_id=1&user=jane&kind=update&limit=50
func ListAuditLogsHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var f Filter

		if s := c.Query("asset_id"); s != "" {
			id, err := strconv.ParseUint(s, 10, 64)
			if err != nil || id == 0 {
				return apperr.InvalidArgument("invalid asset_id")
			}
			f.AssetID = uint(id)
		}

		f.User = c.Query("user")

		switch kind := models.AuditAction(c.Query("kind")); kind {
		case "", models.AuditActionCreate, models.AuditActionUpdate, models.AuditActionDelete:
			f.Kind = kind
		default:
			return apperr.InvalidArgument("kind must be one of create, update, delete")
		}

		if s := c.Query("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				return apperr.InvalidArgument("invalid limit")
			}
			f.Limit = n
		}

		logs, err := List(c.UserContext(), db, f)
		if err != nil {
			return apperr.Internal(err, "list audit logs")
		}
		return c.JSON(logs)
	}
}
