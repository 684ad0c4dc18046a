package assets

import (
	"net/url"

	"faulty-asset-tracker/internal/apperr"
	"faulty-asset-tracker/internal/auth"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
)

// assetTagParam copies the route parameter out of Fiber's reused buffer so it
// can outlive the request.
func assetTagParam(c *fiber.Ctx) string {
	return utils.CopyString(c.Params("assetTag"))
}

// GET /api/assets?status=Pending&sort=costHighLow
func ListAssetsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		views, err := svc.ListAll(c.UserContext(), ListOptions{
			Status: c.Query("status"),
			Sort:   SortOrder(c.Query("sort")),
		})
		if err != nil {
			return err
		}
		return c.JSON(views)
	}
}

// GET /api/assets/:assetTag
func GetAssetHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		view, err := svc.GetByTag(c.UserContext(), assetTagParam(c))
		if err != nil {
			return err
		}
		return c.JSON(view)
	}
}

// GET /api/assets/search?assetTag=LAP
func SearchAssetsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		views, err := svc.SearchByTag(c.UserContext(), c.Query("assetTag"))
		if err != nil {
			return err
		}
		return c.JSON(views)
	}
}

// GET /api/assets/stats
func StatsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		st, err := svc.Stats(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(st)
	}
}

// GET /api/assets/:assetTag/audit
func AuditTrailHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		logs, err := svc.AuditTrail(c.UserContext(), assetTagParam(c))
		if err != nil {
			return err
		}
		return c.JSON(logs)
	}
}

// POST /api/assets
func CreateAssetHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, _ := auth.PrincipalFrom(c)

		var body AssetInput
		if err := c.BodyParser(&body); err != nil {
			return apperr.InvalidArgument("invalid request body")
		}

		asset, err := svc.CreateAsset(c.UserContext(), principal, body)
		if err != nil {
			return err
		}

		c.Location("/api/assets/" + url.PathEscape(asset.AssetTag))
		return c.Status(fiber.StatusCreated).JSON(asset)
	}
}

// PUT /api/assets/:assetTag
func UpdateAssetHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, _ := auth.PrincipalFrom(c)

		var body AssetInput
		if err := c.BodyParser(&body); err != nil {
			return apperr.InvalidArgument("invalid request body")
		}

		if err := svc.UpdateAsset(c.UserContext(), principal, assetTagParam(c), body); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// DELETE /api/assets/:assetTag
func DeleteAssetHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, _ := auth.PrincipalFrom(c)

		if err := svc.DeleteAsset(c.UserContext(), principal, assetTagParam(c)); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
