// Package server assembles the HTTP application.
package server

import (
	"context"
	"strings"
	"time"

	"faulty-asset-tracker/internal/admin"
	"faulty-asset-tracker/internal/assets"
	"faulty-asset-tracker/internal/audit"
	"faulty-asset-tracker/internal/auth"
	"faulty-asset-tracker/internal/config"
	"faulty-asset-tracker/internal/events"
	"faulty-asset-tracker/internal/metrics"
	"faulty-asset-tracker/internal/models"
	"faulty-asset-tracker/internal/users"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const requestIDKey = "requestid"

type Deps struct {
	Config  *config.Config
	DB      *gorm.DB
	Log     zerolog.Logger
	Metrics *metrics.Metrics // optional
	Events  events.Publisher // optional
	Audit   assets.AuditSink // optional, defaults to audit.Recorder
}

// New builds the Fiber app with every route mounted.
func New(d Deps) *fiber.App {
	cfg := d.Config
	log := d.Log

	app := fiber.New(fiber.Config{
		AppName:               "faulty-asset-tracker",
		ErrorHandler:          errorHandler(log),
		UnescapePath:          true,
		DisableStartupMessage: true,
	})

	app.Use(requestid.New(requestid.Config{
		Generator:  uuid.NewString,
		ContextKey: requestIDKey,
	}))
	app.Use(requestLogger(log))
	app.Use(recover.New())

	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.AllowedOrigins(), ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))

	if cfg.RateLimitPerMinute > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        cfg.RateLimitPerMinute,
			Expiration: time.Minute,
			Next: func(c *fiber.Ctx) bool {
				return c.Path() == "/healthz" || c.Path() == "/metrics"
			},
			LimitReached: func(c *fiber.Ctx) error {
				return fiber.NewError(fiber.StatusTooManyRequests, "too many requests")
			},
		}))
	}

	if d.Metrics != nil {
		app.Use(d.Metrics.Middleware())
		app.Get("/metrics", adaptor.HTTPHandler(d.Metrics.Handler()))
	}
	app.Get("/healthz", healthHandler(d.DB))

	tokens := auth.NewTokens(cfg)
	userSvc := users.NewService(d.DB, log)
	assetSvc := assets.NewService(d.DB, assets.Options{
		Sink:    d.Audit,
		Events:  d.Events,
		Metrics: d.Metrics,
		Log:     log,
	})

	api := app.Group("/api")

	// Public auth
	api.Post("/auth/login", auth.LoginHandler(userSvc, tokens))

	// Protected
	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(tokens))

	protected.Get("/auth/me", auth.MeHandler(userSvc))
	protected.Put("/auth/change-name",
		auth.RequireRole(models.RoleAdmin, models.RoleEmployee),
		auth.ChangeNameHandler(userSvc, tokens))

	// Assets. Fixed paths are registered before :assetTag.
	assetRoutes := protected.Group("/assets")
	assetRoutes.Get("/", assets.ListAssetsHandler(assetSvc))
	assetRoutes.Get("/stats", assets.StatsHandler(assetSvc))
	assetRoutes.Get("/search", assets.SearchAssetsHandler(assetSvc))
	assetRoutes.Get("/:assetTag", assets.GetAssetHandler(assetSvc))
	assetRoutes.Get("/:assetTag/audit", assets.AuditTrailHandler(assetSvc))
	assetRoutes.Post("/",
		auth.RequireRole(models.RoleAdmin, models.RoleEmployee),
		assets.CreateAssetHandler(assetSvc))
	assetRoutes.Put("/:assetTag",
		auth.RequireRole(models.RoleAdmin, models.RoleEmployee),
		assets.UpdateAssetHandler(assetSvc))
	assetRoutes.Delete("/:assetTag",
		auth.RequireRole(models.RoleAdmin),
		assets.DeleteAssetHandler(assetSvc))

	// Admin routes
	adminRoutes := protected.Group("/admin")
	adminRoutes.Use(auth.RequireRole(models.RoleAdmin))
	adminRoutes.Post("/users", admin.CreateUserHandler(userSvc))
	adminRoutes.Get("/users", admin.ListUserNamesHandler(userSvc))

	protected.Get("/audit-logs", auth.RequireRole(models.RoleAdmin), audit.ListAuditLogsHandler(d.DB))

	return app
}

// GET /healthz
func healthHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sqlDB, err := db.DB()
		if err == nil {
			ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
			defer cancel()
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	}
}
