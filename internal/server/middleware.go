package server

import (
	"errors"
	"time"

	"faulty-asset-tracker/internal/apperr"
	"faulty-asset-tracker/internal/auth"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// errorHandler renders every error as {"error": message}. Internal failures
// are logged and replaced by a generic message.
func errorHandler(log zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
		}

		kind := apperr.KindOf(err)
		if kind == apperr.KindInternal {
			log.Error().Err(err).
				Str("method", c.Method()).
				Str("path", c.Path()).
				Interface("request_id", c.Locals(requestIDKey)).
				Msg("unexpected error")
		}
		return c.Status(apperr.HTTPStatus(kind)).JSON(fiber.Map{
			"error": apperr.PublicMessage(err),
		})
	}
}

// requestLogger writes one line per request. Errors from the chain are
// rendered here so the logged status is the one sent to the client.
func requestLogger(log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		if chainErr := c.Next(); chainErr != nil {
			if err := c.App().ErrorHandler(c, chainErr); err != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		var ev *zerolog.Event
		switch {
		case status >= 500:
			ev = log.Error()
		case status >= 400:
			ev = log.Warn()
		default:
			ev = log.Info()
		}

		ev = ev.
			Str("method", c.Method()).
			Str("path", c.Route().Path).
			Int("status", status).
			Int64("duration_ms", time.Since(start).Milliseconds())
		if id, ok := c.Locals(requestIDKey).(string); ok && id != "" {
			ev = ev.Str("request_id", id)
		}
		if p, ok := auth.PrincipalFrom(c); ok {
			ev = ev.Str("user", p.AuditName())
		}
		ev.Msg("HTTP request")
		return nil
	}
}
