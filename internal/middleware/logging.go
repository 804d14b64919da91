package middleware

import (
	"log/slog"
	"time"

	"kollektiv/internal/observability"

	"github.com/gofiber/fiber/v2"
)

// ContextMiddleware copies the fiber request id into the request context as a
// correlation id, so deep layers logging through slog carry it too. When the
// requestid middleware is not installed a fresh id is generated instead.
func ContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rid, _ := c.Locals("requestid").(string)
		if rid == "" {
			rid = observability.GenerateCorrelationID()
		}
		c.SetUserContext(observability.WithCorrelationID(c.UserContext(), rid))
		return c.Next()
	}
}

// StructuredLogger logs each request through slog after it completes.
func StructuredLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		fields := []any{
			slog.Int("status", c.Response().StatusCode()),
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.String("ip", c.IP()),
			slog.Duration("latency", time.Since(start)),
		}
		if rid := observability.ExtractCorrelationID(c.UserContext()); rid != "" {
			fields = append(fields, slog.String("correlation_id", rid))
		}

		if err != nil {
			fields = append(fields, slog.String("error", err.Error()))
			slog.Error("request failed", fields...)
		} else {
			slog.Info("request processed", fields...)
		}

		return err
	}
}
