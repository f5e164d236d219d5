package handler

import (
	"context"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"
)

const readinessTimeout = 2 * time.Second

// ReadinessCheck pings one dependency.
type ReadinessCheck func(ctx context.Context) error

// RegisterHealthRoutes mounts /livez and /readyz. checks is keyed by the
// dependency name reported in the readiness body.
func RegisterHealthRoutes(app fiber.Router, checks map[string]ReadinessCheck) {
	app.Get("/livez", LivezHandler())
	app.Get("/readyz", ReadyzHandler(checks))
}

func LivezHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "ok",
		})
	}
}

func ReadyzHandler(checks map[string]ReadinessCheck) fiber.Handler {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), readinessTimeout)
		defer cancel()

		results := fiber.Map{}
		ready := true
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				results[name] = "down"
				ready = false
				continue
			}
			results[name] = "ok"
		}

		status := "ready"
		statusCode := fiber.StatusOK
		if !ready {
			status = "not_ready"
			statusCode = fiber.StatusServiceUnavailable
		}

		return c.Status(statusCode).JSON(fiber.Map{
			"status": status,
			"checks": results,
		})
	}
}
