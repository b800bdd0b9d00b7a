package middleware

import (
	"context"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
)

var maintenanceExemptPrefixes = []string{
	"/health",
	"/metrics",
	"/robots.txt",
	"/sitemap.xml",
	"/favicon.ico",
	"/api/admin",
}

// MaintenanceChecker reports whether the site is in maintenance mode.
type MaintenanceChecker func(ctx context.Context) (bool, error)

// Maintenance closes the API with 503 while the checker reports maintenance.
// Crawler files always get an X-Robots-Tag header.
func Maintenance(active MaintenanceChecker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()
		if path == "/robots.txt" || path == "/sitemap.xml" {
			c.Set("X-Robots-Tag", "all")
		}
		if isMaintenanceExempt(path) {
			return c.Next()
		}

		on, err := active(c.UserContext())
		if err != nil {
			Logger.WarnContext(c.UserContext(), "maintenance check failed", slog.String("error", err.Error()))
			return c.Next()
		}
		if on {
			c.Set(fiber.HeaderRetryAfter, "300")
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "The site is down for maintenance",
				"code":  "MAINTENANCE",
			})
		}
		return c.Next()
	}
}

func isMaintenanceExempt(path string) bool {
	for _, prefix := range maintenanceExemptPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
