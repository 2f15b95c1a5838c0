// Package server assembles the HTTP application.
package server

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"adminpanel/internal/config"
	"adminpanel/internal/handlers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// multipart overhead on top of the image itself.
const formOverheadBytes = 1 << 20

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Options are the pieces New wires together.
type Options struct {
	Config         config.Config
	Logger         *slog.Logger
	ProductHandler *handlers.ProductHandler
	AuthHandler    *handlers.AuthHandler
	HealthChecks   map[string]HealthCheck
}

// New builds the Fiber app with middleware, static uploads and API routes.
func New(opts Options) *fiber.App {
	cfg := opts.Config

	app := fiber.New(fiber.Config{
		AppName:               "adminpanel",
		BodyLimit:             int(cfg.Upload.MaxBytes) + formOverheadBytes,
		ErrorHandler:          handlers.ErrorHandler(opts.Logger),
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.CORS.AllowedOrigins, ","),
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	// No max-age: a deleted image must stop being served right away.
	app.Static("/uploads", cfg.Upload.Dir, fiber.Static{
		ByteRange: true,
	})

	app.Get("/health", healthHandler(opts.HealthChecks))

	api := app.Group("/api")
	opts.AuthHandler.RegisterRoutes(api)
	opts.ProductHandler.RegisterRoutes(api)

	return app
}

func healthHandler(checks map[string]HealthCheck) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		status := "healthy"
		code := fiber.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				results[name] = err.Error()
				status = "degraded"
				code = fiber.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"time":   time.Now().Format(time.RFC3339),
			"checks": results,
		})
	}
}
