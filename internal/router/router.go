package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/groupbuy-api/internal/config"
	"github.com/noah-isme/groupbuy-api/internal/handler"
	"github.com/noah-isme/groupbuy-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ListingHandler      *handler.ListingHandler
	FavoriteHandler     *handler.FavoriteHandler
	UserHandler         *handler.UserHandler
	ChatHandler         *handler.ChatHandler
	NotificationHandler *handler.NotificationHandler
	Database            handler.Pinger
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.Database))

	if deps.UserHandler != nil {
		deps.UserHandler.Register(api)
	}
	if deps.FavoriteHandler != nil {
		deps.FavoriteHandler.Register(api)
	}
	if deps.ListingHandler != nil {
		deps.ListingHandler.Register(api)
	}
	if deps.ChatHandler != nil {
		deps.ChatHandler.Register(api)
	}
	if deps.NotificationHandler != nil {
		deps.NotificationHandler.Register(api)
	}
}
