package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/user-provisioning/internal/api/http/handlers"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health   *handlers.HealthHandler
	Users    *handlers.UsersHandler
	Accounts *handlers.AccountsHandler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	users := app.Group("/users")
	users.Post("/", cfg.Users.Create)
	users.Get("/", cfg.Users.List)
	users.Get("/auth/:authId", cfg.Users.GetByAuthID)
	users.Get("/:id", cfg.Users.GetByID)
	users.Put("/:id/status", cfg.Users.UpdateStatus)
	users.Put("/:id", cfg.Users.Update)

	accounts := app.Group("/accounts")
	accounts.Post("/number", cfg.Accounts.Generate)
	accounts.Get("/number/:accountNumber", cfg.Accounts.Lookup)
}
