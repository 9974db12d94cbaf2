package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tasi-app/auth-service/internal/api/http/handlers"
	"github.com/tasi-app/auth-service/internal/auth"
	"github.com/tasi-app/auth-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health  *handlers.HealthHandler
	Auth    *handlers.AuthHandler
	Admin   *handlers.AdminHandler
	Carrier *handlers.CarrierHandler
	Gate    *auth.SessionGate
}

// RegisterRoutes wires HTTP routes. The gate runs for every request and decides by prefix
// which ones need a session.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	app.Use(cfg.Gate.Handle)

	authGroup := app.Group("/api/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/otp/request", cfg.Auth.RequestOTP)
	authGroup.Post("/otp/verify", cfg.Auth.VerifyOTP)
	authGroup.Post("/logout", cfg.Auth.Logout)
	authGroup.Get("/me", auth.RequireAuthenticated(), cfg.Auth.Me)

	admin := app.Group("/api/admin", auth.RequireRole(domain.RoleAdmin))
	admin.Post("/accounts", cfg.Admin.CreateAccount)
	admin.Get("/accounts/:partition/:id", cfg.Admin.GetAccount)
	admin.Patch("/accounts/:partition/:id/status", cfg.Admin.UpdateStatus)
	admin.Put("/accounts/:partition/:id/roles", cfg.Admin.UpdateRoles)

	carrier := app.Group("/api/carrier", auth.RequireRole(domain.RoleCarrier, domain.RoleDriver))
	carrier.Get("/profile", cfg.Carrier.Profile)
}
