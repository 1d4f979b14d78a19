package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/commerce-support/internal/api/http/handlers"
	"github.com/spec-kit/commerce-support/internal/auth"
	"github.com/spec-kit/commerce-support/internal/realtime"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	Notifications  *handlers.NotificationsHandler
	Orders         *handlers.OrdersHandler
	Realtime       *realtime.Handler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)
	authGroup.Get("/me", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated(), cfg.Users.Me)

	protected := app.Group("", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())

	tickets := protected.Group("/tickets")
	tickets.Post("", cfg.Tickets.CreateTicket)
	tickets.Get("", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Post("/:id/messages", cfg.Tickets.AddMessage)

	notifications := protected.Group("/notifications")
	notifications.Get("", cfg.Notifications.List)
	notifications.Patch("/:id/read", cfg.Notifications.MarkRead)
	notifications.Delete("", cfg.Notifications.ClearAll)

	protected.Get("/orders", cfg.Orders.ListMine)

	admin := protected.Group("/admin", auth.RequireAdmin())
	admin.Get("/tickets", cfg.Tickets.ListAllTickets)
	admin.Get("/tickets/analytics", cfg.Tickets.Analytics)
	admin.Patch("/tickets/:id/status", cfg.Tickets.UpdateStatus)
	admin.Post("/tickets/:id/escalate", cfg.Tickets.Escalate)
	admin.Post("/orders", cfg.Orders.Provision)

	// Websocket auth happens inside the upgrade gate so a failed
	// handshake is rejected before the connection is registered.
	app.Use("/ws", cfg.Realtime.UpgradeGate)
	app.Get("/ws", cfg.Realtime.Serve())
}
