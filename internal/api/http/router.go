package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	AI             *handlers.AIHandler
	Reports        *handlers.ReportsHandler
	Departments    *handlers.DepartmentsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)
	authGroup.Post("/password/reset/request", cfg.Users.RequestPasswordReset)
	authGroup.Post("/password/reset/confirm", cfg.Users.ConfirmPasswordReset)

	authProtected := authGroup.Group("", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	authProtected.Get("/me", cfg.Users.Me)
	authProtected.Post("/password/change", cfg.Users.ChangePassword)
	authProtected.Post("/staff", auth.RequireRole(domain.RoleAdmin), cfg.Users.CreateStaff)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	tickets.Post("", cfg.Tickets.CreateTicket)
	tickets.Get("", cfg.Tickets.ListTickets)
	tickets.Get("/by-number/:number", cfg.Tickets.GetTicketByNumber)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Put("/:id/status", cfg.Tickets.UpdateStatus)
	tickets.Put("/:id/assign", auth.RequireStaff(), cfg.Tickets.AssignTicket)
	tickets.Post("/:id/rating", cfg.Tickets.RateTicket)
	tickets.Post("/:id/messages", cfg.Tickets.AddMessage)
	tickets.Put("/:id/messages/:messageID", cfg.Tickets.EditMessage)
	tickets.Get("/:id/history", auth.RequireStaff(), cfg.Tickets.ListHistory)
	tickets.Delete("/:id", auth.RequireRole(domain.RoleAdmin), cfg.Tickets.DeleteTicket)

	ai := app.Group("/ai", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	ai.Post("/analyze", cfg.AI.Analyze)
	ai.Post("/classify-department", cfg.AI.ClassifyDepartment)

	reports := app.Group("/reports", cfg.AuthMiddleware.Handle, auth.RequireStaff())
	reports.Get("/summary", cfg.Reports.Summary)

	departments := app.Group("/departments", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	departments.Get("", cfg.Departments.List)
	departments.Post("", auth.RequireRole(domain.RoleAdmin), cfg.Departments.Create)
	departments.Put("/:id", auth.RequireRole(domain.RoleAdmin), cfg.Departments.Update)
}
