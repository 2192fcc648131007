package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/field-dispatch/internal/api/http/handlers"
	"github.com/spec-kit/field-dispatch/internal/auth"
	"github.com/spec-kit/field-dispatch/internal/domain"
	"github.com/spec-kit/field-dispatch/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Dispatch       *handlers.DispatchHandler
	Field          *handlers.FieldHandler
	Crews          *handlers.CrewsHandler
	Metrics        *observability.Metrics
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	dispatchers := auth.RequireRole(domain.RoleDispatcher, domain.RoleSupervisor)
	fieldCrew := auth.RequireRole(domain.RoleTechnician, domain.RoleSupervisor)
	supervisors := auth.RequireRole(domain.RoleSupervisor)

	api := app.Group("", cfg.AuthMiddleware.Handle, auth.RequireRole())

	tickets := api.Group("/tickets")
	tickets.Post("/", dispatchers, cfg.Tickets.OpenTicket)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Get("/:id/sla", cfg.Tickets.GetSLA)
	tickets.Get("/:id/history", cfg.Tickets.History)
	tickets.Put("/:id/exclusion", dispatchers, cfg.Tickets.SetExclusion)

	tickets.Post("/:id/ranking", dispatchers, cfg.Dispatch.Rank)
	tickets.Post("/:id/dispatch", dispatchers, cfg.Dispatch.Dispatch)

	tickets.Post("/:id/arrival", fieldCrew, cfg.Field.ConfirmArrival)
	tickets.Put("/:id/requirements", fieldCrew, cfg.Field.SetRequirements)
	tickets.Post("/:id/neutralize", fieldCrew, cfg.Field.Neutralize)
	tickets.Put("/:id/evidence", fieldCrew, cfg.Field.CaptureEvidence)
	tickets.Post("/:id/evidence/submit", fieldCrew, cfg.Field.SubmitEvidence)
	tickets.Post("/:id/evidence/approve", supervisors, cfg.Field.Approve)
	tickets.Post("/:id/evidence/reject", supervisors, cfg.Field.Reject)

	crews := api.Group("/crews")
	crews.Get("/", cfg.Crews.ListCrews)
	crews.Put("/:id/location", auth.RequireRole(domain.RoleTechnician, domain.RoleTracker), cfg.Crews.ReportLocation)
}
