package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/field-dispatch/internal/api/dto"
	"github.com/spec-kit/field-dispatch/internal/service"
	apperrors "github.com/spec-kit/field-dispatch/pkg/util/errorutil"
)

// TicketsHandler manages ticket intake and read endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// OpenTicket POST /tickets.
func (h *TicketsHandler) OpenTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.OpenTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.SiteID == "" || req.Priority == "" {
		return apperrors.NewValidationError("site_id and priority required", nil)
	}
	ticket, err := h.service.Open(c.UserContext(), actor, service.OpenTicketInput{
		ID:               req.ID,
		SiteID:           req.SiteID,
		Priority:         req.Priority,
		InterventionType: req.InterventionType,
		OpenedAt:         req.OpenedAt,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	detail, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketDetailResponse(detail)})
}

// GetSLA GET /tickets/:id/sla.
func (h *TicketsHandler) GetSLA(c *fiber.Ctx) error {
	status, err := h.service.SLAStatus(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": status})
}

// SetExclusion PUT /tickets/:id/exclusion.
func (h *TicketsHandler) SetExclusion(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.SetExclusionRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.service.SetExclusion(c.UserContext(), actor, c.Params("id"), req.Cause)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// History GET /tickets/:id/history.
func (h *TicketsHandler) History(c *fiber.Ctx) error {
	entries, err := h.service.History(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewHistoryResponse(entries)})
}
