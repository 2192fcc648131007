package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/field-dispatch/internal/api/dto"
	"github.com/spec-kit/field-dispatch/internal/service"
)

// DispatchHandler exposes crew ranking and assignment.
type DispatchHandler struct {
	service *service.DispatchService
}

// NewDispatchHandler constructs handler.
func NewDispatchHandler(dispatchService *service.DispatchService) *DispatchHandler {
	return &DispatchHandler{service: dispatchService}
}

// Rank POST /tickets/:id/ranking.
func (h *DispatchHandler) Rank(c *fiber.Ctx) error {
	var req dto.RankRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	result, err := h.service.Rank(c.UserContext(), c.Params("id"), service.RankInput{
		Escalated:     req.Escalated,
		RequiredParts: req.RequiredParts,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewRankResponse(result)})
}

// Dispatch POST /tickets/:id/dispatch. A no-match outcome is a 200 so the
// dispatcher can fall back to a manual override.
func (h *DispatchHandler) Dispatch(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.DispatchRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	result, err := h.service.Dispatch(c.UserContext(), actor, c.Params("id"), service.DispatchInput{
		CrewID:        req.CrewID,
		RequiredParts: req.RequiredParts,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewDispatchResultResponse(result)})
}
