package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/field-dispatch/internal/api/dto"
	"github.com/spec-kit/field-dispatch/internal/lifecycle"
	"github.com/spec-kit/field-dispatch/internal/service"
	apperrors "github.com/spec-kit/field-dispatch/pkg/util/errorutil"
)

// FieldHandler exposes on-site and supervision endpoints.
type FieldHandler struct {
	service *service.FieldService
}

// NewFieldHandler constructs handler.
func NewFieldHandler(fieldService *service.FieldService) *FieldHandler {
	return &FieldHandler{service: fieldService}
}

// ConfirmArrival POST /tickets/:id/arrival.
func (h *FieldHandler) ConfirmArrival(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.ArrivalRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	return transitionResponse(c)(h.service.ConfirmArrival(c.UserContext(), actor, c.Params("id"), req.Location))
}

// SetRequirements PUT /tickets/:id/requirements.
func (h *FieldHandler) SetRequirements(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.RequirementsRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	bundle, err := h.service.SetRequirement(c.UserContext(), actor, c.Params("id"), service.RequirementInput{
		SafetyVerified:    req.SafetyVerified,
		EquipmentVerified: req.EquipmentVerified,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewEvidenceResponse(bundle)})
}

// Neutralize POST /tickets/:id/neutralize.
func (h *FieldHandler) Neutralize(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	return transitionResponse(c)(h.service.Neutralize(c.UserContext(), actor, c.Params("id")))
}

// CaptureEvidence PUT /tickets/:id/evidence.
func (h *FieldHandler) CaptureEvidence(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.EvidenceRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	bundle, err := h.service.CaptureEvidence(c.UserContext(), actor, c.Params("id"), service.EvidenceInput{
		BeforePhotoURL:     req.BeforePhotoURL,
		AfterPhotoURL:      req.AfterPhotoURL,
		ChecklistCompleted: req.ChecklistCompleted,
		CaptureLocation:    req.CaptureLocation,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewEvidenceResponse(bundle)})
}

// SubmitEvidence POST /tickets/:id/evidence/submit.
func (h *FieldHandler) SubmitEvidence(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	return transitionResponse(c)(h.service.SubmitEvidence(c.UserContext(), actor, c.Params("id")))
}

// Approve POST /tickets/:id/evidence/approve.
func (h *FieldHandler) Approve(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	return transitionResponse(c)(h.service.Approve(c.UserContext(), actor, c.Params("id")))
}

// Reject POST /tickets/:id/evidence/reject.
func (h *FieldHandler) Reject(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.RejectRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	return transitionResponse(c)(h.service.Reject(c.UserContext(), actor, c.Params("id"), req.Reason))
}

func transitionResponse(c *fiber.Ctx) func(*lifecycle.Result, error) error {
	return func(res *lifecycle.Result, err error) error {
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"data": dto.NewTransitionResponse(res)})
	}
}
