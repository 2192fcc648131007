package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/field-dispatch/internal/api/dto"
	"github.com/spec-kit/field-dispatch/internal/domain"
	"github.com/spec-kit/field-dispatch/internal/repository"
	"github.com/spec-kit/field-dispatch/internal/service"
	apperrors "github.com/spec-kit/field-dispatch/pkg/util/errorutil"
)

// CrewsHandler exposes the crew roster and location ingest.
type CrewsHandler struct {
	service *service.CrewService
}

// NewCrewsHandler constructs handler.
func NewCrewsHandler(crewService *service.CrewService) *CrewsHandler {
	return &CrewsHandler{service: crewService}
}

// ListCrews GET /crews?status=disponible,ocupado&type=CHOQUE.
func (h *CrewsHandler) ListCrews(c *fiber.Ctx) error {
	filter := repository.CrewFilter{Limit: c.QueryInt("limit", 0)}
	for _, s := range splitQuery(c.Query("status")) {
		filter.Statuses = append(filter.Statuses, domain.CrewStatus(strings.ToLower(s)))
	}
	for _, t := range splitQuery(c.Query("type")) {
		filter.Types = append(filter.Types, domain.CrewType(strings.ToUpper(t)))
	}
	crews, err := h.service.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.CrewResponse, 0, len(crews))
	for i := range crews {
		items = append(items, dto.NewCrewResponse(&crews[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// ReportLocation PUT /crews/:id/location.
func (h *CrewsHandler) ReportLocation(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.LocationRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Lat == nil || req.Lng == nil {
		return apperrors.NewValidationError("lat and lng required", nil)
	}
	crew, err := h.service.ReportLocation(c.UserContext(), actor, c.Params("id"),
		domain.Coordinate{Lat: *req.Lat, Lng: *req.Lng}, req.ReportedAt)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewCrewResponse(crew)})
}

func splitQuery(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
