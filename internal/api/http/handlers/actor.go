package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/field-dispatch/internal/auth"
	"github.com/spec-kit/field-dispatch/internal/events"
	apperrors "github.com/spec-kit/field-dispatch/pkg/util/errorutil"
)

func actorFrom(c *fiber.Ctx) (events.Actor, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return events.Actor{}, apperrors.NewUnauthorized("authentication required")
	}
	return events.Actor{SubjectID: principal.SubjectID, Role: principal.Role}, nil
}

// parseBody decodes an optional JSON body into out.
func parseBody(c *fiber.Ctx, out any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return nil
}
