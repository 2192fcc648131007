package service

import (
	"errors"

	"github.com/spec-kit/field-dispatch/internal/geofence"
	"github.com/spec-kit/field-dispatch/internal/lifecycle"
	"github.com/spec-kit/field-dispatch/internal/persistence"
	"github.com/spec-kit/field-dispatch/internal/repository"
	"github.com/spec-kit/field-dispatch/internal/sla"
	apperrors "github.com/spec-kit/field-dispatch/pkg/util/errorutil"
)

// mapError translates core and repository errors into DomainErrors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var guard *lifecycle.GuardError
	switch {
	case errors.As(err, &guard):
		details := make(map[string]any, len(guard.Details)+2)
		for k, v := range guard.Details {
			details[k] = v
		}
		details["action"] = string(guard.Action)
		details["status"] = string(guard.Status)
		return apperrors.NewGuardFailed(string(guard.Reason), guard.Message, details)
	case errors.Is(err, lifecycle.ErrTerminal), errors.Is(err, lifecycle.ErrIllegalTransition):
		return apperrors.NewConflict(err.Error(), map[string]any{"reason": "illegal_transition"})
	case errors.Is(err, repository.ErrVersionConflict), errors.Is(err, persistence.ErrLockTimeout):
		return apperrors.NewConflict(err.Error(), map[string]any{"reason": "concurrent_update"})
	case errors.Is(err, sla.ErrUnknownPriority),
		errors.Is(err, sla.ErrUnknownZone),
		errors.Is(err, geofence.ErrInvalidCoordinate):
		return apperrors.NewValidationError(err.Error(), nil)
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound("record", nil)
	}
	return apperrors.MapError(err)
}

// lookupError maps a failed lookup of resource id.
func lookupError(err error, resource, id string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound(resource, map[string]any{resource + "_id": id})
	}
	return mapError(err)
}

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}
