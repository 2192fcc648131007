package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/field-dispatch/internal/domain"
	"github.com/spec-kit/field-dispatch/internal/events"
	"github.com/spec-kit/field-dispatch/internal/geofence"
	"github.com/spec-kit/field-dispatch/internal/lifecycle"
	"github.com/spec-kit/field-dispatch/internal/repository"
	apperrors "github.com/spec-kit/field-dispatch/pkg/util/errorutil"
)

// FieldService drives the on-site part of the lifecycle: arrival,
// requirement checks, neutralization, evidence and supervision.
type FieldService struct {
	*transitioner
	crews *CrewService
}

// FieldDependencies bundles collaborators for the field service.
type FieldDependencies struct {
	TransitionDependencies
	CrewService *CrewService
}

// RequirementInput sets either or both requirement flags.
type RequirementInput struct {
	SafetyVerified    *bool
	EquipmentVerified *bool
}

// EvidenceInput updates the evidence items present in the request.
type EvidenceInput struct {
	BeforePhotoURL     *string
	AfterPhotoURL      *string
	ChecklistCompleted *bool
	CaptureLocation    *domain.Coordinate
}

// NewFieldService creates the service.
func NewFieldService(deps FieldDependencies) *FieldService {
	return &FieldService{
		transitioner: newTransitioner(deps.TransitionDependencies),
		crews:        deps.CrewService,
	}
}

// ConfirmArrival moves asignar → arribo when the crew is inside the site
// geofence. Without an explicit position the assigned crew's last known
// position is used.
func (s *FieldService) ConfirmArrival(ctx context.Context, actor events.Actor, ticketID string, position *domain.Coordinate) (*lifecycle.Result, error) {
	return s.run(ctx, ticketID, actor, func(ctx context.Context, ticket domain.Ticket) (lifecycle.Command, error) {
		site, err := s.site(ctx, ticket)
		if err != nil {
			return nil, err
		}
		cmd := lifecycle.ConfirmArrival{CrewLocation: position, SiteLocation: site.Location}
		if cmd.CrewLocation == nil && ticket.CrewID != nil && s.crews != nil {
			crew, err := s.crews.Get(ctx, *ticket.CrewID)
			if err != nil {
				return nil, err
			}
			cmd.CrewLocation = crew.CurrentLocation
		}
		return cmd, nil
	}, nil)
}

// SetRequirement records requirement flag A (safety) and/or B (equipment).
// Each flag is stored independently; neutralization reads both.
func (s *FieldService) SetRequirement(ctx context.Context, actor events.Actor, ticketID string, input RequirementInput) (*domain.EvidenceBundle, error) {
	if input.SafetyVerified == nil && input.EquipmentVerified == nil {
		return nil, apperrors.NewValidationError("at least one requirement flag is required", nil)
	}
	var saved *domain.EvidenceBundle
	err := s.withLock(ctx, ticketID, func(ticket *domain.Ticket) error {
		if ticket.Status != domain.TicketStatusArribo {
			return apperrors.NewConflict("requirements can only be set on site before neutralization",
				map[string]any{"reason": "illegal_transition", "status": string(ticket.Status)})
		}
		bundle, err := s.bundle(ctx, ticket.ID)
		if err != nil {
			return err
		}
		if input.SafetyVerified != nil {
			bundle.Requirements.SafetyVerified = *input.SafetyVerified
		}
		if input.EquipmentVerified != nil {
			bundle.Requirements.EquipmentVerified = *input.EquipmentVerified
		}
		bundle.UpdatedAt = s.now()
		if err := s.repos.Evidence.Save(ctx, bundle); err != nil {
			return mapError(err)
		}
		s.logger.Info("requirement flags updated",
			zap.String("ticket_id", ticket.ID),
			zap.String("actor", actor.SubjectID),
			zap.Bool("safety_verified", bundle.Requirements.SafetyVerified),
			zap.Bool("equipment_verified", bundle.Requirements.EquipmentVerified))
		saved = bundle
		return nil
	})
	return saved, err
}

// Neutralize moves arribo → neutralizar once both requirement flags are set.
func (s *FieldService) Neutralize(ctx context.Context, actor events.Actor, ticketID string) (*lifecycle.Result, error) {
	return s.run(ctx, ticketID, actor, func(ctx context.Context, ticket domain.Ticket) (lifecycle.Command, error) {
		bundle, err := s.bundle(ctx, ticket.ID)
		if err != nil {
			return nil, err
		}
		return lifecycle.Neutralize{Requirements: bundle.Requirements}, nil
	}, nil)
}

// CaptureEvidence updates the evidence bundle during remediation.
func (s *FieldService) CaptureEvidence(ctx context.Context, actor events.Actor, ticketID string, input EvidenceInput) (*domain.EvidenceBundle, error) {
	if input.CaptureLocation != nil {
		if err := geofence.Validate(*input.CaptureLocation); err != nil {
			return nil, apperrors.NewValidationError(err.Error(), nil)
		}
	}
	var saved *domain.EvidenceBundle
	err := s.withLock(ctx, ticketID, func(ticket *domain.Ticket) error {
		if ticket.Status != domain.TicketStatusNeutralizar {
			return apperrors.NewConflict("evidence can only be captured while neutralizing",
				map[string]any{"reason": "illegal_transition", "status": string(ticket.Status)})
		}
		bundle, err := s.bundle(ctx, ticket.ID)
		if err != nil {
			return err
		}
		if input.BeforePhotoURL != nil {
			bundle.BeforePhotoURL = strings.TrimSpace(*input.BeforePhotoURL)
		}
		if input.AfterPhotoURL != nil {
			bundle.AfterPhotoURL = strings.TrimSpace(*input.AfterPhotoURL)
		}
		if input.ChecklistCompleted != nil {
			bundle.ChecklistCompleted = *input.ChecklistCompleted
		}
		if input.CaptureLocation != nil {
			loc := *input.CaptureLocation
			bundle.CaptureLocation = &loc
		}
		bundle.Valid = false
		bundle.UpdatedAt = s.now()
		if err := s.repos.Evidence.Save(ctx, bundle); err != nil {
			return mapError(err)
		}
		s.logger.Info("evidence captured",
			zap.String("ticket_id", ticket.ID),
			zap.String("actor", actor.SubjectID),
			zap.Strings("missing", bundle.MissingItems()))
		saved = bundle
		return nil
	})
	return saved, err
}

// SubmitEvidence moves neutralizar → validar when the bundle is complete and
// was captured inside the site geofence.
func (s *FieldService) SubmitEvidence(ctx context.Context, actor events.Actor, ticketID string) (*lifecycle.Result, error) {
	return s.run(ctx, ticketID, actor, func(ctx context.Context, ticket domain.Ticket) (lifecycle.Command, error) {
		site, err := s.site(ctx, ticket)
		if err != nil {
			return nil, err
		}
		bundle, err := s.existingBundle(ctx, ticket.ID)
		if err != nil {
			return nil, err
		}
		return lifecycle.SubmitEvidence{Evidence: bundle, SiteLocation: site.Location}, nil
	}, nil)
}

// Approve marks the evidence valid and closes the ticket.
func (s *FieldService) Approve(ctx context.Context, actor events.Actor, ticketID string) (*lifecycle.Result, error) {
	var bundle *domain.EvidenceBundle
	return s.run(ctx, ticketID, actor, func(ctx context.Context, ticket domain.Ticket) (lifecycle.Command, error) {
		var err error
		bundle, err = s.existingBundle(ctx, ticket.ID)
		if err != nil {
			return nil, err
		}
		if bundle != nil && ticket.Status == domain.TicketStatusValidar && len(bundle.MissingItems()) == 0 {
			now := s.now()
			supervisor := actor.SubjectID
			bundle.Valid = true
			bundle.ValidatedBy = &supervisor
			bundle.ValidatedAt = &now
			bundle.RejectionReason = nil
			bundle.UpdatedAt = now
		}
		return lifecycle.Approve{Evidence: bundle, Supervisor: actor.SubjectID}, nil
	}, func(ctx context.Context, repos repository.Repositories, _ *lifecycle.Result) error {
		return repos.Evidence.Save(ctx, bundle)
	})
}

// Reject returns the ticket to neutralizar. Evidence items are kept; only
// their validity is cleared and the reason recorded.
func (s *FieldService) Reject(ctx context.Context, actor events.Actor, ticketID, reason string) (*lifecycle.Result, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.NewValidationError("rejection reason is required", nil)
	}
	var bundle *domain.EvidenceBundle
	return s.run(ctx, ticketID, actor, func(ctx context.Context, ticket domain.Ticket) (lifecycle.Command, error) {
		var err error
		bundle, err = s.bundle(ctx, ticket.ID)
		if err != nil {
			return nil, err
		}
		return lifecycle.Reject{Reason: reason, Supervisor: actor.SubjectID}, nil
	}, func(ctx context.Context, repos repository.Repositories, res *lifecycle.Result) error {
		supervisor := actor.SubjectID
		at := res.Change.At
		bundle.Valid = false
		bundle.ValidatedBy = &supervisor
		bundle.ValidatedAt = &at
		bundle.RejectionReason = &reason
		bundle.UpdatedAt = at
		return repos.Evidence.Save(ctx, bundle)
	})
}

func (s *FieldService) site(ctx context.Context, ticket domain.Ticket) (*domain.Site, error) {
	site, err := s.repos.Sites.GetByID(ctx, ticket.SiteID)
	if err != nil {
		return nil, lookupError(err, "site", ticket.SiteID)
	}
	return site, nil
}

// existingBundle returns the stored bundle or nil when none was captured.
func (s *FieldService) existingBundle(ctx context.Context, ticketID string) (*domain.EvidenceBundle, error) {
	bundle, err := s.repos.Evidence.Get(ctx, ticketID)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, mapError(err)
	}
	return bundle, nil
}

// bundle returns the stored bundle or a fresh one for the ticket.
func (s *FieldService) bundle(ctx context.Context, ticketID string) (*domain.EvidenceBundle, error) {
	bundle, err := s.existingBundle(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if bundle == nil {
		bundle = &domain.EvidenceBundle{TicketID: ticketID}
	}
	return bundle, nil
}
