package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/field-dispatch/internal/domain"
	"github.com/spec-kit/field-dispatch/internal/events"
	"github.com/spec-kit/field-dispatch/internal/lifecycle"
	"github.com/spec-kit/field-dispatch/internal/repository"
	"github.com/spec-kit/field-dispatch/internal/sla"
	apperrors "github.com/spec-kit/field-dispatch/pkg/util/errorutil"
)

// TicketService coordinates ticket intake and read models.
type TicketService struct {
	*transitioner
}

// OpenTicketInput describes ticket intake.
type OpenTicketInput struct {
	ID               string
	SiteID           string
	Priority         string
	InterventionType string
	OpenedAt         *time.Time
}

// TicketDetail is the ticket plus everything the field apps display with it.
type TicketDetail struct {
	Ticket         domain.Ticket
	Site           domain.Site
	Evidence       *domain.EvidenceBundle
	Dispatches     []domain.Dispatch
	AllowedActions []lifecycle.Action
	SLA            sla.Remaining
}

// SLAStatus summarizes a ticket against its deadline.
type SLAStatus struct {
	TicketID         string                `json:"ticket_id"`
	Priority         domain.TicketPriority `json:"priority"`
	Zone             string                `json:"zone"`
	ZoneClass        sla.ZoneClass         `json:"zone_class"`
	BudgetHours      float64               `json:"budget_hours"`
	OpenedAt         time.Time             `json:"opened_at"`
	DeadlineAt       time.Time             `json:"deadline_at"`
	EvaluatedAt      time.Time             `json:"evaluated_at"`
	RemainingMinutes int64                 `json:"remaining_minutes"`
	IsOverdue        bool                  `json:"is_overdue"`
	Closed           bool                  `json:"closed"`
	Excluded         bool                  `json:"excluded"`
	ExclusionCause   *string               `json:"exclusion_cause,omitempty"`
}

// NewTicketService constructs the service.
func NewTicketService(deps TransitionDependencies) *TicketService {
	return &TicketService{transitioner: newTransitioner(deps)}
}

// Open creates a ticket in recepcion with its SLA deadline fixed from the
// priority and the site's zone.
func (s *TicketService) Open(ctx context.Context, actor events.Actor, input OpenTicketInput) (*domain.Ticket, error) {
	if strings.TrimSpace(input.SiteID) == "" {
		return nil, apperrors.NewValidationError("site_id is required", nil)
	}
	priority, err := sla.ParsePriority(input.Priority)
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error(), map[string]any{"priority": input.Priority})
	}
	site, err := s.repos.Sites.GetByID(ctx, input.SiteID)
	if err != nil {
		return nil, lookupError(err, "site", input.SiteID)
	}

	openedAt := s.now()
	if input.OpenedAt != nil {
		openedAt = *input.OpenedAt
	}
	deadline, err := sla.ComputeDeadline(openedAt, priority, site.SLAZoneLabel())
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error(), map[string]any{"site_id": site.ID, "zone": site.SLAZoneLabel()})
	}

	id := strings.TrimSpace(input.ID)
	if id == "" {
		id = uuid.NewString()
	}
	ticket := &domain.Ticket{
		ID:               id,
		Priority:         priority,
		Status:           domain.TicketStatusRecepcion,
		SiteID:           site.ID,
		InterventionType: strings.TrimSpace(input.InterventionType),
		OpenedAt:         openedAt,
		SLADeadlineAt:    deadline,
		UpdatedAt:        openedAt,
	}
	eventID := uuid.NewSHA1(uuid.NameSpaceURL, []byte("ticket-opened|"+ticket.ID)).String()
	var actorID *string
	if actor.SubjectID != "" {
		actorID = &actor.SubjectID
	}
	entry := &domain.TicketHistory{
		EventID:   eventID,
		TicketID:  ticket.ID,
		Action:    "open",
		NewStatus: ticket.Status,
		ActorID:   actorID,
		Details: map[string]any{
			"priority":        string(ticket.Priority),
			"sla_deadline_at": ticket.SLADeadlineAt,
		},
		CreatedAt: openedAt,
	}
	err = s.repos.InTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Tickets.Create(ctx, ticket); err != nil {
			return err
		}
		_, err := repos.History.Append(ctx, entry)
		return err
	})
	if err != nil {
		s.logger.Error("open ticket", zap.String("ticket_id", ticket.ID), zap.Error(err))
		return nil, mapError(err)
	}

	s.logger.Info("ticket opened",
		zap.String("ticket_id", ticket.ID),
		zap.String("priority", string(ticket.Priority)),
		zap.Time("sla_deadline_at", ticket.SLADeadlineAt))
	s.publish(ctx, events.Event{
		ID:        eventID,
		Type:      events.EventTicketOpened,
		TicketID:  ticket.ID,
		Actor:     actor,
		Timestamp: openedAt,
		Payload: events.TicketOpenedPayload{
			SiteID:        ticket.SiteID,
			Priority:      ticket.Priority,
			SLADeadlineAt: ticket.SLADeadlineAt,
		},
	})
	return ticket, nil
}

// Get returns the ticket with its site, evidence and dispatch records.
func (s *TicketService) Get(ctx context.Context, ticketID string) (*TicketDetail, error) {
	ticket, err := s.repos.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, lookupError(err, "ticket", ticketID)
	}
	site, err := s.repos.Sites.GetByID(ctx, ticket.SiteID)
	if err != nil {
		return nil, lookupError(err, "site", ticket.SiteID)
	}
	evidence, err := s.repos.Evidence.Get(ctx, ticketID)
	if err != nil && !isNotFound(err) {
		return nil, mapError(err)
	}
	dispatches, err := s.repos.Dispatches.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, mapError(err)
	}
	return &TicketDetail{
		Ticket:         *ticket,
		Site:           *site,
		Evidence:       evidence,
		Dispatches:     dispatches,
		AllowedActions: lifecycle.AllowedActions(ticket.Status),
		SLA:            sla.RemainingFor(ticket, s.slaInstant(ticket)),
	}, nil
}

// SLAStatus evaluates the ticket's deadline now. Closed tickets are evaluated
// at their closing time.
func (s *TicketService) SLAStatus(ctx context.Context, ticketID string) (*SLAStatus, error) {
	ticket, err := s.repos.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, lookupError(err, "ticket", ticketID)
	}
	site, err := s.repos.Sites.GetByID(ctx, ticket.SiteID)
	if err != nil {
		return nil, lookupError(err, "site", ticket.SiteID)
	}
	zone := site.SLAZoneLabel()
	class, err := sla.ClassifyZone(zone)
	if err != nil {
		return nil, mapError(err)
	}
	hours, err := sla.Hours(ticket.Priority, zone)
	if err != nil {
		return nil, mapError(err)
	}

	at := s.slaInstant(ticket)
	remaining := sla.RemainingFor(ticket, at)
	return &SLAStatus{
		TicketID:         ticket.ID,
		Priority:         ticket.Priority,
		Zone:             zone,
		ZoneClass:        class,
		BudgetHours:      hours,
		OpenedAt:         ticket.OpenedAt,
		DeadlineAt:       ticket.SLADeadlineAt,
		EvaluatedAt:      at,
		RemainingMinutes: remaining.RemainingMinutes,
		IsOverdue:        remaining.IsOverdue,
		Closed:           ticket.IsClosed(),
		Excluded:         ticket.ExclusionCause != nil,
		ExclusionCause:   ticket.ExclusionCause,
	}, nil
}

// slaInstant is the moment a ticket's SLA is measured at: now while open,
// the closing time once closed.
func (s *TicketService) slaInstant(ticket *domain.Ticket) time.Time {
	if ticket.ClosedAt != nil {
		return *ticket.ClosedAt
	}
	return s.now()
}

// SetExclusion records or clears (empty cause) the reason a ticket is left
// out of SLA accounting. Status and deadline are untouched.
func (s *TicketService) SetExclusion(ctx context.Context, actor events.Actor, ticketID, cause string) (*domain.Ticket, error) {
	var updated *domain.Ticket
	err := s.withLock(ctx, ticketID, func(ticket *domain.Ticket) error {
		next := *ticket
		cause = strings.TrimSpace(cause)
		if cause == "" {
			next.ExclusionCause = nil
		} else {
			next.ExclusionCause = &cause
		}
		next.Version = ticket.Version + 1
		next.UpdatedAt = s.now()
		if err := s.repos.Tickets.Update(ctx, &next, ticket.Version); err != nil {
			return mapError(err)
		}
		s.logger.Info("sla exclusion updated",
			zap.String("ticket_id", ticket.ID),
			zap.String("actor", actor.SubjectID),
			zap.Bool("excluded", next.ExclusionCause != nil))
		updated = &next
		return nil
	})
	return updated, err
}

// History lists the audit trail of a ticket in application order.
func (s *TicketService) History(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	if _, err := s.repos.Tickets.GetByID(ctx, ticketID); err != nil {
		return nil, lookupError(err, "ticket", ticketID)
	}
	entries, err := s.repos.History.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, mapError(err)
	}
	return entries, nil
}
