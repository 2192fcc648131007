package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/field-dispatch/internal/domain"
	"github.com/spec-kit/field-dispatch/internal/events"
	"github.com/spec-kit/field-dispatch/internal/lifecycle"
	"github.com/spec-kit/field-dispatch/internal/observability"
	"github.com/spec-kit/field-dispatch/internal/persistence"
	"github.com/spec-kit/field-dispatch/internal/repository"
)

// TransitionDependencies bundles what every lifecycle-driving service needs.
type TransitionDependencies struct {
	Repos      repository.Repositories
	Machine    *lifecycle.Machine
	Locker     persistence.TicketLocker
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Clock      func() time.Time
}

// transitioner runs one command against one ticket: lock, load, apply,
// persist, audit and publish.
type transitioner struct {
	repos      repository.Repositories
	machine    *lifecycle.Machine
	locker     persistence.TicketLocker
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

func newTransitioner(deps TransitionDependencies) *transitioner {
	t := &transitioner{
		repos:      deps.Repos,
		machine:    deps.Machine,
		locker:     deps.Locker,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		now:        deps.Clock,
	}
	if t.machine == nil {
		t.machine = lifecycle.NewMachine(0)
	}
	if t.locker == nil {
		t.locker = persistence.NewLocalLocker()
	}
	if t.logger == nil {
		t.logger = zap.NewNop()
	}
	if t.now == nil {
		t.now = time.Now
	}
	return t
}

// buildFunc turns the locked ticket snapshot into a command.
type buildFunc func(ctx context.Context, ticket domain.Ticket) (lifecycle.Command, error)

// afterFunc writes side records inside the transition's transaction.
type afterFunc func(ctx context.Context, repos repository.Repositories, res *lifecycle.Result) error

// withLock runs fn while holding the ticket lock.
func (t *transitioner) withLock(ctx context.Context, ticketID string, fn func(ticket *domain.Ticket) error) error {
	unlock, err := t.locker.Lock(ctx, ticketID)
	if err != nil {
		return mapError(err)
	}
	defer unlock()

	ticket, err := t.repos.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		return lookupError(err, "ticket", ticketID)
	}
	return fn(ticket)
}

// run applies one command. The ticket update, side records and history entry
// commit together; the event is published only after the commit, so a failed
// write leaves the ticket in its old state and the call can be retried.
func (t *transitioner) run(ctx context.Context, ticketID string, actor events.Actor, build buildFunc, after afterFunc) (*lifecycle.Result, error) {
	var result *lifecycle.Result
	err := t.withLock(ctx, ticketID, func(ticket *domain.Ticket) error {
		cmd, err := build(ctx, *ticket)
		if err != nil {
			return err
		}
		action := string(cmd.Action())

		res, err := t.machine.Apply(*ticket, cmd, t.now())
		if err != nil {
			t.refused(ticket, action, err)
			return mapError(err)
		}

		entry := historyEntry(&res, cmd, actor)
		err = t.repos.InTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
			return persistTransition(ctx, repos, ticket, &res, entry, after)
		})
		if err != nil {
			outcome := "failed"
			if errors.Is(err, repository.ErrVersionConflict) {
				outcome = "conflict"
			}
			t.metrics.RecordTransition(action, outcome)
			t.logger.Error("persist ticket transition",
				zap.String("ticket_id", ticket.ID),
				zap.String("action", action),
				zap.String("event_id", entry.EventID),
				zap.Error(err))
			return mapError(err)
		}

		t.metrics.RecordTransition(action, "applied")
		t.logger.Info("ticket transition",
			zap.String("ticket_id", ticket.ID),
			zap.String("action", action),
			zap.String("from", string(res.Change.OldStatus)),
			zap.String("to", string(res.Change.NewStatus)),
			zap.Int("version", res.Change.Version))

		t.publish(ctx, transitionEvent(&res, cmd, actor))
		result = &res
		return nil
	})
	return result, err
}

func persistTransition(ctx context.Context, repos repository.Repositories, ticket *domain.Ticket, res *lifecycle.Result, entry *domain.TicketHistory, after afterFunc) error {
	if err := repos.Tickets.Update(ctx, &res.Ticket, ticket.Version); err != nil {
		return err
	}
	if res.Dispatch != nil {
		if err := repos.Dispatches.Create(ctx, res.Dispatch); err != nil {
			return err
		}
		if err := repos.Crews.AddAssignment(ctx, res.Dispatch.CrewID, ticket.ID); err != nil {
			return err
		}
	}
	if after != nil {
		if err := after(ctx, repos, res); err != nil {
			return err
		}
	}
	if res.Ticket.IsClosed() && res.Ticket.CrewID != nil {
		if err := repos.Crews.RemoveAssignment(ctx, *res.Ticket.CrewID, ticket.ID); err != nil {
			return err
		}
	}
	_, err := repos.History.Append(ctx, entry)
	return err
}

func (t *transitioner) refused(ticket *domain.Ticket, action string, err error) {
	var guard *lifecycle.GuardError
	if errors.As(err, &guard) {
		t.metrics.RecordTransition(action, "refused")
		t.logger.Info("transition refused",
			zap.String("ticket_id", ticket.ID),
			zap.String("action", action),
			zap.String("status", string(ticket.Status)),
			zap.String("reason", string(guard.Reason)))
		return
	}
	t.metrics.RecordTransition(action, "illegal")
	t.logger.Info("transition rejected",
		zap.String("ticket_id", ticket.ID),
		zap.String("action", action),
		zap.String("status", string(ticket.Status)),
		zap.Error(err))
}

func (t *transitioner) publish(ctx context.Context, event events.Event) {
	if t.dispatcher == nil {
		return
	}
	if err := t.dispatcher.Publish(ctx, event); err != nil {
		t.logger.Warn("publish event",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
	}
}

func historyEntry(res *lifecycle.Result, cmd lifecycle.Command, actor events.Actor) *domain.TicketHistory {
	details := map[string]any{"version": res.Change.Version}
	switch c := cmd.(type) {
	case lifecycle.Assign:
		details["crew_id"] = c.CrewID
		details["source"] = string(c.Source)
		if c.Score != nil {
			details["score"] = *c.Score
		}
		if res.Dispatch != nil {
			details["dispatch_id"] = res.Dispatch.ID
		}
	case lifecycle.Neutralize:
		details["safety_verified"] = c.Requirements.SafetyVerified
		details["equipment_verified"] = c.Requirements.EquipmentVerified
	case lifecycle.Approve:
		details["supervisor"] = c.Supervisor
	case lifecycle.Reject:
		details["supervisor"] = c.Supervisor
		details["reason"] = c.Reason
	}
	if res.Check != nil {
		details["distance_meters"] = res.Check.DistanceMeters
	}

	var actorID *string
	if actor.SubjectID != "" {
		id := actor.SubjectID
		actorID = &id
	}
	return &domain.TicketHistory{
		EventID:     res.Change.EventID,
		TicketID:    res.Change.TicketID,
		Action:      string(res.Change.Action),
		OldStatus:   res.Change.OldStatus,
		NewStatus:   res.Change.NewStatus,
		ActorID:     actorID,
		MilestoneAt: res.Change.MilestoneAt,
		Details:     details,
		CreatedAt:   res.Change.At,
	}
}

func transitionEvent(res *lifecycle.Result, cmd lifecycle.Command, actor events.Actor) events.Event {
	change := events.TicketStatusChangedPayload{
		Action:      string(res.Change.Action),
		OldStatus:   res.Change.OldStatus,
		NewStatus:   res.Change.NewStatus,
		MilestoneAt: res.Change.MilestoneAt,
		Version:     res.Change.Version,
	}
	event := events.Event{
		ID:        res.Change.EventID,
		Type:      events.EventTicketStatusChanged,
		TicketID:  res.Change.TicketID,
		Actor:     actor,
		Timestamp: res.Change.At,
		Payload:   change,
	}
	switch c := cmd.(type) {
	case lifecycle.Assign:
		event.Type = events.EventTicketAssigned
		event.Payload = events.TicketAssignedPayload{
			TicketStatusChangedPayload: change,
			DispatchID:                 res.Dispatch.ID,
			CrewID:                     res.Dispatch.CrewID,
			Source:                     res.Dispatch.Source,
			Score:                      res.Dispatch.Score,
		}
	case lifecycle.Reject:
		event.Type = events.EventEvidenceRejected
		event.Payload = events.EvidenceRejectedPayload{
			TicketStatusChangedPayload: change,
			Reason:                     c.Reason,
		}
	}
	return event
}
