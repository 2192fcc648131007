package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/field-dispatch/internal/domain"
	"github.com/spec-kit/field-dispatch/internal/events"
	"github.com/spec-kit/field-dispatch/internal/lifecycle"
	"github.com/spec-kit/field-dispatch/internal/ranking"
	apperrors "github.com/spec-kit/field-dispatch/pkg/util/errorutil"
)

// errNoMatch aborts the assign transition when selection found nobody.
var errNoMatch = errors.New("no eligible crew")

// DispatchService ranks crews for a ticket and assigns the chosen one.
type DispatchService struct {
	*transitioner
	engine *ranking.Engine
	crews  *CrewService
}

// DispatchDependencies bundles collaborators for the dispatch service.
type DispatchDependencies struct {
	TransitionDependencies
	Engine      *ranking.Engine
	CrewService *CrewService
}

// RankInput tunes a ranking request.
type RankInput struct {
	Escalated     bool
	RequiredParts []string
}

// RankResult is the scored crew list for a ticket.
type RankResult struct {
	TicketID      string
	BudgetMinutes float64
	Escalated     bool
	Scores        []ranking.AssignmentScore
}

// DispatchInput selects a crew. A non-empty CrewID is a manual override.
type DispatchInput struct {
	CrewID        string
	RequiredParts []string
}

// DispatchResult reports the selection and, when a crew was found, the
// assignment it produced.
type DispatchResult struct {
	Outcome   string
	Selection *ranking.Selection
	Ticket    *domain.Ticket
	Dispatch  *domain.Dispatch
}

// NewDispatchService creates the service.
func NewDispatchService(deps DispatchDependencies) *DispatchService {
	engine := deps.Engine
	if engine == nil {
		engine = ranking.NewEngine(nil)
	}
	return &DispatchService{
		transitioner: newTransitioner(deps.TransitionDependencies),
		engine:       engine,
		crews:        deps.CrewService,
	}
}

// Rank scores every eligible crew for the ticket without assigning.
func (s *DispatchService) Rank(ctx context.Context, ticketID string, input RankInput) (*RankResult, error) {
	ticket, err := s.repos.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, lookupError(err, "ticket", ticketID)
	}
	req, err := s.request(ctx, *ticket, input.RequiredParts)
	if err != nil {
		return nil, err
	}
	req.Escalated = input.Escalated

	budget, err := ranking.BudgetMinutes(&req.Ticket, &req.Site)
	if err != nil {
		return nil, mapError(err)
	}
	scores, err := s.engine.Rank(req)
	if err != nil {
		return nil, mapError(err)
	}
	return &RankResult{
		TicketID:      ticket.ID,
		BudgetMinutes: budget,
		Escalated:     input.Escalated,
		Scores:        scores,
	}, nil
}

// Dispatch picks a crew (two-phase selection, or the override crew) and
// applies the assign transition. No eligible crew is reported through
// Outcome, not as an error.
func (s *DispatchService) Dispatch(ctx context.Context, actor events.Actor, ticketID string, input DispatchInput) (*DispatchResult, error) {
	out := &DispatchResult{}
	manualCrew := strings.TrimSpace(input.CrewID)

	res, err := s.run(ctx, ticketID, actor, func(ctx context.Context, ticket domain.Ticket) (lifecycle.Command, error) {
		if _, err := lifecycle.Next(ticket.Status, lifecycle.ActionAssign); err != nil {
			return nil, mapError(err)
		}
		req, err := s.request(ctx, ticket, input.RequiredParts)
		if err != nil {
			return nil, err
		}
		if manualCrew != "" {
			return s.manualCommand(ctx, req, manualCrew, out)
		}

		sel, err := s.engine.SelectBest(req)
		if err != nil {
			return nil, mapError(err)
		}
		out.Selection = &sel
		out.Outcome = string(sel.Outcome)
		if !sel.Found() {
			return nil, errNoMatch
		}
		score := sel.Best.TotalScore
		source := domain.DispatchSourceRegular
		if sel.Outcome == ranking.OutcomeEscalated {
			source = domain.DispatchSourceEscalated
		}
		return lifecycle.Assign{
			CrewID:    sel.Best.CrewID,
			Source:    source,
			Score:     &score,
			Reasoning: sel.Reason + " | " + sel.Best.Reasoning,
		}, nil
	}, nil)

	if errors.Is(err, errNoMatch) {
		s.metrics.RecordSelection(string(ranking.OutcomeNoMatch))
		s.logger.Info("no crew selected", zap.String("ticket_id", ticketID), zap.String("reason", out.Selection.Reason))
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	s.metrics.RecordSelection(out.Outcome)
	out.Ticket = &res.Ticket
	out.Dispatch = res.Dispatch
	return out, nil
}

func (s *DispatchService) manualCommand(ctx context.Context, req ranking.Request, crewID string, out *DispatchResult) (lifecycle.Command, error) {
	crew, err := s.crews.Get(ctx, crewID)
	if err != nil {
		return nil, err
	}
	if crew.Status == domain.CrewStatusFueraServicio {
		return nil, apperrors.NewValidationError("crew is out of service", map[string]any{"crew_id": crewID})
	}
	out.Outcome = string(domain.DispatchSourceManual)

	cmd := lifecycle.Assign{CrewID: crew.ID, Source: domain.DispatchSourceManual, Reasoning: "manual override"}
	req.Crews = []domain.Crew{*crew}
	req.Escalated = crew.Type == domain.CrewTypeChoque
	scores, err := s.engine.Rank(req)
	if err == nil && len(scores) == 1 {
		score := scores[0].TotalScore
		cmd.Score = &score
		cmd.Reasoning = "manual override | " + scores[0].Reasoning
	}
	return cmd, nil
}

func (s *DispatchService) request(ctx context.Context, ticket domain.Ticket, parts []string) (ranking.Request, error) {
	site, err := s.repos.Sites.GetByID(ctx, ticket.SiteID)
	if err != nil {
		return ranking.Request{}, lookupError(err, "site", ticket.SiteID)
	}
	pool, err := s.crews.DispatchPool(ctx)
	if err != nil {
		return ranking.Request{}, err
	}
	return ranking.Request{
		Ticket:        ticket,
		Site:          *site,
		Crews:         pool,
		RequiredParts: parts,
		Now:           s.now(),
	}, nil
}
