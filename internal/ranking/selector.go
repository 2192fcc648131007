package ranking

import (
	"fmt"

	"github.com/spec-kit/field-dispatch/internal/domain"
)

// Outcome tells the caller which phase produced the selection.
type Outcome string

const (
	OutcomeRegular   Outcome = "regular"
	OutcomeEscalated Outcome = "escalated"
	OutcomeNoMatch   Outcome = "no_match"
)

// RegularReachFraction is the share of the SLA budget a REGULAR crew must be
// able to reach the site within to be selected without escalation.
const RegularReachFraction = 0.5

// Selection is the result of SelectBest.
type Selection struct {
	Outcome       Outcome          `json:"outcome"`
	Best          *AssignmentScore `json:"best,omitempty"`
	RegularTop    *AssignmentScore `json:"regular_top,omitempty"`
	BudgetMinutes float64          `json:"budget_minutes"`
	Reason        string           `json:"reason"`
}

// Found reports whether a crew was selected.
func (s Selection) Found() bool {
	return s.Best != nil
}

// SelectBest first ranks REGULAR crews only and keeps the top one when it can
// reach the site within half of the SLA budget. Otherwise it re-ranks the
// whole pool in escalated mode. An empty result is OutcomeNoMatch, not an error.
func (e *Engine) SelectBest(req Request) (Selection, error) {
	budget, err := BudgetMinutes(&req.Ticket, &req.Site)
	if err != nil {
		return Selection{}, err
	}
	sel := Selection{BudgetMinutes: budget}

	regular := req
	regular.Escalated = false
	regular.Crews = filterType(req.Crews, domain.CrewTypeRegular)
	ranked, err := e.Rank(regular)
	if err != nil {
		return Selection{}, err
	}
	limit := budget * RegularReachFraction
	if len(ranked) > 0 {
		top := ranked[0]
		sel.RegularTop = &top
		if top.Route.DurationMinutes <= limit {
			sel.Outcome = OutcomeRegular
			sel.Best = &top
			sel.Reason = fmt.Sprintf("regular crew %s reaches site in %.0fmin within %.0fmin", top.CrewID, top.Route.DurationMinutes, limit)
			return sel, nil
		}
	}

	escalated := req
	escalated.Escalated = true
	ranked, err = e.Rank(escalated)
	if err != nil {
		return Selection{}, err
	}
	if len(ranked) == 0 {
		sel.Outcome = OutcomeNoMatch
		sel.Reason = "no eligible crew with a known location"
		return sel, nil
	}
	best := ranked[0]
	sel.Outcome = OutcomeEscalated
	sel.Best = &best
	if sel.RegularTop == nil {
		sel.Reason = fmt.Sprintf("no eligible regular crew; escalated to %s", best.CrewID)
	} else {
		sel.Reason = fmt.Sprintf("best regular crew %s needs %.0fmin over %.0fmin; escalated to %s",
			sel.RegularTop.CrewID, sel.RegularTop.Route.DurationMinutes, limit, best.CrewID)
	}
	return sel, nil
}

func filterType(crews []domain.Crew, t domain.CrewType) []domain.Crew {
	out := make([]domain.Crew, 0, len(crews))
	for _, c := range crews {
		if c.Type == t {
			out = append(out, c)
		}
	}
	return out
}
