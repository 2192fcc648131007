// Package ranking orders candidate crews for a ticket with an explainable
// multi-criteria score and applies the regular-then-escalated selection policy.
package ranking

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/field-dispatch/internal/domain"
	"github.com/spec-kit/field-dispatch/internal/geofence"
	"github.com/spec-kit/field-dispatch/internal/sla"
)

// DefaultMaxOpenTickets is the workload at which a crew scores zero.
const DefaultMaxOpenTickets = 5

// Weights are the per-criterion factors of the total score.
type Weights struct {
	Skills       float64
	ETA          float64
	Route        float64
	Workload     float64
	ZoneAffinity float64
	Type         float64
	Inventory    float64
}

// DefaultWeights sum to 1.0.
var DefaultWeights = Weights{
	Skills:       0.25,
	ETA:          0.15,
	Route:        0.20,
	Workload:     0.15,
	ZoneAffinity: 0.10,
	Type:         0.10,
	Inventory:    0.05,
}

func (w Weights) total(b ScoreBreakdown) float64 {
	return w.Skills*b.Skills +
		w.ETA*b.ETA +
		w.Route*b.Route +
		w.Workload*b.Workload +
		w.ZoneAffinity*b.ZoneAffinity +
		w.Type*b.Type +
		w.Inventory*b.Inventory
}

// AssignmentScore is the scored result for one crew. It is never persisted.
type AssignmentScore struct {
	CrewID     string          `json:"crew_id"`
	CrewType   domain.CrewType `json:"crew_type"`
	TotalScore float64         `json:"total_score"`
	Breakdown  ScoreBreakdown  `json:"breakdown"`
	Route      RouteInfo       `json:"route"`
	Reasoning  string          `json:"reasoning"`
}

// Request carries the immutable snapshot a ranking is computed over.
type Request struct {
	Ticket        domain.Ticket
	Site          domain.Site
	Crews         []domain.Crew
	RequiredParts []string
	Escalated     bool
	Now           time.Time
}

// Engine scores crews. It holds no mutable state and is safe for concurrent use.
type Engine struct {
	catalog        *Catalog
	weights        Weights
	maxOpenTickets int
	logger         *zap.Logger
}

// Option customizes an Engine.
type Option func(*Engine)

// WithWeights overrides the criterion weights.
func WithWeights(w Weights) Option {
	return func(e *Engine) { e.weights = w }
}

// WithMaxOpenTickets overrides the workload capacity.
func WithMaxOpenTickets(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxOpenTickets = n
		}
	}
}

// WithLogger reports crews dropped from a ranking.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine builds an engine over catalog; nil selects the default catalog.
func NewEngine(catalog *Catalog, opts ...Option) *Engine {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	e := &Engine{
		catalog:        catalog,
		weights:        DefaultWeights,
		maxOpenTickets: DefaultMaxOpenTickets,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Eligible reports whether a crew can be ranked at all.
func Eligible(crew *domain.Crew) bool {
	if crew.CurrentLocation == nil {
		return false
	}
	return crew.Status == domain.CrewStatusDisponible || crew.Status == domain.CrewStatusOcupado
}

// BudgetMinutes returns the SLA budget used for ETA scoring.
func BudgetMinutes(ticket *domain.Ticket, site *domain.Site) (float64, error) {
	hours, err := sla.Hours(ticket.Priority, site.SLAZoneLabel())
	if err != nil {
		return 0, err
	}
	return hours * 60, nil
}

// Rank scores every eligible crew and returns them sorted by total score,
// highest first. Ties are broken by crew id so repeated calls agree. A crew
// reporting an impossible position is left out and logged; a bad site or
// priority fails the whole ranking.
func (e *Engine) Rank(req Request) ([]AssignmentScore, error) {
	budget, err := BudgetMinutes(&req.Ticket, &req.Site)
	if err != nil {
		return nil, err
	}
	class, err := sla.ClassifyZone(req.Site.SLAZoneLabel())
	if err != nil {
		return nil, err
	}
	if err := geofence.Validate(req.Site.Location); err != nil {
		return nil, fmt.Errorf("site %s: %w", req.Site.ID, err)
	}

	required := e.catalog.RequiredSkills(req.Ticket.InterventionType)
	scores := make([]AssignmentScore, 0, len(req.Crews))
	for i := range req.Crews {
		crew := &req.Crews[i]
		if !Eligible(crew) {
			continue
		}
		if err := geofence.Validate(*crew.CurrentLocation); err != nil {
			e.logger.Warn("skipping crew with invalid location",
				zap.String("crew_id", crew.ID),
				zap.String("ticket_id", req.Ticket.ID),
				zap.Error(err))
			continue
		}
		scores = append(scores, e.score(req, crew, required, class, budget))
	}

	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].TotalScore != scores[j].TotalScore {
			return scores[i].TotalScore > scores[j].TotalScore
		}
		return scores[i].CrewID < scores[j].CrewID
	})
	return scores, nil
}

func (e *Engine) score(req Request, crew *domain.Crew, required []string, class sla.ZoneClass, budget float64) AssignmentScore {
	route := EstimateRoute(*crew.CurrentLocation, req.Site, class, req.Now)

	var b ScoreBreakdown
	traces := make([]string, 0, 8)
	var trace string

	b.Skills, trace = skillsScore(required, crew.Skills)
	traces = append(traces, trace)
	b.ETA, trace = etaScore(route, budget)
	traces = append(traces, trace)
	b.Route, trace = routeScore(route)
	traces = append(traces, trace)
	b.Workload, trace = workloadScore(crew.OpenTickets(), e.maxOpenTickets)
	traces = append(traces, trace)
	b.ZoneAffinity, trace = zoneAffinityScore(e.catalog, crew, &req.Site)
	traces = append(traces, trace)
	b.Type, trace = typeScore(crew.Type, req.Escalated)
	traces = append(traces, trace)
	b.Inventory, trace = inventoryScore(req.RequiredParts, crew.Inventory)
	traces = append(traces, trace)

	total := math.Round(e.weights.total(b)*100) / 100
	traces = append(traces, fmt.Sprintf("total=%.2f", total))

	return AssignmentScore{
		CrewID:     crew.ID,
		CrewType:   crew.Type,
		TotalScore: total,
		Breakdown:  b,
		Route:      route,
		Reasoning:  strings.Join(traces, "; "),
	}
}
