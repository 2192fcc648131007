package dto

import (
	"time"

	"github.com/spec-kit/field-dispatch/internal/domain"
	"github.com/spec-kit/field-dispatch/internal/lifecycle"
	"github.com/spec-kit/field-dispatch/internal/service"
	"github.com/spec-kit/field-dispatch/internal/sla"
)

// OpenTicketRequest payload.
type OpenTicketRequest struct {
	ID               string     `json:"id"`
	SiteID           string     `json:"site_id"`
	Priority         string     `json:"priority"`
	InterventionType string     `json:"intervention_type"`
	OpenedAt         *time.Time `json:"opened_at"`
}

// SetExclusionRequest payload. An empty cause clears the exclusion.
type SetExclusionRequest struct {
	Cause string `json:"cause"`
}

// TicketResponse is the ticket representation shared by every endpoint.
type TicketResponse struct {
	ID               string                `json:"id"`
	Priority         domain.TicketPriority `json:"priority"`
	Status           domain.TicketStatus   `json:"status"`
	SiteID           string                `json:"site_id"`
	CrewID           *string               `json:"crew_id"`
	InterventionType string                `json:"intervention_type,omitempty"`
	ExclusionCause   *string               `json:"exclusion_cause"`
	OpenedAt         time.Time             `json:"opened_at"`
	SLADeadlineAt    time.Time             `json:"sla_deadline_at"`
	NeutralizedAt    *time.Time            `json:"neutralized_at"`
	ClosedAt         *time.Time            `json:"closed_at"`
	Version          int                   `json:"version"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

// SiteResponse payload.
type SiteResponse struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Location     domain.Coordinate `json:"location"`
	Zona         string            `json:"zona,omitempty"`
	Departamento string            `json:"departamento,omitempty"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketResponse
	Site           SiteResponse       `json:"site"`
	Evidence       *EvidenceResponse  `json:"evidence"`
	Dispatches     []DispatchResponse `json:"dispatches"`
	AllowedActions []lifecycle.Action `json:"allowed_actions"`
	SLA            sla.Remaining      `json:"sla"`
}

// HistoryResponse is one audit entry.
type HistoryResponse struct {
	EventID     string              `json:"event_id"`
	Action      string              `json:"action"`
	OldStatus   domain.TicketStatus `json:"old_status,omitempty"`
	NewStatus   domain.TicketStatus `json:"new_status"`
	ActorID     *string             `json:"actor_id"`
	MilestoneAt *time.Time          `json:"milestone_at,omitempty"`
	Details     map[string]any      `json:"details,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
}

// NewTicketResponse maps a ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:               t.ID,
		Priority:         t.Priority,
		Status:           t.Status,
		SiteID:           t.SiteID,
		CrewID:           t.CrewID,
		InterventionType: t.InterventionType,
		ExclusionCause:   t.ExclusionCause,
		OpenedAt:         t.OpenedAt,
		SLADeadlineAt:    t.SLADeadlineAt,
		NeutralizedAt:    t.NeutralizedAt,
		ClosedAt:         t.ClosedAt,
		Version:          t.Version,
		UpdatedAt:        t.UpdatedAt,
	}
}

// NewTicketDetailResponse maps the ticket detail read model.
func NewTicketDetailResponse(d *service.TicketDetail) TicketDetailResponse {
	dispatches := make([]DispatchResponse, 0, len(d.Dispatches))
	for i := range d.Dispatches {
		dispatches = append(dispatches, NewDispatchResponse(&d.Dispatches[i]))
	}
	resp := TicketDetailResponse{
		TicketResponse: NewTicketResponse(&d.Ticket),
		Site: SiteResponse{
			ID:           d.Site.ID,
			Name:         d.Site.Name,
			Location:     d.Site.Location,
			Zona:         d.Site.Zona,
			Departamento: d.Site.Departamento,
		},
		Dispatches:     dispatches,
		AllowedActions: d.AllowedActions,
		SLA:            d.SLA,
	}
	if d.Evidence != nil {
		evidence := NewEvidenceResponse(d.Evidence)
		resp.Evidence = &evidence
	}
	return resp
}

// NewHistoryResponse maps audit entries.
func NewHistoryResponse(entries []domain.TicketHistory) []HistoryResponse {
	out := make([]HistoryResponse, 0, len(entries))
	for _, h := range entries {
		out = append(out, HistoryResponse{
			EventID:     h.EventID,
			Action:      h.Action,
			OldStatus:   h.OldStatus,
			NewStatus:   h.NewStatus,
			ActorID:     h.ActorID,
			MilestoneAt: h.MilestoneAt,
			Details:     h.Details,
			CreatedAt:   h.CreatedAt,
		})
	}
	return out
}
