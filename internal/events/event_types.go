package events

import (
	"time"

	"github.com/spec-kit/field-dispatch/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketOpened         EventType = "ticket_opened"
	EventTicketAssigned       EventType = "ticket_assigned"
	EventTicketStatusChanged  EventType = "ticket_status_changed"
	EventEvidenceRejected     EventType = "evidence_rejected"
	EventCrewLocationReported EventType = "crew_location_reported"
)

// AllTicketEvents lists the event types forwarded to the sync layer.
var AllTicketEvents = []EventType{
	EventTicketOpened,
	EventTicketAssigned,
	EventTicketStatusChanged,
	EventEvidenceRejected,
}

// Actor identifies who triggered an event.
type Actor struct {
	SubjectID string      `json:"subject_id,omitempty"`
	Role      domain.Role `json:"role,omitempty"`
}

// Event represents a domain event emitted by services. ID is stable across
// replays of the same transition so consumers can apply it idempotently.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketOpenedPayload payload.
type TicketOpenedPayload struct {
	SiteID        string                `json:"site_id"`
	Priority      domain.TicketPriority `json:"priority"`
	SLADeadlineAt time.Time             `json:"sla_deadline_at"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	Action      string              `json:"action"`
	OldStatus   domain.TicketStatus `json:"old_status"`
	NewStatus   domain.TicketStatus `json:"new_status"`
	MilestoneAt *time.Time          `json:"milestone_at,omitempty"`
	Version     int                 `json:"version"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	TicketStatusChangedPayload
	DispatchID string                `json:"dispatch_id"`
	CrewID     string                `json:"crew_id"`
	Source     domain.DispatchSource `json:"source"`
	Score      *float64              `json:"score,omitempty"`
}

// EvidenceRejectedPayload payload.
type EvidenceRejectedPayload struct {
	TicketStatusChangedPayload
	Reason string `json:"reason"`
}

// CrewLocationPayload payload.
type CrewLocationPayload struct {
	CrewID   string            `json:"crew_id"`
	Location domain.Coordinate `json:"location"`
}
