package domain

import "time"

// TicketHistory is an immutable audit entry for an applied transition.
type TicketHistory struct {
	EventID     string
	TicketID    string
	Action      string
	OldStatus   TicketStatus
	NewStatus   TicketStatus
	ActorID     *string
	MilestoneAt *time.Time
	Details     map[string]any
	CreatedAt   time.Time
}
