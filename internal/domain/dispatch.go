package domain

import "time"

// DispatchSource describes how the crew was chosen.
type DispatchSource string

const (
	DispatchSourceRegular   DispatchSource = "regular"
	DispatchSourceEscalated DispatchSource = "escalated"
	DispatchSourceManual    DispatchSource = "manual"
)

// Dispatch records the assignment of a crew to a ticket.
type Dispatch struct {
	ID         string
	TicketID   string
	CrewID     string
	Source     DispatchSource
	Score      *float64
	Reasoning  string
	AssignedAt time.Time
}
