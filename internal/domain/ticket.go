package domain

import "time"

// TicketStatus enumerates the lifecycle states of a field ticket.
type TicketStatus string

const (
	TicketStatusRecepcion   TicketStatus = "recepcion"
	TicketStatusAsignar     TicketStatus = "asignar"
	TicketStatusArribo      TicketStatus = "arribo"
	TicketStatusNeutralizar TicketStatus = "neutralizar"
	TicketStatusValidar     TicketStatus = "validar"
	TicketStatusCierre      TicketStatus = "cierre"
)

// TicketStatuses lists every status in happy-path order.
var TicketStatuses = []TicketStatus{
	TicketStatusRecepcion,
	TicketStatusAsignar,
	TicketStatusArribo,
	TicketStatusNeutralizar,
	TicketStatusValidar,
	TicketStatusCierre,
}

// Rank returns the position of the status on the happy path, or -1 if unknown.
func (s TicketStatus) Rank() int {
	for i, candidate := range TicketStatuses {
		if candidate == s {
			return i
		}
	}
	return -1
}

// Valid reports whether s is one of the known statuses.
func (s TicketStatus) Valid() bool {
	return s.Rank() >= 0
}

// TicketPriority enumerates incident severity. P0 is the most severe.
type TicketPriority string

const (
	TicketPriorityP0 TicketPriority = "P0"
	TicketPriorityP1 TicketPriority = "P1"
	TicketPriorityP2 TicketPriority = "P2"
	TicketPriorityP3 TicketPriority = "P3"
)

// Ticket is the aggregate for a field incident.
type Ticket struct {
	ID               string
	Priority         TicketPriority
	Status           TicketStatus
	SiteID           string
	CrewID           *string
	InterventionType string
	ExclusionCause   *string
	OpenedAt         time.Time
	SLADeadlineAt    time.Time
	NeutralizedAt    *time.Time
	ClosedAt         *time.Time
	Version          int
	UpdatedAt        time.Time
}

// IsClosed reports whether the ticket reached the terminal state.
func (t *Ticket) IsClosed() bool {
	return t.Status == TicketStatusCierre
}
