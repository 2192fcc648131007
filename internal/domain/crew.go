package domain

import "time"

// CrewStatus enumerates crew availability.
type CrewStatus string

const (
	CrewStatusDisponible    CrewStatus = "disponible"
	CrewStatusOcupado       CrewStatus = "ocupado"
	CrewStatusFueraServicio CrewStatus = "fuera_servicio"
)

// CrewType distinguishes the standard workforce from rapid-response crews.
type CrewType string

const (
	CrewTypeRegular CrewType = "REGULAR"
	CrewTypeChoque  CrewType = "CHOQUE"
)

// Crew is a technician team that can be dispatched to a site.
type Crew struct {
	ID                  string
	Name                string
	Status              CrewStatus
	Type                CrewType
	Zone                string
	CoverageDepartments []string
	Interzonal          bool
	Skills              []string
	Inventory           []string
	AssignedTicketIDs   []string
	CurrentLocation     *Coordinate
	LocationUpdatedAt   *time.Time
}

// OpenTickets returns the current workload of the crew.
func (c *Crew) OpenTickets() int {
	return len(c.AssignedTicketIDs)
}
