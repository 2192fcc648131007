package dto

import (
	"time"

	"github.com/spec-kit/field-dispatch/internal/domain"
)

// LocationRequest payload.
type LocationRequest struct {
	Lat        *float64   `json:"lat"`
	Lng        *float64   `json:"lng"`
	ReportedAt *time.Time `json:"reported_at"`
}

// CrewResponse payload.
type CrewResponse struct {
	ID                  string             `json:"id"`
	Name                string             `json:"name"`
	Status              domain.CrewStatus  `json:"status"`
	Type                domain.CrewType    `json:"type"`
	Zone                string             `json:"zone"`
	CoverageDepartments []string           `json:"coverage_departments"`
	Interzonal          bool               `json:"interzonal"`
	Skills              []string           `json:"skills"`
	Inventory           []string           `json:"inventory"`
	OpenTickets         int                `json:"open_tickets"`
	CurrentLocation     *domain.Coordinate `json:"current_location"`
	LocationUpdatedAt   *time.Time         `json:"location_updated_at"`
}

// NewCrewResponse maps a crew.
func NewCrewResponse(c *domain.Crew) CrewResponse {
	return CrewResponse{
		ID:                  c.ID,
		Name:                c.Name,
		Status:              c.Status,
		Type:                c.Type,
		Zone:                c.Zone,
		CoverageDepartments: c.CoverageDepartments,
		Interzonal:          c.Interzonal,
		Skills:              c.Skills,
		Inventory:           c.Inventory,
		OpenTickets:         c.OpenTickets(),
		CurrentLocation:     c.CurrentLocation,
		LocationUpdatedAt:   c.LocationUpdatedAt,
	}
}
