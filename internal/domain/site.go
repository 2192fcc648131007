package domain

// Coordinate is a WGS84 position in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Site is a physical location where incidents happen.
type Site struct {
	ID           string
	Name         string
	Location     Coordinate
	Zona         string
	Departamento string
}

// SLAZoneLabel returns the label used for SLA classification.
func (s *Site) SLAZoneLabel() string {
	if s.Zona != "" {
		return s.Zona
	}
	return s.Departamento
}
