package ranking

import (
	"math"
	"time"

	"github.com/spec-kit/field-dispatch/internal/domain"
	"github.com/spec-kit/field-dispatch/internal/geofence"
	"github.com/spec-kit/field-dispatch/internal/sla"
)

// RoadQuality grades the modeled road surface.
type RoadQuality string

const (
	RoadExcelente RoadQuality = "excelente"
	RoadBuena     RoadQuality = "buena"
	RoadRegular   RoadQuality = "regular"
	RoadMala      RoadQuality = "mala"
)

// RouteInfo describes the modeled trip from a crew to a site.
type RouteInfo struct {
	DistanceKm        float64     `json:"distance_km"`
	DurationMinutes   float64     `json:"duration_minutes"`
	TrafficFactor     float64     `json:"traffic_factor"`
	RoadQuality       RoadQuality `json:"road_quality"`
	AlternativeRoutes int         `json:"alternative_routes"`
}

const (
	detourFactor       = 1.3
	metroSpeedKmh      = 25.0
	departmentSpeedKmh = 50.0
)

var limaTZ = time.FixedZone("PET", -5*60*60)

// EstimateRoute models road distance and travel time between a crew and a
// site from the great-circle distance, the zone class and local rush hours.
func EstimateRoute(from domain.Coordinate, site domain.Site, class sla.ZoneClass, now time.Time) RouteInfo {
	roadKm := geofence.DistanceKm(from, site.Location) * detourFactor
	rush := isRushHour(now)

	info := RouteInfo{DistanceKm: round2(roadKm)}
	speed := departmentSpeedKmh
	switch class {
	case sla.ZoneMetro:
		speed = metroSpeedKmh
		info.TrafficFactor = 1.25
		if rush {
			info.TrafficFactor = 1.5
		}
		info.AlternativeRoutes = 3
	default:
		info.TrafficFactor = 1.0
		if rush {
			info.TrafficFactor = 1.15
		}
		info.AlternativeRoutes = 1
		if roadKm <= 80 {
			info.AlternativeRoutes = 2
		}
	}

	switch {
	case roadKm <= 10:
		info.RoadQuality = RoadExcelente
	case class == sla.ZoneMetro || roadKm <= 80:
		info.RoadQuality = RoadBuena
	case roadKm <= 200:
		info.RoadQuality = RoadRegular
	default:
		info.RoadQuality = RoadMala
	}

	info.DurationMinutes = math.Ceil(roadKm / speed * 60 * info.TrafficFactor)
	return info
}

func isRushHour(now time.Time) bool {
	local := now.In(limaTZ)
	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return false
	}
	h := local.Hour()
	return (h >= 7 && h < 10) || (h >= 17 && h < 21)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
