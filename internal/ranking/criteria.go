package ranking

import (
	"fmt"
	"math"

	"github.com/spec-kit/field-dispatch/internal/domain"
	"github.com/spec-kit/field-dispatch/internal/sla"
)

// ScoreBreakdown holds the per-criterion sub-scores, each in [0,100].
type ScoreBreakdown struct {
	Skills       float64 `json:"skills"`
	ETA          float64 `json:"eta"`
	Route        float64 `json:"route"`
	Workload     float64 `json:"workload"`
	ZoneAffinity float64 `json:"zone_affinity"`
	Type         float64 `json:"type"`
	Inventory    float64 `json:"inventory"`
}

func skillsScore(required []string, crewSkills []string) (float64, string) {
	if len(required) == 0 {
		return 50, "skills none required=50"
	}
	have := tagSet(crewSkills)
	req := tagSet(required)
	matched := 0
	for tag := range req {
		if _, ok := have[tag]; ok {
			matched++
		}
	}
	score := float64(matched) / float64(len(req)) * 100

	bonus := 0.0
	if _, ok := have[MultiTechSkill]; ok {
		extra := 0
		for tag := range have {
			if _, needed := req[tag]; !needed {
				extra++
			}
		}
		bonus = math.Min(20, float64(5*extra))
	}
	score = math.Min(100, score+bonus)
	return score, fmt.Sprintf("skills %d/%d +%.0f bonus=%.1f", matched, len(req), bonus, score)
}

func etaScore(route RouteInfo, budgetMinutes float64) (float64, string) {
	ratio := math.Inf(1)
	if budgetMinutes > 0 {
		ratio = route.DurationMinutes / budgetMinutes
	}
	var score float64
	switch {
	case ratio <= 0.25:
		score = 100
	case ratio <= 0.5:
		score = 80
	case ratio <= 0.75:
		score = 60
	case ratio <= 1.0:
		score = 40
	default:
		score = 20
	}
	return score, fmt.Sprintf("eta %.0fmin/%.0fmin budget=%.0f", route.DurationMinutes, budgetMinutes, score)
}

func routeScore(route RouteInfo) (float64, string) {
	score := 100.0
	switch route.RoadQuality {
	case RoadBuena:
		score -= 10
	case RoadRegular:
		score -= 25
	case RoadMala:
		score -= 40
	}
	switch {
	case route.TrafficFactor > 1.4:
		score -= 20
	case route.TrafficFactor > 1.2:
		score -= 10
	}
	switch {
	case route.DistanceKm > 300:
		score -= 20
	case route.DistanceKm > 200:
		score -= 15
	case route.DistanceKm > 100:
		score -= 10
	}
	switch {
	case route.AlternativeRoutes >= 3:
		score += 10
	case route.AlternativeRoutes == 2:
		score += 5
	}
	score = clamp(score, 0, 100)
	return score, fmt.Sprintf("route %.1fkm %s traffic x%.2f alt %d=%.0f",
		route.DistanceKm, route.RoadQuality, route.TrafficFactor, route.AlternativeRoutes, score)
}

func workloadScore(open, maxOpen int) (float64, string) {
	score := 0.0
	if open < maxOpen {
		score = float64(maxOpen-open) / float64(maxOpen) * 100
	}
	return score, fmt.Sprintf("workload %d/%d open=%.0f", open, maxOpen, score)
}

func zoneAffinityScore(catalog *Catalog, crew *domain.Crew, site *domain.Site) (float64, string) {
	dept := sla.NormalizeLabel(site.Departamento)
	for _, covered := range crew.CoverageDepartments {
		if sla.NormalizeLabel(covered) == dept {
			return 100, fmt.Sprintf("zone covers %s=100", dept)
		}
	}
	if catalog.SameRegion(crew.Zone, site.Departamento) {
		return 80, fmt.Sprintf("zone %s groups %s=80", sla.NormalizeLabel(crew.Zone), dept)
	}
	if crew.Interzonal {
		return 60, "zone interzonal=60"
	}
	return 40, fmt.Sprintf("zone %s outside %s=40", sla.NormalizeLabel(crew.Zone), dept)
}

func typeScore(crewType domain.CrewType, escalated bool) (float64, string) {
	var score float64
	switch {
	case escalated && crewType == domain.CrewTypeChoque:
		score = 100
	case escalated:
		score = 20
	case crewType == domain.CrewTypeChoque:
		score = 0
	default:
		score = 100
	}
	mode := "normal"
	if escalated {
		mode = "escalated"
	}
	return score, fmt.Sprintf("type %s %s=%.0f", crewType, mode, score)
}

func inventoryScore(requiredParts, inventory []string) (float64, string) {
	if len(requiredParts) == 0 {
		return 50, "inventory none required=50"
	}
	have := tagSet(inventory)
	need := tagSet(requiredParts)
	found := 0
	for part := range need {
		if _, ok := have[part]; ok {
			found++
		}
	}
	score := float64(found) / float64(len(need)) * 100
	return score, fmt.Sprintf("inventory %d/%d=%.1f", found, len(need), score)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
