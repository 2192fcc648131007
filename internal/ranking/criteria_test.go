package ranking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/field-dispatch/internal/domain"
	"github.com/spec-kit/field-dispatch/internal/sla"
)

func TestSkillsScore(t *testing.T) {
	required := []string{"a", "b"}

	full, _ := skillsScore(required, []string{"A", "b"})
	assert.Equal(t, 100.0, full)

	generalist, trace := skillsScore(required, []string{"a", MultiTechSkill})
	assert.Equal(t, 55.0, generalist)
	assert.Contains(t, trace, "skills 1/2")

	capped, _ := skillsScore(required, []string{"a", MultiTechSkill, "x", "y", "z", "w"})
	assert.Equal(t, 70.0, capped)

	neutral, _ := skillsScore(nil, []string{"a"})
	assert.Equal(t, 50.0, neutral)

	overflow, _ := skillsScore(required, []string{"a", "b", MultiTechSkill})
	assert.Equal(t, 100.0, overflow)
}

func TestETAScoreThresholds(t *testing.T) {
	tests := []struct {
		minutes float64
		want    float64
	}{
		{60, 100},
		{120, 100},
		{121, 80},
		{240, 80},
		{300, 60},
		{480, 40},
		{481, 20},
	}
	for _, tt := range tests {
		got, _ := etaScore(RouteInfo{DurationMinutes: tt.minutes}, 480)
		assert.Equal(t, tt.want, got, "minutes=%v", tt.minutes)
	}
}

func TestRouteScore(t *testing.T) {
	worst, _ := routeScore(RouteInfo{DistanceKm: 350, TrafficFactor: 1.5, RoadQuality: RoadMala, AlternativeRoutes: 1})
	assert.Equal(t, 20.0, worst)

	best, _ := routeScore(RouteInfo{DistanceKm: 5, TrafficFactor: 1.0, RoadQuality: RoadExcelente, AlternativeRoutes: 3})
	assert.Equal(t, 100.0, best)

	mid, _ := routeScore(RouteInfo{DistanceKm: 150, TrafficFactor: 1.25, RoadQuality: RoadRegular, AlternativeRoutes: 2})
	assert.Equal(t, 60.0, mid)
}

func TestWorkloadScore(t *testing.T) {
	tests := map[int]float64{0: 100, 1: 80, 4: 20, 5: 0, 7: 0}
	for open, want := range tests {
		got, _ := workloadScore(open, DefaultMaxOpenTickets)
		assert.InDelta(t, want, got, 1e-9, "open=%d", open)
	}
}

func TestZoneAffinityScore(t *testing.T) {
	catalog := DefaultCatalog()
	site := &domain.Site{Departamento: "San Martín"}

	covering := &domain.Crew{Zone: "LIMA", CoverageDepartments: []string{"SAN MARTIN"}}
	grouped := &domain.Crew{Zone: "oriente"}
	interzonal := &domain.Crew{Zone: "SUR PERU", Interzonal: true}
	outsider := &domain.Crew{Zone: "SUR"}

	for crew, want := range map[*domain.Crew]float64{covering: 100, grouped: 80, interzonal: 60, outsider: 40} {
		got, _ := zoneAffinityScore(catalog, crew, site)
		assert.Equal(t, want, got, "zone=%s", crew.Zone)
	}
}

func TestZoneAffinityMetroLabels(t *testing.T) {
	catalog := DefaultCatalog()
	metroSite := &domain.Site{Zona: "CENTRO", Departamento: "LIMA"}
	junin := &domain.Site{Zona: "JUNIN", Departamento: "JUNIN"}

	for _, zone := range []string{"CENTRO", "norte", "SUR", "CALLAO"} {
		crew := &domain.Crew{Zone: zone}
		got, _ := zoneAffinityScore(catalog, crew, metroSite)
		assert.Equal(t, 80.0, got, "metro crew %s on a Lima site", zone)

		got, _ = zoneAffinityScore(catalog, crew, junin)
		assert.Equal(t, 40.0, got, "metro crew %s in Junin", zone)
	}

	provincial := &domain.Crew{Zone: "Centro Perú"}
	got, _ := zoneAffinityScore(catalog, provincial, junin)
	assert.Equal(t, 80.0, got)
	got, _ = zoneAffinityScore(catalog, provincial, metroSite)
	assert.Equal(t, 40.0, got)
}

func TestTypeScoreFlipsOnEscalation(t *testing.T) {
	s, _ := typeScore(domain.CrewTypeRegular, false)
	assert.Equal(t, 100.0, s)
	s, _ = typeScore(domain.CrewTypeChoque, false)
	assert.Equal(t, 0.0, s)
	s, _ = typeScore(domain.CrewTypeChoque, true)
	assert.Equal(t, 100.0, s)
	s, _ = typeScore(domain.CrewTypeRegular, true)
	assert.Equal(t, 20.0, s)
}

func TestInventoryScore(t *testing.T) {
	s, _ := inventoryScore(nil, []string{"fuse"})
	assert.Equal(t, 50.0, s)
	s, _ = inventoryScore([]string{"fuse", "breaker"}, []string{"FUSE"})
	assert.Equal(t, 50.0, s)
	s, _ = inventoryScore([]string{"fuse"}, []string{"fuse", "cable"})
	assert.Equal(t, 100.0, s)
}

func TestEstimateRoute(t *testing.T) {
	rush := time.Date(2026, 3, 2, 13, 0, 0, 0, time.UTC) // Monday 08:00 in Lima
	quiet := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

	metroRush := EstimateRoute(*near(limaSite.Location, 8), limaSite, sla.ZoneMetro, rush)
	assert.Equal(t, 1.5, metroRush.TrafficFactor)
	assert.Equal(t, 3, metroRush.AlternativeRoutes)
	assert.Equal(t, RoadBuena, metroRush.RoadQuality)

	metroQuiet := EstimateRoute(*near(limaSite.Location, 8), limaSite, sla.ZoneMetro, quiet)
	assert.Equal(t, 1.25, metroQuiet.TrafficFactor)
	assert.Less(t, metroQuiet.DurationMinutes, metroRush.DurationMinutes)

	far := EstimateRoute(limaBase, tarapoto, sla.ZoneDepartmental, quiet)
	assert.Equal(t, RoadMala, far.RoadQuality)
	assert.Equal(t, 1, far.AlternativeRoutes)
	assert.Greater(t, far.DistanceKm, 600.0)
}

func TestParseCatalogOverridesRequirements(t *testing.T) {
	doc := []byte(`
requirements:
  "caída de enlace":
    - MW_alignment
    - rf_equipment
`)
	catalog, err := ParseCatalog(doc)
	require.NoError(t, err)
	assert.Equal(t, []string{"mw_alignment", "rf_equipment"}, catalog.RequiredSkills("CAIDA DE ENLACE"))
	assert.Empty(t, catalog.RequiredSkills("CORTE ENERGIA"))
	assert.True(t, catalog.SameRegion("sur peru", "Cusco"), "regions keep defaults")
}

func TestParseCatalogRejectsBadYAML(t *testing.T) {
	_, err := ParseCatalog([]byte("requirements: [unclosed"))
	assert.Error(t, err)
}
