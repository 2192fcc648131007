package ranking

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/field-dispatch/internal/domain"
	"github.com/spec-kit/field-dispatch/internal/geofence"
	"github.com/spec-kit/field-dispatch/internal/sla"
)

// Sunday afternoon in Lima, outside rush hours.
var quietNow = time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

var (
	tarapoto = domain.Site{
		ID:           "site-tpp",
		Location:     domain.Coordinate{Lat: -6.4833, Lng: -76.3667},
		Zona:         "SAN MARTÍN",
		Departamento: "SAN MARTIN",
	}
	limaSite = domain.Site{
		ID:           "site-lima",
		Location:     domain.Coordinate{Lat: -12.0464, Lng: -77.0428},
		Zona:         "CENTRO",
		Departamento: "LIMA",
	}
	limaBase = domain.Coordinate{Lat: -12.0464, Lng: -77.0428}
)

func near(c domain.Coordinate, km float64) *domain.Coordinate {
	deg := km / geofence.EarthRadiusKm * 180 / math.Pi
	return &domain.Coordinate{Lat: c.Lat + deg, Lng: c.Lng}
}

func crew(id string, t domain.CrewType, loc *domain.Coordinate) domain.Crew {
	return domain.Crew{
		ID:              id,
		Status:          domain.CrewStatusDisponible,
		Type:            t,
		Zone:            "ORIENTE",
		CurrentLocation: loc,
	}
}

func ticket(p domain.TicketPriority, intervention string) domain.Ticket {
	return domain.Ticket{ID: "T-1", Priority: p, Status: domain.TicketStatusRecepcion, InterventionType: intervention}
}

func TestRankExcludesIneligibleCrews(t *testing.T) {
	offDuty := crew("off", domain.CrewTypeRegular, near(tarapoto.Location, 2))
	offDuty.Status = domain.CrewStatusFueraServicio
	busy := crew("busy", domain.CrewTypeRegular, near(tarapoto.Location, 3))
	busy.Status = domain.CrewStatusOcupado
	unlocated := crew("nowhere", domain.CrewTypeRegular, nil)
	ok := crew("ok", domain.CrewTypeRegular, near(tarapoto.Location, 1))

	engine := NewEngine(nil)
	scores, err := engine.Rank(Request{
		Ticket: ticket(domain.TicketPriorityP1, "CORTE FIBRA"),
		Site:   tarapoto,
		Crews:  []domain.Crew{offDuty, busy, unlocated, ok},
		Now:    quietNow,
	})
	require.NoError(t, err)
	require.Len(t, scores, 2)
	ids := []string{scores[0].CrewID, scores[1].CrewID}
	assert.ElementsMatch(t, []string{"busy", "ok"}, ids)
}

func TestRankIsSortedAndDeterministic(t *testing.T) {
	crews := []domain.Crew{
		crew("c-b", domain.CrewTypeRegular, near(tarapoto.Location, 4)),
		crew("c-a", domain.CrewTypeRegular, near(tarapoto.Location, 4)),
		crew("c-far", domain.CrewTypeRegular, near(tarapoto.Location, 150)),
		crew("c-choque", domain.CrewTypeChoque, near(tarapoto.Location, 1)),
	}
	req := Request{Ticket: ticket(domain.TicketPriorityP2, ""), Site: tarapoto, Crews: crews, Now: quietNow}
	engine := NewEngine(nil)

	first, err := engine.Rank(req)
	require.NoError(t, err)
	require.Len(t, first, 4)
	for i := 1; i < len(first); i++ {
		assert.GreaterOrEqual(t, first[i-1].TotalScore, first[i].TotalScore)
	}
	assert.Equal(t, "c-a", first[0].CrewID, "ties break by crew id")
	assert.Equal(t, "c-b", first[1].CrewID)

	for i := 0; i < 5; i++ {
		again, err := engine.Rank(req)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestRankEmptyPool(t *testing.T) {
	scores, err := NewEngine(nil).Rank(Request{Ticket: ticket(domain.TicketPriorityP0, ""), Site: limaSite, Now: quietNow})
	require.NoError(t, err)
	assert.Empty(t, scores)
}

func TestRankRejectsMalformedInput(t *testing.T) {
	engine := NewEngine(nil)

	site := tarapoto
	site.Location = domain.Coordinate{Lat: 0, Lng: 200}
	_, err := engine.Rank(Request{Ticket: ticket(domain.TicketPriorityP1, ""), Site: site, Now: quietNow})
	assert.True(t, errors.Is(err, geofence.ErrInvalidCoordinate))

	site = tarapoto
	site.Zona = "ATLANTIS"
	site.Departamento = ""
	_, err = engine.Rank(Request{Ticket: ticket(domain.TicketPriorityP1, ""), Site: site, Now: quietNow})
	assert.True(t, errors.Is(err, sla.ErrUnknownZone))

	_, err = engine.Rank(Request{Ticket: ticket("P7", ""), Site: tarapoto, Now: quietNow})
	assert.True(t, errors.Is(err, sla.ErrUnknownPriority))
}

func TestRankSkipsCrewWithInvalidLocation(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	engine := NewEngine(nil, WithLogger(zap.New(core)))

	bad := crew("bad", domain.CrewTypeRegular, &domain.Coordinate{Lat: math.NaN(), Lng: 0})
	good := crew("good", domain.CrewTypeRegular, near(tarapoto.Location, 3))
	scores, err := engine.Rank(Request{
		Ticket: ticket(domain.TicketPriorityP1, ""),
		Site:   tarapoto,
		Crews:  []domain.Crew{bad, good},
		Now:    quietNow,
	})
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, "good", scores[0].CrewID)

	skipped := logs.FilterField(zap.String("crew_id", "bad")).All()
	require.Len(t, skipped, 1)
	assert.Equal(t, "skipping crew with invalid location", skipped[0].Message)

	sel, err := engine.SelectBest(Request{
		Ticket: ticket(domain.TicketPriorityP1, ""),
		Site:   tarapoto,
		Crews:  []domain.Crew{bad, good},
		Now:    quietNow,
	})
	require.NoError(t, err)
	require.NotNil(t, sel.Best)
	assert.Equal(t, "good", sel.Best.CrewID)
}

func TestRankReasoningMentionsEveryCriterion(t *testing.T) {
	scores, err := NewEngine(nil).Rank(Request{
		Ticket:        ticket(domain.TicketPriorityP1, "CORTE ENERGIA"),
		Site:          tarapoto,
		Crews:         []domain.Crew{crew("c1", domain.CrewTypeRegular, near(tarapoto.Location, 2))},
		RequiredParts: []string{"breaker"},
		Now:           quietNow,
	})
	require.NoError(t, err)
	require.Len(t, scores, 1)
	for _, word := range []string{"skills", "eta", "route", "workload", "zone", "type", "inventory", "total="} {
		assert.Contains(t, scores[0].Reasoning, word)
	}
}

func TestWeightedTotal(t *testing.T) {
	sum := DefaultWeights.Skills + DefaultWeights.ETA + DefaultWeights.Route + DefaultWeights.Workload +
		DefaultWeights.ZoneAffinity + DefaultWeights.Type + DefaultWeights.Inventory
	assert.InDelta(t, 1.0, sum, 1e-9)

	all := ScoreBreakdown{Skills: 100, ETA: 100, Route: 100, Workload: 100, ZoneAffinity: 100, Type: 100, Inventory: 100}
	assert.InDelta(t, 100, DefaultWeights.total(all), 1e-9)
}

func TestSelectBestPrefersFastRegular(t *testing.T) {
	crews := []domain.Crew{
		crew("regular-near", domain.CrewTypeRegular, near(tarapoto.Location, 5)),
		crew("choque-nearer", domain.CrewTypeChoque, near(tarapoto.Location, 1)),
	}
	sel, err := NewEngine(nil).SelectBest(Request{Ticket: ticket(domain.TicketPriorityP1, ""), Site: tarapoto, Crews: crews, Now: quietNow})
	require.NoError(t, err)
	assert.Equal(t, OutcomeRegular, sel.Outcome)
	require.True(t, sel.Found())
	assert.Equal(t, "regular-near", sel.Best.CrewID)
	assert.Equal(t, 480.0, sel.BudgetMinutes)
}

func TestSelectBestEscalatesWhenRegularTooSlow(t *testing.T) {
	crews := []domain.Crew{
		crew("regular-lima", domain.CrewTypeRegular, &limaBase),
		crew("choque-local", domain.CrewTypeChoque, near(tarapoto.Location, 10)),
	}
	sel, err := NewEngine(nil).SelectBest(Request{Ticket: ticket(domain.TicketPriorityP1, ""), Site: tarapoto, Crews: crews, Now: quietNow})
	require.NoError(t, err)
	assert.Equal(t, OutcomeEscalated, sel.Outcome)
	require.NotNil(t, sel.Best)
	assert.Equal(t, "choque-local", sel.Best.CrewID)
	require.NotNil(t, sel.RegularTop)
	assert.Equal(t, "regular-lima", sel.RegularTop.CrewID)
	assert.Greater(t, sel.RegularTop.Route.DurationMinutes, 240.0)
	assert.Contains(t, sel.Reason, "escalated to choque-local")
}

func TestSelectBestEscalatesWithoutRegulars(t *testing.T) {
	crews := []domain.Crew{crew("choque", domain.CrewTypeChoque, near(tarapoto.Location, 30))}
	sel, err := NewEngine(nil).SelectBest(Request{Ticket: ticket(domain.TicketPriorityP0, ""), Site: tarapoto, Crews: crews, Now: quietNow})
	require.NoError(t, err)
	assert.Equal(t, OutcomeEscalated, sel.Outcome)
	assert.Nil(t, sel.RegularTop)
	assert.Equal(t, "choque", sel.Best.CrewID)
}

func TestSelectBestNoMatch(t *testing.T) {
	off := crew("off", domain.CrewTypeChoque, near(tarapoto.Location, 1))
	off.Status = domain.CrewStatusFueraServicio
	crews := []domain.Crew{off, crew("lost", domain.CrewTypeRegular, nil)}

	sel, err := NewEngine(nil).SelectBest(Request{Ticket: ticket(domain.TicketPriorityP0, ""), Site: tarapoto, Crews: crews, Now: quietNow})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoMatch, sel.Outcome)
	assert.False(t, sel.Found())
	assert.Nil(t, sel.Best)
}
