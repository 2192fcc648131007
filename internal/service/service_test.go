package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/field-dispatch/internal/domain"
	"github.com/spec-kit/field-dispatch/internal/events"
	"github.com/spec-kit/field-dispatch/internal/lifecycle"
	"github.com/spec-kit/field-dispatch/internal/persistence"
	"github.com/spec-kit/field-dispatch/internal/ranking"
	"github.com/spec-kit/field-dispatch/internal/repository"
	apperrors "github.com/spec-kit/field-dispatch/pkg/util/errorutil"
)

var (
	siteLima   = domain.Coordinate{Lat: -12.0464, Lng: -77.0428}
	dispatcher = events.Actor{SubjectID: "disp-1", Role: domain.RoleDispatcher}
	technician = events.Actor{SubjectID: "tech-1", Role: domain.RoleTechnician}
	supervisor = events.Actor{SubjectID: "sup-1", Role: domain.RoleSupervisor}
)

type fixture struct {
	store    *repository.MemoryStore
	tickets  *TicketService
	dispatch *DispatchService
	field    *FieldService
	crews    *CrewService
	now      time.Time
	mu       sync.Mutex
	events   []events.Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, nil)
}

// newFixtureWith lets a test decorate the repositories before the services
// are built.
func newFixtureWith(t *testing.T, wrap func(repository.Repositories) repository.Repositories) *fixture {
	t.Helper()
	f := &fixture{
		store: repository.NewMemoryStore(),
		now:   time.Date(2026, 3, 4, 17, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	bus := events.NewInMemoryDispatcher()
	bus.SubscribeAll(func(_ context.Context, e events.Event) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.events = append(f.events, e)
		return nil
	})

	f.store.PutSite(domain.Site{ID: "S-LIMA", Name: "Nodo Cercado", Location: siteLima, Zona: "LIMA", Departamento: "LIMA"})
	f.store.PutSite(domain.Site{ID: "S-NOWHERE", Name: "Unknown", Location: siteLima, Zona: "ATLANTIS"})
	f.store.PutCrew(domain.Crew{
		ID:                  "C-REG",
		Name:                "Regular Lima",
		Status:              domain.CrewStatusDisponible,
		Type:                domain.CrewTypeRegular,
		Zone:                "LIMA",
		CoverageDepartments: []string{"LIMA"},
		Skills:              []string{"electricidad", "fibra_optica"},
		CurrentLocation:     &domain.Coordinate{Lat: -12.06, Lng: -77.05},
	})
	f.store.PutCrew(domain.Crew{
		ID:     "C-OUT",
		Name:   "Out of service",
		Status: domain.CrewStatusFueraServicio,
		Type:   domain.CrewTypeRegular,
		Zone:   "LIMA",
	})

	repos := f.store.Repositories()
	if wrap != nil {
		repos = wrap(repos)
	}
	deps := TransitionDependencies{
		Repos:      repos,
		Machine:    lifecycle.NewMachine(0),
		Locker:     persistence.NewLocalLocker(),
		Dispatcher: bus,
		Clock:      clock,
	}
	f.crews = NewCrewService(CrewDependencies{
		CrewRepo:   repos.Crews,
		Locations:  persistence.NewMemoryLocationStore(),
		Dispatcher: bus,
		Clock:      clock,
	})
	f.tickets = NewTicketService(deps)
	f.dispatch = NewDispatchService(DispatchDependencies{
		TransitionDependencies: deps,
		Engine:                 ranking.NewEngine(nil),
		CrewService:            f.crews,
	})
	f.field = NewFieldService(FieldDependencies{TransitionDependencies: deps, CrewService: f.crews})
	return f
}

func (f *fixture) open(t *testing.T, priority string) *domain.Ticket {
	t.Helper()
	ticket, err := f.tickets.Open(context.Background(), dispatcher, OpenTicketInput{
		SiteID:           "S-LIMA",
		Priority:         priority,
		InterventionType: "CORTE ENERGIA",
	})
	require.NoError(t, err)
	return ticket
}

func (f *fixture) eventTypes() []events.EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]events.EventType, len(f.events))
	for i, e := range f.events {
		out[i] = e.Type
	}
	return out
}

func domainCode(t *testing.T, err error) (string, int) {
	t.Helper()
	require.Error(t, err)
	de := apperrors.ToDomainError(err)
	return de.Code, de.HTTPStatus
}

var errStoreUnavailable = errors.New("store unavailable")

// unreliableHistory fails every Append while down is set.
type unreliableHistory struct {
	repository.TicketHistoryRepository
	down bool
}

func (h *unreliableHistory) Append(ctx context.Context, entry *domain.TicketHistory) (bool, error) {
	if h.down {
		return false, errStoreUnavailable
	}
	return h.TicketHistoryRepository.Append(ctx, entry)
}

func newFixtureWithHistory(t *testing.T) (*fixture, *unreliableHistory) {
	t.Helper()
	history := &unreliableHistory{}
	f := newFixtureWith(t, func(repos repository.Repositories) repository.Repositories {
		history.TicketHistoryRepository = repos.History
		repos.History = history
		return repos
	})
	return f, history
}

func boolPtr(b bool) *bool { return &b }

func strPtr(s string) *string { return &s }

func at(c domain.Coordinate) *domain.Coordinate { return &c }

func TestOpenComputesDeadline(t *testing.T) {
	f := newFixture(t)
	ticket := f.open(t, "critical")

	assert.Equal(t, domain.TicketPriorityP0, ticket.Priority)
	assert.Equal(t, domain.TicketStatusRecepcion, ticket.Status)
	assert.Equal(t, f.now.Add(2*time.Hour), ticket.SLADeadlineAt)

	status, err := f.tickets.SLAStatus(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(120), status.RemainingMinutes)
	assert.False(t, status.IsOverdue)
	assert.Equal(t, "metro", string(status.ZoneClass))
}

func TestOpenRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tickets.Open(ctx, dispatcher, OpenTicketInput{SiteID: "S-LIMA", Priority: "P9"})
	code, status := domainCode(t, err)
	assert.Equal(t, "VALIDATION_FAILED", code)
	assert.Equal(t, http.StatusBadRequest, status)

	_, err = f.tickets.Open(ctx, dispatcher, OpenTicketInput{SiteID: "S-NOWHERE", Priority: "P1"})
	code, _ = domainCode(t, err)
	assert.Equal(t, "VALIDATION_FAILED", code)

	_, err = f.tickets.Open(ctx, dispatcher, OpenTicketInput{SiteID: "S-MISSING", Priority: "P1"})
	code, _ = domainCode(t, err)
	assert.Equal(t, "NOT_FOUND", code)
}

func TestFullLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.open(t, "P1")

	res, err := f.dispatch.Dispatch(ctx, dispatcher, ticket.ID, DispatchInput{})
	require.NoError(t, err)
	assert.Equal(t, string(ranking.OutcomeRegular), res.Outcome)
	require.NotNil(t, res.Dispatch)
	assert.Equal(t, "C-REG", res.Dispatch.CrewID)
	assert.Equal(t, domain.DispatchSourceRegular, res.Dispatch.Source)
	assert.Equal(t, domain.TicketStatusAsignar, res.Ticket.Status)

	crew, err := f.crews.Get(ctx, "C-REG")
	require.NoError(t, err)
	assert.Equal(t, 1, crew.OpenTickets())

	f.now = f.now.Add(20 * time.Minute)
	_, err = f.crews.ReportLocation(ctx, technician, "C-REG", domain.Coordinate{Lat: -12.0466, Lng: -77.0430}, nil)
	require.NoError(t, err)
	arrival, err := f.field.ConfirmArrival(ctx, technician, ticket.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusArribo, arrival.Ticket.Status)
	require.NotNil(t, arrival.Check)
	assert.True(t, arrival.Check.Inside)

	_, err = f.field.SetRequirement(ctx, technician, ticket.ID, RequirementInput{SafetyVerified: boolPtr(true)})
	require.NoError(t, err)
	_, err = f.field.SetRequirement(ctx, technician, ticket.ID, RequirementInput{EquipmentVerified: boolPtr(true)})
	require.NoError(t, err)
	neutralized, err := f.field.Neutralize(ctx, technician, ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, neutralized.Ticket.NeutralizedAt)

	_, err = f.field.CaptureEvidence(ctx, technician, ticket.ID, EvidenceInput{
		BeforePhotoURL:     strPtr("s3://evidence/before.jpg"),
		AfterPhotoURL:      strPtr("s3://evidence/after.jpg"),
		ChecklistCompleted: boolPtr(true),
		CaptureLocation:    at(siteLima),
	})
	require.NoError(t, err)
	submitted, err := f.field.SubmitEvidence(ctx, technician, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusValidar, submitted.Ticket.Status)

	closed, err := f.field.Approve(ctx, supervisor, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusCierre, closed.Ticket.Status)
	require.NotNil(t, closed.Ticket.ClosedAt)
	assert.Equal(t, 5, closed.Ticket.Version)

	detail, err := f.tickets.Get(ctx, ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, detail.Evidence)
	assert.True(t, detail.Evidence.Valid)
	assert.Equal(t, "sup-1", *detail.Evidence.ValidatedBy)
	assert.Empty(t, detail.AllowedActions)

	crew, err = f.crews.Get(ctx, "C-REG")
	require.NoError(t, err)
	assert.Zero(t, crew.OpenTickets())

	history, err := f.tickets.History(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, history, 6)
	assert.Equal(t, "open", history[0].Action)
	assert.Equal(t, string(lifecycle.ActionApprove), history[5].Action)

	assert.Equal(t, []events.EventType{
		events.EventTicketOpened,
		events.EventTicketAssigned,
		events.EventTicketStatusChanged,
		events.EventTicketStatusChanged,
		events.EventTicketStatusChanged,
		events.EventTicketStatusChanged,
	}, f.eventTypes())
}

func TestArrivalOutOfRangeLeavesTicketUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.open(t, "P1")
	_, err := f.dispatch.Dispatch(ctx, dispatcher, ticket.ID, DispatchInput{})
	require.NoError(t, err)

	_, err = f.field.ConfirmArrival(ctx, technician, ticket.ID, at(domain.Coordinate{Lat: -12.0500, Lng: -77.0428}))
	code, status := domainCode(t, err)
	assert.Equal(t, "GUARD_FAILED", code)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	details := apperrors.ToDomainError(err).Details
	assert.Equal(t, "out_of_range", details["reason"])
	assert.Contains(t, apperrors.ToDomainError(err).Message, "out of range, distance =")

	detail, err := f.tickets.Get(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusAsignar, detail.Ticket.Status)
	assert.Equal(t, 1, detail.Ticket.Version)
}

func TestNeutralizeNeedsBothRequirements(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.open(t, "P2")
	_, err := f.dispatch.Dispatch(ctx, dispatcher, ticket.ID, DispatchInput{})
	require.NoError(t, err)
	_, err = f.field.ConfirmArrival(ctx, technician, ticket.ID, at(siteLima))
	require.NoError(t, err)

	_, err = f.field.SetRequirement(ctx, technician, ticket.ID, RequirementInput{SafetyVerified: boolPtr(true)})
	require.NoError(t, err)
	_, err = f.field.Neutralize(ctx, technician, ticket.ID)
	code, _ := domainCode(t, err)
	assert.Equal(t, "GUARD_FAILED", code)
	assert.Equal(t, "requirements_incomplete", apperrors.ToDomainError(err).Details["reason"])

	_, err = f.field.SetRequirement(ctx, technician, ticket.ID, RequirementInput{})
	code, _ = domainCode(t, err)
	assert.Equal(t, "VALIDATION_FAILED", code)
}

func (f *fixture) toValidar(t *testing.T, ticketID string) {
	t.Helper()
	ctx := context.Background()
	_, err := f.dispatch.Dispatch(ctx, dispatcher, ticketID, DispatchInput{})
	require.NoError(t, err)
	_, err = f.field.ConfirmArrival(ctx, technician, ticketID, at(siteLima))
	require.NoError(t, err)
	_, err = f.field.SetRequirement(ctx, technician, ticketID, RequirementInput{SafetyVerified: boolPtr(true), EquipmentVerified: boolPtr(true)})
	require.NoError(t, err)
	_, err = f.field.Neutralize(ctx, technician, ticketID)
	require.NoError(t, err)
	_, err = f.field.CaptureEvidence(ctx, technician, ticketID, EvidenceInput{
		BeforePhotoURL:     strPtr("before.jpg"),
		AfterPhotoURL:      strPtr("after.jpg"),
		ChecklistCompleted: boolPtr(true),
		CaptureLocation:    at(siteLima),
	})
	require.NoError(t, err)
	_, err = f.field.SubmitEvidence(ctx, technician, ticketID)
	require.NoError(t, err)
}

func TestRejectReturnsToNeutralizarAndKeepsEvidence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.open(t, "P1")
	f.toValidar(t, ticket.ID)

	_, err := f.field.Reject(ctx, supervisor, ticket.ID, " ")
	code, _ := domainCode(t, err)
	assert.Equal(t, "VALIDATION_FAILED", code)

	res, err := f.field.Reject(ctx, supervisor, ticket.ID, "after photo blurry")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusNeutralizar, res.Ticket.Status)
	assert.Nil(t, res.Ticket.ClosedAt)
	assert.Equal(t, ticket.SLADeadlineAt, res.Ticket.SLADeadlineAt)

	detail, err := f.tickets.Get(ctx, ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, detail.Evidence)
	assert.False(t, detail.Evidence.Valid)
	assert.Equal(t, "before.jpg", detail.Evidence.BeforePhotoURL)
	assert.Equal(t, "after photo blurry", *detail.Evidence.RejectionReason)
	assert.Contains(t, f.eventTypes(), events.EventEvidenceRejected)

	resubmitted, err := f.field.SubmitEvidence(ctx, technician, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusValidar, resubmitted.Ticket.Status)
}

func TestSubmitEvidenceGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.open(t, "P1")
	_, err := f.dispatch.Dispatch(ctx, dispatcher, ticket.ID, DispatchInput{})
	require.NoError(t, err)
	_, err = f.field.ConfirmArrival(ctx, technician, ticket.ID, at(siteLima))
	require.NoError(t, err)
	_, err = f.field.SetRequirement(ctx, technician, ticket.ID, RequirementInput{SafetyVerified: boolPtr(true), EquipmentVerified: boolPtr(true)})
	require.NoError(t, err)
	_, err = f.field.Neutralize(ctx, technician, ticket.ID)
	require.NoError(t, err)

	_, err = f.field.CaptureEvidence(ctx, technician, ticket.ID, EvidenceInput{BeforePhotoURL: strPtr("before.jpg")})
	require.NoError(t, err)
	_, err = f.field.SubmitEvidence(ctx, technician, ticket.ID)
	assert.Equal(t, "evidence_incomplete", apperrors.ToDomainError(err).Details["reason"])

	_, err = f.field.CaptureEvidence(ctx, technician, ticket.ID, EvidenceInput{
		AfterPhotoURL:      strPtr("after.jpg"),
		ChecklistCompleted: boolPtr(true),
		CaptureLocation:    at(domain.Coordinate{Lat: -12.0600, Lng: -77.0428}),
	})
	require.NoError(t, err)
	_, err = f.field.SubmitEvidence(ctx, technician, ticket.ID)
	assert.Equal(t, "evidence_out_of_range", apperrors.ToDomainError(err).Details["reason"])
}

func TestDispatchNoMatchIsNotAnError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.PutCrew(domain.Crew{ID: "C-REG", Status: domain.CrewStatusFueraServicio, Type: domain.CrewTypeRegular})
	ticket := f.open(t, "P1")

	res, err := f.dispatch.Dispatch(ctx, dispatcher, ticket.ID, DispatchInput{})
	require.NoError(t, err)
	assert.Equal(t, string(ranking.OutcomeNoMatch), res.Outcome)
	assert.Nil(t, res.Dispatch)

	detail, err := f.tickets.Get(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusRecepcion, detail.Ticket.Status)
	assert.Empty(t, detail.Dispatches)
}

func TestDispatchEscalatesToRapidResponse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.PutCrew(domain.Crew{
		ID:              "C-REG",
		Status:          domain.CrewStatusDisponible,
		Type:            domain.CrewTypeRegular,
		Zone:            "SUR",
		CurrentLocation: &domain.Coordinate{Lat: -16.409, Lng: -71.537},
	})
	f.store.PutCrew(domain.Crew{
		ID:              "C-CHOQUE",
		Status:          domain.CrewStatusDisponible,
		Type:            domain.CrewTypeChoque,
		Zone:            "LIMA",
		Skills:          []string{"electricidad"},
		CurrentLocation: &domain.Coordinate{Lat: -12.05, Lng: -77.04},
	})
	ticket := f.open(t, "P0")

	res, err := f.dispatch.Dispatch(ctx, dispatcher, ticket.ID, DispatchInput{})
	require.NoError(t, err)
	assert.Equal(t, string(ranking.OutcomeEscalated), res.Outcome)
	require.NotNil(t, res.Dispatch)
	assert.Equal(t, "C-CHOQUE", res.Dispatch.CrewID)
	assert.Equal(t, domain.DispatchSourceEscalated, res.Dispatch.Source)
	require.NotNil(t, res.Selection.RegularTop)
	assert.Equal(t, "C-REG", res.Selection.RegularTop.CrewID)
}

func TestManualOverride(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.open(t, "P2")

	_, err := f.dispatch.Dispatch(ctx, dispatcher, ticket.ID, DispatchInput{CrewID: "C-OUT"})
	code, _ := domainCode(t, err)
	assert.Equal(t, "VALIDATION_FAILED", code)

	_, err = f.dispatch.Dispatch(ctx, dispatcher, ticket.ID, DispatchInput{CrewID: "C-MISSING"})
	code, _ = domainCode(t, err)
	assert.Equal(t, "NOT_FOUND", code)

	res, err := f.dispatch.Dispatch(ctx, dispatcher, ticket.ID, DispatchInput{CrewID: "C-REG"})
	require.NoError(t, err)
	assert.Equal(t, "manual", res.Outcome)
	require.NotNil(t, res.Dispatch)
	assert.Equal(t, domain.DispatchSourceManual, res.Dispatch.Source)
	require.NotNil(t, res.Dispatch.Score)
	assert.Greater(t, *res.Dispatch.Score, 0.0)

	_, err = f.dispatch.Dispatch(ctx, dispatcher, ticket.ID, DispatchInput{})
	code, status := domainCode(t, err)
	assert.Equal(t, "CONFLICT", code)
	assert.Equal(t, http.StatusConflict, status)
}

func TestRankDoesNotAssign(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.open(t, "P1")

	res, err := f.dispatch.Rank(ctx, ticket.ID, RankInput{})
	require.NoError(t, err)
	require.Len(t, res.Scores, 1)
	assert.Equal(t, "C-REG", res.Scores[0].CrewID)
	assert.Equal(t, 480.0, res.BudgetMinutes)

	detail, err := f.tickets.Get(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusRecepcion, detail.Ticket.Status)
}

func TestSetExclusion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.open(t, "P3")

	updated, err := f.tickets.SetExclusion(ctx, dispatcher, ticket.ID, "client access denied")
	require.NoError(t, err)
	require.NotNil(t, updated.ExclusionCause)
	assert.Equal(t, domain.TicketStatusRecepcion, updated.Status)
	assert.Equal(t, ticket.SLADeadlineAt, updated.SLADeadlineAt)

	status, err := f.tickets.SLAStatus(ctx, ticket.ID)
	require.NoError(t, err)
	assert.True(t, status.Excluded)

	cleared, err := f.tickets.SetExclusion(ctx, dispatcher, ticket.ID, "")
	require.NoError(t, err)
	assert.Nil(t, cleared.ExclusionCause)
}

func TestSLAOverdue(t *testing.T) {
	f := newFixture(t)
	ticket := f.open(t, "P0")
	f.now = f.now.Add(2*time.Hour + time.Second)

	status, err := f.tickets.SLAStatus(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.True(t, status.IsOverdue)
	assert.Zero(t, status.RemainingMinutes)
}

func TestFailedHistoryWriteRollsBackDispatch(t *testing.T) {
	f, history := newFixtureWithHistory(t)
	ctx := context.Background()
	ticket := f.open(t, "P1")

	history.down = true
	_, err := f.dispatch.Dispatch(ctx, dispatcher, ticket.ID, DispatchInput{})
	code, status := domainCode(t, err)
	assert.Equal(t, "INTERNAL_ERROR", code)
	assert.Equal(t, http.StatusInternalServerError, status)

	stored, err := f.store.Repositories().Tickets.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusRecepcion, stored.Status)
	assert.Zero(t, stored.Version)
	assert.Nil(t, stored.CrewID)
	dispatches, err := f.store.Repositories().Dispatches.ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Empty(t, dispatches)
	crew, err := f.crews.Get(ctx, "C-REG")
	require.NoError(t, err)
	assert.Zero(t, crew.OpenTickets())
	assert.Equal(t, []events.EventType{events.EventTicketOpened}, f.eventTypes())

	history.down = false
	res, err := f.dispatch.Dispatch(ctx, dispatcher, ticket.ID, DispatchInput{})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusAsignar, res.Ticket.Status)
	assert.Equal(t, []events.EventType{events.EventTicketOpened, events.EventTicketAssigned}, f.eventTypes())

	entries, err := f.tickets.History(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestFailedHistoryWriteKeepsEvidenceUnapproved(t *testing.T) {
	f, history := newFixtureWithHistory(t)
	ctx := context.Background()
	ticket := f.open(t, "P1")
	f.toValidar(t, ticket.ID)
	published := len(f.eventTypes())

	history.down = true
	_, err := f.field.Approve(ctx, supervisor, ticket.ID)
	require.Error(t, err)

	detail, err := f.tickets.Get(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusValidar, detail.Ticket.Status)
	require.NotNil(t, detail.Evidence)
	assert.False(t, detail.Evidence.Valid)
	assert.Nil(t, detail.Evidence.ValidatedBy)
	assert.Len(t, f.eventTypes(), published)

	history.down = false
	closed, err := f.field.Approve(ctx, supervisor, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusCierre, closed.Ticket.Status)
	detail, err = f.tickets.Get(ctx, ticket.ID)
	require.NoError(t, err)
	assert.True(t, detail.Evidence.Valid)
	assert.Len(t, f.eventTypes(), published+1)
}

func TestFailedHistoryWriteRejectsOpen(t *testing.T) {
	f, history := newFixtureWithHistory(t)
	ctx := context.Background()
	history.down = true

	_, err := f.tickets.Open(ctx, dispatcher, OpenTicketInput{ID: "T-1", SiteID: "S-LIMA", Priority: "P1"})
	require.Error(t, err)
	_, err = f.tickets.Get(ctx, "T-1")
	code, _ := domainCode(t, err)
	assert.Equal(t, "NOT_FOUND", code)
	assert.Empty(t, f.eventTypes())
}

func TestClosedTicketSLAStopsCounting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.open(t, "P1")
	f.now = f.now.Add(time.Hour)
	f.toValidar(t, ticket.ID)
	_, err := f.field.Approve(ctx, supervisor, ticket.ID)
	require.NoError(t, err)

	f.now = f.now.Add(24 * time.Hour)
	detail, err := f.tickets.Get(ctx, ticket.ID)
	require.NoError(t, err)
	status, err := f.tickets.SLAStatus(ctx, ticket.ID)
	require.NoError(t, err)

	assert.False(t, detail.SLA.IsOverdue)
	assert.Equal(t, int64(7*60), detail.SLA.RemainingMinutes)
	assert.Equal(t, status.RemainingMinutes, detail.SLA.RemainingMinutes)
	assert.Equal(t, status.IsOverdue, detail.SLA.IsOverdue)
}
