package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/field-dispatch/internal/domain"
	"github.com/spec-kit/field-dispatch/internal/events"
	"github.com/spec-kit/field-dispatch/internal/geofence"
	"github.com/spec-kit/field-dispatch/internal/observability"
	"github.com/spec-kit/field-dispatch/internal/persistence"
	"github.com/spec-kit/field-dispatch/internal/repository"
	apperrors "github.com/spec-kit/field-dispatch/pkg/util/errorutil"
)

// CrewService ingests crew positions and serves the crew roster.
type CrewService struct {
	crews      repository.CrewRepository
	locations  persistence.LocationStore
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// CrewDependencies bundles collaborators for the crew service.
type CrewDependencies struct {
	CrewRepo   repository.CrewRepository
	Locations  persistence.LocationStore
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Clock      func() time.Time
}

// NewCrewService creates the service. Locations may be nil.
func NewCrewService(deps CrewDependencies) *CrewService {
	s := &CrewService{
		crews:      deps.CrewRepo,
		locations:  deps.Locations,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		now:        deps.Clock,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// ReportLocation stores the latest position of a crew. Reports older than
// the stored one are ignored.
func (s *CrewService) ReportLocation(ctx context.Context, actor events.Actor, crewID string, loc domain.Coordinate, at *time.Time) (*domain.Crew, error) {
	if err := geofence.Validate(loc); err != nil {
		return nil, apperrors.NewValidationError(err.Error(), map[string]any{"lat": loc.Lat, "lng": loc.Lng})
	}
	reportedAt := s.now()
	if at != nil {
		reportedAt = *at
	}
	if err := s.crews.UpdateLocation(ctx, crewID, loc, reportedAt); err != nil {
		return nil, lookupError(err, "crew", crewID)
	}
	if s.locations != nil {
		if err := s.locations.Put(ctx, crewID, persistence.CrewPosition{Location: loc, At: reportedAt}); err != nil {
			s.logger.Warn("cache crew location", zap.String("crew_id", crewID), zap.Error(err))
		}
	}
	s.metrics.RecordLocationReport()

	if s.dispatcher != nil {
		event := events.Event{
			Type:      events.EventCrewLocationReported,
			Actor:     actor,
			Timestamp: reportedAt,
			Payload:   events.CrewLocationPayload{CrewID: crewID, Location: loc},
		}
		if err := s.dispatcher.Publish(ctx, event); err != nil {
			s.logger.Warn("publish event", zap.String("event_type", string(event.Type)), zap.Error(err))
		}
	}
	return s.Get(ctx, crewID)
}

// Get returns one crew with its freshest known position.
func (s *CrewService) Get(ctx context.Context, crewID string) (*domain.Crew, error) {
	crew, err := s.crews.GetByID(ctx, crewID)
	if err != nil {
		return nil, lookupError(err, "crew", crewID)
	}
	crews := s.withLivePositions(ctx, []domain.Crew{*crew})
	return &crews[0], nil
}

// List returns crews matching filter with their freshest known positions.
func (s *CrewService) List(ctx context.Context, filter repository.CrewFilter) ([]domain.Crew, error) {
	crews, err := s.crews.List(ctx, filter)
	if err != nil {
		return nil, mapError(err)
	}
	return s.withLivePositions(ctx, crews), nil
}

// DispatchPool lists the crews the ranking engine may consider.
func (s *CrewService) DispatchPool(ctx context.Context) ([]domain.Crew, error) {
	return s.List(ctx, repository.CrewFilter{
		Statuses: []domain.CrewStatus{domain.CrewStatusDisponible, domain.CrewStatusOcupado},
	})
}

// withLivePositions replaces stored positions with newer cached ones.
func (s *CrewService) withLivePositions(ctx context.Context, crews []domain.Crew) []domain.Crew {
	if s.locations == nil || len(crews) == 0 {
		return crews
	}
	positions, err := s.locations.All(ctx)
	if err != nil {
		s.logger.Warn("read crew locations", zap.Error(err))
		return crews
	}
	for i := range crews {
		pos, ok := positions[crews[i].ID]
		if !ok {
			continue
		}
		if crews[i].LocationUpdatedAt != nil && crews[i].LocationUpdatedAt.After(pos.At) {
			continue
		}
		loc, at := pos.Location, pos.At
		crews[i].CurrentLocation = &loc
		crews[i].LocationUpdatedAt = &at
	}
	return crews
}
