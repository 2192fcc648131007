package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/field-dispatch/internal/events"
	"github.com/spec-kit/field-dispatch/internal/observability"
	"github.com/spec-kit/field-dispatch/internal/persistence"
)

const syncQueueSize = 1024

// SyncService forwards ticket events to the configured sync sink. Events are
// queued by the dispatcher handlers and drained by Run.
type SyncService struct {
	dispatcher events.Dispatcher
	sink       persistence.SyncSink
	metrics    *observability.Metrics
	logger     *zap.Logger
	queue      chan events.Event
}

// SyncDependencies bundles collaborators for the sync service.
type SyncDependencies struct {
	Dispatcher events.Dispatcher
	Sink       persistence.SyncSink
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewSyncService creates the service.
func NewSyncService(deps SyncDependencies) *SyncService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncService{
		dispatcher: deps.Dispatcher,
		sink:       deps.Sink,
		metrics:    deps.Metrics,
		logger:     logger,
		queue:      make(chan events.Event, syncQueueSize),
	}
}

// RegisterHandlers subscribes to every ticket event.
func (s *SyncService) RegisterHandlers() {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.SubscribeAll(s.enqueue)
}

func (s *SyncService) enqueue(ctx context.Context, event events.Event) error {
	select {
	case s.queue <- event:
		return nil
	default:
		// Queue full: deliver inline rather than drop.
		return s.deliver(ctx, event)
	}
}

// Run drains the queue until ctx is cancelled, then flushes what is left.
func (s *SyncService) Run(ctx context.Context) {
	for {
		select {
		case event := <-s.queue:
			_ = s.deliver(ctx, event)
		case <-ctx.Done():
			s.flush()
			return
		}
	}
}

func (s *SyncService) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case event := <-s.queue:
			_ = s.deliver(ctx, event)
		default:
			return
		}
	}
}

func (s *SyncService) deliver(ctx context.Context, event events.Event) error {
	if s.sink == nil {
		return nil
	}
	err := s.sink.Send(ctx, event)
	s.metrics.RecordSync(string(event.Type), err == nil)
	if err != nil {
		s.logger.Error("sync event",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
		return err
	}
	s.logger.Debug("sync event delivered",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)))
	return nil
}

// Close releases the sink.
func (s *SyncService) Close() error {
	if s.sink == nil {
		return nil
	}
	return s.sink.Close()
}
