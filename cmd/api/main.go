package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/field-dispatch/internal/api/http"
	"github.com/spec-kit/field-dispatch/internal/api/http/handlers"
	"github.com/spec-kit/field-dispatch/internal/auth"
	"github.com/spec-kit/field-dispatch/internal/config"
	"github.com/spec-kit/field-dispatch/internal/events"
	"github.com/spec-kit/field-dispatch/internal/lifecycle"
	"github.com/spec-kit/field-dispatch/internal/observability"
	"github.com/spec-kit/field-dispatch/internal/persistence"
	"github.com/spec-kit/field-dispatch/internal/ranking"
	"github.com/spec-kit/field-dispatch/internal/repository"
	"github.com/spec-kit/field-dispatch/internal/service"
	"github.com/spec-kit/field-dispatch/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	var repos repository.Repositories
	if pg.Enabled() {
		repos = repository.NewPostgresRepositories(pg.PoolHandle())
	} else {
		logger.Warn("using in-memory repositories; data is lost on restart")
		repos = repository.NewMemoryStore().Repositories()
	}

	var (
		locker    persistence.TicketLocker
		locations persistence.LocationStore
	)
	if redis.Enabled() {
		locker = persistence.NewRedisLocker(redis.Handle(), cfg.Dispatch.TicketLockTTL)
		locations = persistence.NewRedisLocationStore(redis.Handle())
	} else {
		locker = persistence.NewLocalLocker()
		locations = persistence.NewMemoryLocationStore()
	}

	sink := newSyncSink(cfg, redis, logger)

	catalog, err := ranking.LoadCatalog(cfg.Dispatch.CatalogPath)
	if err != nil {
		logger.Fatal("failed to load dispatch catalog", zap.Error(err))
	}
	engine := ranking.NewEngine(catalog,
		ranking.WithMaxOpenTickets(cfg.Dispatch.MaxOpenTickets),
		ranking.WithLogger(logger.Named("ranking")))

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	transitions := service.TransitionDependencies{
		Repos:      repos,
		Machine:    lifecycle.NewMachine(cfg.Dispatch.GeofenceRadiusMeters),
		Locker:     locker,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	}
	crewService := service.NewCrewService(service.CrewDependencies{
		CrewRepo:   repos.Crews,
		Locations:  locations,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	ticketService := service.NewTicketService(transitions)
	dispatchService := service.NewDispatchService(service.DispatchDependencies{
		TransitionDependencies: transitions,
		Engine:                 engine,
		CrewService:            crewService,
	})
	fieldService := service.NewFieldService(service.FieldDependencies{
		TransitionDependencies: transitions,
		CrewService:            crewService,
	})

	syncService := service.NewSyncService(service.SyncDependencies{
		Dispatcher: dispatcher,
		Sink:       sink,
		Metrics:    metrics,
		Logger:     logger,
	})
	syncDone := worker.StartSyncWorker(ctx, syncService)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, 0)
	if cfg.Auth.Disabled {
		logger.Warn("AUTH_DISABLED set; callers are identified by X-Actor headers")
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Dispatch:       handlers.NewDispatchHandler(dispatchService),
		Field:          handlers.NewFieldHandler(fieldService),
		Crews:          handlers.NewCrewsHandler(crewService),
		Metrics:        metrics,
		AuthMiddleware: auth.NewAuthMiddleware(tokens, cfg.Auth.Disabled),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	cancel()
	<-syncDone
	if err := syncService.Close(); err != nil {
		logger.Warn("close sync sink", zap.Error(err))
	}
}

func newSyncSink(cfg *config.Config, redis *persistence.Redis, logger *zap.Logger) persistence.SyncSink {
	switch cfg.Sync.Sink {
	case config.SyncSinkRedis:
		logger.Info("syncing events to redis stream", zap.String("stream", cfg.Sync.RedisStream))
		return persistence.NewRedisStreamSink(redis.Handle(), cfg.Sync.RedisStream, cfg.Sync.DedupeTTL)
	case config.SyncSinkKafka:
		logger.Info("syncing events to kafka",
			zap.Strings("brokers", cfg.Sync.KafkaBrokers),
			zap.String("topic", cfg.Sync.KafkaTopic))
		return persistence.NewKafkaSink(cfg.Sync.KafkaBrokers, cfg.Sync.KafkaTopic)
	default:
		return persistence.NewLogSink(logger)
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
