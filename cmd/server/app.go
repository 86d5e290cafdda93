package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lorecraft/graphd/internal/config"
	"github.com/lorecraft/graphd/internal/events"
	"github.com/lorecraft/graphd/internal/graphengine"
	"github.com/lorecraft/graphd/internal/platform/graphiti"
	"github.com/lorecraft/graphd/internal/platform/postgres"
	"github.com/lorecraft/graphd/internal/queue"
	"github.com/lorecraft/graphd/internal/service"
	"github.com/lorecraft/graphd/internal/store"
	"github.com/lorecraft/graphd/internal/task"
)

// application holds the shared application dependencies so lifecycle and
// cleanup are managed in one place.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	episodeStore store.EpisodeStore
	schemaStore  store.SchemaStore

	engine         graphengine.Engine
	eventEmitter   events.EventEmitter
	taskRegistry   *task.Registry
	queueManager   *queue.Manager
	episodeService service.EpisodeService
}

// newApplication creates a new application instance with all dependencies
// initialized. Core dependencies (configuration, logger, database) must be
// established before application initialization.
func newApplication(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	db *sql.DB,
) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	// Stores
	app.episodeStore = postgres.NewPostgresEpisodeStore(db, logger)
	app.schemaStore = postgres.NewPostgresSchemaStore(db, logger)

	// Graph engine client
	engine, err := graphiti.NewClient(cfg.Engine, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create graph engine client: %w", err)
	}
	app.engine = engine
	logger.Info("graph engine client initialized",
		"base_url", cfg.Engine.BaseURL,
		"max_concurrency", engine.MaxConcurrency())

	// Task handler registry
	app.taskRegistry = task.NewRegistry(logger)

	ingestionHandler, err := task.NewEpisodeIngestionHandler(
		app.engine,
		app.episodeStore,
		app.schemaStore,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create episode ingestion handler: %w", err)
	}
	app.taskRegistry.Register(ingestionHandler)

	// Per-group queue manager dispatching through the registry
	app.queueManager = queue.NewManager(app.taskRegistry, logger)

	// Event system: service emits ingest requests, the ingest event handler
	// turns them into queued tasks.
	emitter := events.NewInMemoryEventEmitter(logger)
	emitter.RegisterHandler(task.NewIngestEventHandler(app.queueManager, logger))
	app.eventEmitter = emitter

	// Episode service
	episodeRepo := service.NewEpisodeRepositoryAdapter(app.episodeStore, db)
	app.episodeService, err = service.NewEpisodeService(episodeRepo, app.eventEmitter, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create episode service: %w", err)
	}

	logger.Info("application initialized")
	return app, nil
}

// Run starts the HTTP server and blocks until shutdown.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup handles graceful shutdown of application resources. The queue
// manager is stopped before the database closes so in-flight tasks can still
// record their status.
func (app *application) cleanup() {
	if app.queueManager != nil {
		app.queueManager.Stop()
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", "error", err)
		}
	}

	app.logger.Info("application shutdown completed")
}
