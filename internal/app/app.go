// Package app wires configuration into the services shared by the daemon and
// the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/joseph-ayodele/cryotrace/internal/async"
	"github.com/joseph-ayodele/cryotrace/internal/common"
	"github.com/joseph-ayodele/cryotrace/internal/export"
	"github.com/joseph-ayodele/cryotrace/internal/ingest"
	"github.com/joseph-ayodele/cryotrace/internal/llm"
	"github.com/joseph-ayodele/cryotrace/internal/llm/gemini"
	"github.com/joseph-ayodele/cryotrace/internal/llm/openai"
	"github.com/joseph-ayodele/cryotrace/internal/messaging"
	"github.com/joseph-ayodele/cryotrace/internal/repository"
	"github.com/joseph-ayodele/cryotrace/internal/services/ask"
	"github.com/joseph-ayodele/cryotrace/internal/services/events"
	"github.com/joseph-ayodele/cryotrace/internal/services/indexer"
	"github.com/joseph-ayodele/cryotrace/internal/vector"
)

// Options select the optional parts of the graph.
type Options struct {
	// Queue starts the in-process reindex workers.
	Queue bool
	// Publish connects to RabbitMQ when a URL is configured.
	Publish bool
}

type App struct {
	Config *common.Config
	Logger *slog.Logger

	Pool      *pgxpool.Pool
	Vectors   *vector.Index
	Completer llm.Completer
	Embedder  llm.Embedder

	Manifests repository.ManifestRepository
	Directory repository.DirectoryRepository
	Shipments repository.ShipmentRepository
	EventRepo repository.EventRepository

	Indexer  *indexer.Service
	Ask      *ask.Service
	Events   *events.Service
	Export   *export.Service
	Importer *ingest.Importer

	Queue     *async.WorkerQueue
	AMQP      *amqp.Connection
	Publisher *messaging.Publisher
}

// New connects to Postgres, opens the vector index and builds every service.
// Callers own the returned App and must Close it.
func New(ctx context.Context, cfg *common.Config, logger *slog.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.Close(context.Background())
		}
	}()

	if cfg.Database.RunMigrations {
		if err := repository.RunMigrations(cfg.Database.DSN, logger); err != nil {
			return nil, err
		}
	}
	pool, err := repository.Open(ctx, repository.Config{
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}
	a.Pool = pool

	a.Manifests = repository.NewManifestRepository(pool, logger)
	a.Directory = repository.NewDirectoryRepository(pool, logger)
	a.Shipments = repository.NewShipmentRepository(pool, logger)
	a.EventRepo = repository.NewEventRepository(pool, logger)

	a.Vectors, err = vector.Open(cfg.Vector.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("open vector index: %w", err)
	}

	if err := a.buildLLM(ctx); err != nil {
		return nil, err
	}

	a.Indexer = indexer.NewService(a.Shipments, a.Vectors, a.Embedder, logger)
	a.Ask = ask.NewService(a.Shipments, a.Vectors, a.Embedder, a.Completer, logger,
		ask.WithTopK(cfg.Vector.TopK),
	)
	a.Export = export.NewService(a.Shipments, logger)

	var queue async.Queue
	if opts.Queue {
		a.Queue = async.NewWorkerQueue(a.Indexer, logger,
			async.WithWorkers(cfg.Ingest.ReindexWorkers),
			async.WithQueueSize(cfg.Ingest.ReindexQueue),
		)
		queue = a.Queue
	}

	var publisher events.Publisher
	if opts.Publish && cfg.Messaging.URL != "" {
		a.AMQP, err = messaging.Dial(cfg.Messaging.URL)
		if err != nil {
			return nil, err
		}
		a.Publisher, err = messaging.NewPublisher(a.AMQP, cfg.Messaging.Exchange, logger)
		if err != nil {
			return nil, err
		}
		publisher = a.Publisher
	}

	photos := events.NewPhotoStore(cfg.Uploads.Dir, cfg.Server.MaxUploadBytes)
	a.Events = events.NewService(a.EventRepo, photos, queue, publisher, logger)

	a.Importer = ingest.NewImporter(
		ingest.NewManifestLoader(a.Manifests, a.Directory, logger),
		ingest.NewEventLoader(a.Events, "", logger),
		logger,
	)

	ok = true
	return a, nil
}

// buildLLM sets up OpenAI as the primary completer with Gemini as the
// fallback, and picks the embedder named by EMBEDDING_PROVIDER.
func (a *App) buildLLM(ctx context.Context) error {
	cfg := a.Config
	var primary, secondary llm.Completer
	var oa *openai.Client
	var gc *gemini.Client

	if cfg.LLM.APIKey != "" {
		oa = openai.NewClient(openai.Config{
			APIKey:         cfg.LLM.APIKey,
			BaseURL:        cfg.LLM.BaseURL,
			Model:          cfg.LLM.Model,
			EmbeddingModel: cfg.LLM.EmbeddingModel,
			Temperature:    cfg.LLM.Temperature,
			Timeout:        cfg.LLM.Timeout,
		}, a.Logger)
		primary = oa
	}
	if cfg.Gemini.APIKey != "" {
		c, err := gemini.NewClient(ctx, gemini.Config{
			APIKey:         cfg.Gemini.APIKey,
			Model:          cfg.Gemini.Model,
			EmbeddingModel: cfg.Gemini.EmbeddingModel,
			Temperature:    cfg.LLM.Temperature,
			Timeout:        cfg.LLM.Timeout,
		}, a.Logger)
		if err != nil {
			return fmt.Errorf("gemini client: %w", err)
		}
		gc = c
		if primary == nil {
			primary = gc
		} else {
			secondary = gc
		}
	}
	if primary == nil {
		return common.NewAppError("CONFIG_ERROR", "no LLM provider configured", common.ErrInvalidInput)
	}
	a.Completer = llm.NewFallbackCompleter(primary, secondary, a.Logger)

	switch {
	case cfg.Vector.Provider == "gemini" && gc != nil:
		a.Embedder = gc
	case cfg.Vector.Provider == "openai" && oa != nil:
		a.Embedder = oa
	default:
		a.Logger.Warn("app.embedder.disabled", "provider", cfg.Vector.Provider)
	}
	return nil
}

// Health pings the database.
func (a *App) Health(ctx context.Context) error {
	return repository.HealthCheck(ctx, a.Pool, 2*time.Second, a.Logger)
}

// StartConsumer reindexes manifests announced on the events exchange. It is a
// no-op without a broker connection or a queue.
func (a *App) StartConsumer(ctx context.Context) error {
	if a.AMQP == nil || a.Queue == nil {
		return nil
	}
	consumer := messaging.NewConsumer(a.AMQP, a.Config.Messaging.Exchange, a.Config.Messaging.Queue,
		func(ctx context.Context, ev messaging.EventRecorded) error {
			return a.Queue.Enqueue(ctx, async.Job{
				ManifestID:  ev.Payload.ManifestID,
				Reason:      "broker:" + string(ev.Payload.Type),
				SubmittedAt: time.Now(),
				TraceID:     ev.CorrelationID,
			})
		}, a.Logger)
	return consumer.Start(ctx)
}

// WatchConfig is the drop-folder watcher configuration, or false when
// INGEST_WATCH_DIR is unset.
func (a *App) WatchConfig() (ingest.WatchConfig, bool) {
	dir := a.Config.Ingest.WatchDir
	if dir == "" {
		return ingest.WatchConfig{}, false
	}
	return ingest.WatchConfig{
		Roots:       []string{filepath.Clean(dir)},
		InitialScan: true,
		Debounce:    a.Config.Ingest.Debounce,
	}, true
}

// Close drains the queue, then releases connections in reverse order.
func (a *App) Close(ctx context.Context) {
	if a.Queue != nil {
		a.Queue.Shutdown(ctx)
	}
	var errs []error
	if a.Publisher != nil {
		errs = append(errs, a.Publisher.Close())
	}
	if a.AMQP != nil {
		errs = append(errs, a.AMQP.Close())
	}
	if a.Vectors != nil {
		errs = append(errs, a.Vectors.Close())
	}
	if a.Pool != nil {
		repository.Close(a.Pool, a.Logger)
	}
	if err := errors.Join(errs...); err != nil {
		a.Logger.Warn("app.close", "error", err)
	}
}
