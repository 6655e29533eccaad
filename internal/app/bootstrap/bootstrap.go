package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	votingengine "animevote/contexts/anime-voting/voting-engine"
	catalogadapter "animevote/contexts/anime-voting/voting-engine/adapters/catalog"
	"animevote/contexts/anime-voting/voting-engine/adapters/memory"
	postgresadapter "animevote/contexts/anime-voting/voting-engine/adapters/postgres"
	sqliteadapter "animevote/contexts/anime-voting/voting-engine/adapters/sqlite"
	"animevote/contexts/anime-voting/voting-engine/application/commands"
	"animevote/contexts/anime-voting/voting-engine/ports"
	"animevote/internal/platform/config"
	"animevote/internal/platform/db"
	"animevote/internal/platform/httpserver"
	"animevote/internal/platform/messaging"
	"animevote/internal/platform/telemetry"

	"golang.org/x/sync/errgroup"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

const (
	shutdownTimeout = 10 * time.Second
	outboxBatchSize = 100
)

var auditTopics = []string{
	commands.EventSessionCreated,
	commands.EventSessionItemAdded,
	commands.EventVoteCast,
	commands.EventVoteReplaced,
}

type votingRepository interface {
	ports.SessionRepository
	ports.VoteLedger
	ports.IdempotencyStore
	ports.OutboxRepository
}

type store struct {
	driver  string
	repo    votingRepository
	clock   ports.Clock
	ids     ports.IDGenerator
	migrate func(context.Context) error
	close   func() error
}

// Runtime is an opened store plus the voting module wired on top of it.
type Runtime struct {
	Config config.Config
	Module votingengine.Module
	store  *store
}

type runtimeOptions struct {
	catalog   ports.CatalogSearcher
	metrics   ports.Metrics
	publisher ports.EventPublisher
}

type APIApp struct {
	runtime *Runtime
	server  *httpserver.Server
	logger  *slog.Logger
}

type WorkerApp struct {
	runtime      *Runtime
	bus          *messaging.Bus
	pollInterval time.Duration
	logger       *slog.Logger
}

// OpenRuntime opens the configured store and migrates it. The returned
// runtime has no catalog, metrics or publisher wired.
func OpenRuntime(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Runtime, error) {
	return openRuntime(ctx, cfg, logger, runtimeOptions{})
}

func openRuntime(ctx context.Context, cfg config.Config, logger *slog.Logger, opts runtimeOptions) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := st.migrate(ctx); err != nil {
		_ = st.close()
		return nil, fmt.Errorf("migrate %s store: %w", st.driver, err)
	}

	module := votingengine.NewModule(votingengine.Dependencies{
		Sessions:            st.repo,
		Votes:               st.repo,
		Idempotency:         st.repo,
		Outbox:              st.repo,
		Publisher:           opts.publisher,
		Catalog:             opts.catalog,
		Metrics:             opts.metrics,
		Clock:               st.clock,
		IDGen:               st.ids,
		EnforceSessionItems: cfg.EnforceSessionItems,
		IdempotencyTTL:      cfg.IdempotencyTTL,
		OutboxBatchSize:     outboxBatchSize,
		Logger:              logger,
	})
	if mem, ok := st.repo.(*memory.Store); ok {
		module.Store = mem
	}

	logger.Info("voting runtime opened",
		"event", "bootstrap_runtime_opened",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"store_driver", st.driver,
		"enforce_session_items", cfg.EnforceSessionItems,
	)
	return &Runtime{Config: cfg, Module: module, store: st}, nil
}

func (r *Runtime) Driver() string {
	return r.store.driver
}

func (r *Runtime) Close() error {
	if r == nil || r.store == nil {
		return nil
	}
	return r.store.close()
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (*store, error) {
	switch cfg.StoreDriver {
	case config.StoreMemory:
		mem := memory.NewStore(nil)
		return &store{
			driver:  config.StoreMemory,
			repo:    mem,
			clock:   mem,
			ids:     mem,
			migrate: func(context.Context) error { return nil },
			close:   func() error { return nil },
		}, nil
	case config.StoreSQLite:
		lite, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		repo := sqliteadapter.NewRepository(lite.DB, logger)
		return &store{
			driver:  config.StoreSQLite,
			repo:    repo,
			clock:   sqliteadapter.Clock{},
			ids:     sqliteadapter.IDGenerator{},
			migrate: repo.Migrate,
			close:   lite.Close,
		}, nil
	case config.StorePostgres:
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return nil, errors.New("POSTGRES_DSN is required")
		}
		pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		repo := postgresadapter.NewRepository(pg.DB, logger)
		return &store{
			driver:  config.StorePostgres,
			repo:    repo,
			clock:   postgresadapter.SystemClock{},
			ids:     postgresadapter.UUIDGenerator{},
			migrate: repo.Migrate,
			close:   pg.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}

func BuildAPI(ctx context.Context) (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return NewAPIApp(ctx, cfg, slog.Default().With("service", cfg.ServiceName, "process", "api"))
}

func NewAPIApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*APIApp, error) {
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		logger.Warn("JWT_SECRET is empty; authenticated routes will reject every token",
			"event", "bootstrap_jwt_secret_missing",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}

	metrics := telemetry.NewPrometheusMetrics()
	catalog := catalogadapter.NewBangumiClient(catalogadapter.Config{
		BaseURL:    cfg.CatalogBaseURL,
		Timeout:    cfg.CatalogTimeout,
		RatePerSec: cfg.CatalogRatePerSec,
	}, &http.Client{Timeout: cfg.CatalogTimeout}, logger)

	runtime, err := openRuntime(ctx, cfg, logger, runtimeOptions{
		catalog: catalog,
		metrics: metrics,
	})
	if err != nil {
		return nil, err
	}

	server := httpserver.New(runtime.Module, httpserver.Options{
		Addr:           normalizeAddr(cfg.HTTPPort),
		Verifier:       httpserver.NewTokenVerifier(cfg.JWTSecret),
		Metrics:        metrics.Handler(),
		StorageTimeout: cfg.StorageTimeout,
		Logger:         logger,
	})
	return &APIApp{
		runtime: runtime,
		server:  server,
		logger:  logger,
	}, nil
}

func BuildWorker(ctx context.Context) (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return NewWorkerApp(ctx, cfg, slog.Default().With("service", cfg.ServiceName, "process", "worker"))
}

func NewWorkerApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*WorkerApp, error) {
	if cfg.StoreDriver == config.StoreMemory {
		logger.Warn("worker uses a private memory store; no api outbox rows will be visible",
			"event", "bootstrap_worker_memory_store",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}

	bus := messaging.NewBus(cfg.KafkaBrokers, logger)
	runtime, err := openRuntime(ctx, cfg, logger, runtimeOptions{publisher: bus})
	if err != nil {
		return nil, err
	}
	return &WorkerApp{
		runtime:      runtime,
		bus:          bus,
		pollInterval: cfg.OutboxPollInterval,
		logger:       logger,
	}, nil
}

// Run serves HTTP until ctx is canceled, then drains in-flight requests.
func (a *APIApp) Run(ctx context.Context) error {
	a.logger.Info("api app started",
		"event", "bootstrap_api_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"store_driver", a.runtime.Driver(),
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(a.server.Start)
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})
	return group.Wait()
}

func (a *APIApp) Handler() http.Handler {
	return a.server.Handler()
}

func (a *APIApp) Close() error {
	return a.runtime.Close()
}

// Run relays outbox rows on every tick until ctx is canceled. Relay failures
// are logged and retried on the next tick.
func (w *WorkerApp) Run(ctx context.Context) error {
	if err := w.subscribeAudit(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
		"brokers", strings.Join(w.bus.Brokers(), ","),
	)

	for {
		if _, err := w.runtime.Module.Relay.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Warn("outbox relay cycle failed",
				"event", "bootstrap_worker_relay_failed",
				"module", "internal/app/bootstrap",
				"layer", "platform",
				"error", err.Error(),
			)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) subscribeAudit(ctx context.Context) error {
	for _, topic := range auditTopics {
		if err := w.bus.Subscribe(ctx, topic, "animevote-audit", w.auditEvent); err != nil {
			return err
		}
	}
	return nil
}

func (w *WorkerApp) auditEvent(_ context.Context, event ports.EventEnvelope) error {
	w.logger.Info("voting event relayed",
		"event", "voting_event_audited",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"event_id", event.EventID,
		"event_type", event.EventType,
		"partition_key", event.PartitionKey,
	)
	return nil
}

func (w *WorkerApp) Close() error {
	return w.runtime.Close()
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
