package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"NewsIngest/internal/config"
	"NewsIngest/internal/domain"
	"NewsIngest/internal/enrich"
	"NewsIngest/internal/infrastructure/ai"
	infraparser "NewsIngest/internal/infrastructure/parser"
	"NewsIngest/internal/infrastructure/scheduler"
	"NewsIngest/internal/infrastructure/storage"
	"NewsIngest/internal/logging"
	"NewsIngest/internal/parser"
	"NewsIngest/internal/usecase"
)

// Job identifiers used by the scheduler registrations below.
const (
	JobIngestion = "ingestion"
	JobCleanup   = "cleanup"
	JobStats     = "stats"
)

// Application wires configuration to the ingestion core and owns its
// lifecycle.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	db        *sql.DB
	store     *storage.PostgresStore
	registry  *parser.Registry
	manager   *usecase.Manager
	scheduler *scheduler.Scheduler
}

// New connects the store, syncs configured sources, and wires parsers,
// enrichment chain, parse manager and scheduler jobs.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	db, err := storage.Open(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect storage: %w", err)
	}
	store := storage.NewPostgresStore(db)

	if err := syncSources(ctx, store, cfg.Sources); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sync sources: %w", err)
	}

	fetchTimeout := cfg.Parsing.FetchTimeout()
	registry := parser.NewRegistry()
	registry.Register(infraparser.NewFeedParser(nil, fetchTimeout,
		baseLogger.With("component", "parser.feed")))
	registry.Register(infraparser.NewPageParser(nil, fetchTimeout, nil,
		baseLogger.With("component", "parser.page")))

	providers := ai.BuildProviders(cfg.Providers, baseLogger.With("component", "ai"))
	chain := enrich.NewChain(providers, store, enrich.Limits{
		MaxTitleLen:   cfg.Processing.MaxTitleLen,
		MaxContentLen: cfg.Processing.MaxContentLen,
	}, baseLogger.With("component", "enrich"))

	dedup := usecase.NewDuplicateChecker(store, baseLogger.With("component", "dedup"))

	manager := usecase.NewManager(usecase.ManagerDeps{
		Registry:      registry,
		Store:         store,
		Dedup:         dedup,
		Chain:         chain,
		Workers:       cfg.Parsing.Workers,
		UseEnrichment: cfg.Processing.UseEnrichment,
		AutoPublish:   cfg.Processing.AutoPublish,
		Logger:        baseLogger.With("component", "manager"),
	})

	app := &Application{
		cfg:       cfg,
		logger:    baseLogger.With("component", "app"),
		db:        db,
		store:     store,
		registry:  registry,
		manager:   manager,
		scheduler: scheduler.New(baseLogger.With("component", "scheduler")),
	}
	if err := app.registerJobs(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("register jobs: %w", err)
	}
	return app, nil
}

func syncSources(ctx context.Context, store *storage.PostgresStore, sources []config.SourceConfig) error {
	for _, sc := range sources {
		src := domain.Source{
			Name:          sc.Name,
			URL:           sc.URL,
			Type:          domain.SourceType(sc.Type),
			Enabled:       sc.Enabled,
			Category:      sc.Category,
			Selectors:     sc.Selectors,
			UseEnrichment: sc.UseEnrichment,
			AutoPublish:   sc.AutoPublish,
		}
		if err := store.UpsertSource(ctx, src); err != nil {
			return fmt.Errorf("source %s: %w", sc.Name, err)
		}
	}
	return nil
}

func (a *Application) registerJobs() error {
	interval := time.Duration(a.cfg.Scheduler.ParsingIntervalMinutes) * time.Minute
	if err := a.scheduler.RegisterInterval(JobIngestion, interval, a.runIngestion); err != nil {
		return err
	}

	cleanupAt, err := scheduler.ParseDailyTime(a.cfg.Scheduler.CleanupAt)
	if err != nil {
		return fmt.Errorf("cleanup time: %w", err)
	}
	if err := a.scheduler.RegisterDaily(JobCleanup, cleanupAt, a.runCleanup); err != nil {
		return err
	}

	statsInterval := time.Duration(a.cfg.Scheduler.StatsIntervalMinutes) * time.Minute
	return a.scheduler.RegisterInterval(JobStats, statsInterval, a.runStats)
}

func (a *Application) runIngestion(ctx context.Context) error {
	_, err := a.manager.ParseAllSources(ctx)
	return err
}

// runCleanup prunes delivered and rejected news, old enrichment audit rows
// and aged seen URLs according to the retention settings.
func (a *Application) runCleanup(ctx context.Context) error {
	now := time.Now().UTC()

	news, err := a.store.DeleteNewsOlderThan(ctx,
		now.AddDate(0, 0, -a.cfg.Retention.NewsDays),
		[]domain.Status{domain.StatusPublished, domain.StatusRejected})
	if err != nil {
		return fmt.Errorf("cleanup news: %w", err)
	}

	attempts, err := a.store.DeleteAttemptsOlderThan(ctx,
		now.AddDate(0, 0, -a.cfg.Retention.AttemptsDays))
	if err != nil {
		return fmt.Errorf("cleanup attempts: %w", err)
	}

	seen, err := a.store.DeleteSeenOlderThan(ctx,
		now.AddDate(0, 0, -a.cfg.Retention.SeenURLDays))
	if err != nil {
		return fmt.Errorf("cleanup seen urls: %w", err)
	}

	a.logger.Info("cleanup finished", "news", news, "attempts", attempts, "seen_urls", seen)
	return nil
}

func (a *Application) runStats(ctx context.Context) error {
	counts, err := a.store.CountByStatus(ctx)
	if err != nil {
		return fmt.Errorf("count by status: %w", err)
	}

	attrs := make([]any, 0, len(counts)*2)
	for status, n := range counts {
		attrs = append(attrs, string(status), n)
	}
	a.logger.Info("news by status", attrs...)
	return nil
}

// Run starts the scheduler and blocks until the context is cancelled, then
// shuts the components down in order.
func (a *Application) Run(ctx context.Context) error {
	a.scheduler.Start(ctx)
	a.logger.Info("application started",
		"sources", len(a.cfg.Sources),
		"parsing_interval_min", a.cfg.Scheduler.ParsingIntervalMinutes)

	<-ctx.Done()

	a.scheduler.Stop()
	if err := a.registry.Close(); err != nil {
		a.logger.Error("close parsers", "error", err)
	}
	if err := a.db.Close(); err != nil {
		return fmt.Errorf("close storage: %w", err)
	}
	a.logger.Info("application stopped")
	return nil
}

// Manager exposes the parse manager for admin tooling.
func (a *Application) Manager() *usecase.Manager {
	return a.manager
}

// Scheduler exposes the job scheduler for admin tooling.
func (a *Application) Scheduler() *scheduler.Scheduler {
	return a.scheduler
}
