package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"

	"NewsIngest/internal/domain"
	"NewsIngest/internal/enrich"
	"NewsIngest/internal/parser"
	"NewsIngest/internal/ports"
)

// ErrAlreadyRunning is returned when ParseAllSources is invoked while a
// previous run is still in flight.
var ErrAlreadyRunning = errors.New("parsing is already running")

const defaultWorkers = 3

// SourceOutcome summarizes one source's parse cycle.
type SourceOutcome struct {
	SourceID   int64
	SourceName string
	Found      int
	Created    int
	Duplicates int
	Errors     int
	Success    bool
	Err        string
	Elapsed    time.Duration
}

// RunStats aggregates counters across every completed run.
type RunStats struct {
	TotalRuns       int64
	SuccessfulRuns  int64
	TotalFound      int64
	TotalCreated    int64
	TotalDuplicates int64
	TotalErrors     int64
}

// ManagerDeps wires the parse manager's collaborators.
type ManagerDeps struct {
	Registry *parser.Registry
	Store    ports.NewsStore
	Dedup    *DuplicateChecker
	Chain    *enrich.Chain
	Workers  int
	// UseEnrichment gates the chain globally; per-source flags still apply.
	UseEnrichment bool
	// AutoPublish marks records published right after a successful
	// enrichment when the source allows it.
	AutoPublish bool
	Logger      *slog.Logger
}

// Manager orchestrates concurrent parsing across all enabled sources.
type Manager struct {
	registry      *parser.Registry
	store         ports.NewsStore
	dedup         *DuplicateChecker
	chain         *enrich.Chain
	workers       int
	useEnrichment bool
	autoPublish   bool
	logger        *slog.Logger

	parsing atomic.Bool

	mu          sync.Mutex
	stats       RunStats
	lastRunTime time.Time
}

// NewManager constructs the orchestration component.
func NewManager(deps ManagerDeps) *Manager {
	workers := deps.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		registry:      deps.Registry,
		store:         deps.Store,
		dedup:         deps.Dedup,
		chain:         deps.Chain,
		workers:       workers,
		useEnrichment: deps.UseEnrichment,
		autoPublish:   deps.AutoPublish,
		logger:        logger,
	}
}

// ParseAllSources parses every enabled source on a bounded worker pool and
// returns one outcome per source. A second invocation while a run is in
// flight returns ErrAlreadyRunning without starting anything.
func (m *Manager) ParseAllSources(ctx context.Context) ([]SourceOutcome, error) {
	if !m.parsing.CompareAndSwap(false, true) {
		m.logger.Warn("parse run requested while one is in flight")
		return nil, ErrAlreadyRunning
	}
	defer m.parsing.Store(false)

	start := time.Now()

	sources, err := m.store.ActiveSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active sources: %w", err)
	}
	if len(sources) == 0 {
		m.logger.Warn("no active sources to parse")
		return nil, nil
	}

	m.logger.Info("parse run started", "sources", len(sources), "workers", m.workers)

	pool, err := ants.NewPool(m.workers)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var (
		wg       sync.WaitGroup
		outMu    sync.Mutex
		outcomes []SourceOutcome
	)

	for _, src := range sources {
		src := src
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			outcome := m.parseSource(ctx, src)
			outMu.Lock()
			outcomes = append(outcomes, outcome)
			outMu.Unlock()
		})
		if submitErr != nil {
			wg.Done()
			outMu.Lock()
			outcomes = append(outcomes, SourceOutcome{
				SourceID:   src.ID,
				SourceName: src.Name,
				Err:        submitErr.Error(),
			})
			outMu.Unlock()
		}
	}
	wg.Wait()

	m.recordRun(outcomes)

	var found, created, duplicates, succeeded int
	for _, o := range outcomes {
		found += o.Found
		created += o.Created
		duplicates += o.Duplicates
		if o.Success {
			succeeded++
		}
	}
	m.logger.Info("parse run finished",
		"sources_ok", succeeded,
		"sources_total", len(sources),
		"found", found,
		"created", created,
		"duplicates", duplicates,
		"elapsed", time.Since(start))

	return outcomes, nil
}

// parseSource handles one source end to end: parse, filter, dedup, persist,
// enrich. Every failure is contained in the returned outcome.
func (m *Manager) parseSource(ctx context.Context, src domain.Source) SourceOutcome {
	start := time.Now()
	outcome := SourceOutcome{SourceID: src.ID, SourceName: src.Name}

	p, err := m.registry.Resolve(src.Type)
	if err != nil {
		outcome.Err = err.Error()
		outcome.Elapsed = time.Since(start)
		m.updateSourceStats(ctx, src.ID, 0, 0, false)
		return outcome
	}

	items, err := p.Parse(ctx, src)
	if err != nil {
		m.logger.Error("source parse failed", "source", src.Name, "error", err)
		outcome.Err = err.Error()
		outcome.Elapsed = time.Since(start)
		m.updateSourceStats(ctx, src.ID, 0, 0, false)
		return outcome
	}

	outcome.Found = len(items)
	outcome.Created, outcome.Duplicates, outcome.Errors = m.processItems(ctx, items, src)
	outcome.Success = true
	outcome.Elapsed = time.Since(start)

	m.updateSourceStats(ctx, src.ID, outcome.Found, outcome.Created, true)
	m.logger.Info("source parsed",
		"source", src.Name,
		"found", outcome.Found,
		"created", outcome.Created,
		"duplicates", outcome.Duplicates,
		"errors", outcome.Errors,
		"elapsed", outcome.Elapsed)

	return outcome
}

// processItems persists fresh items in parser-emission order and runs the
// enrichment chain synchronously per record. Per-record failures do not
// affect the rest of the batch.
func (m *Manager) processItems(ctx context.Context, items []domain.Item, src domain.Source) (created, duplicates, errs int) {
	for _, item := range items {
		if !item.Valid() || !item.WithinLimits() {
			continue
		}

		dup, err := m.dedup.Duplicate(ctx, item)
		if err != nil {
			m.logger.Error("duplicate check failed", "source", src.Name, "error", err)
			errs++
			continue
		}
		if dup {
			duplicates++
			continue
		}

		news := domain.News{
			SourceID: src.ID,
			Title:    item.Title,
			Content:  item.Content,
			URL:      item.URL,
			Author:   item.Author,
			ImageURL: item.ImageURL,
			Category: item.Category,
			Tags:     item.Tags,
			Status:   domain.StatusPending,
			ParsedAt: item.PublishedAt,
		}
		if err := m.store.CreateNews(ctx, &news); err != nil {
			m.logger.Error("persist news failed", "source", src.Name, "error", err)
			errs++
			continue
		}

		if item.URL != "" {
			seen := domain.SeenURL{
				URL:      item.URL,
				URLHash:  domain.URLHash(item.URL),
				NewsID:   news.ID,
				SourceID: src.ID,
			}
			if err := m.store.MarkSeenURL(ctx, seen); err != nil {
				m.logger.Error("mark seen url failed", "source", src.Name, "error", err)
			}
		}

		if m.useEnrichment && src.UseEnrichment && m.chain != nil {
			m.enrichRecord(ctx, news, src)
		}

		created++
	}
	return created, duplicates, errs
}

// enrichRecord runs the fallback chain for one persisted record. On
// exhaustion the record stays pending with the attempt counter bumped.
func (m *Manager) enrichRecord(ctx context.Context, news domain.News, src domain.Source) {
	result, provider, err := m.chain.Process(ctx, news)
	if err != nil {
		if storeErr := m.store.RecordEnrichmentFailure(ctx, news.ID, err.Error()); storeErr != nil {
			m.logger.Error("record enrichment failure", "news_id", news.ID, "error", storeErr)
		}
		m.logger.Warn("enrichment exhausted", "news_id", news.ID, "error", err)
		return
	}

	status := domain.StatusEnriched
	if m.autoPublish && src.AutoPublish {
		status = domain.StatusPublished
	}

	if err := m.store.UpdateEnrichment(ctx, news.ID, result, status); err != nil {
		m.logger.Error("store enrichment result", "news_id", news.ID, "error", err)
		return
	}
	m.logger.Info("news enriched", "news_id", news.ID, "provider", provider, "status", status)
}

// TestSource parses one source without touching the store. Used by admin
// tooling to verify a configuration before enabling it.
func (m *Manager) TestSource(ctx context.Context, src domain.Source) SourceOutcome {
	start := time.Now()
	outcome := SourceOutcome{SourceID: src.ID, SourceName: src.Name}

	p, err := m.registry.Resolve(src.Type)
	if err != nil {
		outcome.Err = err.Error()
		outcome.Elapsed = time.Since(start)
		return outcome
	}

	items, err := p.Parse(ctx, src)
	if err != nil {
		outcome.Err = err.Error()
		outcome.Elapsed = time.Since(start)
		return outcome
	}

	outcome.Found = len(items)
	outcome.Success = true
	outcome.Elapsed = time.Since(start)
	return outcome
}

// Stats returns a copy of the aggregate run counters.
func (m *Manager) Stats() RunStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Status reports whether a run is active and when the last one finished.
func (m *Manager) Status() (bool, time.Time) {
	m.mu.Lock()
	last := m.lastRunTime
	m.mu.Unlock()
	return m.parsing.Load(), last
}

func (m *Manager) recordRun(outcomes []SourceOutcome) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.TotalRuns++
	m.lastRunTime = time.Now().UTC()

	anySuccess := false
	for _, o := range outcomes {
		m.stats.TotalFound += int64(o.Found)
		m.stats.TotalCreated += int64(o.Created)
		m.stats.TotalDuplicates += int64(o.Duplicates)
		if o.Success {
			anySuccess = true
		} else {
			m.stats.TotalErrors++
		}
	}
	if anySuccess {
		m.stats.SuccessfulRuns++
	}
}

func (m *Manager) updateSourceStats(ctx context.Context, sourceID int64, found, created int, success bool) {
	if err := m.store.UpdateSourceStats(ctx, sourceID, found, created, success); err != nil {
		m.logger.Error("update source stats", "source_id", sourceID, "error", err)
	}
}
