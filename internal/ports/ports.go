package ports

import (
	"context"
	"time"

	"NewsIngest/internal/domain"
)

// NewsStore is the durable-store contract required by the ingestion core.
type NewsStore interface {
	// CreateNews inserts a new record and fills its ID.
	CreateNews(ctx context.Context, news *domain.News) error
	// MarkSeenURL records a parsed origin URL for O(1) duplicate lookup.
	MarkSeenURL(ctx context.Context, seen domain.SeenURL) error
	// SeenURL reports whether a URL hash has been ingested before.
	SeenURL(ctx context.Context, urlHash string) (bool, error)
	// FindByTitle returns the oldest record with an exactly matching title,
	// or nil when none exists.
	FindByTitle(ctx context.Context, title string) (*domain.News, error)

	// UpdateEnrichment stores the provider result and moves the record to
	// the given status.
	UpdateEnrichment(ctx context.Context, newsID int64, res domain.EnrichedResult, status domain.Status) error
	// SetPublished moves an enriched record to published and stamps the
	// publication time.
	SetPublished(ctx context.Context, newsID int64) error
	// RecordEnrichmentFailure bumps the attempt counter and stores the last
	// error text, leaving the record pending.
	RecordEnrichmentFailure(ctx context.Context, newsID int64, errText string) error
	// LogAttempt appends one enrichment audit record.
	LogAttempt(ctx context.Context, attempt domain.EnrichmentAttempt) error

	ActiveSources(ctx context.Context) ([]domain.Source, error)
	UpdateSourceStats(ctx context.Context, sourceID int64, found, created int, success bool) error

	DeleteNewsOlderThan(ctx context.Context, cutoff time.Time, statuses []domain.Status) (int64, error)
	DeleteAttemptsOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteSeenOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	CountByStatus(ctx context.Context) (map[domain.Status]int64, error)
}

// AttemptLogger is the slice of NewsStore the enrichment chain needs.
type AttemptLogger interface {
	LogAttempt(ctx context.Context, attempt domain.EnrichmentAttempt) error
}

// Publisher consumes enriched records. Delivery itself is an external
// collaborator; only the status contract matters to the core.
type Publisher interface {
	Publish(ctx context.Context, news domain.News) error
}

// Renderer returns fully rendered HTML for script-driven pages. External
// collaborator, acquired lazily by the page parser.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
	Close() error
}
