package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"NewsIngest/internal/domain"
	"NewsIngest/internal/ports"
)

// PostgresStore persists news records, sources, seen URLs and enrichment
// attempts in Postgres.
type PostgresStore struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

var _ ports.NewsStore = (*PostgresStore)(nil)

// NewPostgresStore wires a sql.DB implementation.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// CreateNews inserts a record and fills its ID and CreatedAt.
func (s *PostgresStore) CreateNews(ctx context.Context, news *domain.News) error {
	query, args, err := s.sb.Insert("news").
		Columns("source_id", "title", "content", "url", "author",
			"image_url", "category", "tags", "status", "parsed_at").
		Values(news.SourceID, news.Title, news.Content, news.URL, news.Author,
			news.ImageURL, news.Category, pq.StringArray(news.Tags), news.Status, news.ParsedAt).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert news: %w", err)
	}

	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&news.ID, &news.CreatedAt); err != nil {
		return fmt.Errorf("insert news: %w", err)
	}
	return nil
}

// MarkSeenURL records a parsed origin URL. Re-inserting the same hash is a
// no-op so retries stay idempotent.
func (s *PostgresStore) MarkSeenURL(ctx context.Context, seen domain.SeenURL) error {
	query, args, err := s.sb.Insert("seen_urls").
		Columns("url", "url_hash", "news_id", "source_id").
		Values(seen.URL, seen.URLHash, seen.NewsID, seen.SourceID).
		Suffix("ON CONFLICT (url_hash) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert seen url: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert seen url: %w", err)
	}
	return nil
}

// SeenURL reports whether a URL hash has been ingested before.
func (s *PostgresStore) SeenURL(ctx context.Context, urlHash string) (bool, error) {
	query, args, err := s.sb.Select("1").
		From("seen_urls").
		Where(sq.Eq{"url_hash": urlHash}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build seen url lookup: %w", err)
	}

	var one int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("seen url lookup: %w", err)
	}
	return true, nil
}

// FindByTitle returns the oldest record with an exactly matching title, or
// nil when none exists.
func (s *PostgresStore) FindByTitle(ctx context.Context, title string) (*domain.News, error) {
	query, args, err := s.sb.Select("id", "source_id", "title", "content", "url", "status", "created_at").
		From("news").
		Where(sq.Eq{"title": title}).
		OrderBy("created_at ASC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build title lookup: %w", err)
	}

	var news domain.News
	err = s.db.QueryRowContext(ctx, query, args...).Scan(
		&news.ID, &news.SourceID, &news.Title, &news.Content, &news.URL, &news.Status, &news.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("title lookup: %w", err)
	}
	return &news, nil
}

// UpdateEnrichment stores the provider result and moves the record to the
// given status.
func (s *PostgresStore) UpdateEnrichment(ctx context.Context, newsID int64, res domain.EnrichedResult, status domain.Status) error {
	builder := s.sb.Update("news").
		Set("processed_title", res.Title).
		Set("processed_content", res.Content).
		Set("category", res.Category).
		Set("emoji", res.Emoji).
		Set("status", status).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": newsID})
	if status == domain.StatusPublished {
		builder = builder.Set("published_at", sq.Expr("NOW()"))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build update enrichment: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update enrichment: %w", err)
	}
	return nil
}

// SetPublished moves a record to published and stamps the publication time.
func (s *PostgresStore) SetPublished(ctx context.Context, newsID int64) error {
	query, args, err := s.sb.Update("news").
		Set("status", domain.StatusPublished).
		Set("published_at", sq.Expr("NOW()")).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": newsID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build set published: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("set published: %w", err)
	}
	return nil
}

// RecordEnrichmentFailure bumps the attempt counter and stores the last
// error text; the record stays pending for a later retry.
func (s *PostgresStore) RecordEnrichmentFailure(ctx context.Context, newsID int64, errText string) error {
	query, args, err := s.sb.Update("news").
		Set("enrich_attempts", sq.Expr("enrich_attempts + 1")).
		Set("last_enrich_error", errText).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": newsID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build record failure: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("record enrichment failure: %w", err)
	}
	return nil
}

// LogAttempt appends one enrichment audit record.
func (s *PostgresStore) LogAttempt(ctx context.Context, attempt domain.EnrichmentAttempt) error {
	query, args, err := s.sb.Insert("enrichment_attempts").
		Columns("news_id", "provider", "success", "error", "elapsed_ms", "tokens").
		Values(attempt.NewsID, attempt.Provider, attempt.Success, attempt.Error,
			attempt.Elapsed.Milliseconds(), attempt.Tokens).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert attempt: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

// UpsertSource creates or refreshes a configured source keyed by URL. Used
// at startup to sync the config file into the sources table.
func (s *PostgresStore) UpsertSource(ctx context.Context, src domain.Source) error {
	selectors, err := json.Marshal(src.Selectors)
	if err != nil {
		return fmt.Errorf("encode selectors: %w", err)
	}

	query, args, err := s.sb.Insert("news_sources").
		Columns("name", "url", "type", "enabled", "category", "selectors",
			"use_enrichment", "auto_publish").
		Values(src.Name, src.URL, src.Type, src.Enabled, src.Category, selectors,
			src.UseEnrichment, src.AutoPublish).
		Suffix(`ON CONFLICT (url) DO UPDATE
			SET name = EXCLUDED.name,
			    type = EXCLUDED.type,
			    enabled = EXCLUDED.enabled,
			    category = EXCLUDED.category,
			    selectors = EXCLUDED.selectors,
			    use_enrichment = EXCLUDED.use_enrichment,
			    auto_publish = EXCLUDED.auto_publish`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert source: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert source: %w", err)
	}
	return nil
}

// ActiveSources returns every enabled source ordered by ID.
func (s *PostgresStore) ActiveSources(ctx context.Context) ([]domain.Source, error) {
	query, args, err := s.sb.Select("id", "name", "url", "type", "category", "selectors",
		"use_enrichment", "auto_publish", "last_parsed_at",
		"total_found", "success_count", "error_count").
		From("news_sources").
		Where(sq.Eq{"enabled": true}).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build active sources: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query active sources: %w", err)
	}
	defer rows.Close()

	var sources []domain.Source
	for rows.Next() {
		src := domain.Source{Enabled: true}
		var (
			lastParsed sql.NullTime
			selectors  []byte
		)
		if err := rows.Scan(&src.ID, &src.Name, &src.URL, &src.Type, &src.Category, &selectors,
			&src.UseEnrichment, &src.AutoPublish, &lastParsed,
			&src.TotalFound, &src.SuccessCount, &src.ErrorCount); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		if len(selectors) > 0 {
			if err := json.Unmarshal(selectors, &src.Selectors); err != nil {
				return nil, fmt.Errorf("decode selectors for source %d: %w", src.ID, err)
			}
		}
		if lastParsed.Valid {
			t := lastParsed.Time
			src.LastParsedAt = &t
		}
		sources = append(sources, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return sources, nil
}

// UpdateSourceStats bumps the per-source counters after one parse cycle.
func (s *PostgresStore) UpdateSourceStats(ctx context.Context, sourceID int64, found, created int, success bool) error {
	builder := s.sb.Update("news_sources").
		Set("last_parsed_at", sq.Expr("NOW()")).
		Set("total_found", sq.Expr("total_found + ?", found)).
		Where(sq.Eq{"id": sourceID})
	if success {
		builder = builder.Set("success_count", sq.Expr("success_count + 1"))
	} else {
		builder = builder.Set("error_count", sq.Expr("error_count + 1"))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build update source stats: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update source stats: %w", err)
	}
	return nil
}

// DeleteNewsOlderThan removes records in the given statuses created before
// the cutoff and returns the number deleted.
func (s *PostgresStore) DeleteNewsOlderThan(ctx context.Context, cutoff time.Time, statuses []domain.Status) (int64, error) {
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}

	query := `DELETE FROM news WHERE created_at < $1 AND status = ANY($2)`
	res, err := s.db.ExecContext(ctx, query, cutoff, pq.StringArray(names))
	if err != nil {
		return 0, fmt.Errorf("delete old news: %w", err)
	}
	return res.RowsAffected()
}

// DeleteAttemptsOlderThan removes enrichment audit rows created before the
// cutoff.
func (s *PostgresStore) DeleteAttemptsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query, args, err := s.sb.Delete("enrichment_attempts").
		Where(sq.Lt{"created_at": cutoff}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete attempts: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete old attempts: %w", err)
	}
	return res.RowsAffected()
}

// DeleteSeenOlderThan removes seen-URL rows created before the cutoff.
func (s *PostgresStore) DeleteSeenOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query, args, err := s.sb.Delete("seen_urls").
		Where(sq.Lt{"created_at": cutoff}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete seen urls: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete old seen urls: %w", err)
	}
	return res.RowsAffected()
}

// CountByStatus returns the number of news records per status.
func (s *PostgresStore) CountByStatus(ctx context.Context) (map[domain.Status]int64, error) {
	query, _, err := s.sb.Select("status", "COUNT(*)").
		From("news").
		GroupBy("status").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build count by status: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query count by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.Status]int64)
	for rows.Next() {
		var status domain.Status
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return counts, nil
}
