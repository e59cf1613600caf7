package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"NewsIngest/internal/domain"
	"NewsIngest/internal/ports"
)

// dedupWindow bounds how long the in-process hash set is kept before being
// cleared. Duplicates older than the window are still caught by the durable
// lookups, which remain the source of truth.
const dedupWindow = time.Hour

// DuplicateChecker decides whether a candidate item has been ingested
// before. It is shared across parse workers and safe for concurrent use.
type DuplicateChecker struct {
	store  ports.NewsStore
	logger *slog.Logger

	mu          sync.Mutex
	recent      map[string]struct{}
	lastCleanup time.Time
}

// NewDuplicateChecker wires the durable store behind the in-process cache.
func NewDuplicateChecker(store ports.NewsStore, logger *slog.Logger) *DuplicateChecker {
	if logger == nil {
		logger = slog.Default()
	}
	return &DuplicateChecker{
		store:       store,
		logger:      logger,
		recent:      map[string]struct{}{},
		lastCleanup: time.Now().UTC(),
	}
}

// Duplicate reports whether the item repeats an earlier ingestion. Check
// order: in-process hash set, seen-URL store, exact title plus matching
// first-100-char snippet. A fresh item's hash is added to the set.
func (d *DuplicateChecker) Duplicate(ctx context.Context, item domain.Item) (bool, error) {
	hash := item.Hash()

	d.mu.Lock()
	_, cached := d.recent[hash]
	d.mu.Unlock()
	if cached {
		return true, nil
	}

	if item.URL != "" {
		seen, err := d.store.SeenURL(ctx, domain.URLHash(item.URL))
		if err != nil {
			return false, fmt.Errorf("seen-url lookup: %w", err)
		}
		if seen {
			return true, nil
		}
	}

	existing, err := d.store.FindByTitle(ctx, item.Title)
	if err != nil {
		return false, fmt.Errorf("title lookup: %w", err)
	}
	if existing != nil {
		// Title matches alone are not conclusive; the first 100 content
		// characters must match too.
		existingSnippet := existing.Content
		if len(existingSnippet) > 100 {
			existingSnippet = existingSnippet[:100]
		}
		if item.Snippet(100) == existingSnippet {
			return true, nil
		}
	}

	d.mu.Lock()
	d.recent[hash] = struct{}{}
	if time.Since(d.lastCleanup) > dedupWindow {
		d.recent = map[string]struct{}{}
		d.lastCleanup = time.Now().UTC()
		d.logger.Debug("duplicate cache cleared")
	}
	d.mu.Unlock()

	return false, nil
}
