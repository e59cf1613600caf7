package usecase

import (
	"context"
	"sync"
	"time"

	"NewsIngest/internal/domain"
	"NewsIngest/internal/ports"
)

// fakeStore is an in-memory NewsStore for usecase tests.
type fakeStore struct {
	mu sync.Mutex

	nextID   int64
	news     map[int64]*domain.News
	seen     map[string]bool
	attempts []domain.EnrichmentAttempt
	sources  []domain.Source

	seenErr     error
	titleErr    error
	createErr   error
	statsCalls  int
	lastStatsOK bool
}

var _ ports.NewsStore = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		news: map[int64]*domain.News{},
		seen: map[string]bool{},
	}
}

func (f *fakeStore) CreateNews(_ context.Context, news *domain.News) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	news.ID = f.nextID
	news.CreatedAt = time.Now().UTC()
	stored := *news
	f.news[news.ID] = &stored
	return nil
}

func (f *fakeStore) MarkSeenURL(_ context.Context, seen domain.SeenURL) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen[seen.URLHash] = true
	return nil
}

func (f *fakeStore) SeenURL(_ context.Context, urlHash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seenErr != nil {
		return false, f.seenErr
	}
	return f.seen[urlHash], nil
}

func (f *fakeStore) FindByTitle(_ context.Context, title string) (*domain.News, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.titleErr != nil {
		return nil, f.titleErr
	}
	var oldest *domain.News
	for _, n := range f.news {
		if n.Title != title {
			continue
		}
		if oldest == nil || n.CreatedAt.Before(oldest.CreatedAt) {
			copy := *n
			oldest = &copy
		}
	}
	return oldest, nil
}

func (f *fakeStore) UpdateEnrichment(_ context.Context, newsID int64, res domain.EnrichedResult, status domain.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n, ok := f.news[newsID]; ok {
		n.ProcessedTitle = res.Title
		n.ProcessedContent = res.Content
		n.Category = res.Category
		n.Emoji = res.Emoji
		n.Status = status
	}
	return nil
}

func (f *fakeStore) SetPublished(_ context.Context, newsID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n, ok := f.news[newsID]; ok {
		n.Status = domain.StatusPublished
	}
	return nil
}

func (f *fakeStore) RecordEnrichmentFailure(_ context.Context, newsID int64, errText string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n, ok := f.news[newsID]; ok {
		n.EnrichAttempts++
		n.LastEnrichErr = errText
	}
	return nil
}

func (f *fakeStore) LogAttempt(_ context.Context, attempt domain.EnrichmentAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, attempt)
	return nil
}

func (f *fakeStore) ActiveSources(_ context.Context) ([]domain.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Source(nil), f.sources...), nil
}

func (f *fakeStore) UpdateSourceStats(_ context.Context, _ int64, _, _ int, success bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statsCalls++
	f.lastStatsOK = success
	return nil
}

func (f *fakeStore) DeleteNewsOlderThan(_ context.Context, _ time.Time, _ []domain.Status) (int64, error) {
	return 0, nil
}

func (f *fakeStore) DeleteAttemptsOlderThan(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeStore) DeleteSeenOlderThan(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeStore) CountByStatus(_ context.Context) (map[domain.Status]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := map[domain.Status]int64{}
	for _, n := range f.news {
		counts[n.Status]++
	}
	return counts, nil
}

func (f *fakeStore) newsByStatus(status domain.Status) []domain.News {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.News
	for _, n := range f.news {
		if n.Status == status {
			out = append(out, *n)
		}
	}
	return out
}
