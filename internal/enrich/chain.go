package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"NewsIngest/internal/domain"
	"NewsIngest/internal/ports"
)

// Limits caps enrichment output sizes; overlong fields are truncated with
// an ellipsis, unlike the parse-side hard rejection.
type Limits struct {
	MaxTitleLen   int
	MaxContentLen int
}

// Chain tries providers in a fixed priority order until one returns a
// schema-valid result. No provider is retried within the same call.
type Chain struct {
	providers []Provider
	attempts  ports.AttemptLogger
	limits    Limits
	logger    *slog.Logger
}

// NewChain keeps the given provider order as the fallback priority.
func NewChain(providers []Provider, attempts ports.AttemptLogger, limits Limits, logger *slog.Logger) *Chain {
	if limits.MaxTitleLen <= 0 {
		limits.MaxTitleLen = 100
	}
	if limits.MaxContentLen <= 0 {
		limits.MaxContentLen = 1000
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{
		providers: providers,
		attempts:  attempts,
		limits:    limits,
		logger:    logger,
	}
}

// Process runs the fallback chain for one record. It returns the first
// schema-valid result and the winning provider name, or ErrExhausted.
// One attempt log entry is written per provider tried.
func (c *Chain) Process(ctx context.Context, news domain.News) (domain.EnrichedResult, string, error) {
	sourceName := fmt.Sprintf("source-%d", news.SourceID)

	for _, p := range c.providers {
		if !p.Available() {
			continue
		}

		start := time.Now()
		result, err := p.Process(ctx, news.Title, news.Content, sourceName)
		elapsed := time.Since(start)

		if err == nil {
			if vErr := c.validate(&result); vErr != nil {
				err = vErr
			}
		}

		c.logAttempt(ctx, news.ID, p.Name(), err, elapsed, result.Tokens)

		if err != nil {
			c.logger.Warn("provider failed, falling back",
				"provider", p.Name(), "news_id", news.ID, "error", err)
			continue
		}

		result.Provider = p.Name()
		result.Elapsed = elapsed
		return result, p.Name(), nil
	}

	return domain.EnrichedResult{}, "", ErrExhausted
}

// validate enforces the result schema: non-empty title/content/category,
// known category (unknown coerced to the default), length caps.
func (c *Chain) validate(res *domain.EnrichedResult) error {
	if strings.TrimSpace(res.Title) == "" {
		return fmt.Errorf("empty title in provider result")
	}
	if strings.TrimSpace(res.Content) == "" {
		return fmt.Errorf("empty content in provider result")
	}
	if strings.TrimSpace(res.Category) == "" {
		return fmt.Errorf("empty category in provider result")
	}

	if _, ok := domain.Categories[res.Category]; !ok {
		res.Category = domain.DefaultCategory
	}
	if res.Emoji == "" {
		res.Emoji = domain.Categories[res.Category]
	}

	res.Title = truncate(res.Title, c.limits.MaxTitleLen)
	res.Content = truncate(res.Content, c.limits.MaxContentLen)
	return nil
}

func (c *Chain) logAttempt(ctx context.Context, newsID int64, provider string, attemptErr error, elapsed time.Duration, tokens int) {
	if c.attempts == nil {
		return
	}

	attempt := domain.EnrichmentAttempt{
		NewsID:   newsID,
		Provider: provider,
		Success:  attemptErr == nil,
		Elapsed:  elapsed,
		Tokens:   tokens,
	}
	if attemptErr != nil {
		attempt.Error = attemptErr.Error()
	}

	if err := c.attempts.LogAttempt(ctx, attempt); err != nil {
		c.logger.Error("log enrichment attempt", "provider", provider, "news_id", newsID, "error", err)
	}
}

// Status reports availability for every provider in priority order.
func (c *Chain) Status() map[string]bool {
	status := make(map[string]bool, len(c.providers))
	for _, p := range c.providers {
		status[p.Name()] = p.Available()
	}
	return status
}

// Test runs a one-shot check against a single provider by name.
func (c *Chain) Test(ctx context.Context, name string) error {
	for _, p := range c.providers {
		if p.Name() != name {
			continue
		}
		if !p.Available() {
			return fmt.Errorf("provider %s: %w", name, ErrUnavailable)
		}

		result, err := p.Process(ctx, "Connectivity check headline", "Short connectivity check body used to confirm the provider responds.", "selftest")
		if err != nil {
			return fmt.Errorf("provider %s: %w", name, err)
		}
		return c.validate(&result)
	}
	return fmt.Errorf("provider %s is not registered", name)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
