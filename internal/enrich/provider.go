package enrich

import (
	"context"
	"errors"

	"NewsIngest/internal/domain"
)

// Provider normalizes one external rewrite-and-classify service. Process
// must return a raw result; schema validation happens in the chain.
type Provider interface {
	Name() string
	Available() bool
	Process(ctx context.Context, title, content, source string) (domain.EnrichedResult, error)
}

// ErrExhausted is returned when every provider in the chain failed. The
// record stays pending and is retried on a later cycle.
var ErrExhausted = errors.New("all enrichment providers failed")

// ErrUnavailable is returned by providers whose client is not configured.
var ErrUnavailable = errors.New("provider unavailable")
