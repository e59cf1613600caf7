package parser

import (
	"context"
	"fmt"

	"NewsIngest/internal/domain"
)

// Parser turns one source's raw payload into candidate items. Implementations
// must be reusable across calls and release held resources in Close.
type Parser interface {
	Type() domain.SourceType
	Parse(ctx context.Context, src domain.Source) ([]domain.Item, error)
	Close() error
}

// Registry keeps a mapping from source type tags to their parser
// implementations.
type Registry struct {
	parsers map[domain.SourceType]Parser
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{parsers: map[domain.SourceType]Parser{}}
}

// Register adds or replaces a parser implementation.
func (r *Registry) Register(p Parser) {
	if r.parsers == nil {
		r.parsers = map[domain.SourceType]Parser{}
	}
	r.parsers[p.Type()] = p
}

// Resolve returns a parser by source type or an error if it is absent.
func (r *Registry) Resolve(t domain.SourceType) (Parser, error) {
	if p, ok := r.parsers[t]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("parser for source type %q is not registered", t)
}

// Close releases every registered parser.
func (r *Registry) Close() error {
	var firstErr error
	for _, p := range r.parsers {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
