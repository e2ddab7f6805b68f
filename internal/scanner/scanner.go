package scanner

import (
	"context"
	"fmt"

	"NewsAutopilot/internal/domain"
	"NewsAutopilot/internal/ports"
)

// Request carries all parameters required to read one page of an origin.
type Request struct {
	SourceID string
	URL      string
	Limit    int
	Offset   int
	Newest   bool
}

// Scanner captures a single origin strategy (feed, website, ...).
type Scanner interface {
	Type() domain.SourceType
	Scan(ctx context.Context, req Request) ([]domain.Candidate, error)
}

// Registry keeps a mapping from source types to their implementations.
type Registry struct {
	scanners map[domain.SourceType]Scanner
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{scanners: map[domain.SourceType]Scanner{}}
}

// Register adds or replaces a scanner implementation.
func (r *Registry) Register(scanner Scanner) {
	if r.scanners == nil {
		r.scanners = map[domain.SourceType]Scanner{}
	}
	r.scanners[scanner.Type()] = scanner
}

// Resolve returns a scanner by source type or an error if it is absent.
func (r *Registry) Resolve(kind domain.SourceType) (Scanner, error) {
	if scanner, ok := r.scanners[kind]; ok {
		return scanner, nil
	}
	return nil, fmt.Errorf("scanner for %s sources is not registered", kind)
}

// NewRequest converts an origin fetch request into a scanner request.
func NewRequest(source domain.Source, req ports.FetchRequest) Request {
	return Request{
		SourceID: source.ID,
		URL:      source.URL,
		Limit:    req.Limit,
		Offset:   req.Offset,
		Newest:   req.Order != "asc",
	}
}
