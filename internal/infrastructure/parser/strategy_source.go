package parser

import (
	"context"
	"fmt"
	"log/slog"

	"NewsAutopilot/internal/domain"
	"NewsAutopilot/internal/ports"
	"NewsAutopilot/internal/scanner"
)

// StrategySource implements ports.Origin via registered scanner strategies.
type StrategySource struct {
	registry *scanner.Registry
	logger   *slog.Logger
}

var _ ports.Origin = (*StrategySource)(nil)

// NewStrategySource wires the scanner registry.
func NewStrategySource(reg *scanner.Registry, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		logger:   log,
	}
}

// Fetch resolves the scanner for the source type and reads one page.
func (s *StrategySource) Fetch(ctx context.Context, source domain.Source, req ports.FetchRequest) ([]domain.Candidate, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}

	strategy, err := s.registry.Resolve(source.Type)
	if err != nil {
		return nil, domain.NewError(domain.KindValidation, "source "+source.ID, err)
	}

	s.debug("scan source", "source_id", source.ID, "type", source.Type, "limit", req.Limit, "offset", req.Offset)
	results, err := strategy.Scan(ctx, scanner.NewRequest(source, req))
	if err != nil {
		return nil, fmt.Errorf("scan source %s: %w", source.ID, err)
	}

	s.debug("source produced candidates", "source_id", source.ID, "count", len(results))
	return results, nil
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
