package usecase

import (
	"context"
	"fmt"

	"NewsAutopilot/internal/ports"
)

// DefaultBatchSize is the number of items a manual "fetch more" requests.
const DefaultBatchSize = 10

// ExecutionCounter tracks manual fetch invocations per source and turns
// them into pagination offsets.
type ExecutionCounter struct {
	store     ports.CounterStore
	batchSize int
}

// NewExecutionCounter wraps a counter store; batchSize <= 0 falls back to
// DefaultBatchSize.
func NewExecutionCounter(store ports.CounterStore, batchSize int) *ExecutionCounter {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &ExecutionCounter{store: store, batchSize: batchSize}
}

// BatchSize returns the page size used to compute offsets.
func (c *ExecutionCounter) BatchSize() int {
	return c.batchSize
}

// NextOffset returns count × batchSize for the source.
func (c *ExecutionCounter) NextOffset(ctx context.Context, sourceID string) (int, error) {
	count, err := c.store.Count(ctx, sourceID)
	if err != nil {
		return 0, fmt.Errorf("load execution count %s: %w", sourceID, err)
	}
	return count * c.batchSize, nil
}

// RecordExecution advances the counter. Call it only after a successful run.
func (c *ExecutionCounter) RecordExecution(ctx context.Context, sourceID string) error {
	if _, err := c.store.Increment(ctx, sourceID); err != nil {
		return fmt.Errorf("record execution %s: %w", sourceID, err)
	}
	return nil
}

// Reset returns the source to offset 0.
func (c *ExecutionCounter) Reset(ctx context.Context, sourceID string) error {
	if err := c.store.Reset(ctx, sourceID); err != nil {
		return fmt.Errorf("reset execution count %s: %w", sourceID, err)
	}
	return nil
}
