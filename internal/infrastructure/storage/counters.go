package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// Count returns the number of successful manual fetches of a source.
func (r *Repository) Count(ctx context.Context, sourceID string) (int, error) {
	row, err := r.db.queryRow(ctx, r.db.builder.Select("count").From("execution_counters").Where(sq.Eq{"source_id": sourceID}))
	if err != nil {
		return 0, err
	}
	var count int
	if err := row.Scan(&count); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("load counter %s: %w", sourceID, err)
	}
	return count, nil
}

// Increment adds one to the counter and returns the new value.
func (r *Repository) Increment(ctx context.Context, sourceID string) (int, error) {
	_, err := r.db.exec(ctx, r.db.builder.Insert("execution_counters").
		Columns("source_id", "count").
		Values(sourceID, 1).
		Suffix("ON CONFLICT (source_id) DO UPDATE SET count = execution_counters.count + 1"))
	if err != nil {
		return 0, fmt.Errorf("increment counter %s: %w", sourceID, err)
	}
	return r.Count(ctx, sourceID)
}

// Reset drops the counter, returning the source to offset 0.
func (r *Repository) Reset(ctx context.Context, sourceID string) error {
	if _, err := r.db.exec(ctx, r.db.builder.Delete("execution_counters").Where(sq.Eq{"source_id": sourceID})); err != nil {
		return fmt.Errorf("reset counter %s: %w", sourceID, err)
	}
	return nil
}
