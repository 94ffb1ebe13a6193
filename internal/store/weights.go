package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetWeight loads the learned prior for one key. ok is false when no
// observation has been recorded for the key yet.
func (s *Store) GetWeight(ctx context.Context, category, timeSlot, durationBucket string) (*MemoryWeight, bool, error) {
	row := s.queryRowWithRetry(ctx, `
		SELECT category, time_slot, duration_bucket, weight, sample_count, updated_at
		FROM memory_weights WHERE category = ? AND time_slot = ? AND duration_bucket = ?`,
		category, timeSlot, durationBucket)
	weight, err := scanWeight(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return weight, true, nil
}

// UpsertWeight persists an updated prior for one key.
func (s *Store) UpsertWeight(ctx context.Context, weight *MemoryWeight) error {
	weight.UpdatedAt = time.Now().UTC()
	_, err := s.execWithRetry(ctx, `
		INSERT INTO memory_weights (category, time_slot, duration_bucket, weight, sample_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(category, time_slot, duration_bucket)
		DO UPDATE SET weight = excluded.weight, sample_count = excluded.sample_count, updated_at = excluded.updated_at`,
		weight.Category, weight.TimeSlot, weight.DurationBucket,
		weight.Weight, weight.SampleCount, formatTime(weight.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert weight %s/%s/%s: %w",
			weight.Category, weight.TimeSlot, weight.DurationBucket, err)
	}
	return nil
}

// ListWeights returns every learned prior ordered by key.
func (s *Store) ListWeights(ctx context.Context) ([]*MemoryWeight, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, time_slot, duration_bucket, weight, sample_count, updated_at
		FROM memory_weights ORDER BY category ASC, time_slot ASC, duration_bucket ASC`)
	if err != nil {
		return nil, fmt.Errorf("list weights: %w", err)
	}
	defer rows.Close()

	var weights []*MemoryWeight
	for rows.Next() {
		weight, err := scanWeight(rows)
		if err != nil {
			return nil, err
		}
		weights = append(weights, weight)
	}
	return weights, rows.Err()
}

func scanWeight(row rowScanner) (*MemoryWeight, error) {
	var (
		weight  MemoryWeight
		updated string
	)
	err := row.Scan(&weight.Category, &weight.TimeSlot, &weight.DurationBucket,
		&weight.Weight, &weight.SampleCount, &updated)
	if err != nil {
		return nil, err
	}
	if weight.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &weight, nil
}
