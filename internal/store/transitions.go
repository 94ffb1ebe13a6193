package store

import (
	"context"
	"fmt"
	"time"

	"biru/internal/services"
)

// TransitionAsset moves an asset from one status to another under the
// transition table. The update is guarded on the expected current status,
// so a concurrent transition loses cleanly instead of clobbering.
func (s *Store) TransitionAsset(ctx context.Context, id int64, from, to Status) error {
	return s.transition(ctx, EntityAsset, "assets", id, from, to)
}

// TransitionClip moves a clip between statuses under the transition table.
func (s *Store) TransitionClip(ctx context.Context, id int64, from, to Status) error {
	return s.transition(ctx, EntityClip, "clips", id, from, to)
}

// TransitionPost moves a post between statuses under the transition table.
func (s *Store) TransitionPost(ctx context.Context, id int64, from, to Status) error {
	return s.transition(ctx, EntityPost, "posts", id, from, to)
}

func (s *Store) transition(ctx context.Context, entity EntityType, table string, id int64, from, to Status) error {
	if !ValidTransition(entity, from, to) {
		return services.Wrap(services.ErrInvalidTransition, "store", "transition",
			fmt.Sprintf("%s %d: %s -> %s", entity, id, from, to), nil)
	}
	result, err := s.execWithRetry(ctx,
		`UPDATE `+table+` SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), formatTime(time.Now().UTC()), id, string(from))
	if err != nil {
		return fmt.Errorf("transition %s %d: %w", entity, id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 1 {
		return nil
	}

	// Nothing updated: the row is missing or in another state. Distinguish
	// for the caller.
	var current string
	row := s.queryRowWithRetry(ctx, `SELECT status FROM `+table+` WHERE id = ?`, id)
	if scanErr := row.Scan(&current); scanErr != nil {
		return notFound("store", "transition", fmt.Sprintf("%s %d", entity, id))
	}
	return services.Wrap(services.ErrInvalidTransition, "store", "transition",
		fmt.Sprintf("%s %d: expected %s, found %s", entity, id, from, current), nil)
}

// TouchAssetHeartbeat refreshes the liveness stamp for an in-flight asset.
func (s *Store) TouchAssetHeartbeat(ctx context.Context, id int64) error {
	return s.touchHeartbeat(ctx, "assets", id)
}

// TouchClipHeartbeat refreshes the liveness stamp for an in-flight clip.
func (s *Store) TouchClipHeartbeat(ctx context.Context, id int64) error {
	return s.touchHeartbeat(ctx, "clips", id)
}

func (s *Store) touchHeartbeat(ctx context.Context, table string, id int64) error {
	_, err := s.execWithRetry(ctx,
		`UPDATE `+table+` SET last_heartbeat = ? WHERE id = ? AND status = ?`,
		formatTime(time.Now().UTC()), id, string(StatusProcessing))
	if err != nil {
		return fmt.Errorf("touch heartbeat %s %d: %w", table, id, err)
	}
	return nil
}

// RequeueAsset is an explicit retry operation: it returns a PROCESSING
// asset to PENDING, keeping the attempt counter so the retry cap holds.
func (s *Store) RequeueAsset(ctx context.Context, id int64, message string) error {
	return s.requeue(ctx, "assets", id, message)
}

// RequeueClip returns a PROCESSING clip to PENDING for another attempt.
func (s *Store) RequeueClip(ctx context.Context, id int64, message string) error {
	return s.requeue(ctx, "clips", id, message)
}

func (s *Store) requeue(ctx context.Context, table string, id int64, message string) error {
	result, err := s.execWithRetry(ctx, `
		UPDATE `+table+` SET status = ?, error_message = ?, last_heartbeat = NULL, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(StatusPending), message, formatTime(time.Now().UTC()), id, string(StatusProcessing))
	if err != nil {
		return fmt.Errorf("requeue %s %d: %w", table, id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return services.Wrap(services.ErrInvalidTransition, "store", "requeue",
			fmt.Sprintf("%s %d not in PROCESSING", table, id), nil)
	}
	return nil
}

// ReclaimStale returns PROCESSING assets and clips whose heartbeat is older
// than cutoff to PENDING so the workflow can pick them up again. Returns the
// number of entities reclaimed.
func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time) (int, error) {
	total := 0
	for _, table := range []string{"assets", "clips"} {
		result, err := s.execWithRetry(ctx, `
			UPDATE `+table+` SET status = ?, last_heartbeat = NULL,
				error_message = 'reclaimed after stale heartbeat', updated_at = ?
			WHERE status = ? AND (last_heartbeat IS NULL OR last_heartbeat < ?)`,
			string(StatusPending), formatTime(time.Now().UTC()),
			string(StatusProcessing), formatTime(cutoff))
		if err != nil {
			return total, fmt.Errorf("reclaim stale %s: %w", table, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return total, err
		}
		total += int(affected)
	}
	return total, nil
}

// Health aggregates entity counts per status for status reporting.
func (s *Store) Health(ctx context.Context) (*HealthSummary, error) {
	summary := &HealthSummary{
		Assets: make(map[Status]int),
		Clips:  make(map[Status]int),
		Posts:  make(map[Status]int),
	}
	for table, target := range map[string]map[Status]int{
		"assets": summary.Assets,
		"clips":  summary.Clips,
		"posts":  summary.Posts,
	} {
		rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM `+table+` GROUP BY status`)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		for rows.Next() {
			var (
				status string
				count  int
			)
			if err := rows.Scan(&status, &count); err != nil {
				rows.Close()
				return nil, err
			}
			target[Status(status)] = count
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	row := s.queryRowWithRetry(ctx, `SELECT COUNT(*) FROM metrics`)
	if err := row.Scan(&summary.Metrics); err != nil {
		return nil, fmt.Errorf("count metrics: %w", err)
	}
	return summary, nil
}
