package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"biru/internal/services"
)

const clipColumns = `id, asset_id, start_seconds, end_seconds, score, category,
	format_tag, status, caption, thumbnail_path, media_path, error_message,
	attempts, correlation_id, created_at, updated_at, last_heartbeat`

// CreateClips replaces the asset's clip selection in one transaction. Any
// clips from a previous pass are discarded first, so a reclaimed asset that
// reruns analysis ends up with exactly one selection. Each clip starts
// PENDING.
func (s *Store) CreateClips(ctx context.Context, assetID int64, clips []*Clip) error {
	if len(clips) == 0 {
		return services.Wrap(services.ErrValidation, "store", "create clips", "empty clip list", nil)
	}
	now := time.Now().UTC()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM clips WHERE asset_id = ?`, assetID); err != nil {
			return fmt.Errorf("discard previous clips for asset %d: %w", assetID, err)
		}
		for _, clip := range clips {
			clip.AssetID = assetID
			clip.Status = StatusPending
			if clip.CorrelationID == "" {
				clip.CorrelationID = uuid.NewString()
			}
			clip.CreatedAt = now
			clip.UpdatedAt = now
			result, err := tx.ExecContext(ctx, `
				INSERT INTO clips (asset_id, start_seconds, end_seconds, score, category,
					format_tag, status, caption, correlation_id, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				clip.AssetID, clip.StartSeconds, clip.EndSeconds, clip.Score, clip.Category,
				clip.FormatTag, string(clip.Status), clip.Caption, clip.CorrelationID,
				formatTime(now), formatTime(now))
			if err != nil {
				return fmt.Errorf("insert clip for asset %d: %w", assetID, err)
			}
			if clip.ID, err = result.LastInsertId(); err != nil {
				return fmt.Errorf("read clip id: %w", err)
			}
		}
		return nil
	})
}

// GetClip loads one clip by id.
func (s *Store) GetClip(ctx context.Context, id int64) (*Clip, error) {
	row := s.queryRowWithRetry(ctx, `SELECT `+clipColumns+` FROM clips WHERE id = ?`, id)
	clip, err := scanClip(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("store", "get clip", fmt.Sprintf("clip %d", id))
	}
	return clip, err
}

// UpdateClip persists the mutable fields of a clip. Status is owned by the
// transition operations and is never written here.
func (s *Store) UpdateClip(ctx context.Context, clip *Clip) error {
	clip.UpdatedAt = time.Now().UTC()
	var heartbeat any
	if clip.LastHeartbeat != nil {
		heartbeat = formatTime(*clip.LastHeartbeat)
	}
	_, err := s.execWithRetry(ctx, `
		UPDATE clips SET score = ?, category = ?, format_tag = ?,
			caption = ?, thumbnail_path = ?, media_path = ?, error_message = ?,
			attempts = ?, correlation_id = ?, updated_at = ?, last_heartbeat = ?
		WHERE id = ?`,
		clip.Score, clip.Category, clip.FormatTag,
		clip.Caption, clip.ThumbnailPath, clip.MediaPath, clip.ErrorMessage,
		clip.Attempts, clip.CorrelationID, formatTime(clip.UpdatedAt), heartbeat, clip.ID)
	if err != nil {
		return fmt.Errorf("update clip %d: %w", clip.ID, err)
	}
	return nil
}

// ClipsByAsset returns every clip for an asset ordered by start time.
func (s *Store) ClipsByAsset(ctx context.Context, assetID int64) ([]*Clip, error) {
	return s.queryClips(ctx, `
		SELECT `+clipColumns+` FROM clips WHERE asset_id = ?
		ORDER BY start_seconds ASC, id ASC`, assetID)
}

// TopClipsByAsset returns an asset's clips ordered by score descending,
// limited to n. A zero or negative n returns all of them.
func (s *Store) TopClipsByAsset(ctx context.Context, assetID int64, n int) ([]*Clip, error) {
	query := `SELECT ` + clipColumns + ` FROM clips WHERE asset_id = ?
		ORDER BY score DESC, created_at ASC, id ASC`
	args := []any{assetID}
	if n > 0 {
		query += ` LIMIT ?`
		args = append(args, n)
	}
	return s.queryClips(ctx, query, args...)
}

// TopClips returns READY clips ordered by score descending, creation
// ascending on ties. A zero or negative limit returns all of them.
func (s *Store) TopClips(ctx context.Context, limit int) ([]*Clip, error) {
	query := `SELECT ` + clipColumns + ` FROM clips WHERE status = ?
		ORDER BY score DESC, created_at ASC, id ASC`
	args := []any{string(StatusReady)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.queryClips(ctx, query, args...)
}

// ListClips returns clips matching any of the given statuses, oldest first.
func (s *Store) ListClips(ctx context.Context, statuses ...Status) ([]*Clip, error) {
	query := `SELECT ` + clipColumns + ` FROM clips`
	var args []any
	if len(statuses) > 0 {
		marks, statusArgs := statusPlaceholders(statuses)
		query += ` WHERE status IN (` + marks + `)`
		args = statusArgs
	}
	query += ` ORDER BY created_at ASC, id ASC`
	return s.queryClips(ctx, query, args...)
}

// NextClip returns the oldest clip in any of the given statuses, or nil.
func (s *Store) NextClip(ctx context.Context, statuses ...Status) (*Clip, error) {
	if len(statuses) == 0 {
		return nil, services.Wrap(services.ErrValidation, "store", "next clip", "no statuses given", nil)
	}
	marks, args := statusPlaceholders(statuses)
	row := s.queryRowWithRetry(ctx, `
		SELECT `+clipColumns+` FROM clips WHERE status IN (`+marks+`)
		ORDER BY created_at ASC, id ASC LIMIT 1`, args...)
	clip, err := scanClip(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return clip, err
}

// UnscheduledClips returns READY clips without a live post, highest score
// first. Clips whose only posts FAILED are considered unscheduled again.
func (s *Store) UnscheduledClips(ctx context.Context) ([]*Clip, error) {
	return s.queryClips(ctx, `
		SELECT `+clipColumns+` FROM clips c
		WHERE c.status = ?
		  AND NOT EXISTS (
			SELECT 1 FROM posts p
			WHERE p.clip_id = c.id AND p.status IN (?, ?)
		  )
		ORDER BY c.score DESC, c.created_at ASC, c.id ASC`,
		string(StatusReady), string(StatusScheduled), string(StatusPosted))
}

// RetryFailedClips returns FAILED clips to PENDING.
func (s *Store) RetryFailedClips(ctx context.Context, ids ...int64) (int, error) {
	query := `UPDATE clips SET status = ?, error_message = '', last_heartbeat = NULL, updated_at = ?
		WHERE status = ?`
	args := []any{string(StatusPending), formatTime(time.Now().UTC()), string(StatusFailed)}
	if len(ids) > 0 {
		marks := ""
		for i, id := range ids {
			if i > 0 {
				marks += ", "
			}
			marks += "?"
			args = append(args, id)
		}
		query += ` AND id IN (` + marks + `)`
	}
	result, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry failed clips: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (s *Store) queryClips(ctx context.Context, query string, args ...any) ([]*Clip, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query clips: %w", err)
	}
	defer rows.Close()

	var clips []*Clip
	for rows.Next() {
		clip, err := scanClip(rows)
		if err != nil {
			return nil, err
		}
		clips = append(clips, clip)
	}
	return clips, rows.Err()
}

func scanClip(row rowScanner) (*Clip, error) {
	var (
		clip      Clip
		status    string
		createdAt string
		updatedAt string
		heartbeat sql.NullString
	)
	err := row.Scan(&clip.ID, &clip.AssetID, &clip.StartSeconds, &clip.EndSeconds,
		&clip.Score, &clip.Category, &clip.FormatTag, &status, &clip.Caption,
		&clip.ThumbnailPath, &clip.MediaPath, &clip.ErrorMessage, &clip.Attempts,
		&clip.CorrelationID, &createdAt, &updatedAt, &heartbeat)
	if err != nil {
		return nil, err
	}
	clip.Status = Status(status)
	if clip.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if clip.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if clip.LastHeartbeat, err = parseNullableTime(heartbeat); err != nil {
		return nil, err
	}
	return &clip, nil
}
