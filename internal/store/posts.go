package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"biru/internal/services"
)

const postColumns = `id, clip_id, platform, slot_key, scheduled_at, posted_at,
	status, error_message, created_at, updated_at`

// SchedulePost books a slot for a clip and records the strategy decision that
// chose it, atomically. Slot uniqueness per platform is enforced by the
// database; a conflict surfaces as ErrNoAvailableSlot so the caller replans.
func (s *Store) SchedulePost(ctx context.Context, post *Post, decision *StrategyDecision) error {
	if post == nil || decision == nil {
		return services.Wrap(services.ErrValidation, "store", "schedule post", "post and decision required", nil)
	}
	now := time.Now().UTC()
	post.Status = StatusScheduled
	post.CreatedAt = now
	post.UpdatedAt = now
	decision.CreatedAt = now

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO posts (clip_id, platform, slot_key, scheduled_at, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			post.ClipID, post.Platform, post.SlotKey, formatTime(post.ScheduledAt),
			string(post.Status), formatTime(now), formatTime(now))
		if err != nil {
			return err
		}
		if post.ID, err = result.LastInsertId(); err != nil {
			return err
		}
		decision.PostID = post.ID
		result, err = tx.ExecContext(ctx, `
			INSERT INTO strategy_decisions (post_id, inputs_json, platform, chosen_slot, rationale, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			decision.PostID, decision.InputsJSON, decision.Platform, decision.ChosenSlot,
			decision.Rationale, formatTime(now))
		if err != nil {
			return err
		}
		decision.ID, err = result.LastInsertId()
		return err
	})
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return services.Wrap(services.ErrNoAvailableSlot, "store", "schedule post",
				fmt.Sprintf("slot %s on %s already booked", post.SlotKey, post.Platform), err)
		}
		return fmt.Errorf("schedule post for clip %d: %w", post.ClipID, err)
	}
	return nil
}

// GetPost loads one post by id.
func (s *Store) GetPost(ctx context.Context, id int64) (*Post, error) {
	row := s.queryRowWithRetry(ctx, `SELECT `+postColumns+` FROM posts WHERE id = ?`, id)
	post, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("store", "get post", fmt.Sprintf("post %d", id))
	}
	return post, err
}

// ListPosts returns posts matching any of the given statuses ordered by
// scheduled time.
func (s *Store) ListPosts(ctx context.Context, statuses ...Status) ([]*Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts`
	var args []any
	if len(statuses) > 0 {
		marks, statusArgs := statusPlaceholders(statuses)
		query += ` WHERE status IN (` + marks + `)`
		args = statusArgs
	}
	query += ` ORDER BY scheduled_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	var posts []*Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

// PostsByClip returns every post for a clip ordered by scheduled time.
func (s *Store) PostsByClip(ctx context.Context, clipID int64) ([]*Post, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+postColumns+` FROM posts WHERE clip_id = ?
		ORDER BY scheduled_at ASC, id ASC`, clipID)
	if err != nil {
		return nil, fmt.Errorf("list posts for clip %d: %w", clipID, err)
	}
	defer rows.Close()

	var posts []*Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

// BookedSlots returns the slot keys already taken per platform by live posts.
func (s *Store) BookedSlots(ctx context.Context) (map[string]map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT platform, slot_key FROM posts WHERE status IN (?, ?)`,
		string(StatusScheduled), string(StatusPosted))
	if err != nil {
		return nil, fmt.Errorf("list booked slots: %w", err)
	}
	defer rows.Close()

	booked := make(map[string]map[string]struct{})
	for rows.Next() {
		var platform, slot string
		if err := rows.Scan(&platform, &slot); err != nil {
			return nil, err
		}
		if booked[platform] == nil {
			booked[platform] = make(map[string]struct{})
		}
		booked[platform][slot] = struct{}{}
	}
	return booked, rows.Err()
}

// DuePosts returns SCHEDULED posts whose slot time has passed.
func (s *Store) DuePosts(ctx context.Context, now time.Time) ([]*Post, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+postColumns+` FROM posts WHERE status = ? AND scheduled_at <= ?
		ORDER BY scheduled_at ASC, id ASC`,
		string(StatusScheduled), formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("list due posts: %w", err)
	}
	defer rows.Close()

	var posts []*Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

// MarkPosted transitions a post to POSTED and stamps the completion time.
func (s *Store) MarkPosted(ctx context.Context, id int64, postedAt time.Time) error {
	if err := s.TransitionPost(ctx, id, StatusScheduled, StatusPosted); err != nil {
		return err
	}
	_, err := s.execWithRetry(ctx, `UPDATE posts SET posted_at = ?, updated_at = ? WHERE id = ?`,
		formatTime(postedAt), formatTime(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("stamp post %d: %w", id, err)
	}
	return nil
}

// FailPost transitions a post to FAILED with an error message, freeing its
// slot key for replanning.
func (s *Store) FailPost(ctx context.Context, id int64, message string) error {
	if err := s.TransitionPost(ctx, id, StatusScheduled, StatusFailed); err != nil {
		return err
	}
	// Failed posts keep their history but release the slot by rewriting the
	// key out of the unique keyspace.
	_, err := s.execWithRetry(ctx, `
		UPDATE posts SET error_message = ?, slot_key = slot_key || ':failed:' || id, updated_at = ?
		WHERE id = ?`,
		message, formatTime(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("fail post %d: %w", id, err)
	}
	return nil
}

func scanPost(row rowScanner) (*Post, error) {
	var (
		post        Post
		status      string
		scheduledAt string
		postedAt    sql.NullString
		createdAt   string
		updatedAt   string
	)
	err := row.Scan(&post.ID, &post.ClipID, &post.Platform, &post.SlotKey,
		&scheduledAt, &postedAt, &status, &post.ErrorMessage, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	post.Status = Status(status)
	if post.ScheduledAt, err = parseTime(scheduledAt); err != nil {
		return nil, err
	}
	if post.PostedAt, err = parseNullableTime(postedAt); err != nil {
		return nil, err
	}
	if post.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if post.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &post, nil
}
