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

const assetColumns = `id, title, source, source_type, content_type, duration_seconds,
	status, error_message, signals_json, attempts, progress_stage, progress_percent,
	progress_message, correlation_id, created_at, updated_at, last_heartbeat`

// NewAsset inserts a PENDING asset for the given source.
func (s *Store) NewAsset(ctx context.Context, title, source, sourceType, contentType string) (*Asset, error) {
	now := time.Now().UTC()
	asset := &Asset{
		Title:         title,
		Source:        source,
		SourceType:    sourceType,
		ContentType:   contentType,
		Status:        StatusPending,
		CorrelationID: uuid.NewString(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	result, err := s.execWithRetry(ctx, `
		INSERT INTO assets (title, source, source_type, content_type, status, correlation_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		asset.Title, asset.Source, asset.SourceType, asset.ContentType,
		string(asset.Status), asset.CorrelationID, formatTime(now), formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("insert asset: %w", err)
	}
	asset.ID, err = result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("read asset id: %w", err)
	}
	return asset, nil
}

// GetAsset loads one asset by id.
func (s *Store) GetAsset(ctx context.Context, id int64) (*Asset, error) {
	row := s.queryRowWithRetry(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = ?`, id)
	asset, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("store", "get asset", fmt.Sprintf("asset %d", id))
	}
	return asset, err
}

// UpdateAsset persists the mutable fields of an asset. Status is owned by
// the transition operations and is never written here.
func (s *Store) UpdateAsset(ctx context.Context, asset *Asset) error {
	asset.UpdatedAt = time.Now().UTC()
	var heartbeat any
	if asset.LastHeartbeat != nil {
		heartbeat = formatTime(*asset.LastHeartbeat)
	}
	_, err := s.execWithRetry(ctx, `
		UPDATE assets SET title = ?, source = ?, source_type = ?, content_type = ?,
			duration_seconds = ?, error_message = ?, signals_json = ?,
			attempts = ?, progress_stage = ?, progress_percent = ?, progress_message = ?,
			correlation_id = ?, updated_at = ?, last_heartbeat = ?
		WHERE id = ?`,
		asset.Title, asset.Source, asset.SourceType, asset.ContentType,
		asset.DurationSeconds, asset.ErrorMessage, asset.SignalsJSON,
		asset.Attempts, asset.ProgressStage, asset.ProgressPercent, asset.ProgressMessage,
		asset.CorrelationID, formatTime(asset.UpdatedAt), heartbeat, asset.ID)
	if err != nil {
		return fmt.Errorf("update asset %d: %w", asset.ID, err)
	}
	return nil
}

// PutSignals stores the serialized signal bundle and the total duration it
// reports.
func (s *Store) PutSignals(ctx context.Context, assetID int64, bundleJSON string, durationSeconds float64) error {
	result, err := s.execWithRetry(ctx, `
		UPDATE assets SET signals_json = ?, duration_seconds = ?, updated_at = ? WHERE id = ?`,
		bundleJSON, durationSeconds, formatTime(time.Now().UTC()), assetID)
	if err != nil {
		return fmt.Errorf("store signals for asset %d: %w", assetID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return notFound("store", "put signals", fmt.Sprintf("asset %d", assetID))
	}
	return nil
}

// ListAssets returns assets matching any of the given statuses, oldest first.
// With no statuses it returns every asset.
func (s *Store) ListAssets(ctx context.Context, statuses ...Status) ([]*Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets`
	var args []any
	if len(statuses) > 0 {
		marks, statusArgs := statusPlaceholders(statuses)
		query += ` WHERE status IN (` + marks + `)`
		args = statusArgs
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var assets []*Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}
	return assets, rows.Err()
}

// NextAsset returns the oldest asset in any of the given statuses, or nil.
func (s *Store) NextAsset(ctx context.Context, statuses ...Status) (*Asset, error) {
	if len(statuses) == 0 {
		return nil, services.Wrap(services.ErrValidation, "store", "next asset", "no statuses given", nil)
	}
	marks, args := statusPlaceholders(statuses)
	row := s.queryRowWithRetry(ctx, `
		SELECT `+assetColumns+` FROM assets WHERE status IN (`+marks+`)
		ORDER BY created_at ASC, id ASC LIMIT 1`, args...)
	asset, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return asset, err
}

// ResetAsset is the explicit re-ingest operation: delete every derived clip
// and return the asset to PENDING in one transaction. Posts already made for
// deleted clips are removed with them.
func (s *Store) ResetAsset(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE assets SET status = ?, error_message = '', signals_json = '',
				attempts = 0, progress_stage = '', progress_percent = 0,
				progress_message = '', last_heartbeat = NULL, updated_at = ?
			WHERE id = ?`,
			string(StatusPending), formatTime(time.Now().UTC()), id)
		if err != nil {
			return fmt.Errorf("reset asset %d: %w", id, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return notFound("store", "reset asset", fmt.Sprintf("asset %d", id))
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM clips WHERE asset_id = ?`, id); err != nil {
			return fmt.Errorf("delete clips for asset %d: %w", id, err)
		}
		return nil
	})
}

// RetryFailedAssets returns FAILED assets to PENDING. With no ids it retries
// all failed assets. Returns the number of assets reset.
func (s *Store) RetryFailedAssets(ctx context.Context, ids ...int64) (int, error) {
	query := `UPDATE assets SET status = ?, error_message = '', progress_stage = '',
		progress_percent = 0, progress_message = '', last_heartbeat = NULL, updated_at = ?
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
		return 0, fmt.Errorf("retry failed assets: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

// DeleteAsset removes an asset and all derived rows.
func (s *Store) DeleteAsset(ctx context.Context, id int64) error {
	result, err := s.execWithRetry(ctx, `DELETE FROM assets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete asset %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return notFound("store", "delete asset", fmt.Sprintf("asset %d", id))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAsset(row rowScanner) (*Asset, error) {
	var (
		asset     Asset
		status    string
		createdAt string
		updatedAt string
		heartbeat sql.NullString
	)
	err := row.Scan(&asset.ID, &asset.Title, &asset.Source, &asset.SourceType,
		&asset.ContentType, &asset.DurationSeconds, &status, &asset.ErrorMessage,
		&asset.SignalsJSON, &asset.Attempts, &asset.ProgressStage, &asset.ProgressPercent,
		&asset.ProgressMessage, &asset.CorrelationID, &createdAt, &updatedAt, &heartbeat)
	if err != nil {
		return nil, err
	}
	asset.Status = Status(status)
	if asset.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if asset.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if asset.LastHeartbeat, err = parseNullableTime(heartbeat); err != nil {
		return nil, err
	}
	return &asset, nil
}
