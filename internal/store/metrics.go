package store

import (
	"context"
	"fmt"
	"time"
)

// AppendMetric records one observed metric value. Metrics are append-only;
// repeated observations of the same type become separate rows.
func (s *Store) AppendMetric(ctx context.Context, postID int64, metricType string, value float64, observedAt time.Time) (*Metric, error) {
	metric := &Metric{
		PostID:     postID,
		MetricType: metricType,
		Value:      value,
		ObservedAt: observedAt.UTC(),
	}
	result, err := s.execWithRetry(ctx, `
		INSERT INTO metrics (post_id, metric_type, value, observed_at)
		VALUES (?, ?, ?, ?)`,
		metric.PostID, metric.MetricType, metric.Value, formatTime(metric.ObservedAt))
	if err != nil {
		return nil, fmt.Errorf("append metric for post %d: %w", postID, err)
	}
	if metric.ID, err = result.LastInsertId(); err != nil {
		return nil, fmt.Errorf("read metric id: %w", err)
	}
	return metric, nil
}

// MetricsForPost returns every metric observed for a post, oldest first.
func (s *Store) MetricsForPost(ctx context.Context, postID int64) ([]*Metric, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, post_id, metric_type, value, observed_at FROM metrics
		WHERE post_id = ? ORDER BY observed_at ASC, id ASC`, postID)
	if err != nil {
		return nil, fmt.Errorf("list metrics for post %d: %w", postID, err)
	}
	defer rows.Close()

	var metrics []*Metric
	for rows.Next() {
		var (
			metric   Metric
			observed string
		)
		if err := rows.Scan(&metric.ID, &metric.PostID, &metric.MetricType, &metric.Value, &observed); err != nil {
			return nil, err
		}
		if metric.ObservedAt, err = parseTime(observed); err != nil {
			return nil, err
		}
		metrics = append(metrics, &metric)
	}
	return metrics, rows.Err()
}

// LatestMetrics returns the most recent value per metric type for a post.
func (s *Store) LatestMetrics(ctx context.Context, postID int64) (map[string]float64, error) {
	metrics, err := s.MetricsForPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	latest := make(map[string]float64, len(metrics))
	for _, metric := range metrics {
		latest[metric.MetricType] = metric.Value
	}
	return latest, nil
}
