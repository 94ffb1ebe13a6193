// Package api exposes the core's query and imperative primitives to the
// boundary layers: the command interpreter, the IPC surface, and the CLI.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"biru/internal/config"
	"biru/internal/logging"
	"biru/internal/memory"
	"biru/internal/notifications"
	"biru/internal/planner"
	"biru/internal/services"
	"biru/internal/store"
	"biru/internal/textutil"
)

// Service is the boundary facade over the core.
type Service struct {
	cfg      *config.Config
	store    *store.Store
	planner  *planner.Planner
	model    *memory.Model
	notifier notifications.Service
	logger   *slog.Logger
}

// NewService wires the facade.
func NewService(cfg *config.Config, st *store.Store, p *planner.Planner, model *memory.Model, notifier notifications.Service, logger *slog.Logger) *Service {
	if notifier == nil {
		notifier = notifications.Noop{}
	}
	return &Service{
		cfg:      cfg,
		store:    st,
		planner:  p,
		model:    model,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "api"),
	}
}

// Ingest registers a new source for analysis.
func (s *Service) Ingest(ctx context.Context, title, source, sourceType, contentType string) (AssetView, error) {
	if title == "" {
		title = textutil.CleanTitle(source)
	}
	asset, err := s.store.NewAsset(ctx, title, source, sourceType, contentType)
	if err != nil {
		return AssetView{}, err
	}
	s.notifier.AssetIngested(ctx, asset.Title)
	s.logger.Info("asset ingested",
		logging.Int64(logging.FieldAssetID, asset.ID),
		logging.String("title", asset.Title))
	return assetView(asset), nil
}

// ListTopClips returns the n best-scoring clips for an asset.
func (s *Service) ListTopClips(ctx context.Context, assetID int64, n int) ([]ClipView, error) {
	clips, err := s.store.TopClipsByAsset(ctx, assetID, n)
	if err != nil {
		return nil, err
	}
	views := make([]ClipView, 0, len(clips))
	for _, clip := range clips {
		views = append(views, clipView(clip))
	}
	return views, nil
}

// ScheduleNow books the earliest open slot for a clip on one platform.
func (s *Service) ScheduleNow(ctx context.Context, clipID int64, platform string) (PostView, error) {
	platform, err := s.normalizePlatform(platform)
	if err != nil {
		return PostView{}, err
	}
	post, err := s.planner.ScheduleNow(ctx, clipID, platform)
	if err != nil {
		return PostView{}, err
	}
	s.notifier.PostScheduled(ctx, post.Platform, post.SlotKey)
	return postView(post), nil
}

// GetStatus reports the lifecycle status of one entity.
func (s *Service) GetStatus(ctx context.Context, entityType store.EntityType, id int64) (StatusView, error) {
	switch entityType {
	case store.EntityAsset:
		asset, err := s.store.GetAsset(ctx, id)
		if err != nil {
			return StatusView{}, err
		}
		return StatusView{
			EntityType: entityType, ID: id, Status: asset.Status,
			Detail: fmt.Sprintf("%s %.0f%% %s", asset.ProgressStage, asset.ProgressPercent, asset.ProgressMessage),
			Error:  asset.ErrorMessage,
		}, nil
	case store.EntityClip:
		clip, err := s.store.GetClip(ctx, id)
		if err != nil {
			return StatusView{}, err
		}
		return StatusView{EntityType: entityType, ID: id, Status: clip.Status, Error: clip.ErrorMessage}, nil
	case store.EntityPost:
		post, err := s.store.GetPost(ctx, id)
		if err != nil {
			return StatusView{}, err
		}
		return StatusView{
			EntityType: entityType, ID: id, Status: post.Status,
			Detail: fmt.Sprintf("%s %s", post.Platform, post.SlotKey),
			Error:  post.ErrorMessage,
		}, nil
	default:
		return StatusView{}, services.Wrap(services.ErrValidation, "api", "get status",
			fmt.Sprintf("unknown entity type %q", entityType), nil)
	}
}

// RecordMetric appends one observed metric and folds it into the memory
// priors keyed by the post's clip attributes and slot.
func (s *Service) RecordMetric(ctx context.Context, postID int64, metricType string, value float64) (MetricView, error) {
	if metricType == "" {
		return MetricView{}, services.Wrap(services.ErrValidation, "api", "record metric", "metric type required", nil)
	}
	if value < 0 {
		return MetricView{}, services.Wrap(services.ErrValidation, "api", "record metric", "negative value", nil)
	}
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return MetricView{}, err
	}
	clip, err := s.store.GetClip(ctx, post.ClipID)
	if err != nil {
		return MetricView{}, err
	}

	metric, err := s.store.AppendMetric(ctx, postID, metricType, value, time.Now().UTC())
	if err != nil {
		return MetricView{}, err
	}

	key := memory.KeyFor(clip.Category, post.ScheduledAt, clip.Duration(), s.cfg.Memory.DurationBuckets)
	prior, err := s.model.Observe(ctx, key, memory.NormalizeMetric(metricType, value))
	if err != nil {
		return MetricView{}, err
	}
	s.logger.Info("metric recorded",
		logging.Int64(logging.FieldPostID, postID),
		logging.String("type", metricType),
		logging.Float64("value", value),
		logging.Float64("weight", prior.Weight))
	return MetricView{
		ID: metric.ID, PostID: postID, MetricType: metricType, Value: value,
		Key: key.String(), Weight: prior.Weight, SampleCount: prior.SampleCount,
	}, nil
}

// RetryFailed returns failed assets and clips to PENDING.
func (s *Service) RetryFailed(ctx context.Context) (int, error) {
	assets, err := s.store.RetryFailedAssets(ctx)
	if err != nil {
		return 0, err
	}
	clips, err := s.store.RetryFailedClips(ctx)
	if err != nil {
		return assets, err
	}
	return assets + clips, nil
}

// ResetAsset discards an asset's derived clips and reruns analysis from
// scratch.
func (s *Service) ResetAsset(ctx context.Context, assetID int64) error {
	return s.store.ResetAsset(ctx, assetID)
}

func (s *Service) normalizePlatform(platform string) (string, error) {
	normalized := textutil.CleanTitle(platform)
	for _, known := range s.cfg.Schedule.Platforms {
		if textutil.CleanTitle(known) == normalized {
			return known, nil
		}
	}
	return "", services.Wrap(services.ErrValidation, "api", "schedule now",
		fmt.Sprintf("unknown platform %q", platform), nil)
}
