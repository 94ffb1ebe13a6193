package api

import (
	"time"

	"biru/internal/store"
)

// AssetView is the boundary representation of an asset.
type AssetView struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	Source          string    `json:"source"`
	DurationSeconds float64   `json:"duration_seconds"`
	Status          string    `json:"status"`
	ProgressStage   string    `json:"progress_stage,omitempty"`
	ProgressPercent float64   `json:"progress_percent,omitempty"`
	Error           string    `json:"error,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// ClipView is the boundary representation of a clip.
type ClipView struct {
	ID              int64   `json:"id"`
	AssetID         int64   `json:"asset_id"`
	StartSeconds    float64 `json:"start_seconds"`
	EndSeconds      float64 `json:"end_seconds"`
	DurationSeconds float64 `json:"duration_seconds"`
	Score           float64 `json:"score"`
	Category        string  `json:"category,omitempty"`
	Status          string  `json:"status"`
	Caption         string  `json:"caption,omitempty"`
	MediaPath       string  `json:"media_path,omitempty"`
}

// PostView is the boundary representation of a post.
type PostView struct {
	ID          int64      `json:"id"`
	ClipID      int64      `json:"clip_id"`
	Platform    string     `json:"platform"`
	SlotKey     string     `json:"slot_key"`
	ScheduledAt time.Time  `json:"scheduled_at"`
	PostedAt    *time.Time `json:"posted_at,omitempty"`
	Status      string     `json:"status"`
}

// StatusView answers a status query for any entity type.
type StatusView struct {
	EntityType store.EntityType `json:"entity_type"`
	ID         int64            `json:"id"`
	Status     store.Status     `json:"status"`
	Detail     string           `json:"detail,omitempty"`
	Error      string           `json:"error,omitempty"`
}

// MetricView reports a recorded metric and the prior it updated.
type MetricView struct {
	ID          int64   `json:"id"`
	PostID      int64   `json:"post_id"`
	MetricType  string  `json:"metric_type"`
	Value       float64 `json:"value"`
	Key         string  `json:"key"`
	Weight      float64 `json:"weight"`
	SampleCount int64   `json:"sample_count"`
}

func assetView(asset *store.Asset) AssetView {
	return AssetView{
		ID:              asset.ID,
		Title:           asset.Title,
		Source:          asset.Source,
		DurationSeconds: asset.DurationSeconds,
		Status:          string(asset.Status),
		ProgressStage:   asset.ProgressStage,
		ProgressPercent: asset.ProgressPercent,
		Error:           asset.ErrorMessage,
		CreatedAt:       asset.CreatedAt,
	}
}

func clipView(clip *store.Clip) ClipView {
	return ClipView{
		ID:              clip.ID,
		AssetID:         clip.AssetID,
		StartSeconds:    clip.StartSeconds,
		EndSeconds:      clip.EndSeconds,
		DurationSeconds: clip.Duration(),
		Score:           clip.Score,
		Category:        clip.Category,
		Status:          string(clip.Status),
		Caption:         clip.Caption,
		MediaPath:       clip.MediaPath,
	}
}

func postView(post *store.Post) PostView {
	return PostView{
		ID:          post.ID,
		ClipID:      post.ClipID,
		Platform:    post.Platform,
		SlotKey:     post.SlotKey,
		ScheduledAt: post.ScheduledAt,
		PostedAt:    post.PostedAt,
		Status:      string(post.Status),
	}
}
