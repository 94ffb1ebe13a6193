// Package ipc exposes the daemon over a unix-socket JSON-RPC surface
// consumed by the CLI and by external worker processes.
package ipc

import (
	"biru/internal/api"
	"biru/internal/dispatch"
	"biru/internal/store"
)

// ServiceName is the RPC service the daemon registers.
const ServiceName = "Daemon"

type Empty struct{}

type PingReply struct {
	Version   string `json:"version"`
	UptimeSec int64  `json:"uptime_sec"`
}

type StatusReply struct {
	Ready      bool                 `json:"ready"`
	Assets     map[store.Status]int `json:"assets"`
	Clips      map[store.Status]int `json:"clips"`
	Posts      map[store.Status]int `json:"posts"`
	Metrics    int                  `json:"metrics"`
	QueuedWork int                  `json:"queued_work"`
	Stages     map[string]string    `json:"stages"`
}

type IngestArgs struct {
	Title       string `json:"title"`
	Source      string `json:"source"`
	SourceType  string `json:"source_type"`
	ContentType string `json:"content_type"`
}

type IngestReply struct {
	Asset api.AssetView `json:"asset"`
}

type TopClipsArgs struct {
	AssetID int64 `json:"asset_id"`
	Count   int   `json:"count"`
}

type TopClipsReply struct {
	Clips []api.ClipView `json:"clips"`
}

type ScheduleNowArgs struct {
	ClipID   int64  `json:"clip_id"`
	Platform string `json:"platform"`
}

type ScheduleNowReply struct {
	Post api.PostView `json:"post"`
}

type GetStatusArgs struct {
	EntityType store.EntityType `json:"entity_type"`
	EntityID   int64            `json:"entity_id"`
}

type GetStatusReply struct {
	Status api.StatusView `json:"status"`
}

type RecordMetricArgs struct {
	PostID     int64   `json:"post_id"`
	MetricType string  `json:"metric_type"`
	Value      float64 `json:"value"`
}

type RecordMetricReply struct {
	Metric api.MetricView `json:"metric"`
}

type ListMetricsArgs struct {
	PostID int64 `json:"post_id"`
}

type MetricRow struct {
	ID         int64   `json:"id"`
	MetricType string  `json:"metric_type"`
	Value      float64 `json:"value"`
	ObservedAt string  `json:"observed_at"`
}

type ListMetricsReply struct {
	Metrics []MetricRow `json:"metrics"`
}

type TellArgs struct {
	Message string `json:"message"`
}

type TellReply struct {
	Reply string `json:"reply"`
}

type ListAssetsArgs struct {
	Statuses []store.Status `json:"statuses"`
}

type ListAssetsReply struct {
	Assets []api.AssetView `json:"assets"`
}

type ListPostsArgs struct {
	Statuses []store.Status `json:"statuses"`
}

type ListPostsReply struct {
	Posts []api.PostView `json:"posts"`
}

type ListDecisionsArgs struct {
	Limit int `json:"limit"`
}

type DecisionView struct {
	ID         int64  `json:"id"`
	PostID     int64  `json:"post_id"`
	Platform   string `json:"platform"`
	ChosenSlot string `json:"chosen_slot"`
	Rationale  string `json:"rationale"`
	CreatedAt  string `json:"created_at"`
	Verified   bool   `json:"verified"`
}

type ListDecisionsReply struct {
	Decisions []DecisionView `json:"decisions"`
}

type WeightView struct {
	Category       string  `json:"category"`
	TimeSlot       string  `json:"time_slot"`
	DurationBucket string  `json:"duration_bucket"`
	Weight         float64 `json:"weight"`
	SampleCount    int64   `json:"sample_count"`
}

type ListWeightsReply struct {
	Weights []WeightView `json:"weights"`
}

type RetryReply struct {
	Requeued int `json:"requeued"`
}

type ResetAssetArgs struct {
	AssetID int64 `json:"asset_id"`
}

type PullWorkReply struct {
	Item dispatch.WorkItem `json:"item"`
	OK   bool              `json:"ok"`
}

type ReportCompletionArgs struct {
	Completion dispatch.Completion `json:"completion"`
	EntityType store.EntityType    `json:"entity_type"`
	EntityID   int64               `json:"entity_id"`
}
