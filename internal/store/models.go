package store

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a pipeline entity. The strings are part
// of the external contract and are case-sensitive.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusReady      Status = "READY"
	StatusScheduled  Status = "SCHEDULED"
	StatusPosted     Status = "POSTED"
	StatusFailed     Status = "FAILED"
)

// EntityType identifies which lifecycle table an entity lives in.
type EntityType string

const (
	EntityAsset EntityType = "asset"
	EntityClip  EntityType = "clip"
	EntityPost  EntityType = "post"
)

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusReady,
	StatusScheduled,
	StatusPosted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// transitions is the authoritative transition table. Anything absent here is
// rejected; PENDING is reachable again only through the explicit reset and
// retry operations, never through Transition*.
var transitions = map[EntityType]map[Status][]Status{
	EntityAsset: {
		StatusPending:    {StatusProcessing},
		StatusProcessing: {StatusReady, StatusFailed},
	},
	EntityClip: {
		StatusPending:    {StatusProcessing},
		StatusProcessing: {StatusReady, StatusFailed},
	},
	EntityPost: {
		StatusScheduled: {StatusPosted, StatusFailed},
	},
}

// ValidTransition reports whether the transition table permits from→to for
// the given entity type.
func ValidTransition(entity EntityType, from, to Status) bool {
	allowed, ok := transitions[entity]
	if !ok {
		return false
	}
	for _, next := range allowed[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToUpper(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Asset represents one ingested source video or audio file.
type Asset struct {
	ID              int64
	Title           string
	Source          string
	SourceType      string
	ContentType     string
	DurationSeconds float64
	Status          Status
	ErrorMessage    string
	SignalsJSON     string
	Attempts        int
	ProgressStage   string
	ProgressPercent float64
	ProgressMessage string
	CorrelationID   string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	LastHeartbeat   *time.Time
}

// Clip is a selected, materializable short derived from an asset.
type Clip struct {
	ID            int64
	AssetID       int64
	StartSeconds  float64
	EndSeconds    float64
	Score         float64
	Category      string
	FormatTag     string
	Status        Status
	Caption       string
	ThumbnailPath string
	MediaPath     string
	ErrorMessage  string
	Attempts      int
	CorrelationID string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	LastHeartbeat *time.Time
}

// Duration returns the clip length in seconds.
func (c *Clip) Duration() float64 {
	return c.EndSeconds - c.StartSeconds
}

// Overlaps reports whether two clips intersect in [start, end) with the
// given minimum gap between them.
func (c *Clip) Overlaps(other *Clip, minGap float64) bool {
	return c.StartSeconds < other.EndSeconds+minGap && other.StartSeconds < c.EndSeconds+minGap
}

// Post is a scheduled or executed publication of a clip.
type Post struct {
	ID           int64
	ClipID       int64
	Platform     string
	SlotKey      string
	ScheduledAt  time.Time
	PostedAt     *time.Time
	Status       Status
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Metric is one observed performance value for a post. Append-only.
type Metric struct {
	ID         int64
	PostID     int64
	MetricType string
	Value      float64
	ObservedAt time.Time
}

// MemoryWeight is a learned prior for a (category, timeSlot, durationBucket)
// key.
type MemoryWeight struct {
	Category       string
	TimeSlot       string
	DurationBucket string
	Weight         float64
	SampleCount    int64
	UpdatedAt      time.Time
}

// StrategyDecision is the immutable audit record for one scheduled post.
type StrategyDecision struct {
	ID         int64
	PostID     int64
	InputsJSON string
	Platform   string
	ChosenSlot string
	Rationale  string
	CreatedAt  time.Time
}

// HealthSummary describes aggregated entity counts per key lifecycle state.
type HealthSummary struct {
	Assets  map[Status]int
	Clips   map[Status]int
	Posts   map[Status]int
	Metrics int
}

// IsProcessing reports whether the asset has an in-flight pass.
func (a Asset) IsProcessing() bool {
	return a.Status == StatusProcessing
}

// SetFailed marks the asset as failed with the given error message.
func (a *Asset) SetFailed(message string) {
	a.Status = StatusFailed
	a.ErrorMessage = message
	a.ProgressStage = "Failed"
	a.ProgressPercent = 0
	a.ProgressMessage = message
	a.LastHeartbeat = nil
}

// SetProgress updates the progress fields together.
func (a *Asset) SetProgress(stage, message string, percent float64) {
	a.ProgressStage = stage
	a.ProgressMessage = message
	a.ProgressPercent = percent
}
