package memory

import (
	"fmt"
	"time"
)

// Metric normalization pivots: a value equal to the pivot maps to 0.5, so
// the pivot is the "typical good outcome" per metric type.
var metricPivots = map[string]float64{
	"views":  10000,
	"likes":  500,
	"shares": 100,
}

const defaultPivot = 1000

// NormalizeMetric maps a raw metric value into [0, 1) with diminishing
// returns: value / (value + pivot).
func NormalizeMetric(metricType string, value float64) float64 {
	if value <= 0 {
		return 0
	}
	pivot, ok := metricPivots[metricType]
	if !ok {
		pivot = defaultPivot
	}
	return value / (value + pivot)
}

// TimeSlotFor buckets a posting time into the named slot used as a prior
// key component.
func TimeSlotFor(t time.Time) string {
	switch hour := t.Hour(); {
	case hour < 6:
		return "night"
	case hour < 12:
		return "morning"
	case hour < 17:
		return "afternoon"
	default:
		return "evening"
	}
}

// DurationBucketFor maps a clip duration onto the configured bucket bounds.
// A duration past the last bound lands in an open-ended top bucket.
func DurationBucketFor(durationSeconds float64, bounds []int) string {
	for _, bound := range bounds {
		if durationSeconds <= float64(bound) {
			return fmt.Sprintf("<=%ds", bound)
		}
	}
	if len(bounds) == 0 {
		return "any"
	}
	return fmt.Sprintf(">%ds", bounds[len(bounds)-1])
}

// KeyFor derives the prior key for a clip's attributes at a posting time.
func KeyFor(category string, postedAt time.Time, durationSeconds float64, bucketBounds []int) Key {
	if category == "" {
		category = "general"
	}
	return Key{
		Category:       category,
		TimeSlot:       TimeSlotFor(postedAt),
		DurationBucket: DurationBucketFor(durationSeconds, bucketBounds),
	}
}
