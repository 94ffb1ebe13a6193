// Package signals defines the analysis input bundle for one asset: the
// transcript spans and energy samples that scoring consumes.
package signals

import (
	"encoding/json"
	"fmt"
	"sort"

	"biru/internal/services"
)

// TranscriptSpan is one contiguous stretch of transcribed speech with a
// precomputed hook strength in [0, 1].
type TranscriptSpan struct {
	StartSeconds float64 `json:"start_seconds"`
	EndSeconds   float64 `json:"end_seconds"`
	Text         string  `json:"text"`
	HookScore    float64 `json:"hook_score"`
	Category     string  `json:"category,omitempty"`
}

// EnergySample is one audio energy reading in [0, 1] at a point in time.
type EnergySample struct {
	AtSeconds float64 `json:"at_seconds"`
	Level     float64 `json:"level"`
}

// Bundle carries everything analysis needs for one asset. A bundle is
// complete when the duration is known and both channels have arrived.
type Bundle struct {
	DurationSeconds float64          `json:"duration_seconds"`
	Spans           []TranscriptSpan `json:"spans"`
	Energy          []EnergySample   `json:"energy"`
}

// Validate checks the bundle for completeness and internal consistency.
// An incomplete bundle is a retryable condition, not a hard failure: the
// upstream extractors may still be running.
func (b *Bundle) Validate() error {
	if b == nil {
		return services.Wrap(services.ErrSignalIncomplete, "signals", "validate", "nil bundle", nil)
	}
	if b.DurationSeconds <= 0 {
		return services.Wrap(services.ErrSignalIncomplete, "signals", "validate", "duration unknown", nil)
	}
	if len(b.Spans) == 0 {
		return services.Wrap(services.ErrSignalIncomplete, "signals", "validate", "transcript missing", nil)
	}
	if len(b.Energy) == 0 {
		return services.Wrap(services.ErrSignalIncomplete, "signals", "validate", "energy track missing", nil)
	}
	for i, span := range b.Spans {
		if span.EndSeconds <= span.StartSeconds {
			return services.Wrap(services.ErrValidation, "signals", "validate",
				fmt.Sprintf("span %d: end %.2f before start %.2f", i, span.EndSeconds, span.StartSeconds), nil)
		}
		if span.EndSeconds > b.DurationSeconds {
			return services.Wrap(services.ErrValidation, "signals", "validate",
				fmt.Sprintf("span %d: end %.2f past duration %.2f", i, span.EndSeconds, b.DurationSeconds), nil)
		}
		if span.HookScore < 0 || span.HookScore > 1 {
			return services.Wrap(services.ErrValidation, "signals", "validate",
				fmt.Sprintf("span %d: hook score %.2f out of range", i, span.HookScore), nil)
		}
	}
	for i, sample := range b.Energy {
		if sample.Level < 0 || sample.Level > 1 {
			return services.Wrap(services.ErrValidation, "signals", "validate",
				fmt.Sprintf("energy sample %d: level %.2f out of range", i, sample.Level), nil)
		}
	}
	return nil
}

// Normalize sorts both channels by time. Scoring assumes ordered input.
func (b *Bundle) Normalize() {
	sort.SliceStable(b.Spans, func(i, j int) bool {
		return b.Spans[i].StartSeconds < b.Spans[j].StartSeconds
	})
	sort.SliceStable(b.Energy, func(i, j int) bool {
		return b.Energy[i].AtSeconds < b.Energy[j].AtSeconds
	})
}

// EnergyBetween averages the energy samples inside [start, end]. Returns 0
// when no sample falls in the window.
func (b *Bundle) EnergyBetween(start, end float64) float64 {
	total := 0.0
	count := 0
	for _, sample := range b.Energy {
		if sample.AtSeconds < start {
			continue
		}
		if sample.AtSeconds > end {
			break
		}
		total += sample.Level
		count++
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

// Encode serializes the bundle for storage.
func Encode(b *Bundle) (string, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return "", fmt.Errorf("encode signal bundle: %w", err)
	}
	return string(data), nil
}

// Decode parses a stored bundle. An empty payload decodes to an incomplete
// bundle rather than an error.
func Decode(payload string) (*Bundle, error) {
	if payload == "" {
		return &Bundle{}, nil
	}
	var bundle Bundle
	if err := json.Unmarshal([]byte(payload), &bundle); err != nil {
		return nil, services.Wrap(services.ErrValidation, "signals", "decode", "malformed signal bundle", err)
	}
	return &bundle, nil
}
