// Package memory maintains learned performance priors keyed by content
// attributes. Priors feed the scheduling engine; metrics feed the priors.
package memory

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"

	"biru/internal/services"
	"biru/internal/store"
)

const (
	// NeutralWeight is the prior for keys with no observations yet. A
	// midpoint prior avoids cold-start bias for or against novel
	// combinations.
	NeutralWeight = 0.5

	stripeCount = 32
)

// Key identifies one learned prior.
type Key struct {
	Category       string
	TimeSlot       string
	DurationBucket string
}

func (k Key) String() string {
	return k.Category + "/" + k.TimeSlot + "/" + k.DurationBucket
}

// Prior is the current belief for one key.
type Prior struct {
	Weight      float64
	SampleCount int64
}

// Model applies bounded exponential smoothing over observed, normalized
// performance values. Writes to the same key are serialized by striped
// locks; writes to different keys proceed in parallel.
type Model struct {
	store   *store.Store
	alpha   float64
	stripes [stripeCount]sync.Mutex
}

// NewModel builds a model over the given store with smoothing constant
// alpha in (0, 1].
func NewModel(st *store.Store, alpha float64) (*Model, error) {
	if alpha <= 0 || alpha > 1 {
		return nil, services.Wrap(services.ErrConfiguration, "memory", "new model",
			fmt.Sprintf("smoothing alpha %.3f out of (0, 1]", alpha), nil)
	}
	return &Model{store: st, alpha: alpha}, nil
}

// Query returns the current prior for a key. Unseen keys report the neutral
// prior. Reads take no lock; they may trail an in-flight write by one update.
func (m *Model) Query(ctx context.Context, key Key) (Prior, error) {
	weight, ok, err := m.store.GetWeight(ctx, key.Category, key.TimeSlot, key.DurationBucket)
	if err != nil {
		return Prior{}, err
	}
	if !ok {
		return Prior{Weight: NeutralWeight}, nil
	}
	return Prior{Weight: weight.Weight, SampleCount: weight.SampleCount}, nil
}

// Observe folds one normalized value in [0, 1] into the prior for a key:
//
//	weight' = weight + alpha * (value - weight)
//
// The result is clamped to [0, 1] and the sample count increments by one.
func (m *Model) Observe(ctx context.Context, key Key, normalizedValue float64) (Prior, error) {
	if normalizedValue < 0 || normalizedValue > 1 {
		return Prior{}, services.Wrap(services.ErrValidation, "memory", "observe",
			fmt.Sprintf("normalized value %.3f out of [0, 1] for key %s", normalizedValue, key), nil)
	}

	stripe := &m.stripes[stripeFor(key)]
	stripe.Lock()
	defer stripe.Unlock()

	prior, err := m.Query(ctx, key)
	if err != nil {
		return Prior{}, err
	}
	updated := Prior{
		Weight:      clamp01(prior.Weight + m.alpha*(normalizedValue-prior.Weight)),
		SampleCount: prior.SampleCount + 1,
	}
	err = m.store.UpsertWeight(ctx, &store.MemoryWeight{
		Category:       key.Category,
		TimeSlot:       key.TimeSlot,
		DurationBucket: key.DurationBucket,
		Weight:         updated.Weight,
		SampleCount:    updated.SampleCount,
	})
	if err != nil {
		return Prior{}, err
	}
	return updated, nil
}

func stripeFor(key Key) int {
	h := fnv.New32a()
	h.Write([]byte(key.String()))
	return int(h.Sum32() % stripeCount)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
