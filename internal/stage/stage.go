// Package stage defines the contract between the workflow manager and the
// units of work it runs.
package stage

import (
	"context"

	"biru/internal/store"
)

// Health reports whether a stage's dependencies are usable.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy builds a passing health report.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy builds a failing health report with a reason.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}

// AssetHandler processes one asset pass. Prepare runs cheap validation
// before the entity is claimed; Execute does the work and may block on
// external capabilities.
type AssetHandler interface {
	Name() string
	Prepare(ctx context.Context, asset *store.Asset) error
	Execute(ctx context.Context, asset *store.Asset) error
	HealthCheck(ctx context.Context) Health
}

// ClipHandler processes one clip pass under the same contract.
type ClipHandler interface {
	Name() string
	Prepare(ctx context.Context, clip *store.Clip) error
	Execute(ctx context.Context, clip *store.Clip) error
	HealthCheck(ctx context.Context) Health
}
