package workflow

import (
	"context"

	"biru/internal/stage"
	"biru/internal/store"
)

// Health is the daemon-level health report.
type Health struct {
	Ready   bool
	Stages  []stage.Health
	Summary *store.HealthSummary
}

// Health checks every stage and aggregates queue counts.
func (m *Manager) Health(ctx context.Context) (Health, error) {
	report := Health{Ready: true}
	for _, check := range []stage.Health{
		m.assetHandler.HealthCheck(ctx),
		m.clipHandler.HealthCheck(ctx),
	} {
		report.Stages = append(report.Stages, check)
		if !check.Ready {
			report.Ready = false
		}
	}
	summary, err := m.store.Health(ctx)
	if err != nil {
		return Health{}, err
	}
	report.Summary = summary
	return report, nil
}
