// Package analysis is the asset stage: it turns stored signals into scored,
// selected clips.
package analysis

import (
	"context"
	"fmt"
	"log/slog"

	"biru/internal/config"
	"biru/internal/logging"
	"biru/internal/scoring"
	"biru/internal/selection"
	"biru/internal/services"
	"biru/internal/signals"
	"biru/internal/stage"
	"biru/internal/store"
	"biru/internal/textutil"
)

// Stage scores the asset's signal bundle and persists the selected clips.
type Stage struct {
	store       *store.Store
	scorer      scoring.Scorer
	constraints selection.Constraints
	logger      *slog.Logger
}

// NewStage wires an analysis stage from config.
func NewStage(cfg *config.Config, st *store.Store, logger *slog.Logger) *Stage {
	return &Stage{
		store: st,
		scorer: scoring.Scorer{
			HookWeight:        cfg.Scoring.HookWeight,
			EnergyWeight:      cfg.Scoring.EnergyWeight,
			MinSegmentSeconds: cfg.Selection.MinSegmentSeconds,
		},
		constraints: selection.Constraints{
			MinClips:         cfg.Selection.MinClips,
			MaxClips:         cfg.Selection.MaxClips,
			MinGapSeconds:    cfg.Selection.MinGapSeconds,
			ScoreThreshold:   cfg.Selection.ScoreThreshold,
			RelaxationFactor: cfg.Selection.ScoreRelaxationFactor,
		},
		logger: logging.NewComponentLogger(logger, "analysis"),
	}
}

func (s *Stage) Name() string { return "analysis" }

// Prepare verifies the signal bundle is present and well formed before the
// asset is claimed for processing.
func (s *Stage) Prepare(ctx context.Context, asset *store.Asset) error {
	bundle, err := signals.Decode(asset.SignalsJSON)
	if err != nil {
		return err
	}
	return bundle.Validate()
}

// Execute runs scoring and selection and creates the asset's clips. The
// workflow manager owns the surrounding status transitions.
func (s *Stage) Execute(ctx context.Context, asset *store.Asset) error {
	bundle, err := signals.Decode(asset.SignalsJSON)
	if err != nil {
		return err
	}
	if err := bundle.Validate(); err != nil {
		return err
	}
	bundle.Normalize()

	asset.SetProgress("Scoring", "scoring candidate segments", 25)
	if err := s.store.UpdateAsset(ctx, asset); err != nil {
		return err
	}

	accepted, report, err := selection.Select(s.scorer.Candidates(bundle), s.constraints)
	if err != nil {
		return err
	}

	s.logger.Info("selection complete",
		logging.Int64(logging.FieldAssetID, asset.ID),
		logging.Int("considered", report.Considered),
		logging.Int("accepted", report.Accepted),
		logging.Int("rejected", report.Rejected),
		logging.Bool("relaxed", report.Relaxed))

	clips := make([]*store.Clip, 0, len(accepted))
	for _, candidate := range accepted {
		clips = append(clips, &store.Clip{
			StartSeconds: candidate.StartSeconds,
			EndSeconds:   candidate.EndSeconds,
			Score:        candidate.Score,
			Category:     candidate.Category,
			Caption:      captionFor(candidate),
		})
	}

	asset.SetProgress("Selecting", fmt.Sprintf("persisting %d clips", len(clips)), 75)
	if err := s.store.UpdateAsset(ctx, asset); err != nil {
		return err
	}
	if err := s.store.CreateClips(ctx, asset.ID, clips); err != nil {
		return services.Wrap(services.ErrTransient, "analysis", "persist clips",
			fmt.Sprintf("asset %d", asset.ID), err)
	}

	asset.SetProgress("Analyzed", fmt.Sprintf("%d clips selected", len(clips)), 100)
	return s.store.UpdateAsset(ctx, asset)
}

func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	if s.store == nil {
		return stage.Unhealthy(s.Name(), "store not configured")
	}
	return stage.Healthy(s.Name())
}

func captionFor(candidate scoring.Candidate) string {
	return textutil.CaptionFrom(candidate.Text, 120)
}
