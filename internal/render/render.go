// Package render is the clip stage: it hands clip materialization to the
// external worker layer and records the produced artifacts.
package render

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"biru/internal/config"
	"biru/internal/dispatch"
	"biru/internal/logging"
	"biru/internal/services"
	"biru/internal/stage"
	"biru/internal/store"
)

// OperationRender is the work-item operation for clip materialization.
const OperationRender = "render"

// Artifacts is the expected result payload of a successful render.
type Artifacts struct {
	MediaPath     string `json:"media_path"`
	ThumbnailPath string `json:"thumbnail_path"`
	FormatTag     string `json:"format_tag"`
}

// Stage dispatches render work and applies the results.
type Stage struct {
	store       *store.Store
	coordinator *dispatch.Coordinator
	policy      dispatch.Policy
	logger      *slog.Logger
}

// NewStage wires a render stage from config.
func NewStage(cfg *config.Config, st *store.Store, coordinator *dispatch.Coordinator, logger *slog.Logger) *Stage {
	return &Stage{
		store:       st,
		coordinator: coordinator,
		policy: dispatch.Policy{
			Timeout:     time.Duration(cfg.Workflow.DispatchTimeoutSeconds) * time.Second,
			MaxAttempts: cfg.Workflow.DispatchMaxAttempts,
		},
		logger: logging.NewComponentLogger(logger, "render"),
	}
}

func (s *Stage) Name() string { return "render" }

// Prepare checks the clip window is sane before claiming it.
func (s *Stage) Prepare(ctx context.Context, clip *store.Clip) error {
	if clip.EndSeconds <= clip.StartSeconds {
		return services.Wrap(services.ErrValidation, "render", "prepare",
			fmt.Sprintf("clip %d has empty window [%.2f, %.2f)", clip.ID, clip.StartSeconds, clip.EndSeconds), nil)
	}
	return nil
}

// Execute dispatches the render work item and blocks on its completion.
// The work item's correlation id is persisted on the clip before dispatch
// so a restarted daemon can still match a late callback.
func (s *Stage) Execute(ctx context.Context, clip *store.Clip) error {
	item := dispatch.NewWorkItem(store.EntityClip, clip.ID, OperationRender)
	clip.CorrelationID = item.CorrelationID
	if err := s.store.UpdateClip(ctx, clip); err != nil {
		return err
	}

	s.logger.Info("dispatching render",
		logging.Int64(logging.FieldClipID, clip.ID),
		logging.String(logging.FieldCorrelationID, item.CorrelationID))

	completion, err := s.coordinator.Execute(ctx, item, s.policy)
	if err != nil {
		return err
	}
	if completion.Outcome != dispatch.OutcomeSuccess {
		return services.Wrap(services.ErrValidation, "render", "execute",
			fmt.Sprintf("clip %d render failed: %s", clip.ID, completion.ResultPayload), nil)
	}

	if completion.ResultPayload != "" {
		var artifacts Artifacts
		if err := json.Unmarshal([]byte(completion.ResultPayload), &artifacts); err != nil {
			return services.Wrap(services.ErrValidation, "render", "execute",
				fmt.Sprintf("clip %d: malformed result payload", clip.ID), err)
		}
		clip.MediaPath = artifacts.MediaPath
		clip.ThumbnailPath = artifacts.ThumbnailPath
		if artifacts.FormatTag != "" {
			clip.FormatTag = artifacts.FormatTag
		}
	}
	return s.store.UpdateClip(ctx, clip)
}

func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	if s.coordinator == nil {
		return stage.Unhealthy(s.Name(), "worker coordinator not configured")
	}
	return stage.Healthy(s.Name())
}
