package workflow

import (
	"context"
	"fmt"
	"time"

	"biru/internal/dispatch"
	"biru/internal/logging"
	"biru/internal/services"
	"biru/internal/store"
)

// ReportCompletion applies a worker-layer completion to an entity. The
// worker delivers at least once, so this must be idempotent: a second
// identical completion for an entity already in the matching terminal state
// is a no-op, not an error.
func (m *Manager) ReportCompletion(ctx context.Context, entityType store.EntityType, entityID int64, outcome dispatch.Outcome) error {
	switch entityType {
	case store.EntityAsset:
		return m.completeLifecycle(ctx, entityType, entityID, outcome,
			func() (store.Status, error) {
				asset, err := m.store.GetAsset(ctx, entityID)
				if err != nil {
					return "", err
				}
				return asset.Status, nil
			},
			func(from, to store.Status) error {
				return m.store.TransitionAsset(ctx, entityID, from, to)
			},
			store.StatusProcessing, store.StatusReady)
	case store.EntityClip:
		return m.completeLifecycle(ctx, entityType, entityID, outcome,
			func() (store.Status, error) {
				clip, err := m.store.GetClip(ctx, entityID)
				if err != nil {
					return "", err
				}
				return clip.Status, nil
			},
			func(from, to store.Status) error {
				return m.store.TransitionClip(ctx, entityID, from, to)
			},
			store.StatusProcessing, store.StatusReady)
	case store.EntityPost:
		return m.completePost(ctx, entityID, outcome)
	default:
		return services.Wrap(services.ErrValidation, "workflow", "report completion",
			fmt.Sprintf("unknown entity type %q", entityType), nil)
	}
}

func (m *Manager) completeLifecycle(
	ctx context.Context,
	entityType store.EntityType,
	entityID int64,
	outcome dispatch.Outcome,
	current func() (store.Status, error),
	transition func(from, to store.Status) error,
	active, success store.Status,
) error {
	status, err := current()
	if err != nil {
		return err
	}

	target := success
	if outcome == dispatch.OutcomeFailure {
		target = store.StatusFailed
	}
	if status == target {
		m.logger.Debug("duplicate completion ignored",
			logging.String("entity", string(entityType)),
			logging.Int64("id", entityID),
			logging.String("outcome", string(outcome)))
		return nil
	}
	if status != active {
		return services.Wrap(services.ErrInvalidTransition, "workflow", "report completion",
			fmt.Sprintf("%s %d in %s cannot accept outcome %s", entityType, entityID, status, outcome), nil)
	}
	return transition(active, target)
}

func (m *Manager) completePost(ctx context.Context, postID int64, outcome dispatch.Outcome) error {
	post, err := m.store.GetPost(ctx, postID)
	if err != nil {
		return err
	}
	target := store.StatusPosted
	if outcome == dispatch.OutcomeFailure {
		target = store.StatusFailed
	}
	if post.Status == target {
		return nil
	}
	if post.Status != store.StatusScheduled {
		return services.Wrap(services.ErrInvalidTransition, "workflow", "report completion",
			fmt.Sprintf("post %d in %s cannot accept outcome %s", postID, post.Status, outcome), nil)
	}
	if outcome == dispatch.OutcomeFailure {
		return m.store.FailPost(ctx, postID, "worker reported failure")
	}
	return m.store.MarkPosted(ctx, postID, time.Now().UTC())
}
