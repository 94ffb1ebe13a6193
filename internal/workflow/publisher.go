package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"biru/internal/config"
	"biru/internal/dispatch"
	"biru/internal/logging"
	"biru/internal/notifications"
	"biru/internal/services"
	"biru/internal/store"
)

// OperationPublish is the work-item operation for delivering a due post.
const OperationPublish = "publish"

// Publisher hands due posts to the external posting layer and settles the
// outcome.
type Publisher struct {
	store       *store.Store
	coordinator *dispatch.Coordinator
	policy      dispatch.Policy
	notifier    notifications.Service
	logger      *slog.Logger

	now func() time.Time
}

// NewPublisher wires a publisher from config.
func NewPublisher(cfg *config.Config, st *store.Store, coordinator *dispatch.Coordinator, notifier notifications.Service, logger *slog.Logger) *Publisher {
	if notifier == nil {
		notifier = notifications.Noop{}
	}
	return &Publisher{
		store:       st,
		coordinator: coordinator,
		policy: dispatch.Policy{
			Timeout:     time.Duration(cfg.Workflow.DispatchTimeoutSeconds) * time.Second,
			MaxAttempts: cfg.Workflow.DispatchMaxAttempts,
		},
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "publisher"),
		now:      time.Now,
	}
}

// Pass publishes every due post. Per-post failures mark that post FAILED
// and the pass continues.
func (p *Publisher) Pass(ctx context.Context) error {
	due, err := p.store.DuePosts(ctx, p.now().UTC())
	if err != nil {
		return err
	}
	for _, post := range due {
		if err := p.publish(ctx, post); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			p.logger.Error("publish post",
				logging.Int64(logging.FieldPostID, post.ID),
				logging.Error(err))
		}
	}
	return nil
}

func (p *Publisher) publish(ctx context.Context, post *store.Post) error {
	item := dispatch.NewWorkItem(store.EntityPost, post.ID, OperationPublish)
	p.logger.Info("dispatching publish",
		logging.Int64(logging.FieldPostID, post.ID),
		logging.String("platform", post.Platform),
		logging.String("slot", post.SlotKey))

	completion, err := p.coordinator.Execute(ctx, item, p.policy)
	if err != nil {
		if errors.Is(err, services.ErrDispatchTimeout) {
			// Retries exhausted: surface the post for manual intervention.
			if failErr := p.store.FailPost(ctx, post.ID, err.Error()); failErr != nil {
				return failErr
			}
			p.notifier.Error(ctx, "post "+post.SlotKey, err)
		}
		return err
	}

	if completion.Outcome != dispatch.OutcomeSuccess {
		if failErr := p.store.FailPost(ctx, post.ID, completion.ResultPayload); failErr != nil {
			return failErr
		}
		p.notifier.Error(ctx, "post "+post.SlotKey,
			services.Wrap(services.ErrValidation, "publisher", "publish", completion.ResultPayload, nil))
		return nil
	}

	if err := p.store.MarkPosted(ctx, post.ID, p.now().UTC()); err != nil {
		return err
	}
	p.notifier.Posted(ctx, post.Platform, post.SlotKey)
	return nil
}
