// Package dispatch hands work items to an external asynchronous worker
// layer and correlates the at-least-once completion callbacks that come
// back. Missed deadlines retry with capped backoff up to a configured
// attempt limit.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"biru/internal/logging"
	"biru/internal/services"
	"biru/internal/store"
)

// Outcome is the terminal result of a dispatched work item.
type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFailure Outcome = "FAILURE"
)

// WorkItem is the message handed to the worker layer.
type WorkItem struct {
	EntityType    store.EntityType `json:"entityType"`
	EntityID      int64            `json:"entityId"`
	Operation     string           `json:"operation"`
	CorrelationID string           `json:"correlationId"`
}

// Completion is the worker layer's callback message.
type Completion struct {
	CorrelationID string  `json:"correlationId"`
	Outcome       Outcome `json:"outcome"`
	ResultPayload string  `json:"resultPayload,omitempty"`
}

// Worker accepts work items for background execution. Completions arrive
// separately through Coordinator.Complete.
type Worker interface {
	Dispatch(ctx context.Context, item WorkItem) error
}

// Policy bounds one work item's retry behavior.
type Policy struct {
	Timeout     time.Duration
	MaxAttempts int
}

// Coordinator tracks in-flight work items by correlation id.
type Coordinator struct {
	worker Worker
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]chan Completion
}

// NewCoordinator builds a coordinator over the given worker.
func NewCoordinator(worker Worker, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		worker:  worker,
		logger:  logging.NewComponentLogger(logger, "dispatch"),
		pending: make(map[string]chan Completion),
	}
}

// NewWorkItem builds a work item with a fresh correlation id.
func NewWorkItem(entityType store.EntityType, entityID int64, operation string) WorkItem {
	return WorkItem{
		EntityType:    entityType,
		EntityID:      entityID,
		Operation:     operation,
		CorrelationID: uuid.NewString(),
	}
}

// Execute dispatches the item and waits for its completion under the retry
// policy. Each timed-out attempt redispatches with the same correlation id.
// After the attempt cap the caller gets ErrDispatchTimeout and decides the
// entity's fate.
func (c *Coordinator) Execute(ctx context.Context, item WorkItem, policy Policy) (Completion, error) {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	ch := c.register(item.CorrelationID)
	defer c.unregister(item.CorrelationID)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			backoff := backoffFor(attempt)
			c.logger.Warn("redispatching after timeout",
				logging.String(logging.FieldCorrelationID, item.CorrelationID),
				logging.Int("attempt", attempt),
				logging.Duration("backoff", backoff))
			select {
			case <-ctx.Done():
				return Completion{}, ctx.Err()
			case <-time.After(backoff):
			}
		}
		if err := c.worker.Dispatch(ctx, item); err != nil {
			lastErr = services.Wrap(services.ErrTransient, "dispatch", "send",
				fmt.Sprintf("%s %d op %s", item.EntityType, item.EntityID, item.Operation), err)
			continue
		}

		timer := time.NewTimer(policy.Timeout)
		select {
		case completion := <-ch:
			timer.Stop()
			return completion, nil
		case <-ctx.Done():
			timer.Stop()
			return Completion{}, ctx.Err()
		case <-timer.C:
			lastErr = services.Wrap(services.ErrDispatchTimeout, "dispatch", "await",
				fmt.Sprintf("%s %d op %s attempt %d", item.EntityType, item.EntityID, item.Operation, attempt), nil)
		}
	}
	return Completion{}, lastErr
}

// Complete routes a worker callback to its waiter. Unknown or duplicate
// correlation ids are dropped: the worker layer delivers at least once, and
// a completion for an item that already finished carries no new information.
func (c *Coordinator) Complete(completion Completion) bool {
	c.mu.Lock()
	ch, ok := c.pending[completion.CorrelationID]
	c.mu.Unlock()
	if !ok {
		c.logger.Debug("dropping completion for unknown correlation id",
			logging.String(logging.FieldCorrelationID, completion.CorrelationID))
		return false
	}
	select {
	case ch <- completion:
		return true
	default:
		// Waiter already satisfied by an earlier delivery.
		return false
	}
}

func (c *Coordinator) register(correlationID string) chan Completion {
	ch := make(chan Completion, 1)
	c.mu.Lock()
	c.pending[correlationID] = ch
	c.mu.Unlock()
	return ch
}

func (c *Coordinator) unregister(correlationID string) {
	c.mu.Lock()
	delete(c.pending, correlationID)
	c.mu.Unlock()
}

func backoffFor(attempt int) time.Duration {
	backoff := time.Second << uint(attempt-1)
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}
