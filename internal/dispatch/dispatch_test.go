package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"biru/internal/services"
	"biru/internal/store"
)

// echoWorker completes every item immediately with the given outcome.
type echoWorker struct {
	coordinator *Coordinator
	outcome     Outcome
	deliveries  int
}

func (w *echoWorker) Dispatch(ctx context.Context, item WorkItem) error {
	go func() {
		// Deliver twice to exercise at-least-once semantics.
		for i := 0; i < 2; i++ {
			w.coordinator.Complete(Completion{CorrelationID: item.CorrelationID, Outcome: w.outcome})
		}
	}()
	w.deliveries++
	return nil
}

// silentWorker accepts items and never completes them.
type silentWorker struct {
	mu       sync.Mutex
	attempts int
}

func (w *silentWorker) Dispatch(ctx context.Context, item WorkItem) error {
	w.mu.Lock()
	w.attempts++
	w.mu.Unlock()
	return nil
}

func TestExecuteReturnsCompletion(t *testing.T) {
	worker := &echoWorker{outcome: OutcomeSuccess}
	coordinator := NewCoordinator(worker, nil)
	worker.coordinator = coordinator

	item := NewWorkItem(store.EntityClip, 42, "render")
	completion, err := coordinator.Execute(context.Background(), item, Policy{Timeout: time.Second, MaxAttempts: 3})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if completion.Outcome != OutcomeSuccess || completion.CorrelationID != item.CorrelationID {
		t.Fatalf("completion = %+v", completion)
	}
	if worker.deliveries != 1 {
		t.Fatalf("dispatches = %d, want 1", worker.deliveries)
	}
}

func TestExecuteRetriesThenTimesOut(t *testing.T) {
	worker := &silentWorker{}
	coordinator := NewCoordinator(worker, nil)

	item := NewWorkItem(store.EntityClip, 7, "render")
	start := time.Now()
	_, err := coordinator.Execute(context.Background(), item, Policy{Timeout: 10 * time.Millisecond, MaxAttempts: 2})
	if !errors.Is(err, services.ErrDispatchTimeout) {
		t.Fatalf("Execute = %v, want ErrDispatchTimeout", err)
	}
	if !services.Retryable(err) {
		t.Fatal("dispatch timeout should be classified retryable")
	}
	if worker.attempts != 2 {
		t.Fatalf("attempts = %d, want 2", worker.attempts)
	}
	if elapsed := time.Since(start); elapsed < time.Second {
		t.Fatalf("second attempt should wait for backoff, elapsed %v", elapsed)
	}
}

func TestCompleteUnknownCorrelationIsDropped(t *testing.T) {
	coordinator := NewCoordinator(&silentWorker{}, nil)
	if coordinator.Complete(Completion{CorrelationID: "nope", Outcome: OutcomeSuccess}) {
		t.Fatal("unknown correlation id should be dropped")
	}
}

func TestExecuteHonorsContextCancellation(t *testing.T) {
	coordinator := NewCoordinator(&silentWorker{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	item := NewWorkItem(store.EntityAsset, 1, "analyze")
	_, err := coordinator.Execute(ctx, item, Policy{Timeout: time.Minute, MaxAttempts: 1})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Execute = %v, want context.Canceled", err)
	}
}
