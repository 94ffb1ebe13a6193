package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"biru/internal/analysis"
	"biru/internal/config"
	"biru/internal/dispatch"
	"biru/internal/memory"
	"biru/internal/planner"
	"biru/internal/render"
	"biru/internal/services"
	"biru/internal/signals"
	"biru/internal/store"
	"biru/internal/testsupport"
)

// renderWorker completes render items with canned artifacts.
type renderWorker struct {
	coordinator *dispatch.Coordinator
	outcome     dispatch.Outcome
}

func (w *renderWorker) Dispatch(ctx context.Context, item dispatch.WorkItem) error {
	payload := ""
	if w.outcome == dispatch.OutcomeSuccess {
		artifacts, _ := json.Marshal(render.Artifacts{
			MediaPath:     "/renders/clip.mp4",
			ThumbnailPath: "/renders/clip.jpg",
			FormatTag:     "vertical",
		})
		payload = string(artifacts)
	}
	go w.coordinator.Complete(dispatch.Completion{
		CorrelationID: item.CorrelationID,
		Outcome:       w.outcome,
		ResultPayload: payload,
	})
	return nil
}

func newManager(t *testing.T, outcome dispatch.Outcome) (*Manager, *store.Store, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.DispatchTimeoutSeconds = 2
	st := testsupport.MustOpenStore(t, cfg)

	worker := &renderWorker{outcome: outcome}
	coordinator := dispatch.NewCoordinator(worker, nil)
	worker.coordinator = coordinator

	model, err := memory.NewModel(st, cfg.Memory.SmoothingAlpha)
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	p := planner.New(cfg, st, model, nil)
	publisher := NewPublisher(cfg, st, coordinator, nil, nil)
	manager := NewManager(cfg, st,
		analysis.NewStage(cfg, st, nil),
		render.NewStage(cfg, st, coordinator, nil),
		p, publisher, nil, nil)
	return manager, st, cfg
}

func TestProcessAssetCreatesClips(t *testing.T) {
	ctx := context.Background()
	manager, st, cfg := newManager(t, dispatch.OutcomeSuccess)
	asset := testsupport.SeedAsset(t, st, testsupport.Bundle(600, 40))

	worked, err := manager.processNextAsset(ctx)
	if err != nil {
		t.Fatalf("processNextAsset: %v", err)
	}
	if !worked {
		t.Fatal("expected the pending asset to be processed")
	}

	loaded, err := st.GetAsset(ctx, asset.ID)
	if err != nil {
		t.Fatalf("GetAsset: %v", err)
	}
	if loaded.Status != store.StatusReady {
		t.Fatalf("asset status = %s (%s), want READY", loaded.Status, loaded.ErrorMessage)
	}

	clips, err := st.ClipsByAsset(ctx, asset.ID)
	if err != nil {
		t.Fatalf("ClipsByAsset: %v", err)
	}
	if len(clips) < cfg.Selection.MinClips || len(clips) > cfg.Selection.MaxClips {
		t.Fatalf("clip count = %d, want within [%d, %d]", len(clips), cfg.Selection.MinClips, cfg.Selection.MaxClips)
	}
	for i, a := range clips {
		for _, b := range clips[i+1:] {
			if a.Overlaps(b, cfg.Selection.MinGapSeconds) {
				t.Fatalf("overlapping clips persisted: %+v and %+v", a, b)
			}
		}
	}
}

func TestProcessAssetRetriesIncompleteSignals(t *testing.T) {
	ctx := context.Background()
	manager, st, cfg := newManager(t, dispatch.OutcomeSuccess)
	asset := testsupport.SeedAsset(t, st, nil)

	for attempt := 1; attempt < cfg.Workflow.DispatchMaxAttempts; attempt++ {
		if _, err := manager.processNextAsset(ctx); err != nil {
			t.Fatalf("attempt %d: %v", attempt, err)
		}
		loaded, err := st.GetAsset(ctx, asset.ID)
		if err != nil {
			t.Fatalf("GetAsset: %v", err)
		}
		if loaded.Status != store.StatusPending {
			t.Fatalf("after attempt %d status = %s, want PENDING", attempt, loaded.Status)
		}
		if loaded.Attempts != attempt {
			t.Fatalf("attempts = %d, want %d", loaded.Attempts, attempt)
		}
	}

	// The capped attempt fails the asset instead of requeueing again.
	if _, err := manager.processNextAsset(ctx); err != nil {
		t.Fatalf("final attempt: %v", err)
	}
	loaded, err := st.GetAsset(ctx, asset.ID)
	if err != nil {
		t.Fatalf("GetAsset: %v", err)
	}
	if loaded.Status != store.StatusFailed {
		t.Fatalf("status after exhausted retries = %s, want FAILED", loaded.Status)
	}
}

func TestProcessAssetHoldsOnInsufficientSegments(t *testing.T) {
	ctx := context.Background()
	manager, st, _ := newManager(t, dispatch.OutcomeSuccess)

	bundle := &signals.Bundle{
		DurationSeconds: 60,
		Spans: []signals.TranscriptSpan{
			{StartSeconds: 0, EndSeconds: 10, HookScore: 0.01},
		},
		Energy: []signals.EnergySample{{AtSeconds: 5, Level: 0.01}},
	}
	asset := testsupport.SeedAsset(t, st, bundle)

	if _, err := manager.processNextAsset(ctx); err != nil {
		t.Fatalf("processNextAsset: %v", err)
	}
	loaded, err := st.GetAsset(ctx, asset.ID)
	if err != nil {
		t.Fatalf("GetAsset: %v", err)
	}
	if loaded.Status != store.StatusProcessing {
		t.Fatalf("held asset status = %s, want PROCESSING", loaded.Status)
	}
	if loaded.ProgressStage != "Held" {
		t.Fatalf("progress stage = %q, want Held", loaded.ProgressStage)
	}
}

func TestProcessClipAppliesArtifacts(t *testing.T) {
	ctx := context.Background()
	manager, st, _ := newManager(t, dispatch.OutcomeSuccess)
	asset := testsupport.SeedAsset(t, st, nil)

	clips := []*store.Clip{{StartSeconds: 0, EndSeconds: 20, Score: 0.9}}
	if err := st.CreateClips(ctx, asset.ID, clips); err != nil {
		t.Fatalf("CreateClips: %v", err)
	}

	worked, err := manager.processNextClip(ctx)
	if err != nil {
		t.Fatalf("processNextClip: %v", err)
	}
	if !worked {
		t.Fatal("expected the pending clip to be processed")
	}

	loaded, err := st.GetClip(ctx, clips[0].ID)
	if err != nil {
		t.Fatalf("GetClip: %v", err)
	}
	if loaded.Status != store.StatusReady {
		t.Fatalf("clip status = %s (%s), want READY", loaded.Status, loaded.ErrorMessage)
	}
	if loaded.MediaPath != "/renders/clip.mp4" || loaded.FormatTag != "vertical" {
		t.Fatalf("artifacts not applied: %+v", loaded)
	}
}

func TestProcessClipFailureMarksFailed(t *testing.T) {
	ctx := context.Background()
	manager, st, _ := newManager(t, dispatch.OutcomeFailure)
	asset := testsupport.SeedAsset(t, st, nil)

	clips := []*store.Clip{{StartSeconds: 0, EndSeconds: 20, Score: 0.9}}
	if err := st.CreateClips(ctx, asset.ID, clips); err != nil {
		t.Fatalf("CreateClips: %v", err)
	}
	if _, err := manager.processNextClip(ctx); err != nil {
		t.Fatalf("processNextClip: %v", err)
	}

	loaded, err := st.GetClip(ctx, clips[0].ID)
	if err != nil {
		t.Fatalf("GetClip: %v", err)
	}
	if loaded.Status != store.StatusFailed {
		t.Fatalf("clip status = %s, want FAILED", loaded.Status)
	}
}

func TestReportCompletionIsIdempotent(t *testing.T) {
	ctx := context.Background()
	manager, st, _ := newManager(t, dispatch.OutcomeSuccess)
	asset := testsupport.SeedAsset(t, st, nil)

	clips := []*store.Clip{{StartSeconds: 0, EndSeconds: 20, Score: 0.9}}
	if err := st.CreateClips(ctx, asset.ID, clips); err != nil {
		t.Fatalf("CreateClips: %v", err)
	}
	if err := st.TransitionClip(ctx, clips[0].ID, store.StatusPending, store.StatusProcessing); err != nil {
		t.Fatalf("claim clip: %v", err)
	}

	if err := manager.ReportCompletion(ctx, store.EntityClip, clips[0].ID, dispatch.OutcomeSuccess); err != nil {
		t.Fatalf("first completion: %v", err)
	}
	// Duplicate delivery of the same outcome is a no-op.
	if err := manager.ReportCompletion(ctx, store.EntityClip, clips[0].ID, dispatch.OutcomeSuccess); err != nil {
		t.Fatalf("duplicate completion: %v", err)
	}
	// A conflicting outcome for a terminal entity is rejected.
	err := manager.ReportCompletion(ctx, store.EntityClip, clips[0].ID, dispatch.OutcomeFailure)
	if !errors.Is(err, services.ErrInvalidTransition) {
		t.Fatalf("conflicting completion = %v, want ErrInvalidTransition", err)
	}

	loaded, err := st.GetClip(ctx, clips[0].ID)
	if err != nil {
		t.Fatalf("GetClip: %v", err)
	}
	if loaded.Status != store.StatusReady {
		t.Fatalf("clip status = %s, want READY", loaded.Status)
	}
}

func TestPublisherPass(t *testing.T) {
	ctx := context.Background()
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.DispatchTimeoutSeconds = 2
	st := testsupport.MustOpenStore(t, cfg)

	worker := &renderWorker{outcome: dispatch.OutcomeSuccess}
	coordinator := dispatch.NewCoordinator(worker, nil)
	worker.coordinator = coordinator
	publisher := NewPublisher(cfg, st, coordinator, nil, nil)

	asset := testsupport.SeedAsset(t, st, nil)
	clips := []*store.Clip{{StartSeconds: 0, EndSeconds: 20, Score: 0.9}}
	if err := st.CreateClips(ctx, asset.ID, clips); err != nil {
		t.Fatalf("CreateClips: %v", err)
	}
	slot := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	post := &store.Post{ClipID: clips[0].ID, Platform: "YOUTUBE", SlotKey: "2026-09-01T09", ScheduledAt: slot}
	if err := st.SchedulePost(ctx, post, &store.StrategyDecision{Platform: "YOUTUBE", ChosenSlot: "2026-09-01T09"}); err != nil {
		t.Fatalf("SchedulePost: %v", err)
	}

	publisher.now = func() time.Time { return slot.Add(time.Hour) }
	if err := publisher.Pass(ctx); err != nil {
		t.Fatalf("Pass: %v", err)
	}

	loaded, err := st.GetPost(ctx, post.ID)
	if err != nil {
		t.Fatalf("GetPost: %v", err)
	}
	if loaded.Status != store.StatusPosted {
		t.Fatalf("post status = %s, want POSTED", loaded.Status)
	}
	if loaded.PostedAt == nil {
		t.Fatal("posted_at not stamped")
	}
}
