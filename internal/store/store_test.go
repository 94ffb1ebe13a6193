package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"biru/internal/services"
	"biru/internal/store"
	"biru/internal/testsupport"
)

func newStore(t *testing.T) *store.Store {
	t.Helper()
	return testsupport.MustOpenStore(t, testsupport.NewConfig(t))
}

func TestAssetLifecycle(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)

	asset, err := st.NewAsset(ctx, "Morning Stream", "/videos/morning.mp4", "file", "video")
	if err != nil {
		t.Fatalf("NewAsset: %v", err)
	}
	if asset.Status != store.StatusPending {
		t.Fatalf("new asset status = %s, want PENDING", asset.Status)
	}
	if asset.CorrelationID == "" {
		t.Fatal("new asset should get a correlation id")
	}

	if err := st.TransitionAsset(ctx, asset.ID, store.StatusPending, store.StatusProcessing); err != nil {
		t.Fatalf("PENDING -> PROCESSING: %v", err)
	}
	if err := st.TransitionAsset(ctx, asset.ID, store.StatusProcessing, store.StatusReady); err != nil {
		t.Fatalf("PROCESSING -> READY: %v", err)
	}

	loaded, err := st.GetAsset(ctx, asset.ID)
	if err != nil {
		t.Fatalf("GetAsset: %v", err)
	}
	if loaded.Status != store.StatusReady {
		t.Fatalf("loaded status = %s, want READY", loaded.Status)
	}
}

func TestInvalidTransitionLeavesRowUntouched(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)

	asset, err := st.NewAsset(ctx, "A", "/a.mp4", "file", "video")
	if err != nil {
		t.Fatalf("NewAsset: %v", err)
	}

	err = st.TransitionAsset(ctx, asset.ID, store.StatusPending, store.StatusReady)
	if !errors.Is(err, services.ErrInvalidTransition) {
		t.Fatalf("PENDING -> READY = %v, want ErrInvalidTransition", err)
	}

	loaded, err := st.GetAsset(ctx, asset.ID)
	if err != nil {
		t.Fatalf("GetAsset: %v", err)
	}
	if loaded.Status != store.StatusPending {
		t.Fatalf("status after rejected transition = %s, want PENDING", loaded.Status)
	}
}

func TestTransitionGuardDetectsConcurrentWinner(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)

	asset, err := st.NewAsset(ctx, "A", "/a.mp4", "file", "video")
	if err != nil {
		t.Fatalf("NewAsset: %v", err)
	}
	if err := st.TransitionAsset(ctx, asset.ID, store.StatusPending, store.StatusProcessing); err != nil {
		t.Fatalf("first transition: %v", err)
	}

	// Second claimer sees a stale PENDING view and must lose.
	err = st.TransitionAsset(ctx, asset.ID, store.StatusPending, store.StatusProcessing)
	if !errors.Is(err, services.ErrInvalidTransition) {
		t.Fatalf("stale transition = %v, want ErrInvalidTransition", err)
	}
}

func TestCreateClipsReplacesPreviousSelection(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	asset := testsupport.SeedAsset(t, st, testsupport.Bundle(300, 6))

	first := []*store.Clip{
		{StartSeconds: 0, EndSeconds: 20, Score: 0.8},
		{StartSeconds: 60, EndSeconds: 90, Score: 0.6},
	}
	if err := st.CreateClips(ctx, asset.ID, first); err != nil {
		t.Fatalf("CreateClips: %v", err)
	}

	second := []*store.Clip{
		{StartSeconds: 10, EndSeconds: 30, Score: 0.9},
	}
	if err := st.CreateClips(ctx, asset.ID, second); err != nil {
		t.Fatalf("CreateClips rerun: %v", err)
	}

	clips, err := st.ClipsByAsset(ctx, asset.ID)
	if err != nil {
		t.Fatalf("ClipsByAsset: %v", err)
	}
	if len(clips) != 1 {
		t.Fatalf("clips after rerun = %d, want 1", len(clips))
	}
	if clips[0].StartSeconds != 10 {
		t.Fatalf("surviving clip start = %v, want the rerun's selection", clips[0].StartSeconds)
	}
}

func TestResetAssetDeletesClips(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	asset := testsupport.SeedAsset(t, st, testsupport.Bundle(300, 6))

	clips := []*store.Clip{
		{StartSeconds: 0, EndSeconds: 20, Score: 0.8},
		{StartSeconds: 60, EndSeconds: 90, Score: 0.6},
	}
	if err := st.CreateClips(ctx, asset.ID, clips); err != nil {
		t.Fatalf("CreateClips: %v", err)
	}

	if err := st.ResetAsset(ctx, asset.ID); err != nil {
		t.Fatalf("ResetAsset: %v", err)
	}

	loaded, err := st.GetAsset(ctx, asset.ID)
	if err != nil {
		t.Fatalf("GetAsset: %v", err)
	}
	if loaded.Status != store.StatusPending {
		t.Fatalf("status after reset = %s, want PENDING", loaded.Status)
	}
	if loaded.SignalsJSON != "" {
		t.Fatal("reset should clear stored signals")
	}
	remaining, err := st.ClipsByAsset(ctx, asset.ID)
	if err != nil {
		t.Fatalf("ClipsByAsset: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("clips after reset = %d, want 0", len(remaining))
	}
}

func TestSchedulePostRejectsDoubleBooking(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	asset := testsupport.SeedAsset(t, st, nil)

	clips := []*store.Clip{
		{StartSeconds: 0, EndSeconds: 20, Score: 0.9},
		{StartSeconds: 40, EndSeconds: 70, Score: 0.7},
	}
	if err := st.CreateClips(ctx, asset.ID, clips); err != nil {
		t.Fatalf("CreateClips: %v", err)
	}

	slot := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	first := &store.Post{ClipID: clips[0].ID, Platform: "YOUTUBE", SlotKey: "2026-09-01T09", ScheduledAt: slot}
	if err := st.SchedulePost(ctx, first, &store.StrategyDecision{Platform: "YOUTUBE", ChosenSlot: "2026-09-01T09"}); err != nil {
		t.Fatalf("first SchedulePost: %v", err)
	}

	second := &store.Post{ClipID: clips[1].ID, Platform: "YOUTUBE", SlotKey: "2026-09-01T09", ScheduledAt: slot}
	err := st.SchedulePost(ctx, second, &store.StrategyDecision{Platform: "YOUTUBE", ChosenSlot: "2026-09-01T09"})
	if !errors.Is(err, services.ErrNoAvailableSlot) {
		t.Fatalf("double booking = %v, want ErrNoAvailableSlot", err)
	}

	// Same slot key on a different platform is fine.
	third := &store.Post{ClipID: clips[1].ID, Platform: "INSTAGRAM", SlotKey: "2026-09-01T09", ScheduledAt: slot}
	if err := st.SchedulePost(ctx, third, &store.StrategyDecision{Platform: "INSTAGRAM", ChosenSlot: "2026-09-01T09"}); err != nil {
		t.Fatalf("cross-platform SchedulePost: %v", err)
	}
}

func TestSchedulePostRecordsDecision(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	asset := testsupport.SeedAsset(t, st, nil)

	clips := []*store.Clip{{StartSeconds: 0, EndSeconds: 20, Score: 0.9}}
	if err := st.CreateClips(ctx, asset.ID, clips); err != nil {
		t.Fatalf("CreateClips: %v", err)
	}

	post := &store.Post{
		ClipID: clips[0].ID, Platform: "YOUTUBE", SlotKey: "2026-09-02T14",
		ScheduledAt: time.Date(2026, 9, 2, 14, 0, 0, 0, time.UTC),
	}
	decision := &store.StrategyDecision{
		Platform: "YOUTUBE", ChosenSlot: "2026-09-02T14",
		InputsJSON: `{"score":0.9}`, Rationale: "highest ranked clip",
	}
	if err := st.SchedulePost(ctx, post, decision); err != nil {
		t.Fatalf("SchedulePost: %v", err)
	}

	stored, err := st.DecisionForPost(ctx, post.ID)
	if err != nil {
		t.Fatalf("DecisionForPost: %v", err)
	}
	if stored.ChosenSlot != "2026-09-02T14" || stored.Rationale != "highest ranked clip" {
		t.Fatalf("stored decision = %+v", stored)
	}
}

func TestFailPostFreesSlot(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	asset := testsupport.SeedAsset(t, st, nil)

	clips := []*store.Clip{
		{StartSeconds: 0, EndSeconds: 20, Score: 0.9},
		{StartSeconds: 40, EndSeconds: 60, Score: 0.8},
	}
	if err := st.CreateClips(ctx, asset.ID, clips); err != nil {
		t.Fatalf("CreateClips: %v", err)
	}

	slot := time.Date(2026, 9, 3, 19, 0, 0, 0, time.UTC)
	post := &store.Post{ClipID: clips[0].ID, Platform: "YOUTUBE", SlotKey: "2026-09-03T19", ScheduledAt: slot}
	if err := st.SchedulePost(ctx, post, &store.StrategyDecision{Platform: "YOUTUBE", ChosenSlot: "2026-09-03T19"}); err != nil {
		t.Fatalf("SchedulePost: %v", err)
	}
	if err := st.FailPost(ctx, post.ID, "upload rejected"); err != nil {
		t.Fatalf("FailPost: %v", err)
	}

	retry := &store.Post{ClipID: clips[1].ID, Platform: "YOUTUBE", SlotKey: "2026-09-03T19", ScheduledAt: slot}
	if err := st.SchedulePost(ctx, retry, &store.StrategyDecision{Platform: "YOUTUBE", ChosenSlot: "2026-09-03T19"}); err != nil {
		t.Fatalf("rebooking a failed slot: %v", err)
	}
}

func TestMetricsAreAppendOnly(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	asset := testsupport.SeedAsset(t, st, nil)

	clips := []*store.Clip{{StartSeconds: 0, EndSeconds: 20, Score: 0.9}}
	if err := st.CreateClips(ctx, asset.ID, clips); err != nil {
		t.Fatalf("CreateClips: %v", err)
	}
	post := &store.Post{
		ClipID: clips[0].ID, Platform: "YOUTUBE", SlotKey: "2026-09-04T09",
		ScheduledAt: time.Date(2026, 9, 4, 9, 0, 0, 0, time.UTC),
	}
	if err := st.SchedulePost(ctx, post, &store.StrategyDecision{Platform: "YOUTUBE", ChosenSlot: "2026-09-04T09"}); err != nil {
		t.Fatalf("SchedulePost: %v", err)
	}

	base := time.Date(2026, 9, 4, 12, 0, 0, 0, time.UTC)
	for i, value := range []float64{100, 250, 400} {
		if _, err := st.AppendMetric(ctx, post.ID, "views", value, base.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatalf("AppendMetric: %v", err)
		}
	}
	metrics, err := st.MetricsForPost(ctx, post.ID)
	if err != nil {
		t.Fatalf("MetricsForPost: %v", err)
	}
	if len(metrics) != 3 {
		t.Fatalf("metric rows = %d, want 3", len(metrics))
	}
	latest, err := st.LatestMetrics(ctx, post.ID)
	if err != nil {
		t.Fatalf("LatestMetrics: %v", err)
	}
	if latest["views"] != 400 {
		t.Fatalf("latest views = %v, want 400", latest["views"])
	}
}

func TestReclaimStale(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	asset := testsupport.SeedAsset(t, st, nil)

	if err := st.TransitionAsset(ctx, asset.ID, store.StatusPending, store.StatusProcessing); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if err := st.TouchAssetHeartbeat(ctx, asset.ID); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}

	// Cutoff in the past: the fresh heartbeat survives.
	count, err := st.ReclaimStale(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("ReclaimStale: %v", err)
	}
	if count != 0 {
		t.Fatalf("reclaimed %d with fresh heartbeat, want 0", count)
	}

	// Cutoff in the future: the entity is considered dead.
	count, err = st.ReclaimStale(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("ReclaimStale: %v", err)
	}
	if count != 1 {
		t.Fatalf("reclaimed %d, want 1", count)
	}
	loaded, err := st.GetAsset(ctx, asset.ID)
	if err != nil {
		t.Fatalf("GetAsset: %v", err)
	}
	if loaded.Status != store.StatusPending {
		t.Fatalf("reclaimed status = %s, want PENDING", loaded.Status)
	}
}

func TestUnscheduledClips(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	asset := testsupport.SeedAsset(t, st, nil)

	clips := []*store.Clip{
		{StartSeconds: 0, EndSeconds: 20, Score: 0.5},
		{StartSeconds: 40, EndSeconds: 60, Score: 0.9},
	}
	if err := st.CreateClips(ctx, asset.ID, clips); err != nil {
		t.Fatalf("CreateClips: %v", err)
	}
	for _, clip := range clips {
		if err := st.TransitionClip(ctx, clip.ID, store.StatusPending, store.StatusProcessing); err != nil {
			t.Fatalf("claim clip: %v", err)
		}
		if err := st.TransitionClip(ctx, clip.ID, store.StatusProcessing, store.StatusReady); err != nil {
			t.Fatalf("finish clip: %v", err)
		}
	}

	unscheduled, err := st.UnscheduledClips(ctx)
	if err != nil {
		t.Fatalf("UnscheduledClips: %v", err)
	}
	if len(unscheduled) != 2 || unscheduled[0].Score != 0.9 {
		t.Fatalf("unscheduled = %+v, want both clips best first", unscheduled)
	}

	post := &store.Post{
		ClipID: clips[1].ID, Platform: "YOUTUBE", SlotKey: "2026-09-05T09",
		ScheduledAt: time.Date(2026, 9, 5, 9, 0, 0, 0, time.UTC),
	}
	if err := st.SchedulePost(ctx, post, &store.StrategyDecision{Platform: "YOUTUBE", ChosenSlot: "2026-09-05T09"}); err != nil {
		t.Fatalf("SchedulePost: %v", err)
	}

	unscheduled, err = st.UnscheduledClips(ctx)
	if err != nil {
		t.Fatalf("UnscheduledClips: %v", err)
	}
	if len(unscheduled) != 1 || unscheduled[0].ID != clips[0].ID {
		t.Fatalf("unscheduled after booking = %+v, want only the unbooked clip", unscheduled)
	}
}

func TestMemoryWeightRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)

	if _, ok, err := st.GetWeight(ctx, "comedy", "evening", "short"); err != nil || ok {
		t.Fatalf("GetWeight on empty store = ok=%v err=%v, want miss", ok, err)
	}

	weight := &store.MemoryWeight{
		Category: "comedy", TimeSlot: "evening", DurationBucket: "short",
		Weight: 0.62, SampleCount: 4,
	}
	if err := st.UpsertWeight(ctx, weight); err != nil {
		t.Fatalf("UpsertWeight: %v", err)
	}
	loaded, ok, err := st.GetWeight(ctx, "comedy", "evening", "short")
	if err != nil || !ok {
		t.Fatalf("GetWeight = ok=%v err=%v", ok, err)
	}
	if loaded.Weight != 0.62 || loaded.SampleCount != 4 {
		t.Fatalf("loaded weight = %+v", loaded)
	}
}

func TestHealthCounts(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	testsupport.SeedAsset(t, st, nil)
	testsupport.SeedAsset(t, st, nil)

	summary, err := st.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if summary.Assets[store.StatusPending] != 2 {
		t.Fatalf("pending assets = %d, want 2", summary.Assets[store.StatusPending])
	}
}
