package analysis_test

import (
	"context"
	"testing"
	"time"

	"biru/internal/analysis"
	"biru/internal/logging"
	"biru/internal/store"
	"biru/internal/testsupport"
)

func TestExecuteSelectsClips(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	stage := analysis.NewStage(cfg, st, logging.NewNop())

	ctx := context.Background()
	asset := testsupport.SeedAsset(t, st, testsupport.Bundle(3600, 40))
	asset, err := st.GetAsset(ctx, asset.ID)
	if err != nil {
		t.Fatalf("reload asset: %v", err)
	}

	if err := stage.Execute(ctx, asset); err != nil {
		t.Fatalf("execute: %v", err)
	}

	clips, err := st.ClipsByAsset(ctx, asset.ID)
	if err != nil {
		t.Fatalf("clips by asset: %v", err)
	}
	if len(clips) < cfg.Selection.MinClips || len(clips) > cfg.Selection.MaxClips {
		t.Fatalf("clip count %d outside [%d, %d]", len(clips), cfg.Selection.MinClips, cfg.Selection.MaxClips)
	}
}

func TestRerunAfterReclaimReplacesClips(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	stage := analysis.NewStage(cfg, st, logging.NewNop())

	ctx := context.Background()
	asset := testsupport.SeedAsset(t, st, testsupport.Bundle(3600, 40))
	asset, err := st.GetAsset(ctx, asset.ID)
	if err != nil {
		t.Fatalf("reload asset: %v", err)
	}

	if err := st.TransitionAsset(ctx, asset.ID, store.StatusPending, store.StatusProcessing); err != nil {
		t.Fatalf("claim asset: %v", err)
	}
	if err := stage.Execute(ctx, asset); err != nil {
		t.Fatalf("first pass: %v", err)
	}

	// The daemon dies between the clip insert and the READY transition;
	// the asset is left PROCESSING and the monitor re-pends it.
	reclaimed, err := st.ReclaimStale(ctx, time.Now().UTC().Add(time.Minute))
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if reclaimed == 0 {
		t.Fatal("expected the stalled asset to be reclaimed")
	}
	if err := st.TransitionAsset(ctx, asset.ID, store.StatusPending, store.StatusProcessing); err != nil {
		t.Fatalf("reclaim asset: %v", err)
	}
	if err := stage.Execute(ctx, asset); err != nil {
		t.Fatalf("second pass: %v", err)
	}

	clips, err := st.ClipsByAsset(ctx, asset.ID)
	if err != nil {
		t.Fatalf("clips by asset: %v", err)
	}
	if len(clips) < cfg.Selection.MinClips || len(clips) > cfg.Selection.MaxClips {
		t.Fatalf("clip count %d outside [%d, %d] after rerun", len(clips), cfg.Selection.MinClips, cfg.Selection.MaxClips)
	}
	for i, a := range clips {
		for _, b := range clips[i+1:] {
			if a.Overlaps(b, cfg.Selection.MinGapSeconds) {
				t.Fatalf("clips %d and %d overlap after rerun: [%v,%v] vs [%v,%v]",
					a.ID, b.ID, a.StartSeconds, a.EndSeconds, b.StartSeconds, b.EndSeconds)
			}
		}
	}
}
