// Package testsupport provides shared helpers for package tests: temp-dir
// configs, throwaway stores, and canned signal bundles.
package testsupport

import (
	"context"
	"path/filepath"
	"testing"

	"biru/internal/config"
	"biru/internal/signals"
	"biru/internal/store"
)

// NewConfig returns a validated config rooted in a per-test temp directory.
func NewConfig(t *testing.T) *config.Config {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default test config invalid: %v", err)
	}
	return &cfg
}

// MustOpenStore opens a store against the test config and closes it when the
// test ends.
func MustOpenStore(t *testing.T, cfg *config.Config) *store.Store {
	t.Helper()
	st, err := store.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return st
}

// Bundle builds a signal bundle with evenly spaced spans, one per minute,
// alternating hook strength so selection tests get a mix of candidates.
func Bundle(durationSeconds float64, spanCount int) *signals.Bundle {
	bundle := &signals.Bundle{DurationSeconds: durationSeconds}
	spacing := durationSeconds / float64(spanCount)
	for i := 0; i < spanCount; i++ {
		start := float64(i) * spacing
		hook := 0.9
		if i%2 == 1 {
			hook = 0.4
		}
		bundle.Spans = append(bundle.Spans, signals.TranscriptSpan{
			StartSeconds: start,
			EndSeconds:   start + spacing*0.8,
			Text:         "segment",
			HookScore:    hook,
		})
		bundle.Energy = append(bundle.Energy, signals.EnergySample{
			AtSeconds: start + spacing*0.4,
			Level:     0.5,
		})
	}
	return bundle
}

// SeedAsset creates an asset and attaches an encoded bundle to it.
func SeedAsset(t *testing.T, st *store.Store, bundle *signals.Bundle) *store.Asset {
	t.Helper()
	ctx := context.Background()
	asset, err := st.NewAsset(ctx, "Test Asset", "/tmp/test.mp4", "file", "video")
	if err != nil {
		t.Fatalf("new asset: %v", err)
	}
	if bundle != nil {
		payload, err := signals.Encode(bundle)
		if err != nil {
			t.Fatalf("encode bundle: %v", err)
		}
		if err := st.PutSignals(ctx, asset.ID, payload, bundle.DurationSeconds); err != nil {
			t.Fatalf("put signals: %v", err)
		}
	}
	return asset
}
