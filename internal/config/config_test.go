package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"biru/internal/config"
)

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, resolved, existed, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if existed {
		t.Fatal("expected file to be reported missing")
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if cfg.Selection.MinClips != 15 || cfg.Selection.MaxClips != 25 {
		t.Fatalf("unexpected selection defaults: %+v", cfg.Selection)
	}
	if cfg.Memory.SmoothingAlpha != 0.2 {
		t.Fatalf("unexpected smoothing alpha: %v", cfg.Memory.SmoothingAlpha)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[selection]
min_clips = 5
max_clips = 8
min_gap_seconds = 2.5

[schedule]
platforms = ["youtube"]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, existed, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !existed {
		t.Fatal("expected file to be found")
	}
	if cfg.Selection.MinClips != 5 || cfg.Selection.MaxClips != 8 {
		t.Fatalf("overrides not applied: %+v", cfg.Selection)
	}
	if cfg.Schedule.Platforms[0] != "YOUTUBE" {
		t.Fatalf("platform not normalized: %v", cfg.Schedule.Platforms)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"inverted clip bounds", func(c *config.Config) { c.Selection.MaxClips = c.Selection.MinClips - 1 }},
		{"alpha too large", func(c *config.Config) { c.Memory.SmoothingAlpha = 1.5 }},
		{"alpha zero", func(c *config.Config) { c.Memory.SmoothingAlpha = 0 }},
		{"empty platforms", func(c *config.Config) { c.Schedule.Platforms = nil }},
		{"unsorted buckets", func(c *config.Config) { c.Memory.DurationBuckets = []int{30, 15} }},
		{"relaxation above one", func(c *config.Config) { c.Selection.ScoreRelaxationFactor = 1.2 }},
		{"slot hour out of range", func(c *config.Config) { c.Schedule.SlotHours = []int{9, 24} }},
		{"heartbeat timeout too small", func(c *config.Config) { c.Workflow.HeartbeatTimeout = c.Workflow.HeartbeatInterval }},
		{"scoring weights over one", func(c *config.Config) { c.Scoring.HookWeight, c.Scoring.EnergyWeight = 0.8, 0.8 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.WriteSample(path); err != nil {
		t.Fatalf("WriteSample failed: %v", err)
	}
	if err := config.WriteSample(path); err == nil {
		t.Fatal("expected overwrite refusal")
	}
	cfg, _, existed, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
	if !existed || cfg == nil {
		t.Fatal("expected sample config to exist and parse")
	}
}
