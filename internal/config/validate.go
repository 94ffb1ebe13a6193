package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateSelection(); err != nil {
		return err
	}
	if err := c.validateScoring(); err != nil {
		return err
	}
	if err := c.validateMemory(); err != nil {
		return err
	}
	if err := c.validateSchedule(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	return nil
}

func (c *Config) validateSelection() error {
	if c.Selection.MinClips <= 0 {
		return errors.New("selection.min_clips must be positive")
	}
	if c.Selection.MaxClips < c.Selection.MinClips {
		return fmt.Errorf("selection.max_clips (%d) must be >= selection.min_clips (%d)",
			c.Selection.MaxClips, c.Selection.MinClips)
	}
	if c.Selection.MinGapSeconds < 0 {
		return errors.New("selection.min_gap_seconds must not be negative")
	}
	if c.Selection.ScoreRelaxationFactor <= 0 || c.Selection.ScoreRelaxationFactor > 1 {
		return errors.New("selection.score_relaxation_factor must be in (0, 1]")
	}
	if c.Selection.MinSegmentSeconds <= 0 {
		return errors.New("selection.min_segment_seconds must be positive")
	}
	if c.Selection.ScoreThreshold < 0 || c.Selection.ScoreThreshold > 1 {
		return errors.New("selection.score_threshold must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateScoring() error {
	if c.Scoring.HookWeight < 0 || c.Scoring.EnergyWeight < 0 {
		return errors.New("scoring weights must not be negative")
	}
	if c.Scoring.HookWeight+c.Scoring.EnergyWeight <= 0 {
		return errors.New("scoring weights must not both be zero")
	}
	if c.Scoring.HookWeight+c.Scoring.EnergyWeight > 1 {
		return errors.New("scoring weights must sum to at most 1")
	}
	return nil
}

func (c *Config) validateMemory() error {
	if c.Memory.SmoothingAlpha <= 0 || c.Memory.SmoothingAlpha > 1 {
		return errors.New("memory.smoothing_alpha must be in (0, 1]")
	}
	if len(c.Memory.DurationBuckets) == 0 {
		return errors.New("memory.duration_buckets must not be empty")
	}
	prev := 0
	for _, bound := range c.Memory.DurationBuckets {
		if bound <= prev {
			return errors.New("memory.duration_buckets must be strictly increasing positive bounds")
		}
		prev = bound
	}
	return nil
}

func (c *Config) validateSchedule() error {
	if c.Schedule.HorizonDays <= 0 {
		return errors.New("schedule.horizon_days must be positive")
	}
	if len(c.Schedule.Platforms) == 0 {
		return errors.New("schedule.platforms must not be empty")
	}
	if len(c.Schedule.SlotHours) == 0 {
		return errors.New("schedule.slot_hours must not be empty")
	}
	prev := -1
	for _, hour := range c.Schedule.SlotHours {
		if hour < 0 || hour > 23 {
			return fmt.Errorf("schedule.slot_hours entry %d out of range", hour)
		}
		if hour <= prev {
			return errors.New("schedule.slot_hours must be strictly increasing")
		}
		prev = hour
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.QueuePollInterval <= 0 {
		return errors.New("workflow.queue_poll_interval must be positive")
	}
	if c.Workflow.HeartbeatInterval <= 0 || c.Workflow.HeartbeatTimeout <= 0 {
		return errors.New("workflow heartbeat interval and timeout must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must exceed workflow.heartbeat_interval")
	}
	if c.Workflow.DispatchTimeoutSeconds <= 0 {
		return errors.New("workflow.dispatch_timeout_seconds must be positive")
	}
	if c.Workflow.DispatchMaxAttempts <= 0 {
		return errors.New("workflow.dispatch_max_attempts must be positive")
	}
	return nil
}
