// Package planner runs the scheduling pass: it feeds ready clips, the
// calendar, and learned priors through the decision engine and persists the
// resulting posts with their audit records.
package planner

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"biru/internal/brain"
	"biru/internal/config"
	"biru/internal/logging"
	"biru/internal/memory"
	"biru/internal/services"
	"biru/internal/store"
)

// Planner owns one content calendar.
type Planner struct {
	cfg    *config.Config
	store  *store.Store
	model  *memory.Model
	logger *slog.Logger

	// now is swappable in tests.
	now func() time.Time
}

// New builds a planner.
func New(cfg *config.Config, st *store.Store, model *memory.Model, logger *slog.Logger) *Planner {
	return &Planner{
		cfg:    cfg,
		store:  st,
		model:  model,
		logger: logging.NewComponentLogger(logger, "planner"),
		now:    time.Now,
	}
}

// Result summarizes one scheduling pass.
type Result struct {
	Scheduled int
	Deferred  int
}

// Pass schedules every unscheduled READY clip it can. Per-clip scheduling
// failures are recorded and the pass continues; only infrastructure errors
// abort it.
func (p *Planner) Pass(ctx context.Context) (Result, error) {
	var result Result

	clips, err := p.store.UnscheduledClips(ctx)
	if err != nil {
		return result, err
	}
	if len(clips) == 0 {
		return result, nil
	}
	booked, err := p.store.BookedSlots(ctx)
	if err != nil {
		return result, err
	}

	inputs := brain.Inputs{
		Now:             p.now().UTC(),
		HorizonDays:     p.cfg.Schedule.HorizonDays,
		SlotHours:       p.cfg.Schedule.SlotHours,
		Platforms:       p.cfg.Schedule.Platforms,
		DurationBuckets: p.cfg.Memory.DurationBuckets,
		Booked:          booked,
		Priors:          map[memory.Key]float64{},
	}
	for _, clip := range clips {
		inputs.Clips = append(inputs.Clips, brain.ClipInput{
			ClipID:          clip.ID,
			Score:           clip.Score,
			Category:        clip.Category,
			DurationSeconds: clip.Duration(),
			CreatedAt:       clip.CreatedAt,
		})
		if err := p.loadPriors(ctx, clip, inputs.Priors); err != nil {
			return result, err
		}
	}

	placements, deferrals := brain.Plan(inputs)
	for _, deferral := range deferrals {
		p.logger.Info("clip deferred",
			logging.Int64(logging.FieldClipID, deferral.ClipID),
			logging.Error(deferral.Err))
	}
	result.Deferred = len(deferrals)

	for _, placement := range placements {
		if _, err := p.persist(ctx, placement); err != nil {
			if errors.Is(err, services.ErrNoAvailableSlot) {
				// Raced with a manual booking; the clip stays READY and the
				// next pass replans around it.
				p.logger.Warn("slot raced, clip deferred",
					logging.Int64(logging.FieldClipID, placement.ClipID),
					logging.String("slot", placement.SlotKey))
				result.Deferred++
				continue
			}
			return result, err
		}
		result.Scheduled++
		p.logger.Info("clip scheduled",
			logging.Int64(logging.FieldClipID, placement.ClipID),
			logging.String("platform", placement.Platform),
			logging.String("slot", placement.SlotKey))
	}
	return result, nil
}

// ScheduleNow books the earliest open slot on one platform for a specific
// clip, bypassing ranking. Used by the imperative boundary command.
func (p *Planner) ScheduleNow(ctx context.Context, clipID int64, platform string) (*store.Post, error) {
	clip, err := p.store.GetClip(ctx, clipID)
	if err != nil {
		return nil, err
	}
	if clip.Status != store.StatusReady {
		return nil, services.Wrap(services.ErrValidation, "planner", "schedule now",
			"clip is not READY", nil)
	}
	booked, err := p.store.BookedSlots(ctx)
	if err != nil {
		return nil, err
	}

	inputs := brain.Inputs{
		Now:             p.now().UTC(),
		HorizonDays:     p.cfg.Schedule.HorizonDays,
		SlotHours:       p.cfg.Schedule.SlotHours,
		Platforms:       []string{platform},
		DurationBuckets: p.cfg.Memory.DurationBuckets,
		Booked:          booked,
		Priors:          map[memory.Key]float64{},
		Clips: []brain.ClipInput{{
			ClipID:          clip.ID,
			Score:           clip.Score,
			Category:        clip.Category,
			DurationSeconds: clip.Duration(),
			CreatedAt:       clip.CreatedAt,
		}},
	}
	if err := p.loadPriors(ctx, clip, inputs.Priors); err != nil {
		return nil, err
	}

	placements, deferrals := brain.Plan(inputs)
	if len(deferrals) > 0 {
		return nil, deferrals[0].Err
	}
	return p.persist(ctx, placements[0])
}

func (p *Planner) persist(ctx context.Context, placement brain.Placement) (*store.Post, error) {
	inputsJSON, err := brain.EncodeSnapshot(placement.Snapshot)
	if err != nil {
		return nil, err
	}
	post := &store.Post{
		ClipID:      placement.ClipID,
		Platform:    placement.Platform,
		SlotKey:     placement.SlotKey,
		ScheduledAt: placement.ScheduledAt,
	}
	decision := &store.StrategyDecision{
		InputsJSON: inputsJSON,
		Platform:   placement.Platform,
		ChosenSlot: placement.SlotKey,
		Rationale:  placement.Rationale,
	}
	if err := p.store.SchedulePost(ctx, post, decision); err != nil {
		return nil, err
	}
	return post, nil
}

// loadPriors resolves the four time-of-day priors a clip can be judged by.
func (p *Planner) loadPriors(ctx context.Context, clip *store.Clip, priors map[memory.Key]float64) error {
	category := clip.Category
	if category == "" {
		category = "general"
	}
	bucket := memory.DurationBucketFor(clip.Duration(), p.cfg.Memory.DurationBuckets)
	for _, slot := range []string{"night", "morning", "afternoon", "evening"} {
		key := memory.Key{Category: category, TimeSlot: slot, DurationBucket: bucket}
		if _, loaded := priors[key]; loaded {
			continue
		}
		prior, err := p.model.Query(ctx, key)
		if err != nil {
			return err
		}
		priors[key] = prior.Weight
	}
	return nil
}
