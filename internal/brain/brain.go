// Package brain ranks ready clips against learned priors and assigns each
// one a posting slot. Planning is a pure function of its inputs: every
// decision records the snapshot it was computed from and can be replayed
// from that snapshot alone.
package brain

import (
	"fmt"
	"sort"
	"time"

	"biru/internal/memory"
	"biru/internal/services"
)

// SlotKeyFormat renders a slot as its platform-unique calendar key.
const SlotKeyFormat = "2006-01-02T15"

// ClipInput is the planner's view of one schedulable clip.
type ClipInput struct {
	ClipID          int64
	Score           float64
	Category        string
	DurationSeconds float64
	CreatedAt       time.Time
}

// Snapshot is the complete, self-contained input record for one decision.
// Replaying a snapshot through the same slot choice reproduces the chosen
// slot exactly.
type Snapshot struct {
	ClipID          int64              `json:"clip_id"`
	ClipScore       float64            `json:"clip_score"`
	Category        string             `json:"category"`
	DurationBucket  string             `json:"duration_bucket"`
	Rank            float64            `json:"rank"`
	GeneratedAt     time.Time          `json:"generated_at"`
	HorizonDays     int                `json:"horizon_days"`
	SlotHours       []int              `json:"slot_hours"`
	Platforms       []string           `json:"platforms"`
	BookedSlots     map[string][]string `json:"booked_slots"`
	TimeSlotWeights map[string]float64 `json:"time_slot_weights"`
}

// Placement is one planned post.
type Placement struct {
	ClipID      int64
	Platform    string
	SlotKey     string
	ScheduledAt time.Time
	Snapshot    Snapshot
	Rationale   string
}

// Deferral records a clip the pass could not place. The clip stays READY
// and is retried on the next pass.
type Deferral struct {
	ClipID int64
	Err    error
}

// Inputs carries everything one planning pass consumes.
type Inputs struct {
	Now             time.Time
	HorizonDays     int
	SlotHours       []int
	Platforms       []string
	DurationBuckets []int
	Clips           []ClipInput
	// Booked maps platform to the slot keys already taken.
	Booked map[string]map[string]struct{}
	// Priors maps a memory key to its current weight. Missing keys fall
	// back to the neutral prior.
	Priors map[memory.Key]float64
}

// Plan assigns slots to clips in rank order. Rank is clip score times the
// best open slot's prior; ties go to the earlier-created clip, so two equal
// clips competing for the same slot resolve deterministically. Each
// placement books its slot before the next clip is considered.
func Plan(in Inputs) ([]Placement, []Deferral) {
	booked := make(map[string]map[string]struct{}, len(in.Booked))
	for platform, slots := range in.Booked {
		booked[platform] = make(map[string]struct{}, len(slots))
		for slot := range slots {
			booked[platform][slot] = struct{}{}
		}
	}

	clips := make([]ClipInput, len(in.Clips))
	copy(clips, in.Clips)

	var placements []Placement
	var deferrals []Deferral

	for len(clips) > 0 {
		// Re-rank each round: booking a slot can change the best open slot
		// for everything still waiting.
		type ranked struct {
			clip ClipInput
			rank float64
		}
		order := make([]ranked, 0, len(clips))
		for _, clip := range clips {
			weights := timeSlotWeights(in, clip)
			best := bestOpenWeight(in, booked, weights)
			order = append(order, ranked{clip: clip, rank: clip.Score * best})
		}
		sort.SliceStable(order, func(i, j int) bool {
			if order[i].rank != order[j].rank {
				return order[i].rank > order[j].rank
			}
			if !order[i].clip.CreatedAt.Equal(order[j].clip.CreatedAt) {
				return order[i].clip.CreatedAt.Before(order[j].clip.CreatedAt)
			}
			return order[i].clip.ClipID < order[j].clip.ClipID
		})

		top := order[0].clip
		snapshot := snapshotFor(in, top, order[0].rank, booked)
		platform, slotKey, at, ok := ChooseSlot(snapshot)
		if !ok {
			deferrals = append(deferrals, Deferral{
				ClipID: top.ClipID,
				Err: services.Wrap(services.ErrNoAvailableSlot, "brain", "plan",
					fmt.Sprintf("clip %d: horizon of %d days exhausted", top.ClipID, in.HorizonDays), nil),
			})
			clips = removeClip(clips, top.ClipID)
			continue
		}

		if booked[platform] == nil {
			booked[platform] = make(map[string]struct{})
		}
		booked[platform][slotKey] = struct{}{}

		placements = append(placements, Placement{
			ClipID:      top.ClipID,
			Platform:    platform,
			SlotKey:     slotKey,
			ScheduledAt: at,
			Snapshot:    snapshot,
			Rationale: fmt.Sprintf("rank %.4f (score %.3f, best prior %.3f): best open slot %s on %s",
				order[0].rank, top.Score, snapshot.TimeSlotWeights[memory.TimeSlotFor(at)], slotKey, platform),
		})
		clips = removeClip(clips, top.ClipID)
	}
	return placements, deferrals
}

// ChooseSlot picks the best-scoring open slot from a snapshot: highest
// time-slot prior wins, earliest time breaks ties, then configured platform
// order. ok is false when the horizon has no open slot.
func ChooseSlot(s Snapshot) (platform, slotKey string, at time.Time, ok bool) {
	booked := make(map[string]map[string]struct{}, len(s.BookedSlots))
	for p, slots := range s.BookedSlots {
		booked[p] = make(map[string]struct{}, len(slots))
		for _, slot := range slots {
			booked[p][slot] = struct{}{}
		}
	}

	bestWeight := -1.0
	start := s.GeneratedAt.UTC()
	for day := 0; day < s.HorizonDays; day++ {
		base := start.AddDate(0, 0, day)
		for _, hour := range s.SlotHours {
			candidate := time.Date(base.Year(), base.Month(), base.Day(), hour, 0, 0, 0, time.UTC)
			if !candidate.After(start) {
				continue
			}
			weight := s.TimeSlotWeights[memory.TimeSlotFor(candidate)]
			if weight <= bestWeight {
				continue
			}
			key := candidate.Format(SlotKeyFormat)
			for _, p := range s.Platforms {
				if _, taken := booked[p][key]; taken {
					continue
				}
				platform, slotKey, at, ok = p, key, candidate, true
				bestWeight = weight
				break
			}
		}
	}
	return platform, slotKey, at, ok
}

func snapshotFor(in Inputs, clip ClipInput, rank float64, booked map[string]map[string]struct{}) Snapshot {
	bookedList := make(map[string][]string, len(booked))
	for platform, slots := range booked {
		keys := make([]string, 0, len(slots))
		for slot := range slots {
			keys = append(keys, slot)
		}
		sort.Strings(keys)
		bookedList[platform] = keys
	}
	return Snapshot{
		ClipID:          clip.ClipID,
		ClipScore:       clip.Score,
		Category:        clip.Category,
		DurationBucket:  memory.DurationBucketFor(clip.DurationSeconds, in.DurationBuckets),
		Rank:            rank,
		GeneratedAt:     in.Now.UTC(),
		HorizonDays:     in.HorizonDays,
		SlotHours:       append([]int(nil), in.SlotHours...),
		Platforms:       append([]string(nil), in.Platforms...),
		BookedSlots:     bookedList,
		TimeSlotWeights: timeSlotWeights(in, clip),
	}
}

// timeSlotWeights resolves the prior for every time-of-day slot name this
// clip could land in.
func timeSlotWeights(in Inputs, clip ClipInput) map[string]float64 {
	category := clip.Category
	if category == "" {
		category = "general"
	}
	bucket := memory.DurationBucketFor(clip.DurationSeconds, in.DurationBuckets)
	weights := make(map[string]float64, 4)
	for _, slot := range []string{"night", "morning", "afternoon", "evening"} {
		key := memory.Key{Category: category, TimeSlot: slot, DurationBucket: bucket}
		if weight, ok := in.Priors[key]; ok {
			weights[slot] = weight
		} else {
			weights[slot] = memory.NeutralWeight
		}
	}
	return weights
}

func bestOpenWeight(in Inputs, booked map[string]map[string]struct{}, weights map[string]float64) float64 {
	snapshot := Snapshot{
		GeneratedAt:     in.Now.UTC(),
		HorizonDays:     in.HorizonDays,
		SlotHours:       in.SlotHours,
		Platforms:       in.Platforms,
		TimeSlotWeights: weights,
	}
	snapshot.BookedSlots = make(map[string][]string, len(booked))
	for platform, slots := range booked {
		keys := make([]string, 0, len(slots))
		for slot := range slots {
			keys = append(keys, slot)
		}
		snapshot.BookedSlots[platform] = keys
	}
	_, _, at, ok := ChooseSlot(snapshot)
	if !ok {
		return 0
	}
	return weights[memory.TimeSlotFor(at)]
}

func removeClip(clips []ClipInput, id int64) []ClipInput {
	out := clips[:0]
	for _, clip := range clips {
		if clip.ClipID != id {
			out = append(out, clip)
		}
	}
	return out
}
