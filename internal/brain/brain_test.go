package brain

import (
	"errors"
	"testing"
	"time"

	"biru/internal/memory"
	"biru/internal/services"
)

var planStart = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

func baseInputs(clips ...ClipInput) Inputs {
	return Inputs{
		Now:             planStart,
		HorizonDays:     14,
		SlotHours:       []int{9, 14, 19},
		Platforms:       []string{"YOUTUBE", "INSTAGRAM"},
		DurationBuckets: []int{15, 30, 60},
		Clips:           clips,
		Booked:          map[string]map[string]struct{}{},
		Priors:          map[memory.Key]float64{},
	}
}

func TestPlanPicksEarliestSlotUnderNeutralPriors(t *testing.T) {
	in := baseInputs(ClipInput{ClipID: 1, Score: 0.8, DurationSeconds: 20, CreatedAt: planStart})
	placements, deferrals := Plan(in)
	if len(deferrals) != 0 {
		t.Fatalf("deferrals = %+v", deferrals)
	}
	if len(placements) != 1 {
		t.Fatalf("placements = %d, want 1", len(placements))
	}
	if placements[0].SlotKey != "2026-09-01T09" || placements[0].Platform != "YOUTUBE" {
		t.Fatalf("placement = %+v, want earliest slot on first platform", placements[0])
	}
}

func TestPlanFollowsPriors(t *testing.T) {
	in := baseInputs(ClipInput{ClipID: 1, Score: 0.8, Category: "comedy", DurationSeconds: 20, CreatedAt: planStart})
	in.Priors[memory.Key{Category: "comedy", TimeSlot: "evening", DurationBucket: "<=30s"}] = 0.9

	placements, _ := Plan(in)
	if len(placements) != 1 {
		t.Fatalf("placements = %d, want 1", len(placements))
	}
	// Evening outranks the earlier neutral slots.
	if placements[0].SlotKey != "2026-09-01T19" {
		t.Fatalf("slot = %s, want 2026-09-01T19", placements[0].SlotKey)
	}
}

func TestPlanEqualRankTieGoesToEarlierCreation(t *testing.T) {
	earlier := ClipInput{ClipID: 7, Score: 0.8, DurationSeconds: 20, CreatedAt: planStart.Add(-2 * time.Hour)}
	later := ClipInput{ClipID: 3, Score: 0.8, DurationSeconds: 20, CreatedAt: planStart.Add(-time.Hour)}
	in := baseInputs(later, earlier)
	in.Platforms = []string{"YOUTUBE"}

	placements, deferrals := Plan(in)
	if len(deferrals) != 0 {
		t.Fatalf("deferrals = %+v", deferrals)
	}
	if len(placements) != 2 {
		t.Fatalf("placements = %d, want 2", len(placements))
	}
	if placements[0].ClipID != 7 || placements[0].SlotKey != "2026-09-01T09" {
		t.Fatalf("first placement = %+v, want earlier-created clip in earlier slot", placements[0])
	}
	if placements[1].ClipID != 3 || placements[1].SlotKey != "2026-09-01T14" {
		t.Fatalf("second placement = %+v, want later clip in next open slot", placements[1])
	}
}

func TestPlanDefersWhenHorizonExhausted(t *testing.T) {
	in := baseInputs(ClipInput{ClipID: 1, Score: 0.8, DurationSeconds: 20, CreatedAt: planStart})
	in.HorizonDays = 1
	in.Platforms = []string{"YOUTUBE"}
	in.Booked["YOUTUBE"] = map[string]struct{}{
		"2026-09-01T09": {},
		"2026-09-01T14": {},
		"2026-09-01T19": {},
	}

	placements, deferrals := Plan(in)
	if len(placements) != 0 {
		t.Fatalf("placements = %+v, want none", placements)
	}
	if len(deferrals) != 1 || !errors.Is(deferrals[0].Err, services.ErrNoAvailableSlot) {
		t.Fatalf("deferrals = %+v, want one ErrNoAvailableSlot", deferrals)
	}
	if services.Fatal(deferrals[0].Err) {
		t.Fatal("slot exhaustion must not be fatal")
	}
}

func TestPlanNeverDoubleBooks(t *testing.T) {
	var clips []ClipInput
	for i := int64(1); i <= 10; i++ {
		clips = append(clips, ClipInput{
			ClipID: i, Score: 0.5, DurationSeconds: 20,
			CreatedAt: planStart.Add(time.Duration(i) * time.Minute),
		})
	}
	in := baseInputs(clips...)

	placements, deferrals := Plan(in)
	if len(placements) != 10 || len(deferrals) != 0 {
		t.Fatalf("placements = %d, deferrals = %d", len(placements), len(deferrals))
	}
	seen := map[string]struct{}{}
	for _, p := range placements {
		key := p.Platform + "/" + p.SlotKey
		if _, dup := seen[key]; dup {
			t.Fatalf("slot %s booked twice", key)
		}
		seen[key] = struct{}{}
	}
}

func TestDecisionReplayReproducesSlot(t *testing.T) {
	in := baseInputs(
		ClipInput{ClipID: 1, Score: 0.9, Category: "comedy", DurationSeconds: 20, CreatedAt: planStart},
		ClipInput{ClipID: 2, Score: 0.7, Category: "tech", DurationSeconds: 45, CreatedAt: planStart},
	)
	in.Priors[memory.Key{Category: "comedy", TimeSlot: "evening", DurationBucket: "<=30s"}] = 0.85

	placements, _ := Plan(in)
	if len(placements) != 2 {
		t.Fatalf("placements = %d, want 2", len(placements))
	}
	for _, placement := range placements {
		payload, err := EncodeSnapshot(placement.Snapshot)
		if err != nil {
			t.Fatalf("EncodeSnapshot: %v", err)
		}
		if err := Replay(payload, placement.SlotKey); err != nil {
			t.Fatalf("Replay(clip %d): %v", placement.ClipID, err)
		}
	}
}

func TestReplayDetectsTamperedSlot(t *testing.T) {
	in := baseInputs(ClipInput{ClipID: 1, Score: 0.8, DurationSeconds: 20, CreatedAt: planStart})
	placements, _ := Plan(in)
	payload, err := EncodeSnapshot(placements[0].Snapshot)
	if err != nil {
		t.Fatalf("EncodeSnapshot: %v", err)
	}
	if err := Replay(payload, "2026-09-09T09"); err == nil {
		t.Fatal("Replay should reject a slot the snapshot does not produce")
	}
}
