// Package selection chooses a bounded, non-overlapping set of clips from the
// scored candidate stream for one asset.
package selection

import (
	"fmt"
	"sort"

	"biru/internal/scoring"
	"biru/internal/services"
)

// Constraints bound one selection pass.
type Constraints struct {
	MinClips         int
	MaxClips         int
	MinGapSeconds    float64
	ScoreThreshold   float64
	RelaxationFactor float64
}

// Report summarizes what one selection pass did, for logging and the
// selection audit trail.
type Report struct {
	Considered int
	Accepted   int
	Rejected   int
	Relaxed    bool
	Threshold  float64
}

// Select drains the candidate stream and greedily accepts the best
// non-overlapping candidates. Candidates are ranked by score descending with
// earlier start winning ties, accepted while they clear the score threshold
// and keep the minimum gap from everything already accepted, up to MaxClips.
//
// If fewer than MinClips are accepted the threshold is lowered once by the
// relaxation factor and the rejected candidates get a second pass. A pass
// that still accepts zero clips fails with ErrInsufficientSegments.
func Select(stream *scoring.Stream, constraints Constraints) ([]scoring.Candidate, Report, error) {
	candidates := stream.Collect()
	report := Report{Considered: len(candidates), Threshold: constraints.ScoreThreshold}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].StartSeconds < candidates[j].StartSeconds
	})

	accepted, rejected := greedy(candidates, nil, constraints, constraints.ScoreThreshold)

	if len(accepted) < constraints.MinClips && constraints.RelaxationFactor > 0 {
		report.Relaxed = true
		report.Threshold = constraints.ScoreThreshold * constraints.RelaxationFactor
		more, _ := greedy(rejected, accepted, constraints, report.Threshold)
		accepted = append(accepted, more...)
	}

	report.Accepted = len(accepted)
	report.Rejected = report.Considered - report.Accepted

	if len(accepted) == 0 {
		return nil, report, services.Wrap(services.ErrInsufficientSegments, "selection", "select",
			fmt.Sprintf("%d candidates, none accepted at threshold %.3f", report.Considered, report.Threshold), nil)
	}

	// Callers persist clips in timeline order.
	sort.SliceStable(accepted, func(i, j int) bool {
		return accepted[i].StartSeconds < accepted[j].StartSeconds
	})
	return accepted, report, nil
}

func greedy(candidates, committed []scoring.Candidate, constraints Constraints, threshold float64) (accepted, rejected []scoring.Candidate) {
	taken := make([]scoring.Candidate, len(committed))
	copy(taken, committed)

	for _, candidate := range candidates {
		if len(taken) >= constraints.MaxClips {
			rejected = append(rejected, candidate)
			continue
		}
		if candidate.Score < threshold {
			rejected = append(rejected, candidate)
			continue
		}
		if overlapsAny(candidate, taken, constraints.MinGapSeconds) {
			rejected = append(rejected, candidate)
			continue
		}
		taken = append(taken, candidate)
		accepted = append(accepted, candidate)
	}
	return accepted, rejected
}

func overlapsAny(candidate scoring.Candidate, taken []scoring.Candidate, minGap float64) bool {
	for _, other := range taken {
		if candidate.StartSeconds < other.EndSeconds+minGap && other.StartSeconds < candidate.EndSeconds+minGap {
			return true
		}
	}
	return false
}
