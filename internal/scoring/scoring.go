// Package scoring turns a signal bundle into a stream of scored clip
// candidates. Scoring is pure arithmetic over the bundle: the same input
// always yields the same candidates in the same order.
package scoring

import (
	"biru/internal/signals"
)

// Candidate is one scored candidate window over the source timeline.
type Candidate struct {
	StartSeconds float64
	EndSeconds   float64
	Score        float64
	HookScore    float64
	EnergyScore  float64
	Category     string
	Text         string
}

// Duration returns the candidate length in seconds.
func (c Candidate) Duration() float64 {
	return c.EndSeconds - c.StartSeconds
}

// Scorer weighs hook strength against audio energy. Config validation
// keeps the weight sum at most 1; Score additionally clamps so a candidate
// score never leaves [0, 1].
type Scorer struct {
	HookWeight        float64
	EnergyWeight      float64
	MinSegmentSeconds float64
}

// Candidates returns a lazy stream over the bundle's transcript spans.
// Windows shorter than the segment floor are skipped. The caller drives the
// stream with Next; nothing is computed ahead of demand.
func (s Scorer) Candidates(bundle *signals.Bundle) *Stream {
	return &Stream{scorer: s, bundle: bundle}
}

// Score computes the weighted score for one window, clamped to [0, 1].
func (s Scorer) Score(hook, energy float64) float64 {
	score := hook*s.HookWeight + energy*s.EnergyWeight
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// Stream yields candidates one at a time in timeline order.
type Stream struct {
	scorer Scorer
	bundle *signals.Bundle
	index  int
}

// Next returns the next candidate and true, or a zero candidate and false
// when the stream is exhausted.
func (st *Stream) Next() (Candidate, bool) {
	for st.index < len(st.bundle.Spans) {
		span := st.bundle.Spans[st.index]
		st.index++
		if span.EndSeconds-span.StartSeconds < st.scorer.MinSegmentSeconds {
			continue
		}
		energy := st.bundle.EnergyBetween(span.StartSeconds, span.EndSeconds)
		return Candidate{
			StartSeconds: span.StartSeconds,
			EndSeconds:   span.EndSeconds,
			Score:        st.scorer.Score(span.HookScore, energy),
			HookScore:    span.HookScore,
			EnergyScore:  energy,
			Category:     span.Category,
			Text:         span.Text,
		}, true
	}
	return Candidate{}, false
}

// Collect drains the stream into a slice. Mostly useful in tests and for
// callers that need the full candidate set anyway.
func (st *Stream) Collect() []Candidate {
	var out []Candidate
	for {
		candidate, ok := st.Next()
		if !ok {
			return out
		}
		out = append(out, candidate)
	}
}
