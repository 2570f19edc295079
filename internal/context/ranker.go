// Package context assembles retrieved memories into ranked, token-budgeted
// text: the Ranker, Tokenizer, Formatter, and the Context Engine façade
// that wires them to the vector index and relational store (§4.12-4.14).
// Grounded on the teacher's search_orchestrator.go ScoreComponents
// weighted-sum-then-sort idiom, retargeted from the teacher's
// (TextMatch, Recency, Importance, Confidence, UsageBoost) factors to the
// spec's (similarity, recency, confidence, decay).
package context

import (
	"slices"
	"time"

	"github.com/scrypster/mnemex/pkg/types"
)

// RankWeights weighs the four factors the Ranker composites.
type RankWeights struct {
	SimilarityWeight float64
	RecencyWeight    float64
	ConfidenceWeight float64
	DecayWeight      float64
}

// DefaultRankWeights matches the teacher's even-handed default split
// (text-match got the largest single weight there; similarity plays that
// role here).
var DefaultRankWeights = RankWeights{
	SimilarityWeight: 0.4,
	RecencyWeight:    0.2,
	ConfidenceWeight: 0.2,
	DecayWeight:      0.2,
}

// Candidate is one retrieved memory awaiting ranking.
type Candidate struct {
	Memory     types.Memory
	Similarity float64
}

// Ranked is a Candidate annotated with its composite rank in [0,1].
type Ranked struct {
	Memory     types.Memory
	Similarity float64
	Rank       float64
}

// Ranker composites a weighted score over (similarity, recency,
// confidence, decay) and re-sorts descending by it, stable in the
// teacher's manner — ties preserve input order rather than reordering
// arbitrarily.
type Ranker struct {
	weights RankWeights
	now     func() time.Time
}

// NewRanker builds a Ranker with the given weights; a zero-value
// RankWeights falls back to DefaultRankWeights.
func NewRanker(weights RankWeights) *Ranker {
	if weights == (RankWeights{}) {
		weights = DefaultRankWeights
	}
	return &Ranker{weights: weights, now: time.Now}
}

// Rank scores and re-sorts candidates descending by composite rank.
func (r *Ranker) Rank(candidates []Candidate) []Ranked {
	now := r.now()
	out := make([]Ranked, len(candidates))
	for i, c := range candidates {
		recency := recencyScore(c.Memory.LastAccessedAt, now)
		decay := c.Memory.DecayScore
		if c.Memory.Pinned {
			decay = 1.0
		} else if decay == 0 && c.Memory.LastAccessedAt.IsZero() {
			decay = 1.0
		}
		rank := r.weights.SimilarityWeight*c.Similarity +
			r.weights.RecencyWeight*recency +
			r.weights.ConfidenceWeight*c.Memory.Confidence +
			r.weights.DecayWeight*decay
		out[i] = Ranked{Memory: c.Memory, Similarity: c.Similarity, Rank: clamp01(rank)}
	}

	slices.SortStableFunc(out, func(a, b Ranked) int {
		switch {
		case a.Rank > b.Rank:
			return -1
		case a.Rank < b.Rank:
			return 1
		default:
			return 0
		}
	})
	return out
}

// recencyScore maps last-accessed-at onto [0,1] via a 30-day linear
// falloff, grounded on the teacher's own 30-day recency window
// (search_orchestrator.go's calculateRecency), generalized from a
// status-based step function to a continuous one.
func recencyScore(lastAccessedAt, now time.Time) float64 {
	if lastAccessedAt.IsZero() {
		return 0
	}
	elapsed := now.Sub(lastAccessedAt)
	const window = 30 * 24 * time.Hour
	if elapsed <= 0 {
		return 1
	}
	if elapsed >= window {
		return 0
	}
	return 1 - float64(elapsed)/float64(window)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
