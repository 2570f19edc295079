// Package engine implements the lifecycle engine: decay and importance
// scoring, the lifecycle state machine, archival/cleanup, and the
// background manager that drives them, grounded on the teacher's own
// engine package (decay.go, confidence_scorer.go, enrichment_worker.go).
package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/scrypster/mnemex/pkg/types"
)

// probeOffsets is the canonical set of elapsed durations every
// DecayFunction is validated against before being accepted by the
// lifecycle manager.
var probeOffsets = []time.Duration{
	0,
	time.Minute,
	time.Hour,
	24 * time.Hour,
	7 * 24 * time.Hour,
	30 * 24 * time.Hour,
	365 * 24 * time.Hour,
}

// ComputeDecayScore evaluates fn at elapsedMs since the memory's last
// access, per the formula documented on each types.DecayKind, clamped to
// [0,1].
func ComputeDecayScore(fn types.DecayFunction, elapsedMs int64) float64 {
	if elapsedMs < 0 {
		elapsedMs = 0
	}

	var score float64
	switch fn.Kind {
	case types.DecayExponential:
		elapsedDays := float64(elapsedMs) / 86400000.0
		score = math.Exp(-fn.Lambda * elapsedDays)

	case types.DecayLinear:
		period := fn.PeriodMs
		if period <= 0 {
			period = 1
		}
		score = 1 - float64(elapsedMs)/float64(period)

	case types.DecayStep:
		score = evalStep(fn, elapsedMs)

	case types.DecayCustom:
		if fn.Custom != nil {
			score = fn.Custom(elapsedMs)
		}

	default:
		score = 0
	}

	return clamp01(score)
}

// evalStep returns ScoresAt[i] for the first i where elapsedMs <
// IntervalsMs[i], or the last score once elapsed has passed every
// boundary, per types.DecayFunction's step contract.
func evalStep(fn types.DecayFunction, elapsedMs int64) float64 {
	if len(fn.IntervalsMs) == 0 || len(fn.IntervalsMs) != len(fn.ScoresAt) {
		return 0
	}
	for i, boundary := range fn.IntervalsMs {
		if elapsedMs < boundary {
			return fn.ScoresAt[i]
		}
	}
	return fn.ScoresAt[len(fn.ScoresAt)-1]
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

// ValidateDecayFunction runs fn across probeOffsets and rejects any
// function that produces an out-of-range score, or, for the built-in
// kinds (not DecayCustom, which may do anything a caller wants), one
// that increases as elapsed time grows — a decay curve that recovers on
// its own without an access event is a configuration bug, not a feature.
func ValidateDecayFunction(fn types.DecayFunction) error {
	prev := math.Inf(1)
	for _, offset := range probeOffsets {
		score := ComputeDecayScore(fn, offset.Milliseconds())
		if score < 0 || score > 1 {
			return fmt.Errorf("engine: decay function %s produced out-of-range score %f at elapsed %s", fn.Kind, score, offset)
		}
		if fn.Kind != types.DecayCustom && score > prev+1e-9 {
			return fmt.Errorf("engine: decay function %s is non-monotonic at elapsed %s", fn.Kind, offset)
		}
		prev = score
	}
	return nil
}

// DecayScoreAfterAccess boosts decay_score towards 1.0 on an access
// event, grounded on the teacher's own access-boost behavior.
func DecayScoreAfterAccess(currentScore float64) float64 {
	const accessBoost = 0.1
	return clamp01(currentScore + accessBoost)
}
