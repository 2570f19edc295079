package engine

import (
	"math"
	"testing"

	"github.com/scrypster/mnemex/pkg/types"
)

func TestComputeDecayScore_Exponential(t *testing.T) {
	fn := types.DecayFunction{Kind: types.DecayExponential, Lambda: 0.1}
	fresh := ComputeDecayScore(fn, 0)
	if math.Abs(fresh-1.0) > 0.001 {
		t.Errorf("elapsed=0 should score 1.0, got %f", fresh)
	}
	old := ComputeDecayScore(fn, 60*24*60*60*1000)
	if old > fresh {
		t.Errorf("60-day-old score (%f) should be lower than fresh score (%f)", old, fresh)
	}
}

func TestComputeDecayScore_Linear(t *testing.T) {
	fn := types.DecayFunction{Kind: types.DecayLinear, PeriodMs: 10 * 24 * 60 * 60 * 1000}
	half := ComputeDecayScore(fn, 5*24*60*60*1000)
	if math.Abs(half-0.5) > 0.01 {
		t.Errorf("halfway through the period should score ~0.5, got %f", half)
	}
	past := ComputeDecayScore(fn, 20*24*60*60*1000)
	if past != 0 {
		t.Errorf("past the period should clamp to 0, got %f", past)
	}
}

func TestComputeDecayScore_Step(t *testing.T) {
	fn := types.DecayFunction{
		Kind:        types.DecayStep,
		IntervalsMs: []int64{1000, 5000, 8000},
		ScoresAt:    []float64{1.0, 0.5, 0.1},
	}
	if got := ComputeDecayScore(fn, 500); got != 1.0 {
		t.Errorf("before first interval expected 1.0, got %f", got)
	}
	if got := ComputeDecayScore(fn, 2000); got != 0.5 {
		t.Errorf("within second interval expected 0.5, got %f", got)
	}
	if got := ComputeDecayScore(fn, 9000); got != 0.1 {
		t.Errorf("past last interval expected 0.1, got %f", got)
	}
}

func TestComputeDecayScore_Custom(t *testing.T) {
	fn := types.DecayFunction{Kind: types.DecayCustom, Custom: func(elapsedMs int64) float64 {
		return 0.42
	}}
	if got := ComputeDecayScore(fn, 12345); got != 0.42 {
		t.Errorf("custom function result should pass through, got %f", got)
	}
}

func TestComputeDecayScore_ClampsToRange(t *testing.T) {
	fn := types.DecayFunction{Kind: types.DecayCustom, Custom: func(elapsedMs int64) float64 {
		return 5.0
	}}
	if got := ComputeDecayScore(fn, 0); got != 1.0 {
		t.Errorf("above-range custom score should clamp to 1.0, got %f", got)
	}
}

func TestDecayScoreAfterAccess_Boosts(t *testing.T) {
	boosted := DecayScoreAfterAccess(0.5)
	if boosted <= 0.5 {
		t.Errorf("access should boost score above 0.5, got %f", boosted)
	}
	if boosted > 1.0 {
		t.Errorf("score should not exceed 1.0, got %f", boosted)
	}
}

func TestDecayScoreAfterAccess_CapsAtOne(t *testing.T) {
	if got := DecayScoreAfterAccess(0.99); math.Abs(got-1.0) > 0.001 {
		t.Errorf("score should cap at 1.0, got %f", got)
	}
}

func TestValidateDecayFunction_CustomSkipsMonotonicityCheck(t *testing.T) {
	fn := types.DecayFunction{Kind: types.DecayCustom, Custom: func(elapsedMs int64) float64 {
		if elapsedMs == 0 {
			return 0.1
		}
		return 0.9
	}}
	if err := ValidateDecayFunction(fn); err != nil {
		t.Fatalf("custom decay functions skip the monotonicity check, got error: %v", err)
	}
}

func TestValidateDecayFunction_ExponentialIsValid(t *testing.T) {
	fn := types.DecayFunction{Kind: types.DecayExponential, Lambda: 0.05}
	if err := ValidateDecayFunction(fn); err != nil {
		t.Errorf("expected a well-formed exponential decay function to validate, got %v", err)
	}
}
