package types

// DecayKind tags which shape a DecayFunction takes. The source system mixed
// these as ad-hoc JSON shapes; here each variant carries exactly the
// parameters it needs (design note §9).
type DecayKind string

const (
	DecayExponential DecayKind = "exponential"
	DecayLinear      DecayKind = "linear"
	DecayStep        DecayKind = "step"
	DecayCustom      DecayKind = "custom"
)

// DecayFunction is a tagged union over the four decay shapes the Decay
// Calculator (§4.3) can be parameterized with.
type DecayFunction struct {
	Kind DecayKind

	// Exponential: score = exp(-Lambda * elapsedDays).
	Lambda float64

	// Linear: score = max(0, 1 - elapsedMs/PeriodMs).
	PeriodMs int64

	// Step: first index where elapsedMs < IntervalsMs[i] yields ScoresAt[i];
	// else the last score.
	IntervalsMs []int64
	ScoresAt    []float64

	// Custom: caller-supplied pure function of elapsed milliseconds.
	Custom func(elapsedMs int64) float64
}

// NewExponentialDecay returns an exponential DecayFunction with rate lambda.
func NewExponentialDecay(lambda float64) DecayFunction {
	return DecayFunction{Kind: DecayExponential, Lambda: lambda}
}

// NewLinearDecay returns a linear DecayFunction over periodMs.
func NewLinearDecay(periodMs int64) DecayFunction {
	return DecayFunction{Kind: DecayLinear, PeriodMs: periodMs}
}

// NewStepDecay returns a step DecayFunction. intervalsMs and scores must be
// the same, non-zero length.
func NewStepDecay(intervalsMs []int64, scores []float64) DecayFunction {
	return DecayFunction{Kind: DecayStep, IntervalsMs: intervalsMs, ScoresAt: scores}
}

// NewCustomDecay wraps an arbitrary pure function as a DecayFunction.
func NewCustomDecay(fn func(elapsedMs int64) float64) DecayFunction {
	return DecayFunction{Kind: DecayCustom, Custom: fn}
}
