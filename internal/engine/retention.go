package engine

import "time"

// RetentionPolicy is one memory type's archival timing, grounded on §6's
// per-type configuration ("Retention policies per memory type: {ttl,
// importanceMultiplier, gracePeriod}"). TTL is the baseline unaccessed
// duration a memory of this type may go before it becomes eligible for
// archival; ImportanceMultiplier stretches that baseline for memories
// scoring high on importance; GracePeriod is a flat buffer added on top,
// so a memory sitting exactly at the threshold doesn't flip on the next
// tick.
type RetentionPolicy struct {
	TTL                  time.Duration
	ImportanceMultiplier float64
	GracePeriod          time.Duration
}

// DefaultRetentionPolicy applies to any memory type without an explicit
// override in ManagerConfig.RetentionPolicies.
var DefaultRetentionPolicy = RetentionPolicy{
	TTL:                  90 * 24 * time.Hour,
	ImportanceMultiplier: 1.5,
	GracePeriod:          7 * 24 * time.Hour,
}

// EffectiveTTL resolves how long memory may go unaccessed before the
// Lifecycle Manager treats it as archival-eligible.
//
// §4.9 ties this to "the retention policy per type, scaled by importance";
// pkg/types.Memory also carries a stored, nullable effective_ttl_ms, and
// spec.md's Open Questions flag the precedence between the two as
// ambiguous. This resolves it: a non-nil stored value is an explicit
// per-memory override and wins outright (it exists specifically so a
// caller can pin an exceptional TTL without touching the type-wide
// policy); absent that, the TTL is computed from the type's policy,
// scaled linearly between TTL and TTL*ImportanceMultiplier by the
// memory's current importance_score, plus the flat grace period.
func EffectiveTTL(storedMs *int64, importanceScore float64, policy RetentionPolicy) time.Duration {
	if storedMs != nil {
		return time.Duration(*storedMs) * time.Millisecond
	}
	mult := policy.ImportanceMultiplier
	if mult <= 0 {
		mult = 1
	}
	scale := 1 + (mult-1)*clampImportance(importanceScore)
	return time.Duration(float64(policy.TTL)*scale) + policy.GracePeriod
}

func clampImportance(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
