package estimation

import "math"

const (
	// DefaultThresholdPct is the relative change, in percent, that makes a
	// new wait time worth publishing.
	DefaultThresholdPct = 15.0

	// zeroBaselineMinutes is the wait that must appear from a zero baseline
	// before it is published.
	zeroBaselineMinutes = 0.5
)

// ShouldPublish reports whether next differs enough from the previously
// published wait. prev is nil when nothing has been published yet.
// Moving into or out of an infinite (overloaded) wait always counts.
func ShouldPublish(prev *float64, next, thresholdPct float64) bool {
	if prev == nil {
		return true
	}
	p := *prev

	prevInf, nextInf := math.IsInf(p, 1), math.IsInf(next, 1)
	if prevInf || nextInf {
		return prevInf != nextInf
	}

	if p == 0 {
		return next > zeroBaselineMinutes
	}
	return math.Abs(next-p)/p*100 >= thresholdPct
}
