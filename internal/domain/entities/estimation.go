package entities

import (
	"math"
	"time"
)

// WaitStatus is the discrete congestion class of a facility
type WaitStatus string

const (
	WaitStatusLow        WaitStatus = "low"
	WaitStatusMedium     WaitStatus = "medium"
	WaitStatusHigh       WaitStatus = "high"
	WaitStatusOverloaded WaitStatus = "overloaded"
)

// Observation is one arrival-rate sample for a facility. RawRate is
// arrivals per minute over the arrival window.
type Observation struct {
	Facility    FacilityKey
	RawRate     float64
	SampleCount int
	ObservedAt  time.Time
}

// EstimationResult is the queueing model output for one observation.
// WaitMinutes and CIUpper are +Inf when Status is overloaded.
type EstimationResult struct {
	WaitMinutes float64
	CILower     float64
	CIUpper     float64
	Utilization float64
	Status      WaitStatus
}

// IsOverloaded reports whether the result is the overload classification
func (r EstimationResult) IsOverloaded() bool {
	return r.Status == WaitStatusOverloaded || math.IsInf(r.WaitMinutes, 1)
}

// PublishDecision pairs a result with whether it should be propagated
type PublishDecision struct {
	Result        EstimationResult
	ShouldPublish bool
	// SmoothedRate is the arrival rate the result was computed from.
	SmoothedRate float64
	// PreviousPublished is the last published wait before this decision, nil if none.
	PreviousPublished *float64
}
