package entities

import (
	"encoding/json"
	"math"
	"time"
)

// QueueState is the persisted snapshot of a facility's latest estimate.
// It is written after every processed observation, whether or not the
// estimate was published.
type QueueState struct {
	FacilityID    string     `json:"poi_id" db:"facility_id"`
	ArrivalRate   float64    `json:"arrival_rate" db:"arrival_rate"`
	WaitMinutes   float64    `json:"wait_minutes" db:"wait_minutes"`
	CILower       float64    `json:"ci_lower" db:"ci_lower"`
	CIUpper       float64    `json:"ci_upper" db:"ci_upper"`
	Utilization   float64    `json:"utilization" db:"utilization"`
	SampleCount   int        `json:"sample_count" db:"sample_count"`
	Status        WaitStatus `json:"status" db:"status"`
	LastUpdated   time.Time  `json:"last_updated" db:"last_updated"`
	LastPublished *time.Time `json:"last_published,omitempty" db:"last_published"`
}

// NewQueueState builds a state snapshot from a pipeline decision
func NewQueueState(obs Observation, decision PublishDecision, now time.Time) *QueueState {
	s := &QueueState{
		FacilityID:  string(obs.Facility),
		ArrivalRate: decision.SmoothedRate,
		WaitMinutes: decision.Result.WaitMinutes,
		CILower:     decision.Result.CILower,
		CIUpper:     decision.Result.CIUpper,
		Utilization: decision.Result.Utilization,
		SampleCount: obs.SampleCount,
		Status:      decision.Result.Status,
		LastUpdated: now,
	}
	if decision.ShouldPublish {
		published := now
		s.LastPublished = &published
	}
	return s
}

// queueStateJSON mirrors QueueState with nullable floats, since JSON has no
// representation for +Inf.
type queueStateJSON struct {
	FacilityID    string     `json:"poi_id"`
	ArrivalRate   float64    `json:"arrival_rate"`
	WaitMinutes   *float64   `json:"wait_minutes"`
	CILower       float64    `json:"ci_lower"`
	CIUpper       *float64   `json:"ci_upper"`
	Utilization   float64    `json:"utilization"`
	SampleCount   int        `json:"sample_count"`
	Status        WaitStatus `json:"status"`
	LastUpdated   time.Time  `json:"last_updated"`
	LastPublished *time.Time `json:"last_published,omitempty"`
}

// MarshalJSON encodes infinite wait and upper bound as null
func (s QueueState) MarshalJSON() ([]byte, error) {
	return json.Marshal(queueStateJSON{
		FacilityID:    s.FacilityID,
		ArrivalRate:   s.ArrivalRate,
		WaitMinutes:   FiniteOrNil(s.WaitMinutes),
		CILower:       s.CILower,
		CIUpper:       FiniteOrNil(s.CIUpper),
		Utilization:   s.Utilization,
		SampleCount:   s.SampleCount,
		Status:        s.Status,
		LastUpdated:   s.LastUpdated,
		LastPublished: s.LastPublished,
	})
}

// UnmarshalJSON decodes null wait and upper bound back to +Inf
func (s *QueueState) UnmarshalJSON(data []byte) error {
	var aux queueStateJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*s = QueueState{
		FacilityID:    aux.FacilityID,
		ArrivalRate:   aux.ArrivalRate,
		WaitMinutes:   NilAsInf(aux.WaitMinutes),
		CILower:       aux.CILower,
		CIUpper:       NilAsInf(aux.CIUpper),
		Utilization:   aux.Utilization,
		SampleCount:   aux.SampleCount,
		Status:        aux.Status,
		LastUpdated:   aux.LastUpdated,
		LastPublished: aux.LastPublished,
	}
	return nil
}

// FiniteOrNil returns nil for infinite or NaN values
func FiniteOrNil(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}

// NilAsInf is the inverse of FiniteOrNil for non-negative quantities
func NilAsInf(v *float64) float64 {
	if v == nil {
		return math.Inf(1)
	}
	return *v
}

// QueueStateFilter narrows queue state listings
type QueueStateFilter struct {
	FacilityType FacilityType
	Status       WaitStatus
	Limit        int
	Offset       int
}
