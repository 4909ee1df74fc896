package entities

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// WaitTimeUpdateType is the message type tag consumers dispatch on
const WaitTimeUpdateType = "waittime"

// WaitTimeUpdate is the outbound message emitted for a significant change.
// Minutes and the CI bounds are rounded to one decimal; nil means infinite.
type WaitTimeUpdate struct {
	Type      string      `json:"type"`
	ID        string      `json:"id"`
	Facility  string      `json:"poi"`
	Minutes   *float64    `json:"minutes"`
	CI95      [2]*float64 `json:"ci95"`
	Status    WaitStatus  `json:"status"`
	Timestamp string      `json:"ts"`
}

// NewWaitTimeUpdate builds the outbound message for a published result
func NewWaitTimeUpdate(facility FacilityKey, result EstimationResult, at time.Time) *WaitTimeUpdate {
	return &WaitTimeUpdate{
		Type:      WaitTimeUpdateType,
		ID:        uuid.New().String(),
		Facility:  string(facility),
		Minutes:   roundedOrNil(result.WaitMinutes),
		CI95:      [2]*float64{roundedOrNil(result.CILower), roundedOrNil(result.CIUpper)},
		Status:    result.Status,
		Timestamp: at.UTC().Format(time.RFC3339),
	}
}

// RoundTenth rounds to one decimal place
func RoundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}

func roundedOrNil(v float64) *float64 {
	p := FiniteOrNil(v)
	if p == nil {
		return nil
	}
	r := RoundTenth(*p)
	return &r
}
