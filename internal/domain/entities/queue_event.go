package entities

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/zatekoja/waittime/pkg/errors"
)

// QueueEventType represents the direction of a camera-detected movement
type QueueEventType string

const (
	QueueEventTypeEntry QueueEventType = "entry"
	QueueEventTypeExit  QueueEventType = "exit"
)

// MaxEventCount bounds the people a single camera event may report.
const MaxEventCount = 1000

// QueueEvent is a raw movement event published by camera processing
type QueueEvent struct {
	ID         string         `json:"id,omitempty"`
	FacilityID string         `json:"poi_id"`
	EventType  QueueEventType `json:"event_type"`
	Count      int            `json:"count"`
	CameraID   string         `json:"camera_id"`
	Timestamp  time.Time      `json:"timestamp"`
}

// NewQueueEvent creates a new queue event
func NewQueueEvent(facilityID string, eventType QueueEventType, count int, cameraID string, ts time.Time) *QueueEvent {
	return &QueueEvent{
		ID:         uuid.New().String(),
		FacilityID: facilityID,
		EventType:  eventType,
		Count:      count,
		CameraID:   cameraID,
		Timestamp:  ts,
	}
}

// Normalize fills defaults on a decoded event: count defaults to 1, a missing
// timestamp becomes now and a missing ID is generated.
func (e *QueueEvent) Normalize(now time.Time) {
	e.FacilityID = strings.TrimSpace(e.FacilityID)
	e.EventType = QueueEventType(strings.ToLower(strings.TrimSpace(string(e.EventType))))
	if e.Count == 0 {
		e.Count = 1
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = now
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
}

// Validate checks the event is usable for arrival-rate estimation
func (e *QueueEvent) Validate() error {
	if e.FacilityID == "" {
		return apperrors.NewValidationError("queue event: poi_id is required")
	}
	switch e.EventType {
	case QueueEventTypeEntry, QueueEventTypeExit:
	default:
		return apperrors.NewValidationError("queue event: event_type must be entry or exit, got " + string(e.EventType))
	}
	if e.Count < 0 {
		return apperrors.NewValidationError("queue event: count must not be negative")
	}
	if e.Count > MaxEventCount {
		return apperrors.NewValidationError(fmt.Sprintf("queue event: count must be at most %d, got %d", MaxEventCount, e.Count))
	}
	return nil
}

// Key returns the facility key of the event
func (e *QueueEvent) Key() FacilityKey {
	return FacilityKey(e.FacilityID)
}
