package events

import (
	"encoding/json"
	"fmt"

	"github.com/zatekoja/waittime/internal/domain/entities"
)

// DecodeQueueEvent parses an inbound camera event. Defaults are applied by
// the consumer, not here.
func DecodeQueueEvent(data []byte) (*entities.QueueEvent, error) {
	var event entities.QueueEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal queue event: %w", err)
	}
	return &event, nil
}

// EncodeUpdate serialises an outbound wait-time update
func EncodeUpdate(update *entities.WaitTimeUpdate) ([]byte, error) {
	data, err := json.Marshal(update)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal update: %w", err)
	}
	return data, nil
}
