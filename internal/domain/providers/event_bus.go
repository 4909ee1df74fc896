package providers

import (
	"context"

	"github.com/zatekoja/waittime/internal/domain/entities"
)

// QueueEventSource delivers inbound queue events from a transport
type QueueEventSource interface {
	// Subscribe starts consuming and returns a channel of decoded events.
	// The channel is closed when ctx is cancelled or the source is closed.
	Subscribe(ctx context.Context) (<-chan *entities.QueueEvent, error)

	// Close stops consumption and releases transport resources
	Close() error
}

// UpdatePublisher accepts outbound wait-time updates. Delivery is best effort.
type UpdatePublisher interface {
	Publish(ctx context.Context, update *entities.WaitTimeUpdate) error
}

// EventBus is a transport that is both a queue event source and an update publisher
type EventBus interface {
	QueueEventSource
	UpdatePublisher

	// Status reports the consumer state: "connected", "disconnected" or "stopped"
	Status() string
}

// Consumer states reported by EventBus.Status
const (
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
	StatusStopped      = "stopped"
)

// Channel names used by the Redis transport
const (
	// ChannelQueueEvents carries inbound camera events
	ChannelQueueEvents = "queue:events"

	// ChannelWaitTimeUpdates carries every published update
	ChannelWaitTimeUpdates = "waittime:updates"

	// ChannelWaitTimePrefix is the prefix for facility-specific update channels
	ChannelWaitTimePrefix = "waittime:update:"
)

// GetWaitTimeChannel returns the update channel of a specific facility
func GetWaitTimeChannel(facilityID string) string {
	return ChannelWaitTimePrefix + facilityID
}
