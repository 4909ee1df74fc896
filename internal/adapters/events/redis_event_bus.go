package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/zatekoja/waittime/internal/domain/entities"
	"github.com/zatekoja/waittime/internal/domain/providers"
	"github.com/zatekoja/waittime/internal/infrastructure/observability"
)

// RedisEventBus implements the EventBus interface using Redis Pub/Sub
type RedisEventBus struct {
	client         redis.UniversalClient
	eventsChannel  string
	updatesChannel string
	bufferSize     int

	mu     sync.Mutex
	pubsub *redis.PubSub
	status atomic.Value
	closed atomic.Bool
}

// NewRedisEventBus creates a new Redis-based event bus. Empty channel names
// fall back to the defaults.
func NewRedisEventBus(client redis.UniversalClient, eventsChannel, updatesChannel string) *RedisEventBus {
	if eventsChannel == "" {
		eventsChannel = providers.ChannelQueueEvents
	}
	if updatesChannel == "" {
		updatesChannel = providers.ChannelWaitTimeUpdates
	}
	b := &RedisEventBus{
		client:         client,
		eventsChannel:  eventsChannel,
		updatesChannel: updatesChannel,
		bufferSize:     256,
	}
	b.status.Store(providers.StatusDisconnected)
	return b
}

var _ providers.EventBus = (*RedisEventBus)(nil)

// Subscribe subscribes to the queue events channel
func (b *RedisEventBus) Subscribe(ctx context.Context) (<-chan *entities.QueueEvent, error) {
	if b.closed.Load() {
		return nil, fmt.Errorf("event bus is closed")
	}

	pubsub := b.client.Subscribe(ctx, b.eventsChannel)
	// wait for the subscription confirmation so a dead server fails fast
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", b.eventsChannel, err)
	}

	b.mu.Lock()
	b.pubsub = pubsub
	b.mu.Unlock()
	b.status.Store(providers.StatusConnected)

	log.Info().Str("channel", b.eventsChannel).Msg("Subscribed to queue events")

	out := make(chan *entities.QueueEvent, b.bufferSize)
	go b.receiveMessages(ctx, pubsub, out)
	return out, nil
}

// receiveMessages decodes messages and forwards them until ctx ends or the
// subscription closes
func (b *RedisEventBus) receiveMessages(ctx context.Context, pubsub *redis.PubSub, out chan<- *entities.QueueEvent) {
	defer close(out)
	defer func() {
		if !b.closed.Load() {
			b.status.Store(providers.StatusDisconnected)
		}
	}()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			_ = pubsub.Close()
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			event, err := DecodeQueueEvent([]byte(msg.Payload))
			if err != nil {
				log.Warn().Err(err).Str("channel", msg.Channel).Msg("Dropping malformed queue event")
				observability.RecordRejectedEvent(ctx, "malformed")
				continue
			}

			select {
			case out <- event:
			case <-ctx.Done():
				_ = pubsub.Close()
				return
			}
		}
	}
}

// Publish sends the update on the broadcast channel and on the facility channel
func (b *RedisEventBus) Publish(ctx context.Context, update *entities.WaitTimeUpdate) error {
	data, err := EncodeUpdate(update)
	if err != nil {
		return err
	}

	_, err = b.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Publish(ctx, b.updatesChannel, data)
		pipe.Publish(ctx, providers.GetWaitTimeChannel(update.Facility), data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to publish update: %w", err)
	}

	log.Debug().Str("poi", update.Facility).Str("status", string(update.Status)).Msg("Published wait-time update")
	return nil
}

// Status reports the consumer state
func (b *RedisEventBus) Status() string {
	return b.status.Load().(string)
}

// Close closes the subscription. The Redis client itself is owned by the caller.
func (b *RedisEventBus) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	b.status.Store(providers.StatusStopped)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pubsub != nil {
		if err := b.pubsub.Close(); err != nil {
			return fmt.Errorf("failed to close subscription: %w", err)
		}
		b.pubsub = nil
	}

	log.Info().Msg("Redis event bus closed")
	return nil
}
