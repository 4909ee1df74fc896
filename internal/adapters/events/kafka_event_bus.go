package events

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"github.com/zatekoja/waittime/internal/domain/entities"
	"github.com/zatekoja/waittime/internal/domain/providers"
	"github.com/zatekoja/waittime/internal/infrastructure/observability"
	"github.com/zatekoja/waittime/pkg/config"
)

// messageReader is the consuming half of kafka.Reader
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// messageWriter is the producing half of kafka.Writer
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaEventBus consumes queue events from one topic and produces updates to
// another, keyed by facility so a facility's updates stay ordered.
type KafkaEventBus struct {
	reader       messageReader
	writer       messageWriter
	retryBackoff time.Duration
	writeTimeout time.Duration
	bufferSize   int

	status atomic.Value
	closed atomic.Bool
}

// NewKafkaEventBus creates a Kafka-backed event bus
func NewKafkaEventBus(cfg config.BrokerConfig) *KafkaEventBus {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		GroupID:  cfg.KafkaGroupID,
		Topic:    cfg.QueueEventsTopic,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  500 * time.Millisecond,
	})
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.UpdatesTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
	return newKafkaEventBus(reader, writer, cfg.KafkaPollTimeout, cfg.KafkaWriteTimeout)
}

func newKafkaEventBus(reader messageReader, writer messageWriter, retryBackoff, writeTimeout time.Duration) *KafkaEventBus {
	if retryBackoff <= 0 {
		retryBackoff = 5 * time.Second
	}
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	b := &KafkaEventBus{
		reader:       reader,
		writer:       writer,
		retryBackoff: retryBackoff,
		writeTimeout: writeTimeout,
		bufferSize:   256,
	}
	b.status.Store(providers.StatusDisconnected)
	return b
}

var _ providers.EventBus = (*KafkaEventBus)(nil)

// Subscribe starts the fetch loop
func (b *KafkaEventBus) Subscribe(ctx context.Context) (<-chan *entities.QueueEvent, error) {
	if b.closed.Load() {
		return nil, fmt.Errorf("event bus is closed")
	}
	out := make(chan *entities.QueueEvent, b.bufferSize)
	go b.consume(ctx, out)
	return out, nil
}

// consume commits every message once it has been handed over, including
// malformed ones, so a poison message cannot stall the partition.
func (b *KafkaEventBus) consume(ctx context.Context, out chan<- *entities.QueueEvent) {
	defer close(out)

	for {
		msg, err := b.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || b.closed.Load() {
				return
			}
			b.status.Store(providers.StatusDisconnected)
			log.Warn().Err(err).Dur("retry_in", b.retryBackoff).Msg("Kafka fetch failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(b.retryBackoff):
			}
			continue
		}
		b.status.Store(providers.StatusConnected)

		event, err := DecodeQueueEvent(msg.Value)
		if err != nil {
			log.Warn().Err(err).Int("partition", msg.Partition).Int64("offset", msg.Offset).Msg("Dropping malformed queue event")
			observability.RecordRejectedEvent(ctx, "malformed")
		} else {
			select {
			case out <- event:
			case <-ctx.Done():
				return
			}
		}

		if err := b.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Int64("offset", msg.Offset).Msg("Failed to commit Kafka offset")
		}
	}
}

// Publish writes the update keyed by facility
func (b *KafkaEventBus) Publish(ctx context.Context, update *entities.WaitTimeUpdate) error {
	data, err := EncodeUpdate(update)
	if err != nil {
		return err
	}

	writeCtx, cancel := context.WithTimeout(ctx, b.writeTimeout)
	defer cancel()

	err = b.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(update.Facility),
		Value: data,
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(update.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to publish update: %w", err)
	}
	return nil
}

// Status reports the consumer state
func (b *KafkaEventBus) Status() string {
	return b.status.Load().(string)
}

// Close stops the reader and flushes the writer
func (b *KafkaEventBus) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	b.status.Store(providers.StatusStopped)

	err := errors.Join(b.reader.Close(), b.writer.Close())
	if err != nil {
		return fmt.Errorf("failed to close kafka event bus: %w", err)
	}
	log.Info().Msg("Kafka event bus closed")
	return nil
}
