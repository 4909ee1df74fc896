package services

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"
	"github.com/zatekoja/waittime/internal/domain/entities"
)

// EventHandler processes a single queue event
type EventHandler interface {
	HandleEvent(ctx context.Context, event *entities.QueueEvent) (entities.PublishDecision, error)
}

// DispatcherStats counts handled events
type DispatcherStats struct {
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
	Published int64 `json:"published"`
}

// Dispatcher fans events out to a fixed set of workers. Events of one
// facility always land on the same worker, so they are handled in order.
type Dispatcher struct {
	handler   EventHandler
	workers   int
	queueSize int

	processed atomic.Int64
	failed    atomic.Int64
	published atomic.Int64
}

// NewDispatcher creates a dispatcher with bounded per-worker queues
func NewDispatcher(handler EventHandler, workers, queueSize int) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Dispatcher{
		handler:   handler,
		workers:   workers,
		queueSize: queueSize,
	}
}

// Workers returns the worker count
func (d *Dispatcher) Workers() int {
	return d.workers
}

// WorkerFor returns the worker index that owns a facility
func (d *Dispatcher) WorkerFor(facilityID string) int {
	return int(xxhash.Sum64String(strings.TrimSpace(facilityID)) % uint64(d.workers))
}

// Run consumes events until the channel closes or ctx is cancelled. Events
// already queued are handled before Run returns.
func (d *Dispatcher) Run(ctx context.Context, events <-chan *entities.QueueEvent) {
	queues := make([]chan *entities.QueueEvent, d.workers)
	var wg sync.WaitGroup

	// queued work outlives cancellation
	workCtx := context.WithoutCancel(ctx)
	for i := range queues {
		queues[i] = make(chan *entities.QueueEvent, d.queueSize)
		wg.Add(1)
		go func(queue <-chan *entities.QueueEvent) {
			defer wg.Done()
			for event := range queue {
				d.handle(workCtx, event)
			}
		}(queues[i])
	}

	log.Info().Int("workers", d.workers).Int("queue_size", d.queueSize).Msg("Dispatcher started")

	defer func() {
		for _, q := range queues {
			close(q)
		}
		wg.Wait()
		log.Info().
			Int64("processed", d.processed.Load()).
			Int64("failed", d.failed.Load()).
			Msg("Dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if event == nil {
				continue
			}
			select {
			case queues[d.WorkerFor(event.FacilityID)] <- event:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, event *entities.QueueEvent) {
	decision, err := d.handler.HandleEvent(ctx, event)
	d.processed.Add(1)
	if err != nil {
		d.failed.Add(1)
		log.Warn().Err(err).Str("poi", event.FacilityID).Str("event_id", event.ID).Msg("Failed to handle queue event")
		return
	}
	if decision.ShouldPublish {
		d.published.Add(1)
	}
}

// Stats returns the running counters
func (d *Dispatcher) Stats() DispatcherStats {
	return DispatcherStats{
		Processed: d.processed.Load(),
		Failed:    d.failed.Load(),
		Published: d.published.Load(),
	}
}
