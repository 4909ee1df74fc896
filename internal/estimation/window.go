package estimation

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/zatekoja/waittime/internal/domain/entities"
)

// DefaultWindow is the span over which arrival rates are measured.
const DefaultWindow = 5 * time.Minute

type windowEvent struct {
	at    time.Time
	entry bool
	count int
}

type windowShard struct {
	mu     sync.Mutex
	events map[entities.FacilityKey][]windowEvent
}

// ArrivalWindow keeps the recent queue events of every facility in memory
// and turns them into arrival-rate observations.
type ArrivalWindow struct {
	span   time.Duration
	shards []*windowShard
}

// NewArrivalWindow creates a window of the given span
func NewArrivalWindow(span time.Duration) *ArrivalWindow {
	if span <= 0 {
		span = DefaultWindow
	}
	w := &ArrivalWindow{span: span, shards: make([]*windowShard, defaultShards)}
	for i := range w.shards {
		w.shards[i] = &windowShard{events: make(map[entities.FacilityKey][]windowEvent)}
	}
	return w
}

// Span returns the window length
func (w *ArrivalWindow) Span() time.Duration {
	return w.span
}

func (w *ArrivalWindow) shardFor(key entities.FacilityKey) *windowShard {
	return w.shards[xxhash.Sum64String(string(key))%uint64(len(w.shards))]
}

// Record adds the event and returns the facility's observation as of now.
// The rate counts entries only; exits contribute to the sample count. It
// returns false when no event falls inside the window.
func (w *ArrivalWindow) Record(e *entities.QueueEvent, now time.Time) (entities.Observation, bool) {
	key := e.Key()
	sh := w.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	cutoff := now.Add(-w.span)
	events := sh.events[key]
	kept := events[:0]
	for _, ev := range events {
		if !ev.at.Before(cutoff) {
			kept = append(kept, ev)
		}
	}
	if !e.Timestamp.Before(cutoff) {
		kept = append(kept, windowEvent{
			at:    e.Timestamp,
			entry: e.EventType == entities.QueueEventTypeEntry,
			count: e.Count,
		})
	}

	if len(kept) == 0 {
		delete(sh.events, key)
		return entities.Observation{}, false
	}
	sh.events[key] = kept

	entries := 0
	for _, ev := range kept {
		if ev.entry {
			entries += ev.count
		}
	}

	return entities.Observation{
		Facility:    key,
		RawRate:     float64(entries) / w.span.Minutes(),
		SampleCount: len(kept),
		ObservedAt:  now,
	}, true
}

// Size returns the number of events held for a facility
func (w *ArrivalWindow) Size(key entities.FacilityKey) int {
	sh := w.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return len(sh.events[key])
}
