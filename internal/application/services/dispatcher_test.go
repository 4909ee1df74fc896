package services_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/waittime/internal/application/services"
	"github.com/zatekoja/waittime/internal/domain/entities"
)

type recordingHandler struct {
	mu   sync.Mutex
	seen map[string][]string
	fail string
}

func (h *recordingHandler) HandleEvent(ctx context.Context, event *entities.QueueEvent) (entities.PublishDecision, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen[event.FacilityID] = append(h.seen[event.FacilityID], event.ID)
	if event.FacilityID == h.fail {
		return entities.PublishDecision{}, errors.New("boom")
	}
	return entities.PublishDecision{ShouldPublish: len(h.seen[event.FacilityID]) == 1}, nil
}

func TestDispatcher_PreservesPerFacilityOrder(t *testing.T) {
	handler := &recordingHandler{seen: make(map[string][]string)}
	dispatcher := services.NewDispatcher(handler, 4, 2)

	facilities := []string{"WC-1", "WC-2", "Food-A", "Bar-Sur-L1", "Store-1"}
	events := make(chan *entities.QueueEvent, 500)
	want := make(map[string][]string)
	for i := 0; i < 100; i++ {
		for _, poi := range facilities {
			id := fmt.Sprintf("%s-%03d", poi, i)
			events <- &entities.QueueEvent{ID: id, FacilityID: poi}
			want[poi] = append(want[poi], id)
		}
	}
	close(events)

	dispatcher.Run(context.Background(), events)

	assert.Equal(t, want, handler.seen)
	stats := dispatcher.Stats()
	assert.Equal(t, int64(500), stats.Processed)
	assert.Equal(t, int64(0), stats.Failed)
	assert.Equal(t, int64(len(facilities)), stats.Published)
}

func TestDispatcher_CountsFailures(t *testing.T) {
	handler := &recordingHandler{seen: make(map[string][]string), fail: "bad"}
	dispatcher := services.NewDispatcher(handler, 2, 8)

	events := make(chan *entities.QueueEvent, 3)
	events <- &entities.QueueEvent{ID: "1", FacilityID: "bad"}
	events <- &entities.QueueEvent{ID: "2", FacilityID: "good"}
	events <- nil
	close(events)

	dispatcher.Run(context.Background(), events)

	stats := dispatcher.Stats()
	assert.Equal(t, int64(2), stats.Processed)
	assert.Equal(t, int64(1), stats.Failed)
}

func TestDispatcher_StopsOnCancel(t *testing.T) {
	handler := &recordingHandler{seen: make(map[string][]string)}
	dispatcher := services.NewDispatcher(handler, 0, 0)
	require.Equal(t, 1, dispatcher.Workers())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		dispatcher.Run(ctx, make(chan *entities.QueueEvent))
		close(done)
	}()
	<-done
	assert.Equal(t, int64(0), dispatcher.Stats().Processed)
}

func TestDispatcher_WorkerForIsStable(t *testing.T) {
	dispatcher := services.NewDispatcher(&recordingHandler{}, 8, 1)
	first := dispatcher.WorkerFor("WC-Norte-L0-1")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, dispatcher.WorkerFor("WC-Norte-L0-1"))
	}
	assert.Equal(t, first, dispatcher.WorkerFor(" WC-Norte-L0-1 "))
	assert.Less(t, first, 8)
}
