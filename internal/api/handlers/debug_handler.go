package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/zatekoja/waittime/internal/application/services"
	"github.com/zatekoja/waittime/internal/domain/entities"
	"github.com/zatekoja/waittime/internal/estimation"
)

// EstimatorInspector exposes in-memory estimator state
type EstimatorInspector interface {
	Current(ctx context.Context, facilityID string) (*entities.QueueState, error)
	Snapshot(facilityID string) (estimation.FacilitySnapshot, bool)
	ActiveFacilities() int
}

// DebugHandler serves operator diagnostics
type DebugHandler struct {
	inspector      EstimatorInspector
	consumerStatus StatusFunc
	stats          func() services.DispatcherStats
}

// NewDebugHandler creates a new debug handler. stats may be nil.
func NewDebugHandler(inspector EstimatorInspector, consumerStatus StatusFunc, stats func() services.DispatcherStats) *DebugHandler {
	return &DebugHandler{inspector: inspector, consumerStatus: consumerStatus, stats: stats}
}

type estimatorView struct {
	SmoothedRate  float64             `json:"smoothed_rate"`
	Servers       int                 `json:"servers"`
	LastComputed  *float64            `json:"last_computed"`
	LastPublished *float64            `json:"last_published"`
	Utilization   float64             `json:"utilization"`
	Status        entities.WaitStatus `json:"status"`
	Observations  int                 `json:"observations"`
}

// QueueState handles GET /debug/queue-state/{id}
func (h *DebugHandler) QueueState(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	snap, inMemory := h.inspector.Snapshot(id)
	stored, err := h.inspector.Current(r.Context(), id)
	if err != nil && !inMemory {
		respondWithAppError(w, err)
		return
	}

	body := map[string]interface{}{
		"poi":    id,
		"stored": stored,
	}
	if inMemory {
		var lastPublished *float64
		if snap.LastPublished != nil {
			lastPublished = entities.FiniteOrNil(*snap.LastPublished)
		}
		body["estimator"] = estimatorView{
			SmoothedRate:  snap.SmoothedRate,
			Servers:       snap.Servers,
			LastComputed:  entities.FiniteOrNil(snap.LastComputed),
			LastPublished: lastPublished,
			Utilization:   snap.LastResult.Utilization,
			Status:        snap.LastResult.Status,
			Observations:  snap.Observations,
		}
	}

	respondWithJSON(w, http.StatusOK, body)
}

// ConsumerStatus handles GET /debug/consumer-status
func (h *DebugHandler) ConsumerStatus(w http.ResponseWriter, r *http.Request) {
	status := "unknown"
	if h.consumerStatus != nil {
		status = h.consumerStatus()
	}
	active := h.inspector.ActiveFacilities()

	body := map[string]interface{}{
		"status":       status,
		"active_pois":  active,
		"queue_models": active,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	}
	if h.stats != nil {
		body["dispatcher"] = h.stats()
	}
	respondWithJSON(w, http.StatusOK, body)
}
