package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/zatekoja/waittime/internal/domain/entities"
)

// WaitTimeQuerier reads stored queue states
type WaitTimeQuerier interface {
	Current(ctx context.Context, facilityID string) (*entities.QueueState, error)
	List(ctx context.Context, filter entities.QueueStateFilter) ([]*entities.QueueState, error)
}

// WaitTimeHandler serves current wait times
type WaitTimeHandler struct {
	service WaitTimeQuerier
}

// NewWaitTimeHandler creates a new wait-time handler
func NewWaitTimeHandler(service WaitTimeQuerier) *WaitTimeHandler {
	return &WaitTimeHandler{service: service}
}

// GetWaitTime handles GET /api/waittime?poi=<id>
func (h *WaitTimeHandler) GetWaitTime(w http.ResponseWriter, r *http.Request) {
	poi := strings.TrimSpace(r.URL.Query().Get("poi"))
	if poi == "" {
		respondWithError(w, http.StatusBadRequest, "poi query parameter is required")
		return
	}

	state, err := h.service.Current(r.Context(), poi)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, state)
}

// ListWaitTimes handles GET /api/waittime/all?poi_type=<t>&status=<s>
func (h *WaitTimeHandler) ListWaitTimes(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit, err := queryInt(r, "limit")
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	filter := entities.QueueStateFilter{
		FacilityType: entities.FacilityType(strings.ToLower(query.Get("poi_type"))),
		Status:       entities.WaitStatus(strings.ToLower(query.Get("status"))),
		Limit:        limit,
		Offset:       offset,
	}

	states, err := h.service.List(r.Context(), filter)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	if states == nil {
		states = []*entities.QueueState{}
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"waittimes": states,
		"count":     len(states),
	})
}
