package handlers

import (
	"net/http"
	"time"
)

// StatusFunc reports the state of the event consumer
type StatusFunc func() string

// HealthHandler serves the liveness endpoint
type HealthHandler struct {
	service        string
	consumerStatus StatusFunc
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(service string, consumerStatus StatusFunc) *HealthHandler {
	return &HealthHandler{service: service, consumerStatus: consumerStatus}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := "unknown"
	if h.consumerStatus != nil {
		status = h.consumerStatus()
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"status":          "ok",
		"service":         h.service,
		"consumer_status": status,
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	})
}
