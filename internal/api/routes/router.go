package routes

import (
	"fmt"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/rs/zerolog/log"
	apihandlers "github.com/zatekoja/waittime/internal/api/handlers"
	"github.com/zatekoja/waittime/internal/api/middleware"
	"github.com/zatekoja/waittime/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	healthHandler   *apihandlers.HealthHandler
	waitTimeHandler *apihandlers.WaitTimeHandler
	poiHandler      *apihandlers.POIHandler
	debugHandler    *apihandlers.DebugHandler

	metrics *observability.Metrics
}

// NewRouter creates a new router. metrics may be nil.
func NewRouter(
	healthHandler *apihandlers.HealthHandler,
	waitTimeHandler *apihandlers.WaitTimeHandler,
	poiHandler *apihandlers.POIHandler,
	debugHandler *apihandlers.DebugHandler,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:             http.NewServeMux(),
		healthHandler:   healthHandler,
		waitTimeHandler: waitTimeHandler,
		poiHandler:      poiHandler,
		debugHandler:    debugHandler,
		metrics:         metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", r.healthHandler.Health)

	// Wait-time endpoints
	r.mux.HandleFunc("GET /api/waittime", r.waitTimeHandler.GetWaitTime)
	r.mux.HandleFunc("GET /api/waittime/all", r.waitTimeHandler.ListWaitTimes)

	// Catalog endpoints
	r.mux.HandleFunc("GET /api/pois", r.poiHandler.ListPOIs)
	r.mux.HandleFunc("GET /api/poi/{id}", r.poiHandler.GetPOI)

	// Diagnostics
	r.mux.HandleFunc("GET /debug/queue-state/{id}", r.debugHandler.QueueState)
	r.mux.HandleFunc("GET /debug/consumer-status", r.debugHandler.ConsumerStatus)

	// observability sits directly on the mux so it can read the matched pattern
	var handler http.Handler = r.mux
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.CORSMiddleware(handler)
	handler = handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{}),
		handlers.PrintRecoveryStack(false),
	)(handler)

	return handler
}

// recoveryLogger routes recovered panics to zerolog
type recoveryLogger struct{}

func (recoveryLogger) Println(v ...interface{}) {
	log.Error().Msg(fmt.Sprint(v...))
}
