package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/zatekoja/waittime/internal/domain/entities"
)

// FacilityCatalogReader reads the facility catalog
type FacilityCatalogReader interface {
	GetByID(ctx context.Context, id string) (*entities.Facility, error)
	List(ctx context.Context, facilityType entities.FacilityType) []*entities.Facility
}

// POIHandler serves catalog entries
type POIHandler struct {
	catalog FacilityCatalogReader
}

// NewPOIHandler creates a new POI handler
func NewPOIHandler(catalog FacilityCatalogReader) *POIHandler {
	return &POIHandler{catalog: catalog}
}

// ListPOIs handles GET /api/pois?poi_type=<t>
func (h *POIHandler) ListPOIs(w http.ResponseWriter, r *http.Request) {
	facilityType := entities.FacilityType(strings.ToLower(r.URL.Query().Get("poi_type")))
	pois := h.catalog.List(r.Context(), facilityType)

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"pois":  pois,
		"count": len(pois),
	})
}

// GetPOI handles GET /api/poi/{id}
func (h *POIHandler) GetPOI(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "poi ID is required")
		return
	}

	poi, err := h.catalog.GetByID(r.Context(), id)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, poi)
}
