package catalog

import (
	"context"
	"strings"

	"github.com/zatekoja/waittime/internal/domain/entities"
	"github.com/zatekoja/waittime/internal/domain/repositories"
	"github.com/zatekoja/waittime/internal/infrastructure/clients/mapservice"
)

// MapServiceSource adapts map service POIs to catalog facilities
type MapServiceSource struct {
	client mapservice.Client
}

// NewMapServiceSource creates a map-service-backed catalog source
func NewMapServiceSource(client mapservice.Client) *MapServiceSource {
	return &MapServiceSource{client: client}
}

var _ repositories.FacilitySource = (*MapServiceSource)(nil)

// Name identifies the source in logs
func (s *MapServiceSource) Name() string {
	return "mapservice"
}

// Fetch lists the POIs and converts them
func (s *MapServiceSource) Fetch(ctx context.Context) ([]*entities.Facility, error) {
	pois, err := s.client.ListPOIs(ctx)
	if err != nil {
		return nil, err
	}

	facilities := make([]*entities.Facility, 0, len(pois))
	for _, poi := range pois {
		if strings.TrimSpace(poi.ID) == "" {
			continue
		}
		facilities = append(facilities, FromPOI(poi))
	}
	return facilities, nil
}

// FromPOI maps a POI onto a facility. Zero queue parameters stay zero so
// type defaults apply later.
func FromPOI(poi mapservice.POI) *entities.Facility {
	return &entities.Facility{
		ID:           strings.TrimSpace(poi.ID),
		Name:         poi.Name,
		FacilityType: entities.FacilityType(strings.ToLower(strings.TrimSpace(poi.Type))),
		NumServers:   poi.NumServers,
		ServiceRate:  poi.ServiceRate,
	}
}
