package repositories

import (
	"context"

	"github.com/zatekoja/waittime/internal/domain/entities"
)

// QueueStateRepository stores the latest estimate per facility
type QueueStateRepository interface {
	// Upsert writes the state, replacing any previous state of the facility
	Upsert(ctx context.Context, state *entities.QueueState) error

	// GetByFacilityID retrieves the state of a facility
	GetByFacilityID(ctx context.Context, facilityID string) (*entities.QueueState, error)

	// List retrieves states, optionally filtered by facility type or status
	List(ctx context.Context, filter entities.QueueStateFilter) ([]*entities.QueueState, error)
}
