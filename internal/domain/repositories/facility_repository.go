package repositories

import (
	"context"

	"github.com/zatekoja/waittime/internal/domain/entities"
)

// FacilityRepository defines the interface for facility catalog data operations
type FacilityRepository interface {
	// Upsert creates the facility or replaces its attributes
	Upsert(ctx context.Context, facility *entities.Facility) error

	// GetByID retrieves a facility by ID
	GetByID(ctx context.Context, id string) (*entities.Facility, error)

	// List retrieves facilities with filters
	List(ctx context.Context, filter FacilityFilter) ([]*entities.Facility, error)

	// Delete deletes a facility
	Delete(ctx context.Context, id string) error
}

// FacilityFilter defines filters for listing facilities
type FacilityFilter struct {
	FacilityType entities.FacilityType
	Limit        int
	Offset       int
}

// FacilitySource is a read-only origin of catalog entries (map service, file)
type FacilitySource interface {
	Name() string
	Fetch(ctx context.Context) ([]*entities.Facility, error)
}
