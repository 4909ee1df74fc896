package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/zatekoja/waittime/internal/domain/entities"
	"github.com/zatekoja/waittime/internal/domain/repositories"
	"github.com/zatekoja/waittime/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/waittime/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/waittime/pkg/errors"
)

var facilityColumns = []interface{}{
	"id", "name", "poi_type", "num_servers", "service_rate", "created_at", "updated_at",
}

// FacilityAdapter implements the FacilityRepository interface
type FacilityAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewFacilityAdapter creates a new facility adapter
func NewFacilityAdapter(client *postgres.Client) repositories.FacilityRepository {
	return &FacilityAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Upsert creates a facility or updates its attributes, keeping created_at
func (a *FacilityAdapter) Upsert(ctx context.Context, facility *entities.Facility) error {
	if facility == nil || facility.ID == "" {
		return apperrors.NewValidationError("facility id is required")
	}

	now := time.Now().UTC()
	if facility.CreatedAt.IsZero() {
		facility.CreatedAt = now
	}
	facility.UpdatedAt = now

	record := goqu.Record{
		"id":           facility.ID,
		"name":         facility.Name,
		"poi_type":     string(facility.FacilityType),
		"num_servers":  facility.NumServers,
		"service_rate": facility.ServiceRate,
		"created_at":   facility.CreatedAt,
		"updated_at":   facility.UpdatedAt,
	}

	query, args, err := a.db.Insert("facilities").
		Rows(record).
		OnConflict(goqu.DoUpdate("id", goqu.Record{
			"name":         goqu.L("EXCLUDED.name"),
			"poi_type":     goqu.L("EXCLUDED.poi_type"),
			"num_servers":  goqu.L("EXCLUDED.num_servers"),
			"service_rate": goqu.L("EXCLUDED.service_rate"),
			"updated_at":   goqu.L("EXCLUDED.updated_at"),
		})).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build upsert query", err)
	}

	start := time.Now()
	_, err = a.client.DB().ExecContext(ctx, query, args...)
	observability.RecordDBMetric(ctx, "upsert_facility", time.Since(start))
	if err != nil {
		return apperrors.NewInternalError("failed to upsert facility", err)
	}

	return nil
}

// GetByID retrieves a facility by ID
func (a *FacilityAdapter) GetByID(ctx context.Context, id string) (*entities.Facility, error) {
	query, args, err := a.db.Select(facilityColumns...).
		From("facilities").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	start := time.Now()
	facility, err := scanFacility(a.client.DB().QueryRowContext(ctx, query, args...))
	observability.RecordDBMetric(ctx, "get_facility", time.Since(start))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("facility with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get facility", err)
	}

	return facility, nil
}

// List retrieves facilities with filters
func (a *FacilityAdapter) List(ctx context.Context, filter repositories.FacilityFilter) ([]*entities.Facility, error) {
	ds := a.db.Select(facilityColumns...).
		From("facilities").
		Order(goqu.I("id").Asc())

	if filter.FacilityType != "" {
		ds = ds.Where(goqu.Ex{"poi_type": string(filter.FacilityType)})
	}
	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}
	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	start := time.Now()
	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	observability.RecordDBMetric(ctx, "list_facilities", time.Since(start))
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list facilities", err)
	}
	defer rows.Close()

	var facilities []*entities.Facility
	for rows.Next() {
		facility, err := scanFacility(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan facility", err)
		}
		facilities = append(facilities, facility)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate facilities", err)
	}

	return facilities, nil
}

// Delete deletes a facility
func (a *FacilityAdapter) Delete(ctx context.Context, id string) error {
	query, args, err := a.db.Delete("facilities").Where(goqu.Ex{"id": id}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build delete query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to delete facility", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if affected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("facility with id %s not found", id))
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFacility(row rowScanner) (*entities.Facility, error) {
	facility := &entities.Facility{}
	var poiType string
	err := row.Scan(
		&facility.ID,
		&facility.Name,
		&poiType,
		&facility.NumServers,
		&facility.ServiceRate,
		&facility.CreatedAt,
		&facility.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	facility.FacilityType = entities.FacilityType(poiType)
	return facility, nil
}
