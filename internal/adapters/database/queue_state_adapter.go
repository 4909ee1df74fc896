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

var queueStateColumns = []interface{}{
	"qs.facility_id", "qs.arrival_rate", "qs.wait_minutes", "qs.ci_lower", "qs.ci_upper",
	"qs.utilization", "qs.sample_count", "qs.status", "qs.last_updated", "qs.last_published",
}

// QueueStateAdapter implements the QueueStateRepository interface
type QueueStateAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewQueueStateAdapter creates a new queue state adapter
func NewQueueStateAdapter(client *postgres.Client) repositories.QueueStateRepository {
	return &QueueStateAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Upsert replaces the facility's state. last_published survives rows that
// were not published.
func (a *QueueStateAdapter) Upsert(ctx context.Context, state *entities.QueueState) error {
	if state == nil || state.FacilityID == "" {
		return apperrors.NewValidationError("facility id is required")
	}

	record := goqu.Record{
		"facility_id":    state.FacilityID,
		"arrival_rate":   state.ArrivalRate,
		"wait_minutes":   nullableFloat(state.WaitMinutes),
		"ci_lower":       state.CILower,
		"ci_upper":       nullableFloat(state.CIUpper),
		"utilization":    state.Utilization,
		"sample_count":   state.SampleCount,
		"status":         string(state.Status),
		"last_updated":   state.LastUpdated.UTC(),
		"last_published": nullableTime(state.LastPublished),
	}

	query, args, err := a.db.Insert("queue_states").
		Rows(record).
		OnConflict(goqu.DoUpdate("facility_id", goqu.Record{
			"arrival_rate":   goqu.L("EXCLUDED.arrival_rate"),
			"wait_minutes":   goqu.L("EXCLUDED.wait_minutes"),
			"ci_lower":       goqu.L("EXCLUDED.ci_lower"),
			"ci_upper":       goqu.L("EXCLUDED.ci_upper"),
			"utilization":    goqu.L("EXCLUDED.utilization"),
			"sample_count":   goqu.L("EXCLUDED.sample_count"),
			"status":         goqu.L("EXCLUDED.status"),
			"last_updated":   goqu.L("EXCLUDED.last_updated"),
			"last_published": goqu.L("COALESCE(EXCLUDED.last_published, queue_states.last_published)"),
		})).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build upsert query", err)
	}

	start := time.Now()
	_, err = a.client.DB().ExecContext(ctx, query, args...)
	observability.RecordDBMetric(ctx, "upsert_queue_state", time.Since(start))
	if err != nil {
		return apperrors.NewInternalError("failed to upsert queue state", err)
	}

	return nil
}

// GetByFacilityID retrieves the state of a facility
func (a *QueueStateAdapter) GetByFacilityID(ctx context.Context, facilityID string) (*entities.QueueState, error) {
	query, args, err := a.db.Select(queueStateColumns...).
		From(goqu.T("queue_states").As("qs")).
		Where(goqu.Ex{"qs.facility_id": facilityID}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	start := time.Now()
	state, err := scanQueueState(a.client.DB().QueryRowContext(ctx, query, args...))
	observability.RecordDBMetric(ctx, "get_queue_state", time.Since(start))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("no queue state for facility %s", facilityID))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get queue state", err)
	}

	return state, nil
}

// List retrieves states, joining facilities when filtering by type
func (a *QueueStateAdapter) List(ctx context.Context, filter entities.QueueStateFilter) ([]*entities.QueueState, error) {
	ds := a.db.Select(queueStateColumns...).
		From(goqu.T("queue_states").As("qs")).
		Order(goqu.I("qs.facility_id").Asc())

	if filter.FacilityType != "" {
		ds = ds.Join(
			goqu.T("facilities").As("f"),
			goqu.On(goqu.Ex{"qs.facility_id": goqu.I("f.id")}),
		).Where(goqu.Ex{"f.poi_type": string(filter.FacilityType)})
	}
	if filter.Status != "" {
		ds = ds.Where(goqu.Ex{"qs.status": string(filter.Status)})
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
	observability.RecordDBMetric(ctx, "list_queue_states", time.Since(start))
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list queue states", err)
	}
	defer rows.Close()

	var states []*entities.QueueState
	for rows.Next() {
		state, err := scanQueueState(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan queue state", err)
		}
		states = append(states, state)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate queue states", err)
	}

	return states, nil
}

func scanQueueState(row rowScanner) (*entities.QueueState, error) {
	state := &entities.QueueState{}
	var (
		status        string
		waitMinutes   sql.NullFloat64
		ciUpper       sql.NullFloat64
		lastPublished sql.NullTime
	)
	err := row.Scan(
		&state.FacilityID,
		&state.ArrivalRate,
		&waitMinutes,
		&state.CILower,
		&ciUpper,
		&state.Utilization,
		&state.SampleCount,
		&status,
		&state.LastUpdated,
		&lastPublished,
	)
	if err != nil {
		return nil, err
	}

	state.Status = entities.WaitStatus(status)
	state.WaitMinutes = entities.NilAsInf(nullFloatPtr(waitMinutes))
	state.CIUpper = entities.NilAsInf(nullFloatPtr(ciUpper))
	if lastPublished.Valid {
		t := lastPublished.Time
		state.LastPublished = &t
	}
	return state, nil
}

// nullableFloat stores +Inf as NULL
func nullableFloat(v float64) sql.NullFloat64 {
	if p := entities.FiniteOrNil(v); p != nil {
		return sql.NullFloat64{Float64: *p, Valid: true}
	}
	return sql.NullFloat64{}
}

func nullFloatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
