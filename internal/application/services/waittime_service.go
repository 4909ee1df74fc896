package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/zatekoja/waittime/internal/domain/entities"
	"github.com/zatekoja/waittime/internal/domain/providers"
	"github.com/zatekoja/waittime/internal/domain/repositories"
	"github.com/zatekoja/waittime/internal/estimation"
	"github.com/zatekoja/waittime/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/waittime/pkg/errors"
)

// FacilityCatalog resolves facility IDs to catalog entries
type FacilityCatalog interface {
	Lookup(id string) (*entities.Facility, bool)
}

// WaitTimeService turns queue events into persisted states and published updates
type WaitTimeService struct {
	catalog   FacilityCatalog
	window    *estimation.ArrivalWindow
	pipeline  *estimation.EstimationPipeline
	states    repositories.QueueStateRepository
	publisher providers.UpdatePublisher
	now       func() time.Time
}

// NewWaitTimeService creates a new wait-time service
func NewWaitTimeService(
	catalog FacilityCatalog,
	window *estimation.ArrivalWindow,
	pipeline *estimation.EstimationPipeline,
	states repositories.QueueStateRepository,
	publisher providers.UpdatePublisher,
) *WaitTimeService {
	return &WaitTimeService{
		catalog:   catalog,
		window:    window,
		pipeline:  pipeline,
		states:    states,
		publisher: publisher,
		now:       time.Now,
	}
}

// HandleEvent runs one event through catalog, window, pipeline, persistence
// and publication. Events for unknown facilities are dropped without error.
// A failure to persist or publish is returned after both have been attempted.
func (s *WaitTimeService) HandleEvent(ctx context.Context, event *entities.QueueEvent) (entities.PublishDecision, error) {
	ctx, span := observability.StartSpan(ctx, "WaitTimeService.HandleEvent")
	defer span.End()

	now := s.now().UTC()
	event.Normalize(now)
	span.SetAttributes(attribute.String("poi.id", event.FacilityID))

	if err := event.Validate(); err != nil {
		observability.RecordRejectedEvent(ctx, "invalid")
		observability.RecordError(span, err)
		return entities.PublishDecision{}, err
	}

	// unknown POIs never reach the window, so bogus ids hold no state
	facility, ok := s.catalog.Lookup(event.FacilityID)
	if !ok {
		log.Ctx(ctx).Warn().Str("poi", event.FacilityID).Msg("Unknown POI, dropping event")
		observability.RecordRejectedEvent(ctx, "unknown_poi")
		return entities.PublishDecision{}, nil
	}

	obs, ok := s.window.Record(event, now)
	if !ok {
		log.Ctx(ctx).Debug().Str("poi", event.FacilityID).Time("ts", event.Timestamp).Msg("Event outside arrival window")
		observability.RecordRejectedEvent(ctx, "stale")
		return entities.PublishDecision{}, nil
	}

	decision, err := s.pipeline.Process(obs, facility.Config())
	if err != nil {
		observability.RecordRejectedEvent(ctx, "invalid_config")
		observability.RecordError(span, err)
		return entities.PublishDecision{}, err
	}

	var errs []error
	state := entities.NewQueueState(obs, decision, now)
	if err := s.states.Upsert(ctx, state); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("poi", event.FacilityID).Msg("Failed to persist queue state")
		errs = append(errs, err)
	}

	published := false
	if decision.ShouldPublish {
		update := entities.NewWaitTimeUpdate(obs.Facility, decision.Result, now)
		if err := s.publisher.Publish(ctx, update); err != nil {
			log.Ctx(ctx).Error().Err(err).Str("poi", event.FacilityID).Msg("Failed to publish wait-time update")
			s.pipeline.RestorePublished(obs.Facility, decision.PreviousPublished)
			errs = append(errs, err)
		} else {
			published = true
		}
	}

	observability.RecordEstimation(ctx, string(decision.Result.Status), decision.Result.WaitMinutes, published)
	log.Ctx(ctx).Debug().
		Str("poi", event.FacilityID).
		Float64("rate", decision.SmoothedRate).
		Float64("rho", decision.Result.Utilization).
		Str("status", string(decision.Result.Status)).
		Bool("published", published).
		Msg("Observation processed")

	if err := errors.Join(errs...); err != nil {
		observability.RecordError(span, err)
		return decision, fmt.Errorf("poi %s: %w", event.FacilityID, err)
	}
	return decision, nil
}

// Current returns the stored state of a facility
func (s *WaitTimeService) Current(ctx context.Context, facilityID string) (*entities.QueueState, error) {
	if facilityID == "" {
		return nil, apperrors.NewValidationError("poi is required")
	}
	return s.states.GetByFacilityID(ctx, facilityID)
}

// List returns stored states
func (s *WaitTimeService) List(ctx context.Context, filter entities.QueueStateFilter) ([]*entities.QueueState, error) {
	return s.states.List(ctx, filter)
}

// Snapshot returns the in-memory estimator state of a facility
func (s *WaitTimeService) Snapshot(facilityID string) (estimation.FacilitySnapshot, bool) {
	return s.pipeline.Snapshot(entities.FacilityKey(facilityID))
}

// ActiveFacilities returns the number of facilities with estimator state
func (s *WaitTimeService) ActiveFacilities() int {
	return s.pipeline.Len()
}
