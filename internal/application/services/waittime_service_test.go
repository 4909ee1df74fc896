package services_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/waittime/internal/application/services"
	"github.com/zatekoja/waittime/internal/domain/entities"
	"github.com/zatekoja/waittime/internal/estimation"
	apperrors "github.com/zatekoja/waittime/pkg/errors"
)

type MockQueueStateRepository struct {
	mock.Mock
}

func (m *MockQueueStateRepository) Upsert(ctx context.Context, state *entities.QueueState) error {
	args := m.Called(ctx, state)
	return args.Error(0)
}

func (m *MockQueueStateRepository) GetByFacilityID(ctx context.Context, facilityID string) (*entities.QueueState, error) {
	args := m.Called(ctx, facilityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.QueueState), args.Error(1)
}

func (m *MockQueueStateRepository) List(ctx context.Context, filter entities.QueueStateFilter) ([]*entities.QueueState, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.QueueState), args.Error(1)
}

type MockUpdatePublisher struct {
	mock.Mock
}

func (m *MockUpdatePublisher) Publish(ctx context.Context, update *entities.WaitTimeUpdate) error {
	args := m.Called(ctx, update)
	return args.Error(0)
}

type waitTimeFixture struct {
	service   *services.WaitTimeService
	window    *estimation.ArrivalWindow
	states    *MockQueueStateRepository
	publisher *MockUpdatePublisher
}

func newWaitTimeFixture(facilities ...*entities.Facility) waitTimeFixture {
	catalog := services.NewFacilityService(nil)
	catalog.ReplaceSource("file", facilities)

	states := new(MockQueueStateRepository)
	publisher := new(MockUpdatePublisher)
	window := estimation.NewArrivalWindow(5 * time.Minute)
	service := services.NewWaitTimeService(
		catalog,
		window,
		estimation.NewEstimationPipeline(estimation.DefaultPipelineConfig()),
		states,
		publisher,
	)
	return waitTimeFixture{service: service, window: window, states: states, publisher: publisher}
}

func entry(poi string) *entities.QueueEvent {
	return &entities.QueueEvent{FacilityID: poi, EventType: entities.QueueEventTypeEntry}
}

func TestWaitTimeService_HandleEvent(t *testing.T) {
	t.Run("first observation is persisted and published", func(t *testing.T) {
		f := newWaitTimeFixture(&entities.Facility{ID: "WC-1", FacilityType: entities.FacilityTypeRestroom})

		f.states.On("Upsert", mock.Anything, mock.MatchedBy(func(s *entities.QueueState) bool {
			return s.FacilityID == "WC-1" && s.SampleCount == 1 && s.LastPublished != nil
		})).Return(nil).Once()
		f.publisher.On("Publish", mock.Anything, mock.MatchedBy(func(u *entities.WaitTimeUpdate) bool {
			// one entry over 5 min: lambda 0.2, mu 0.5, W = 1/0.3
			return u.Facility == "WC-1" && u.Minutes != nil && *u.Minutes == 3.3 && u.Status == entities.WaitStatusLow
		})).Return(nil).Once()

		decision, err := f.service.HandleEvent(context.Background(), entry("WC-1"))
		require.NoError(t, err)
		assert.True(t, decision.ShouldPublish)
		assert.InDelta(t, 0.2, decision.SmoothedRate, 1e-9)
		f.states.AssertExpectations(t)
		f.publisher.AssertExpectations(t)
	})

	t.Run("unchanged estimate is persisted but not published", func(t *testing.T) {
		f := newWaitTimeFixture(&entities.Facility{ID: "WC-1"})
		f.states.On("Upsert", mock.Anything, mock.Anything).Return(nil).Twice()
		f.publisher.On("Publish", mock.Anything, mock.Anything).Return(nil).Once()

		_, err := f.service.HandleEvent(context.Background(), entry("WC-1"))
		require.NoError(t, err)

		exit := &entities.QueueEvent{FacilityID: "WC-1", EventType: entities.QueueEventTypeExit}
		decision, err := f.service.HandleEvent(context.Background(), exit)
		require.NoError(t, err)
		assert.False(t, decision.ShouldPublish)

		f.states.AssertExpectations(t)
		f.publisher.AssertNumberOfCalls(t, "Publish", 1)
	})

	t.Run("unknown facility is dropped", func(t *testing.T) {
		f := newWaitTimeFixture()

		decision, err := f.service.HandleEvent(context.Background(), entry("Nope"))
		require.NoError(t, err)
		assert.False(t, decision.ShouldPublish)
		f.states.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
		f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	})

	t.Run("unknown facilities leave nothing in the arrival window", func(t *testing.T) {
		f := newWaitTimeFixture(&entities.Facility{ID: "WC-1"})

		for i := 0; i < 1000; i++ {
			_, err := f.service.HandleEvent(context.Background(), entry(fmt.Sprintf("bogus-%d", i)))
			require.NoError(t, err)
		}
		for i := 0; i < 1000; i++ {
			require.Zero(t, f.window.Size(entities.FacilityKey(fmt.Sprintf("bogus-%d", i))))
		}
		assert.Zero(t, f.service.ActiveFacilities())
	})

	t.Run("invalid event is rejected", func(t *testing.T) {
		f := newWaitTimeFixture(&entities.Facility{ID: "WC-1"})

		_, err := f.service.HandleEvent(context.Background(), &entities.QueueEvent{FacilityID: "WC-1", EventType: "sideways"})
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	})

	t.Run("invalid facility config touches nothing", func(t *testing.T) {
		f := newWaitTimeFixture(&entities.Facility{ID: "WC-1", NumServers: -2})

		_, err := f.service.HandleEvent(context.Background(), entry("WC-1"))
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidParameter))
		_, ok := f.service.Snapshot("WC-1")
		assert.False(t, ok)
		f.states.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	})

	t.Run("publish failure still persists", func(t *testing.T) {
		f := newWaitTimeFixture(&entities.Facility{ID: "WC-1"})
		f.states.On("Upsert", mock.Anything, mock.Anything).Return(nil).Once()
		f.publisher.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()

		_, err := f.service.HandleEvent(context.Background(), entry("WC-1"))
		assert.ErrorContains(t, err, "broker down")
		f.states.AssertExpectations(t)
	})

	t.Run("failed publish is retried on the next observation", func(t *testing.T) {
		f := newWaitTimeFixture(&entities.Facility{ID: "WC-1"})
		f.states.On("Upsert", mock.Anything, mock.Anything).Return(nil)
		f.publisher.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()
		f.publisher.On("Publish", mock.Anything, mock.Anything).Return(nil).Once()

		_, err := f.service.HandleEvent(context.Background(), entry("WC-1"))
		require.Error(t, err)
		snap, ok := f.service.Snapshot("WC-1")
		require.True(t, ok)
		assert.Nil(t, snap.LastPublished)

		// an exit leaves the rate unchanged, but nothing has reached subscribers yet
		exit := &entities.QueueEvent{FacilityID: "WC-1", EventType: entities.QueueEventTypeExit}
		decision, err := f.service.HandleEvent(context.Background(), exit)
		require.NoError(t, err)
		assert.True(t, decision.ShouldPublish)
		f.publisher.AssertNumberOfCalls(t, "Publish", 2)

		snap, _ = f.service.Snapshot("WC-1")
		require.NotNil(t, snap.LastPublished)
		assert.InDelta(t, decision.Result.WaitMinutes, *snap.LastPublished, 1e-9)
	})

	t.Run("overloaded facility publishes null minutes", func(t *testing.T) {
		// 3 entries in 5 min on one slow server: lambda 0.6 > mu 0.5
		f := newWaitTimeFixture(&entities.Facility{ID: "WC-1", NumServers: 1, ServiceRate: 0.5})
		f.states.On("Upsert", mock.Anything, mock.Anything).Return(nil)
		f.publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)

		ev := entry("WC-1")
		ev.Count = 3
		decision, err := f.service.HandleEvent(context.Background(), ev)
		require.NoError(t, err)

		assert.True(t, math.IsInf(decision.Result.WaitMinutes, 1))
		update := f.publisher.Calls[0].Arguments.Get(1).(*entities.WaitTimeUpdate)
		assert.Nil(t, update.Minutes)
		assert.Equal(t, entities.WaitStatusOverloaded, update.Status)
	})
}

func TestWaitTimeService_Queries(t *testing.T) {
	f := newWaitTimeFixture()

	_, err := f.service.Current(context.Background(), "")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	state := &entities.QueueState{FacilityID: "WC-1", Status: entities.WaitStatusLow}
	f.states.On("GetByFacilityID", mock.Anything, "WC-1").Return(state, nil)
	got, err := f.service.Current(context.Background(), "WC-1")
	require.NoError(t, err)
	assert.Same(t, state, got)

	filter := entities.QueueStateFilter{FacilityType: entities.FacilityTypeBar}
	f.states.On("List", mock.Anything, filter).Return([]*entities.QueueState{state}, nil)
	list, err := f.service.List(context.Background(), filter)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 0, f.service.ActiveFacilities())
}
