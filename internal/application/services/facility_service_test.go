package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/waittime/internal/application/services"
	"github.com/zatekoja/waittime/internal/domain/entities"
	"github.com/zatekoja/waittime/internal/domain/repositories"
	apperrors "github.com/zatekoja/waittime/pkg/errors"
)

// Mocks

type MockFacilityRepository struct {
	mock.Mock
}

func (m *MockFacilityRepository) Upsert(ctx context.Context, facility *entities.Facility) error {
	args := m.Called(ctx, facility)
	return args.Error(0)
}

func (m *MockFacilityRepository) GetByID(ctx context.Context, id string) (*entities.Facility, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Facility), args.Error(1)
}

func (m *MockFacilityRepository) List(ctx context.Context, filter repositories.FacilityFilter) ([]*entities.Facility, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Facility), args.Error(1)
}

func (m *MockFacilityRepository) Delete(ctx context.Context, id string) error {
	return nil
}

type staticSource struct {
	name       string
	facilities []*entities.Facility
	err        error
}

func (s *staticSource) Name() string { return s.name }

func (s *staticSource) Fetch(ctx context.Context) ([]*entities.Facility, error) {
	return s.facilities, s.err
}

// Tests

func TestFacilityService_Load(t *testing.T) {
	t.Run("later sources win and map entries are persisted", func(t *testing.T) {
		repo := new(MockFacilityRepository)
		repo.On("List", mock.Anything, repositories.FacilityFilter{}).Return([]*entities.Facility{
			{ID: "WC-Norte-L0-1", FacilityType: entities.FacilityTypeRestroom, NumServers: 4},
			{ID: "Store-1", FacilityType: entities.FacilityTypeStore},
		}, nil)
		repo.On("Upsert", mock.Anything, mock.MatchedBy(func(f *entities.Facility) bool {
			return f.ID == "WC-Norte-L0-1" && f.NumServers == 8 && f.ServiceRate == 0.5
		})).Return(nil).Once()

		mapSource := &staticSource{name: "mapservice", facilities: []*entities.Facility{
			{ID: "WC-Norte-L0-1", FacilityType: entities.FacilityTypeRestroom, NumServers: 8},
		}}
		fileSource := &staticSource{name: "file", facilities: []*entities.Facility{
			{ID: "Bar-Sur-L1", FacilityType: entities.FacilityTypeBar},
		}}

		service := services.NewFacilityService(repo,
			services.CatalogSource{Source: mapSource, Persist: true},
			services.CatalogSource{Source: fileSource},
		)
		require.NoError(t, service.Load(context.Background()))

		assert.Equal(t, 3, service.Len())
		wc, ok := service.Lookup("WC-Norte-L0-1")
		require.True(t, ok)
		assert.Equal(t, 8, wc.NumServers)

		bar, ok := service.Lookup("Bar-Sur-L1")
		require.True(t, ok)
		assert.Equal(t, entities.FacilityConfig{Servers: 3, ServiceRate: 1.0}, bar.Config())
		repo.AssertExpectations(t)
	})

	t.Run("failing source is skipped", func(t *testing.T) {
		repo := new(MockFacilityRepository)
		repo.On("List", mock.Anything, mock.Anything).Return(nil, apperrors.NewInternalError("db down", nil))

		service := services.NewFacilityService(repo,
			services.CatalogSource{Source: &staticSource{name: "mapservice", err: errors.New("unavailable")}, Persist: true},
			services.CatalogSource{Source: &staticSource{name: "file", facilities: []*entities.Facility{{ID: "Food-A", FacilityType: entities.FacilityTypeFood}}}},
		)
		require.NoError(t, service.Load(context.Background()))
		assert.Equal(t, 1, service.Len())
		repo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	})

	t.Run("empty catalog is reported", func(t *testing.T) {
		service := services.NewFacilityService(nil)
		err := service.Load(context.Background())
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
	})
}

func TestFacilityService_ReplaceSource(t *testing.T) {
	service := services.NewFacilityService(nil, services.CatalogSource{Source: &staticSource{name: "file"}})

	service.ReplaceSource("file", []*entities.Facility{{ID: "Food-A", FacilityType: entities.FacilityTypeFood}})
	_, ok := service.Lookup("Food-A")
	assert.True(t, ok)

	service.ReplaceSource("file", []*entities.Facility{{ID: "Food-B", FacilityType: entities.FacilityTypeFood}})
	_, ok = service.Lookup("Food-A")
	assert.False(t, ok)
	assert.Equal(t, 1, service.Len())
}

func TestFacilityService_ListAndGet(t *testing.T) {
	service := services.NewFacilityService(nil)
	service.ReplaceSource("file", []*entities.Facility{
		{ID: "Food-B", FacilityType: entities.FacilityTypeFood},
		{ID: "WC-1"},
		{ID: "Food-A", FacilityType: entities.FacilityTypeFood},
	})

	all := service.List(context.Background(), "")
	require.Len(t, all, 3)
	assert.Equal(t, "Food-A", all[0].ID)

	food := service.List(context.Background(), entities.FacilityTypeFood)
	assert.Len(t, food, 2)

	wc, err := service.GetByID(context.Background(), "WC-1")
	require.NoError(t, err)
	assert.Equal(t, entities.FacilityTypeOther, wc.FacilityType)

	// returned entries are copies
	wc.NumServers = 99
	again, _ := service.Lookup("WC-1")
	assert.Equal(t, entities.DefaultServers, again.NumServers)

	_, err = service.GetByID(context.Background(), "missing")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}
