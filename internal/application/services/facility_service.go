package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/waittime/internal/domain/entities"
	"github.com/zatekoja/waittime/internal/domain/repositories"
	apperrors "github.com/zatekoja/waittime/pkg/errors"
)

const databaseLayer = "database"

// CatalogSource is a facility source plus whether its entries are written
// back to the repository
type CatalogSource struct {
	Source  repositories.FacilitySource
	Persist bool
}

// FacilityService holds the in-memory facility catalog. Entries are merged
// from the repository and then each source in order; later layers win.
type FacilityService struct {
	repo    repositories.FacilityRepository
	sources []CatalogSource

	mu     sync.RWMutex
	order  []string
	layers map[string][]*entities.Facility
	merged map[string]*entities.Facility
}

// NewFacilityService creates a new facility service. repo may be nil.
func NewFacilityService(repo repositories.FacilityRepository, sources ...CatalogSource) *FacilityService {
	order := make([]string, 0, len(sources)+1)
	if repo != nil {
		order = append(order, databaseLayer)
	}
	for _, s := range sources {
		order = append(order, s.Source.Name())
	}
	return &FacilityService{
		repo:    repo,
		sources: sources,
		order:   order,
		layers:  make(map[string][]*entities.Facility),
		merged:  make(map[string]*entities.Facility),
	}
}

// Load fetches every layer. A failing source is logged and skipped so the
// service can start with a partial catalog.
func (s *FacilityService) Load(ctx context.Context) error {
	if s.repo != nil {
		facilities, err := s.repo.List(ctx, repositories.FacilityFilter{})
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("Failed to load facilities from database")
		} else {
			s.setLayer(databaseLayer, facilities)
		}
	}

	for _, cs := range s.sources {
		facilities, err := cs.Source.Fetch(ctx)
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("source", cs.Source.Name()).Msg("Failed to load facilities from source")
			continue
		}
		if cs.Persist && s.repo != nil {
			s.persist(ctx, cs.Source.Name(), facilities)
		}
		s.setLayer(cs.Source.Name(), facilities)
	}

	count := s.Len()
	log.Ctx(ctx).Info().Int("count", count).Msg("Facility catalog loaded")
	if count == 0 {
		return apperrors.NewNotFoundError("facility catalog is empty")
	}
	return nil
}

func (s *FacilityService) persist(ctx context.Context, source string, facilities []*entities.Facility) {
	for _, f := range facilities {
		stored := *f
		stored.ApplyDefaults()
		if err := s.repo.Upsert(ctx, &stored); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("source", source).Str("poi", f.ID).Msg("Failed to persist facility")
		}
	}
}

// ReplaceSource swaps the entries of one layer, e.g. after a file reload
func (s *FacilityService) ReplaceSource(name string, facilities []*entities.Facility) {
	s.setLayer(name, facilities)
}

func (s *FacilityService) setLayer(name string, facilities []*entities.Facility) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, known := s.layers[name]; !known && !contains(s.order, name) {
		s.order = append(s.order, name)
	}
	s.layers[name] = facilities

	merged := make(map[string]*entities.Facility)
	for _, layer := range s.order {
		for _, f := range s.layers[layer] {
			if f == nil || f.ID == "" {
				continue
			}
			entry := *f
			entry.ApplyDefaults()
			merged[entry.ID] = &entry
		}
	}
	s.merged = merged
}

// Lookup returns a copy of the facility
func (s *FacilityService) Lookup(id string) (*entities.Facility, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.merged[id]
	if !ok {
		return nil, false
	}
	out := *f
	return &out, true
}

// GetByID returns the facility or a not-found error
func (s *FacilityService) GetByID(ctx context.Context, id string) (*entities.Facility, error) {
	if f, ok := s.Lookup(id); ok {
		return f, nil
	}
	return nil, apperrors.NewNotFoundError(fmt.Sprintf("poi %s not found", id))
}

// List returns facilities sorted by ID, optionally of one type
func (s *FacilityService) List(ctx context.Context, facilityType entities.FacilityType) []*entities.Facility {
	s.mu.RLock()
	out := make([]*entities.Facility, 0, len(s.merged))
	for _, f := range s.merged {
		if facilityType != "" && f.FacilityType != facilityType {
			continue
		}
		entry := *f
		out = append(out, &entry)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of catalog entries
func (s *FacilityService) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.merged)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
