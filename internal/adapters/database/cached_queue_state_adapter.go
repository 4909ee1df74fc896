package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/waittime/internal/domain/entities"
	"github.com/zatekoja/waittime/internal/domain/providers"
	"github.com/zatekoja/waittime/internal/domain/repositories"
)

// DefaultQueueStateTTL is the cache lifetime of a single state, in seconds
const DefaultQueueStateTTL = 60

// CachedQueueStateAdapter wraps a QueueStateRepository with a read-through cache
type CachedQueueStateAdapter struct {
	adapter repositories.QueueStateRepository
	cache   providers.CacheProvider
	ttl     int
}

// NewCachedQueueStateAdapter creates a new cached queue state adapter
func NewCachedQueueStateAdapter(adapter repositories.QueueStateRepository, cache providers.CacheProvider, ttlSeconds int) repositories.QueueStateRepository {
	if ttlSeconds <= 0 {
		ttlSeconds = DefaultQueueStateTTL
	}
	return &CachedQueueStateAdapter{
		adapter: adapter,
		cache:   cache,
		ttl:     ttlSeconds,
	}
}

func queueStateCacheKey(facilityID string) string {
	return fmt.Sprintf("queue_state:%s", facilityID)
}

// Upsert writes through and invalidates the cached copy
func (a *CachedQueueStateAdapter) Upsert(ctx context.Context, state *entities.QueueState) error {
	if err := a.adapter.Upsert(ctx, state); err != nil {
		return err
	}

	key := queueStateCacheKey(state.FacilityID)
	if err := a.cache.Delete(ctx, key); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("Failed to invalidate queue state cache")
	}
	return nil
}

// GetByFacilityID retrieves a state with caching
func (a *CachedQueueStateAdapter) GetByFacilityID(ctx context.Context, facilityID string) (*entities.QueueState, error) {
	key := queueStateCacheKey(facilityID)

	if cached, err := a.cache.Get(ctx, key); err == nil {
		var state entities.QueueState
		if err := json.Unmarshal(cached, &state); err == nil {
			return &state, nil
		}
	}

	state, err := a.adapter.GetByFacilityID(ctx, facilityID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(state); err == nil {
		if err := a.cache.Set(ctx, key, data, a.ttl); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("Failed to cache queue state")
		}
	}

	return state, nil
}

// List is not cached; listings change on every observation
func (a *CachedQueueStateAdapter) List(ctx context.Context, filter entities.QueueStateFilter) ([]*entities.QueueState, error) {
	return a.adapter.List(ctx, filter)
}
