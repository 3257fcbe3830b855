package screening

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pairscan/pairscan/internal/models"
)

// universeTTL keeps cached universes around long enough to cover a full
// trading day plus rescans of the previous one.
const universeTTL = 48 * time.Hour

// UniverseCache memoizes the volume-filtered asset universe per calendar
// day. With a redis client the universe is shared across processes;
// without one it falls back to a process-local map.
type UniverseCache struct {
	client *redis.Client

	mu    sync.RWMutex
	local map[int64][]models.Asset
}

// NewUniverseCache creates a cache. client may be nil.
func NewUniverseCache(client *redis.Client) *UniverseCache {
	return &UniverseCache{
		client: client,
		local:  make(map[int64][]models.Asset),
	}
}

// Get returns the cached universe for the day, or ok=false on a miss.
// Redis errors are treated as misses so a broken cache never blocks a
// screening run.
func (c *UniverseCache) Get(ctx context.Context, day int64) ([]models.Asset, bool) {
	c.mu.RLock()
	assets, ok := c.local[day]
	c.mu.RUnlock()
	if ok {
		return assets, true
	}

	if c.client == nil {
		return nil, false
	}

	data, err := c.client.Get(ctx, universeKey(day)).Bytes()
	if err != nil {
		return nil, false
	}
	if err := json.Unmarshal(data, &assets); err != nil {
		return nil, false
	}

	c.mu.Lock()
	c.local[day] = assets
	c.mu.Unlock()
	return assets, true
}

// Put stores the universe for the day. Redis write failures are
// swallowed; the local copy still serves this process.
func (c *UniverseCache) Put(ctx context.Context, day int64, assets []models.Asset) {
	c.mu.Lock()
	c.local[day] = assets
	c.mu.Unlock()

	if c.client == nil {
		return
	}
	data, err := json.Marshal(assets)
	if err != nil {
		return
	}
	c.client.Set(ctx, universeKey(day), data, universeTTL)
}

func universeKey(day int64) string {
	return fmt.Sprintf("pairscan:universe:%d", day)
}
