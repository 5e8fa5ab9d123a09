package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"simulation-service/internal/models"
)

// ErrMiss is returned when a key is absent or expired. Callers treat it as a
// signal to fall back to the durable store, never as a failure.
var ErrMiss = errors.New("cache: miss")

const (
	progressKeyPrefix    = "simulation:progress:"
	performanceKeyPrefix = "simulation:performance:"
)

// Cache wraps Redis with the two derived views the service keeps warm:
// per-session progress snapshots and per-user aggregate results. Entries
// expire by TTL only; nothing here is authoritative.
type Cache struct {
	client *redis.Client
}

func New(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) SaveProgress(ctx context.Context, entry *models.SessionCacheEntry, ttl time.Duration) error {
	return c.setJSON(ctx, progressKeyPrefix+entry.SessionID, entry, ttl)
}

func (c *Cache) GetProgress(ctx context.Context, sessionID string) (*models.SessionCacheEntry, error) {
	var entry models.SessionCacheEntry
	if err := c.getJSON(ctx, progressKeyPrefix+sessionID, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (c *Cache) DeleteProgress(ctx context.Context, sessionID string) error {
	return c.client.Del(ctx, progressKeyPrefix+sessionID).Err()
}

func (c *Cache) SavePerformance(ctx context.Context, perf *models.UserPerformance, ttl time.Duration) error {
	key := performanceKey(perf.UserID, perf.Timeframe)
	return c.setJSON(ctx, key, perf, ttl)
}

func (c *Cache) GetPerformance(ctx context.Context, userID, timeframe string) (*models.UserPerformance, error) {
	var perf models.UserPerformance
	if err := c.getJSON(ctx, performanceKey(userID, timeframe), &perf); err != nil {
		return nil, err
	}
	return &perf, nil
}

func performanceKey(userID, timeframe string) string {
	return fmt.Sprintf("%s%s:%s", performanceKeyPrefix, userID, timeframe)
}

func (c *Cache) setJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache entry %s: %w", key, err)
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

func (c *Cache) getJSON(ctx context.Context, key string, out any) error {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
