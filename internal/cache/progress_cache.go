package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"catalog-adaptation-service/internal/models"
)

// ProgressCache keeps the latest batch progress of running jobs. Progress is
// written to redis when a client is configured and always to process memory,
// so polling keeps working when redis is unavailable.
type ProgressCache struct {
	client *redis.Client
	ttl    time.Duration

	mu    sync.RWMutex
	local map[uuid.UUID]models.BatchProgress
}

// NewProgressCache creates a progress cache. client may be nil.
func NewProgressCache(client *redis.Client, ttl time.Duration) *ProgressCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ProgressCache{
		client: client,
		ttl:    ttl,
		local:  make(map[uuid.UUID]models.BatchProgress),
	}
}

// Connect parses a redis URL and checks the connection. An empty URL or an
// unreachable server yields a nil client.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		return nil, nil
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// Enabled reports whether progress is shared through redis
func (c *ProgressCache) Enabled() bool {
	return c.client != nil
}

func (c *ProgressCache) cacheKey(jobID uuid.UUID) string {
	return fmt.Sprintf("adaptation:progress:%s", jobID.String())
}

// Set stores the progress of a job
func (c *ProgressCache) Set(ctx context.Context, jobID uuid.UUID, progress models.BatchProgress) error {
	c.mu.Lock()
	c.local[jobID] = progress
	c.mu.Unlock()

	if c.client == nil {
		return nil
	}
	data, err := json.Marshal(progress)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.cacheKey(jobID), data, c.ttl).Err()
}

// Get returns the latest progress of a job. The boolean is false on a miss.
func (c *ProgressCache) Get(ctx context.Context, jobID uuid.UUID) (models.BatchProgress, bool, error) {
	if c.client != nil {
		data, err := c.client.Get(ctx, c.cacheKey(jobID)).Bytes()
		switch {
		case err == redis.Nil:
		case err != nil:
			return models.BatchProgress{}, false, err
		default:
			var progress models.BatchProgress
			if err := json.Unmarshal(data, &progress); err != nil {
				return models.BatchProgress{}, false, err
			}
			return progress, true, nil
		}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	progress, ok := c.local[jobID]
	return progress, ok, nil
}

// Delete removes the progress of a job
func (c *ProgressCache) Delete(ctx context.Context, jobID uuid.UUID) error {
	c.mu.Lock()
	delete(c.local, jobID)
	c.mu.Unlock()

	if c.client == nil {
		return nil
	}
	return c.client.Del(ctx, c.cacheKey(jobID)).Err()
}
