package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned when no progress entry exists for a run.
var ErrMiss = errors.New("cache: miss")

const progressKeyPrefix = "run:progress:"

// ProgressCache keeps the latest progress payload per run in Redis so
// status polls survive process restarts. A nil client disables the cache;
// every method then degrades to a no-op or a miss.
type ProgressCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewProgressCache wraps the given client. TTL values below one minute
// are raised so a stalled consumer can still observe the last event.
func NewProgressCache(client *redis.Client, ttl time.Duration) *ProgressCache {
	if ttl < time.Minute {
		ttl = time.Minute
	}
	return &ProgressCache{client: client, ttl: ttl}
}

// Put stores the value as the latest progress entry for the run.
func (c *ProgressCache) Put(ctx context.Context, runID string, value interface{}) error {
	if c == nil || c.client == nil {
		return nil
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal progress for run %s: %w", runID, err)
	}

	if err := c.client.Set(ctx, progressKeyPrefix+runID, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set progress for run %s: %w", runID, err)
	}

	return nil
}

// Get loads the latest progress entry for the run into dest.
func (c *ProgressCache) Get(ctx context.Context, runID string, dest interface{}) error {
	if c == nil || c.client == nil {
		return ErrMiss
	}

	raw, err := c.client.Get(ctx, progressKeyPrefix+runID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return ErrMiss
		}
		return fmt.Errorf("redis get progress for run %s: %w", runID, err)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("unmarshal progress for run %s: %w", runID, err)
	}

	return nil
}

// Drop removes the progress entry for the run if present.
func (c *ProgressCache) Drop(ctx context.Context, runID string) error {
	if c == nil || c.client == nil {
		return nil
	}

	if err := c.client.Del(ctx, progressKeyPrefix+runID).Err(); err != nil {
		return fmt.Errorf("redis delete progress for run %s: %w", runID, err)
	}

	return nil
}
