package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vanity-grinder/internal/models"
)

// jobCacheKeyPrefix namespaces vanity job entries in Redis
const jobCacheKeyPrefix = "vanity:job:"

// JobCache provides read-through caching for vanity job lookups. Terminal
// jobs never change again so they get a longer TTL than live ones.
type JobCache struct {
	redis       *RedisCache
	jobTTL      time.Duration
	terminalTTL time.Duration
}

// NewJobCache creates a new job cache
func NewJobCache(redis *RedisCache, jobTTL, terminalTTL time.Duration) *JobCache {
	return &JobCache{
		redis:       redis,
		jobTTL:      jobTTL,
		terminalTTL: terminalTTL,
	}
}

// JobKey generates the cache key for a job ID.
// Format: vanity:job:<job-id>
func (c *JobCache) JobKey(id string) string {
	return jobCacheKeyPrefix + id
}

// Get retrieves a cached job. A miss is not an error.
func (c *JobCache) Get(ctx context.Context, id string) (*models.VanityJob, bool, error) {
	data, err := c.redis.Get(ctx, c.JobKey(id))
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get job from cache: %w", err)
	}

	var job models.VanityJob
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cached job: %w", err)
	}

	return &job, true, nil
}

// Put stores a job, choosing the TTL by whether the job is terminal
func (c *JobCache) Put(ctx context.Context, job *models.VanityJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	ttl := c.jobTTL
	if job.IsTerminal() {
		ttl = c.terminalTTL
	}

	return c.redis.Set(ctx, c.JobKey(job.ID), data, ttl)
}

// Invalidate removes cached entries for the given job IDs
func (c *JobCache) Invalidate(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.JobKey(id)
	}

	return c.redis.Del(ctx, keys...)
}
