package cache

import (
	"context"
	"errors"
	"time"

	"github.com/bytedance/sonic"
	"github.com/datapilot-io/datapilot/internal/modules/model"
	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

// JobCache mirrors job records so status polling does not hit the database.
// The database stays authoritative; the mirror may lag or be empty.
type JobCache interface {
	Get(ctx context.Context, id string) (*model.Job, error)
	// Set overwrites the mirror. Only callers that just committed job may use it.
	Set(ctx context.Context, job *model.Job) error
	// SetIfAbsent fills an empty key and never replaces a newer committed write.
	SetIfAbsent(ctx context.Context, job *model.Job) error
	Delete(ctx context.Context, id string) error
}

type redisJobCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewJobCache(rdb *redis.Client, ttl time.Duration) JobCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &redisJobCache{rdb: rdb, ttl: ttl}
}

func JobKey(id string) string {
	return "job:" + id
}

func (c *redisJobCache) Get(ctx context.Context, id string) (*model.Job, error) {
	raw, err := c.rdb.Get(ctx, JobKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}
	var job model.Job
	if err := sonic.Unmarshal(raw, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (c *redisJobCache) Set(ctx context.Context, job *model.Job) error {
	b, err := sonic.Marshal(job)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, JobKey(job.ID), b, c.ttl).Err()
}

func (c *redisJobCache) SetIfAbsent(ctx context.Context, job *model.Job) error {
	b, err := sonic.Marshal(job)
	if err != nil {
		return err
	}
	return c.rdb.SetNX(ctx, JobKey(job.ID), b, c.ttl).Err()
}

func (c *redisJobCache) Delete(ctx context.Context, id string) error {
	return c.rdb.Del(ctx, JobKey(id)).Err()
}
