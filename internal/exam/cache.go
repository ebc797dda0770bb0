package exam

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "exam:"

// CachedCatalog is a read-through cache in front of an AuthoringStore.
// Exam definitions are immutable once published, so a short TTL plus
// invalidation on authoring writes keeps readers consistent. Cache errors
// degrade to direct reads; they never fail the request.
type CachedCatalog struct {
	inner AuthoringStore
	rdb   *redis.Client
	ttl   time.Duration
}

func NewCachedCatalog(inner AuthoringStore, rdb *redis.Client, ttl time.Duration) *CachedCatalog {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedCatalog{inner: inner, rdb: rdb, ttl: ttl}
}

func (c *CachedCatalog) GetExam(ctx context.Context, id string) (Exam, error) {
	key := cacheKeyPrefix + id
	if raw, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var e Exam
		if json.Unmarshal(raw, &e) == nil {
			return e, nil
		}
	} else if !errors.Is(err, redis.Nil) && ctx.Err() != nil {
		return Exam{}, ctx.Err()
	}
	e, err := c.inner.GetExam(ctx, id)
	if err != nil {
		return Exam{}, err
	}
	if raw, err := json.Marshal(e); err == nil {
		_ = c.rdb.Set(ctx, key, raw, c.ttl).Err()
	}
	return e, nil
}

func (c *CachedCatalog) IsPublished(ctx context.Context, id string) (bool, error) {
	e, err := c.GetExam(ctx, id)
	if err != nil {
		return false, err
	}
	return e.Status == StatusPublished, nil
}

func (c *CachedCatalog) PutExam(ctx context.Context, e Exam) error {
	if err := c.inner.PutExam(ctx, e); err != nil {
		return err
	}
	c.invalidate(ctx, e.ID)
	return nil
}

func (c *CachedCatalog) Publish(ctx context.Context, id string, at time.Time) (Exam, error) {
	e, err := c.inner.Publish(ctx, id, at)
	if err != nil {
		return Exam{}, err
	}
	c.invalidate(ctx, id)
	return e, nil
}

func (c *CachedCatalog) ListExams(ctx context.Context, grade Grade) ([]Exam, error) {
	return c.inner.ListExams(ctx, grade)
}

func (c *CachedCatalog) invalidate(ctx context.Context, id string) {
	_ = c.rdb.Del(ctx, cacheKeyPrefix+id).Err()
}
