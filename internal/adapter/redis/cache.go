// Package redis provides a shared postcode-to-area cache backed by Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/crime-map/internal/domain"
	"github.com/couchcryptid/crime-map/internal/observability"
	goredis "github.com/redis/go-redis/v9"
)

const keyPrefix = "postcode:msoa:"

// KV is the subset of the Redis client used by the cache.
type KV interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd
}

// NewClient connects to Redis and verifies the connection with a PING.
func NewClient(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: 10,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close() //nolint:errcheck // connection never became usable
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// CachedLookup wraps an AreaLookup with a Redis cache shared across instances.
// Redis failures are logged and the lookup falls through to the inner service.
type CachedLookup struct {
	inner   domain.AreaLookup
	kv      KV
	ttl     time.Duration
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewCachedLookup creates a Redis cache decorator. Entries expire after ttl.
func NewCachedLookup(inner domain.AreaLookup, kv KV, ttl time.Duration, metrics *observability.Metrics, logger *slog.Logger) *CachedLookup {
	return &CachedLookup{
		inner:   inner,
		kv:      kv,
		ttl:     ttl,
		metrics: metrics,
		logger:  logger,
	}
}

// Key returns the Redis key for a postcode.
func Key(postcode string) string {
	return keyPrefix + domain.NormalizePostcode(postcode)
}

func (c *CachedLookup) LookupArea(ctx context.Context, postcode string) (string, error) {
	key := Key(postcode)

	area, err := c.kv.Get(ctx, key).Result()
	switch {
	case err == nil && area != "":
		c.metrics.PostcodeCache.WithLabelValues("redis", "hit").Inc()
		return area, nil
	case err != nil && !errors.Is(err, goredis.Nil):
		c.logger.Warn("redis cache read failed", "postcode", postcode, "error", err)
	}
	c.metrics.PostcodeCache.WithLabelValues("redis", "miss").Inc()

	area, err = c.inner.LookupArea(ctx, postcode)
	if err != nil || area == "" {
		return area, err
	}

	if err := c.kv.Set(ctx, key, area, c.ttl).Err(); err != nil {
		c.logger.Warn("redis cache write failed", "postcode", postcode, "error", err)
	}
	return area, nil
}
