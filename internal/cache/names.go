// Package cache fronts the user store with a Redis read-through cache for
// display names.
package cache

import (
	"context"
	"time"

	"github.com/isdelr/ender-feed-be/internal/metrics"
	"github.com/isdelr/ender-feed-be/internal/services"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const keyPrefix = "feed:username:"

// NameCache is a services.NameResolver that consults Redis first and falls
// back to next for misses. Redis failures degrade to a full lookup.
type NameCache struct {
	rdb  *redis.Client
	next services.NameResolver
	ttl  time.Duration
}

// NewClient connects to Redis at addr.
func NewClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr, DB: 0})
}

// NewNameCache wraps next with a Redis cache whose entries live for ttl.
func NewNameCache(rdb *redis.Client, next services.NameResolver, ttl time.Duration) *NameCache {
	return &NameCache{rdb: rdb, next: next, ttl: ttl}
}

// GetUsernames implements services.NameResolver with one MGET and at most one
// call to the wrapped resolver.
func (c *NameCache) GetUsernames(ctx context.Context, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = keyPrefix + id
	}

	missing := ids
	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		metrics.NameCacheLookups.WithLabelValues("error").Inc()
		log.Warn().Err(err).Int("ids", len(ids)).Msg("Name cache unavailable, reading from store")
	} else {
		missing = make([]string, 0, len(ids))
		for i, v := range vals {
			if name, ok := v.(string); ok {
				names[ids[i]] = name
				continue
			}
			missing = append(missing, ids[i])
		}
		metrics.NameCacheLookups.WithLabelValues("hit").Add(float64(len(ids) - len(missing)))
		metrics.NameCacheLookups.WithLabelValues("miss").Add(float64(len(missing)))
	}
	if len(missing) == 0 {
		return names, nil
	}

	fetched, err := c.next.GetUsernames(ctx, missing)
	if err != nil {
		return nil, err
	}
	for id, name := range fetched {
		names[id] = name
	}

	if len(fetched) > 0 {
		pipe := c.rdb.Pipeline()
		for id, name := range fetched {
			pipe.Set(ctx, keyPrefix+id, name, c.ttl)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			log.Warn().Err(err).Int("names", len(fetched)).Msg("Failed to populate name cache")
		}
	}
	return names, nil
}
