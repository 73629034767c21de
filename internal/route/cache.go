package route

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"backend-carbondrive/internal/emission"
	"backend-carbondrive/internal/metrics"
	"backend-carbondrive/internal/shared/geo"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Cache memoizes provider answers in process and, when a redis client is
// given, across instances. Redis failures fall through to the provider.
type Cache struct {
	next   Provider
	local  *lru.Cache[string, Leg]
	redis  *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

func NewCache(next Provider, size int, rdb *redis.Client, ttl time.Duration, logger zerolog.Logger) (*Cache, error) {
	if size <= 0 {
		size = 1024
	}
	local, err := lru.New[string, Leg](size)
	if err != nil {
		return nil, fmt.Errorf("create route cache: %w", err)
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Cache{
		next:   next,
		local:  local,
		redis:  rdb,
		ttl:    ttl,
		logger: logger.With().Str("component", "route-cache").Logger(),
	}, nil
}

func (c *Cache) Leg(ctx context.Context, from, to geo.Point, mode emission.TransportMode) (Leg, error) {
	key := cacheKey(from, to, mode)

	if leg, ok := c.local.Get(key); ok {
		metrics.RouteCacheTotal.WithLabelValues("local", "hit").Inc()
		return leg, nil
	}
	metrics.RouteCacheTotal.WithLabelValues("local", "miss").Inc()

	if c.redis != nil {
		if leg, ok := c.fromRedis(ctx, key); ok {
			c.local.Add(key, leg)
			return leg, nil
		}
	}

	leg, err := c.next.Leg(ctx, from, to, mode)
	if err != nil {
		return Leg{}, err
	}
	c.local.Add(key, leg)
	if c.redis != nil {
		data, err := json.Marshal(leg)
		if err != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("encode route cache entry")
		} else if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("route cache write failed")
		}
	}
	return leg, nil
}

func (c *Cache) fromRedis(ctx context.Context, key string) (Leg, bool) {
	data, err := c.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.RouteCacheTotal.WithLabelValues("redis", "miss").Inc()
		return Leg{}, false
	}
	if err != nil {
		metrics.RouteCacheTotal.WithLabelValues("redis", "error").Inc()
		c.logger.Warn().Err(err).Str("key", key).Msg("route cache read failed")
		return Leg{}, false
	}
	var leg Leg
	if err := json.Unmarshal(data, &leg); err != nil {
		metrics.RouteCacheTotal.WithLabelValues("redis", "error").Inc()
		return Leg{}, false
	}
	metrics.RouteCacheTotal.WithLabelValues("redis", "hit").Inc()
	return leg, true
}

// ~1 m resolution, so jitter-level differences share an entry
func cacheKey(from, to geo.Point, mode emission.TransportMode) string {
	return fmt.Sprintf("route:%s:%.5f,%.5f:%.5f,%.5f", mode, from.Lat, from.Lng, to.Lat, to.Lng)
}
