package geocode

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"streetclip/internal/metrics"
	"streetclip/internal/models"

	"github.com/rs/zerolog/log"
)

// Cache stores serialised geocode results.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Cached answers repeated addresses from a Cache. Cache failures degrade to
// a direct lookup.
type Cached struct {
	provider Provider
	cache    Cache
	ttl      time.Duration
}

func NewCached(p Provider, c Cache, ttl time.Duration) *Cached {
	return &Cached{provider: p, cache: c, ttl: ttl}
}

func cacheKey(address string) string {
	return "geocode:" + strings.Join(strings.Fields(strings.ToLower(address)), " ")
}

func (c *Cached) Geocode(ctx context.Context, address string) (models.AddressPoint, error) {
	key := cacheKey(address)
	if raw, err := c.cache.Get(ctx, key); err == nil {
		var point models.AddressPoint
		if err := json.Unmarshal(raw, &point); err == nil {
			metrics.CacheHits.WithLabelValues("geocode").Inc()
			point.Query = address
			return point, nil
		}
	}
	metrics.CacheMisses.WithLabelValues("geocode").Inc()

	point, err := c.provider.Geocode(ctx, address)
	if err != nil {
		return models.AddressPoint{}, err
	}

	raw, err := json.Marshal(point)
	if err == nil {
		err = c.cache.Set(ctx, key, raw, c.ttl)
	}
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cannot cache geocode result")
	}
	return point, nil
}
