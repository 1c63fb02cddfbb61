package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultProjectionTTL applies when NewCache is given no TTL
const DefaultProjectionTTL = 10 * time.Minute

// ProjectionKey addresses one projection computed over one snapshot under
// one view scale. Ordinals and tie-breaks depend on the scale, and the
// fingerprint changes with the store contents, so entries never go stale.
type ProjectionKey struct {
	Projection  string
	Scale       string
	Fingerprint string
	Query       string
}

func (k ProjectionKey) String() string {
	return fmt.Sprintf("projection:%s:%s:%s:%s", k.Projection, k.Scale, k.Fingerprint, k.Query)
}

// Cache stores JSON-encoded projections with a fixed TTL
// ⭐ SSOT: projection reads and writes against Redis live only here
type Cache struct {
	client *Client
	prefix string
	ttl    time.Duration
}

// NewCache creates a projection cache under prefix
func NewCache(client *Client, prefix string, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultProjectionTTL
	}
	return &Cache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// TTL returns the lifetime of a stored projection
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

func (c *Cache) fullKey(key ProjectionKey) string {
	return c.prefix + ":cache:" + key.String()
}

// Get decodes the projection stored under key into dest.
// A missing key or a disabled client reports found=false without error.
func (c *Cache) Get(ctx context.Context, key ProjectionKey, dest interface{}) (bool, error) {
	if !c.client.Enabled() {
		return false, nil
	}

	data, err := c.client.Redis().Get(ctx, c.fullKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key.Projection, err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache decode %s: %w", key.Projection, err)
	}
	return true, nil
}

// Set stores value under key for the cache TTL
func (c *Cache) Set(ctx context.Context, key ProjectionKey, value interface{}) error {
	if !c.client.Enabled() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key.Projection, err)
	}

	if err := c.client.Redis().Set(ctx, c.fullKey(key), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key.Projection, err)
	}
	return nil
}
