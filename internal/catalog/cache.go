package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores JSON payloads in redis. Entries can be grouped so a whole
// product's entries are dropped together on publish.
type Cache struct {
	client redis.Cmdable
	ttl    time.Duration
	prefix string
}

// NewCache constructs a cache helper. A nil client disables caching.
func NewCache(client redis.Cmdable, prefix string, ttl time.Duration) *Cache {
	if prefix == "" {
		prefix = "catalog"
	}
	return &Cache{client: client, ttl: ttl, prefix: prefix}
}

func (c *Cache) enabled() bool {
	return c != nil && c.client != nil && c.ttl > 0
}

func (c *Cache) key(parts ...string) string {
	if c == nil {
		return ""
	}
	k := c.prefix
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

// GetJSON unmarshals a cached JSON payload into dst. It reports whether the key existed.
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	if !c.enabled() || key == "" {
		return false, nil
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON stores v under key and remembers key in group.
func (c *Cache) SetJSON(ctx context.Context, group, key string, v any) error {
	if !c.enabled() || key == "" {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	groupKey := c.key("keys", group)
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, key, data, c.ttl)
	pipe.SAdd(ctx, groupKey, key)
	pipe.Expire(ctx, groupKey, c.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// InvalidateGroup deletes every key remembered in group.
func (c *Cache) InvalidateGroup(ctx context.Context, group string) error {
	if !c.enabled() {
		return nil
	}
	groupKey := c.key("keys", group)
	keys, err := c.client.SMembers(ctx, groupKey).Result()
	if err != nil {
		return err
	}
	return c.client.Del(ctx, append(keys, groupKey)...).Err()
}
