package pagemeta

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"

	"github.com/buonappetort/rex/internal/model"
)

const cacheKeyPrefix = "rex:pagemeta:"

// RedisCache keeps lookup results in Redis with a fixed TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache wraps client. A zero ttl keeps entries forever.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// DialRedis connects to addr and verifies the server answers.
func DialRedis(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return client, nil
}

func (c *RedisCache) Get(ctx context.Context, url string) (model.SourceMeta, bool, error) {
	data, err := c.client.Get(ctx, cacheKeyPrefix+url).Bytes()
	if err == redis.Nil {
		return model.SourceMeta{}, false, nil
	}
	if err != nil {
		return model.SourceMeta{}, false, err
	}
	var meta model.SourceMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return model.SourceMeta{}, false, fmt.Errorf("decoding cached metadata: %w", err)
	}
	return meta, !meta.Empty(), nil
}

func (c *RedisCache) Set(ctx context.Context, url string, meta model.SourceMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKeyPrefix+url, data, c.ttl).Err()
}
