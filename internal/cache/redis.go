package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "discr:httpcache:"

// Connect initializes a Redis client from URL or host:port input.
func Connect(_ context.Context, redisURL string) (*redis.Client, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, errors.New("redis url is empty")
	}
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, parseErr := redis.ParseURL(redisURL)
		if parseErr != nil {
			return nil, fmt.Errorf("parse redis url: %w", parseErr)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

// RedisCache keeps entries in Redis so several site instances share one
// upstream copy. Retention is the key expiry; zero keeps keys forever.
type RedisCache struct {
	client    *redis.Client
	Retention time.Duration
}

var _ Store = (*RedisCache)(nil)

func NewRedisCache(client *redis.Client, retention time.Duration) *RedisCache {
	return &RedisCache{client: client, Retention: retention}
}

func (c *RedisCache) Load(ctx context.Context, url string) (*Entry, error) {
	raw, err := c.client.Get(ctx, redisKeyPrefix+Key(url)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("decode entry: %w", err)
	}
	return &e, nil
}

func (c *RedisCache) Save(ctx context.Context, e *Entry) error {
	if e == nil {
		return errors.New("nil entry")
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	return c.client.Set(ctx, redisKeyPrefix+Key(e.URL), raw, c.Retention).Err()
}

// Clear deletes every entry this store wrote and returns how many keys were
// removed. Other keys in the database are untouched.
func (c *RedisCache) Clear(ctx context.Context) (int, error) {
	removed := 0
	iter := c.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n, err := c.client.Del(ctx, iter.Val()).Result()
		if err != nil {
			return removed, err
		}
		removed += int(n)
	}
	return removed, iter.Err()
}

// Close releases the underlying client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
