package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisRejectedTokenCache struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisRejectedTokenCache(client redis.UniversalClient, prefix string) *RedisRejectedTokenCache {
	if prefix == "" {
		prefix = "presence"
	}
	return &RedisRejectedTokenCache{client: client, prefix: prefix}
}

func (c *RedisRejectedTokenCache) Seen(ctx context.Context, token string) (bool, error) {
	if c.client == nil {
		return false, nil
	}
	n, err := c.client.Exists(ctx, c.key(token)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, err
	}
	return n > 0, nil
}

func (c *RedisRejectedTokenCache) Remember(ctx context.Context, token string, ttl time.Duration) error {
	if c.client == nil || ttl <= 0 {
		return nil
	}
	return c.client.Set(ctx, c.key(token), "1", ttl).Err()
}

func (c *RedisRejectedTokenCache) key(token string) string {
	return fmt.Sprintf("%s:rejected_token:%s", c.prefix, hashToken(token))
}
