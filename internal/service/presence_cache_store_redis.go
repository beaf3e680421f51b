package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisPresenceCacheStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisPresenceCacheStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisPresenceCacheStore {
	if prefix == "" {
		prefix = "presence"
	}
	return &RedisPresenceCacheStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisPresenceCacheStore) AddMember(ctx context.Context, token string) error {
	if s.client == nil {
		return ErrCacheUnavailable
	}
	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, s.onlineKey(), token)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.onlineKey(), s.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisPresenceCacheStore) RemoveMembers(ctx context.Context, tokens ...string) error {
	if s.client == nil {
		return ErrCacheUnavailable
	}
	if len(tokens) == 0 {
		return nil
	}
	members := make([]any, len(tokens))
	for i, tok := range tokens {
		members[i] = tok
	}
	return s.client.SRem(ctx, s.onlineKey(), members...).Err()
}

func (s *RedisPresenceCacheStore) Members(ctx context.Context) ([]string, error) {
	if s.client == nil {
		return nil, ErrCacheUnavailable
	}
	members, err := s.client.SMembers(ctx, s.onlineKey()).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	return members, nil
}

func (s *RedisPresenceCacheStore) IncrRegistrationCount(ctx context.Context) error {
	if s.client == nil {
		return ErrCacheUnavailable
	}
	return s.client.Incr(ctx, s.registerKey()).Err()
}

func (s *RedisPresenceCacheStore) SetRegistrationCount(ctx context.Context, n int64) error {
	if s.client == nil {
		return ErrCacheUnavailable
	}
	return s.client.Set(ctx, s.registerKey(), n, 0).Err()
}

func (s *RedisPresenceCacheStore) RegistrationCount(ctx context.Context) (int64, error) {
	if s.client == nil {
		return 0, ErrCacheUnavailable
	}
	raw, err := s.client.Get(ctx, s.registerKey()).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(raw, 10, 64)
}

func (s *RedisPresenceCacheStore) onlineKey() string {
	return fmt.Sprintf("%s:online_tokens", s.prefix)
}

func (s *RedisPresenceCacheStore) registerKey() string {
	return fmt.Sprintf("%s:register_count", s.prefix)
}
