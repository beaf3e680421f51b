package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// RejectedTokenCache remembers tokens that matched no session so repeated
// attempts with the same bogus token skip the database. Only unknown tokens
// are stored; expired ones keep reporting ErrTokenExpired.
type RejectedTokenCache interface {
	Seen(ctx context.Context, token string) (bool, error)
	Remember(ctx context.Context, token string, ttl time.Duration) error
}

type NoopRejectedTokenCache struct{}

func NewNoopRejectedTokenCache() *NoopRejectedTokenCache { return &NoopRejectedTokenCache{} }

func (NoopRejectedTokenCache) Seen(context.Context, string) (bool, error) { return false, nil }

func (NoopRejectedTokenCache) Remember(context.Context, string, time.Duration) error { return nil }

type InMemoryRejectedTokenCache struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewInMemoryRejectedTokenCache() *InMemoryRejectedTokenCache {
	return &InMemoryRejectedTokenCache{
		entries: make(map[string]time.Time),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (c *InMemoryRejectedTokenCache) Seen(_ context.Context, token string) (bool, error) {
	key := hashToken(token)
	c.mu.Lock()
	defer c.mu.Unlock()
	exp, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	if c.now().After(exp) {
		delete(c.entries, key)
		return false, nil
	}
	return true, nil
}

func (c *InMemoryRejectedTokenCache) Remember(_ context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[hashToken(token)] = c.now().Add(ttl)
	return nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
