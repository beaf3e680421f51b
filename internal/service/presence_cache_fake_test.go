package service

import (
	"context"
	"sync"
)

type memoryPresenceCache struct {
	mu         sync.RWMutex
	members    map[string]struct{}
	registered int64
}

func newMemoryPresenceCache() *memoryPresenceCache {
	return &memoryPresenceCache{members: make(map[string]struct{})}
}

func (s *memoryPresenceCache) AddMember(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[token] = struct{}{}
	return nil
}

func (s *memoryPresenceCache) RemoveMembers(_ context.Context, tokens ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tok := range tokens {
		delete(s.members, tok)
	}
	return nil
}

func (s *memoryPresenceCache) Members(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.members))
	for tok := range s.members {
		out = append(out, tok)
	}
	return out, nil
}

func (s *memoryPresenceCache) IncrRegistrationCount(context.Context) error {
	s.mu.Lock()
	s.registered++
	s.mu.Unlock()
	return nil
}

func (s *memoryPresenceCache) SetRegistrationCount(_ context.Context, n int64) error {
	s.mu.Lock()
	s.registered = n
	s.mu.Unlock()
	return nil
}

func (s *memoryPresenceCache) RegistrationCount(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registered, nil
}
