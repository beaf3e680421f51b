package service

import (
	"context"
	"log/slog"

	"github.com/sandeepkv93/realtime-hub/internal/observability"
	"github.com/sandeepkv93/realtime-hub/internal/repository"
)

type PresenceSnapshot struct {
	Online     int64 `json:"online_count"`
	Registered int64 `json:"register_count"`
}

// PresenceService keeps approximate online and registration counters in
// the cache and reconciles them against the token and user tables before
// reporting them.
type PresenceService struct {
	cache  PresenceCacheStore
	tokens *TokenService
	users  repository.UserRepository
	logger *slog.Logger
}

func NewPresenceService(cache PresenceCacheStore, tokens *TokenService, users repository.UserRepository, logger *slog.Logger) *PresenceService {
	if cache == nil {
		cache = NewNoopPresenceCacheStore()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PresenceService{cache: cache, tokens: tokens, users: users, logger: logger}
}

func (s *PresenceService) RecordOnline(ctx context.Context, token string) {
	if err := s.cache.AddMember(ctx, token); err != nil {
		s.cacheWriteFailed(ctx, "add_member", err)
	}
}

func (s *PresenceService) RecordOffline(ctx context.Context, token string) {
	if err := s.cache.RemoveMembers(ctx, token); err != nil {
		s.cacheWriteFailed(ctx, "remove_member", err)
	}
}

func (s *PresenceService) RecordRegistration(ctx context.Context) {
	if err := s.cache.IncrRegistrationCount(ctx); err != nil {
		s.cacheWriteFailed(ctx, "incr_register_count", err)
	}
}

// OnlineCount never reports a cached member that lacks a valid token. Stale
// members are evicted from the cache as a side effect.
func (s *PresenceService) OnlineCount(ctx context.Context) (int64, error) {
	members, err := s.cache.Members(ctx)
	if err != nil {
		observability.RecordPresenceEvent(ctx, "cache_fallback", 1)
		s.logger.Debug("presence cache read failed, counting tokens", "error", err)
		return s.countFromStore(ctx)
	}
	valid, err := s.tokens.ActiveTokens(ctx, members)
	if err != nil {
		return 0, err
	}
	stale := make([]string, 0)
	for _, m := range members {
		if _, ok := valid[m]; !ok {
			stale = append(stale, m)
		}
	}
	if len(stale) > 0 {
		if err := s.cache.RemoveMembers(ctx, stale...); err != nil {
			s.cacheWriteFailed(ctx, "evict_members", err)
		}
		observability.RecordPresenceEvent(ctx, "evicted", int64(len(stale)))
	}
	return int64(len(members) - len(stale)), nil
}

func (s *PresenceService) countFromStore(ctx context.Context) (int64, error) {
	if _, err := s.tokens.SweepExpired(ctx); err != nil {
		return 0, err
	}
	return s.tokens.CountActive(ctx)
}

// RegistrationCount reads the authoritative user count and mirrors it into
// the cache.
func (s *PresenceService) RegistrationCount(ctx context.Context) (int64, error) {
	n, err := s.users.Count(ctx)
	if err != nil {
		return 0, storageErr("count users", err)
	}
	if err := s.cache.SetRegistrationCount(ctx, n); err != nil {
		s.cacheWriteFailed(ctx, "set_register_count", err)
	}
	return n, nil
}

func (s *PresenceService) Snapshot(ctx context.Context) (PresenceSnapshot, error) {
	online, err := s.OnlineCount(ctx)
	if err != nil {
		return PresenceSnapshot{}, err
	}
	registered, err := s.RegistrationCount(ctx)
	if err != nil {
		return PresenceSnapshot{}, err
	}
	return PresenceSnapshot{Online: online, Registered: registered}, nil
}

func (s *PresenceService) cacheWriteFailed(ctx context.Context, op string, err error) {
	observability.RecordPresenceEvent(ctx, "cache_write_error", 1)
	s.logger.Warn("presence cache write failed", "op", op, "error", err)
}
