package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sandeepkv93/realtime-hub/internal/domain"
	"github.com/sandeepkv93/realtime-hub/internal/observability"
	"github.com/sandeepkv93/realtime-hub/internal/repository"
	"github.com/sandeepkv93/realtime-hub/internal/security"
)

type TokenService struct {
	repo        repository.TokenRepository
	logger      *slog.Logger
	now         func() time.Time
	newToken    func() (string, error)
	rejected    RejectedTokenCache
	rejectedTTL time.Duration
}

func NewTokenService(repo repository.TokenRepository, logger *slog.Logger) *TokenService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenService{
		repo:     repo,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		newToken: security.NewSessionToken,
		rejected: NewNoopRejectedTokenCache(),
	}
}

// UseRejectedCache enables short-lived caching of unknown tokens.
func (s *TokenService) UseRejectedCache(cache RejectedTokenCache, ttl time.Duration) {
	if cache == nil || ttl <= 0 {
		return
	}
	s.rejected, s.rejectedTTL = cache, ttl
}

// Create issues a new opaque session token. A non-positive ttl yields a
// token that never expires.
func (s *TokenService) Create(ctx context.Context, userID uint, ttl time.Duration) (string, error) {
	rec, err := s.Issue(ctx, userID, ttl)
	if err != nil {
		return "", err
	}
	return rec.Token, nil
}

// Issue persists a new token and returns the stored record, including the
// expiry that Validate will enforce.
func (s *TokenService) Issue(ctx context.Context, userID uint, ttl time.Duration) (*domain.AuthToken, error) {
	token, err := s.newToken()
	if err != nil {
		return nil, err
	}
	rec := &domain.AuthToken{Token: token, UserID: userID, CreatedAt: s.now()}
	if ttl > 0 {
		exp := rec.CreatedAt.Add(ttl)
		rec.ExpiresAt = &exp
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, storageErr("create token", err)
	}
	return rec, nil
}

func (s *TokenService) Validate(ctx context.Context, token string) (uint, error) {
	if token == "" {
		return 0, ErrUnauthenticated
	}
	if seen, err := s.rejected.Seen(ctx, token); err != nil {
		s.logger.Debug("rejected token cache read failed", "error", err)
	} else if seen {
		observability.RecordTokenValidation(ctx, "rejected_cached", "cache")
		return 0, ErrUnauthenticated
	}
	rec, err := s.repo.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			if err := s.rejected.Remember(ctx, token, s.rejectedTTL); err != nil {
				s.logger.Debug("rejected token cache write failed", "error", err)
			}
			return 0, ErrUnauthenticated
		}
		return 0, storageErr("find token", err)
	}
	if !rec.ValidAt(s.now()) {
		return 0, ErrTokenExpired
	}
	return rec.UserID, nil
}

func (s *TokenService) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return storageErr("delete token", s.repo.Delete(ctx, token))
}

func (s *TokenService) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		return n, storageErr("sweep tokens", err)
	}
	return n, nil
}

func (s *TokenService) CountActive(ctx context.Context) (int64, error) {
	n, err := s.repo.CountValid(ctx, s.now())
	if err != nil {
		return 0, storageErr("count tokens", err)
	}
	return n, nil
}

func (s *TokenService) ActiveTokens(ctx context.Context, candidates []string) (map[string]struct{}, error) {
	out := make(map[string]struct{}, len(candidates))
	if len(candidates) == 0 {
		return out, nil
	}
	valid, err := s.repo.FilterValid(ctx, candidates, s.now())
	if err != nil {
		return nil, storageErr("filter tokens", err)
	}
	for _, tok := range valid {
		out[tok] = struct{}{}
	}
	return out, nil
}

func (s *TokenService) ActiveUserIDs(ctx context.Context) (map[uint]struct{}, error) {
	ids, err := s.repo.ListValidUserIDs(ctx, s.now())
	if err != nil {
		return nil, storageErr("list token owners", err)
	}
	out := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

// RunSweeper deletes expired tokens every interval until ctx is done.
func (s *TokenService) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.SweepExpired(ctx)
			if err != nil {
				s.logger.Warn("token sweep failed", "error", err)
				continue
			}
			observability.RecordPresenceEvent(ctx, "tokens_swept", n)
			if n > 0 {
				s.logger.Info("expired tokens swept", "count", n)
			}
		}
	}
}
