package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/sandeepkv93/realtime-hub/internal/domain"
)

func seedTokens(t *testing.T, repo TokenRepository, now time.Time) {
	t.Helper()
	ctx := context.Background()
	tokens := []*domain.AuthToken{
		{Token: "live", UserID: 1, ExpiresAt: ptr(now.Add(time.Hour))},
		{Token: "forever", UserID: 2},
		{Token: "stale", UserID: 3, ExpiresAt: ptr(now.Add(-time.Minute))},
		{Token: "live-2", UserID: 1, ExpiresAt: ptr(now.Add(2 * time.Hour))},
	}
	for _, tok := range tokens {
		if err := repo.Create(ctx, tok); err != nil {
			t.Fatalf("create %s: %v", tok.Token, err)
		}
	}
}

func TestTokenRepositoryFindAndDelete(t *testing.T) {
	repo := NewTokenRepository(newTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()
	seedTokens(t, repo, now)

	got, err := repo.FindByToken(ctx, "live")
	if err != nil {
		t.Fatalf("find live: %v", err)
	}
	if got.UserID != 1 || got.ExpiresAt == nil {
		t.Fatalf("unexpected token: %+v", got)
	}

	if err := repo.Delete(ctx, "live"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.Delete(ctx, "live"); err != nil {
		t.Fatalf("second delete must be a no-op: %v", err)
	}
	if _, err := repo.FindByToken(ctx, "live"); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound, got %v", err)
	}
}

func TestTokenRepositoryValidityQueries(t *testing.T) {
	repo := NewTokenRepository(newTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()
	seedTokens(t, repo, now)

	n, err := repo.CountValid(ctx, now)
	if err != nil {
		t.Fatalf("count valid: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 valid tokens, got %d", n)
	}

	valid, err := repo.FilterValid(ctx, []string{"live", "stale", "ghost", "forever"}, now)
	if err != nil {
		t.Fatalf("filter valid: %v", err)
	}
	sort.Strings(valid)
	if len(valid) != 2 || valid[0] != "forever" || valid[1] != "live" {
		t.Fatalf("unexpected valid set: %v", valid)
	}

	ids, err := repo.ListValidUserIDs(ctx, now)
	if err != nil {
		t.Fatalf("list user ids: %v", err)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Fatalf("unexpected user ids: %v", ids)
	}
}

func TestTokenRepositoryDeleteExpiredKeepsNonExpiring(t *testing.T) {
	repo := NewTokenRepository(newTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()
	seedTokens(t, repo, now)

	removed, err := repo.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 expired token removed, got %d", removed)
	}
	if _, err := repo.FindByToken(ctx, "forever"); err != nil {
		t.Fatalf("token without expiry must survive sweep: %v", err)
	}
	if _, err := repo.FindByToken(ctx, "stale"); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected stale token removed, got %v", err)
	}
}

func TestTokenRepositoryFilterValidBatches(t *testing.T) {
	repo := NewTokenRepository(newTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	candidates := make([]string, 0, tokenFilterBatch+20)
	for i := 0; i < tokenFilterBatch+20; i++ {
		tok := fmt.Sprintf("tok-%d", i)
		candidates = append(candidates, tok)
		if i%2 == 0 {
			if err := repo.Create(ctx, &domain.AuthToken{Token: tok, UserID: 1}); err != nil {
				t.Fatalf("create: %v", err)
			}
		}
	}
	valid, err := repo.FilterValid(ctx, candidates, now)
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if len(valid) != (tokenFilterBatch+20+1)/2 {
		t.Fatalf("expected %d valid, got %d", (tokenFilterBatch+20+1)/2, len(valid))
	}
}
