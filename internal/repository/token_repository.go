package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sandeepkv93/realtime-hub/internal/domain"
	"github.com/sandeepkv93/realtime-hub/internal/observability"

	"gorm.io/gorm"
)

var ErrTokenNotFound = errors.New("token not found")

const tokenFilterBatch = 500

type TokenRepository interface {
	Create(ctx context.Context, t *domain.AuthToken) error
	FindByToken(ctx context.Context, token string) (*domain.AuthToken, error)
	Delete(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	CountValid(ctx context.Context, now time.Time) (int64, error)
	FilterValid(ctx context.Context, tokens []string, now time.Time) ([]string, error)
	ListValidUserIDs(ctx context.Context, now time.Time) ([]uint, error)
}

type GormTokenRepository struct{ db *gorm.DB }

func NewTokenRepository(db *gorm.DB) TokenRepository { return &GormTokenRepository{db: db} }

func (r *GormTokenRepository) Create(ctx context.Context, t *domain.AuthToken) error {
	if err := r.db.WithContext(ctx).Create(t).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "token", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "token", "create", "success")
	return nil
}

func (r *GormTokenRepository) FindByToken(ctx context.Context, token string) (*domain.AuthToken, error) {
	var t domain.AuthToken
	err := r.db.WithContext(ctx).Where("token = ?", token).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "token", "find_by_token", "not_found")
			return nil, ErrTokenNotFound
		}
		observability.RecordRepositoryOperation(ctx, "token", "find_by_token", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "token", "find_by_token", "success")
	return &t, nil
}

func (r *GormTokenRepository) Delete(ctx context.Context, token string) error {
	if err := r.db.WithContext(ctx).Where("token = ?", token).Delete(&domain.AuthToken{}).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "token", "delete", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "token", "delete", "success")
	return nil
}

func (r *GormTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at IS NOT NULL AND expires_at <= ?", now).Delete(&domain.AuthToken{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "token", "delete_expired", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(ctx, "token", "delete_expired", "success")
	return res.RowsAffected, nil
}

func (r *GormTokenRepository) CountValid(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.AuthToken{}).
		Where("(expires_at IS NULL OR expires_at > ?)", now).
		Count(&n).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "token", "count_valid", "error")
		return 0, err
	}
	observability.RecordRepositoryOperation(ctx, "token", "count_valid", "success")
	return n, nil
}

func (r *GormTokenRepository) FilterValid(ctx context.Context, tokens []string, now time.Time) ([]string, error) {
	valid := make([]string, 0, len(tokens))
	for start := 0; start < len(tokens); start += tokenFilterBatch {
		end := min(start+tokenFilterBatch, len(tokens))
		var batch []string
		err := r.db.WithContext(ctx).Model(&domain.AuthToken{}).
			Where("token IN ?", tokens[start:end]).
			Where("(expires_at IS NULL OR expires_at > ?)", now).
			Pluck("token", &batch).Error
		if err != nil {
			observability.RecordRepositoryOperation(ctx, "token", "filter_valid", "error")
			return nil, err
		}
		valid = append(valid, batch...)
	}
	observability.RecordRepositoryOperation(ctx, "token", "filter_valid", "success")
	return valid, nil
}

func (r *GormTokenRepository) ListValidUserIDs(ctx context.Context, now time.Time) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&domain.AuthToken{}).
		Where("(expires_at IS NULL OR expires_at > ?)", now).
		Distinct().
		Pluck("user_id", &ids).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "token", "list_valid_user_ids", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "token", "list_valid_user_ids", "success")
	return ids, nil
}
