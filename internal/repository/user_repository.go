package repository

import (
	"context"
	"errors"

	"github.com/sandeepkv93/realtime-hub/internal/domain"
	"github.com/sandeepkv93/realtime-hub/internal/observability"

	"gorm.io/gorm"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateUser = errors.New("user already exists")
)

type UserRepository interface {
	FindByID(ctx context.Context, id uint) (*domain.User, error)
	FindByName(ctx context.Context, name string) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) error
	Count(ctx context.Context) (int64, error)
	AdminExists(ctx context.Context) (bool, error)
	ListExcept(ctx context.Context, id uint) ([]domain.User, error)
}

type GormUserRepository struct{ db *gorm.DB }

func NewUserRepository(db *gorm.DB) UserRepository { return &GormUserRepository{db: db} }

func (r *GormUserRepository) FindByID(ctx context.Context, id uint) (*domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).First(&u, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "user", "find_by_id", "not_found")
			return nil, ErrUserNotFound
		}
		observability.RecordRepositoryOperation(ctx, "user", "find_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "user", "find_by_id", "success")
	return &u, nil
}

func (r *GormUserRepository) FindByName(ctx context.Context, name string) (*domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "user", "find_by_name", "not_found")
			return nil, ErrUserNotFound
		}
		observability.RecordRepositoryOperation(ctx, "user", "find_by_name", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "user", "find_by_name", "success")
	return &u, nil
}

func (r *GormUserRepository) Create(ctx context.Context, user *domain.User) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&domain.User{}).Where("name = ?", user.Name).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrDuplicateUser
		}
		return tx.Create(user).Error
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateUser) {
			observability.RecordRepositoryOperation(ctx, "user", "create", "conflict")
		} else {
			observability.RecordRepositoryOperation(ctx, "user", "create", "error")
		}
		return err
	}
	observability.RecordRepositoryOperation(ctx, "user", "create", "success")
	return nil
}

func (r *GormUserRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&domain.User{}).Count(&n).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "user", "count", "error")
		return 0, err
	}
	observability.RecordRepositoryOperation(ctx, "user", "count", "success")
	return n, nil
}

func (r *GormUserRepository) AdminExists(ctx context.Context) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.User{}).Where("role = ?", domain.RoleAdmin).Limit(1).Count(&n).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "user", "admin_exists", "error")
		return false, err
	}
	observability.RecordRepositoryOperation(ctx, "user", "admin_exists", "success")
	return n > 0, nil
}

func (r *GormUserRepository) ListExcept(ctx context.Context, id uint) ([]domain.User, error) {
	var users []domain.User
	err := r.db.WithContext(ctx).Where("id <> ?", id).Order("id ASC").Find(&users).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "user", "list_except", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "user", "list_except", "success")
	return users, nil
}
