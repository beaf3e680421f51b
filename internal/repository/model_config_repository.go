package repository

import (
	"context"
	"errors"

	"github.com/sandeepkv93/realtime-hub/internal/domain"
	"github.com/sandeepkv93/realtime-hub/internal/observability"

	"gorm.io/gorm"
)

var (
	ErrModelConfigNotFound = errors.New("model config not found")
	ErrRolePromptNotFound  = errors.New("role prompt not found")
)

type ModelConfigRepository interface {
	FindByID(ctx context.Context, id uint) (*domain.ModelConfig, error)
	First(ctx context.Context) (*domain.ModelConfig, error)
	List(ctx context.Context) ([]domain.ModelConfig, error)
	Create(ctx context.Context, m *domain.ModelConfig) error
}

type RolePromptRepository interface {
	FindByID(ctx context.Context, id uint) (*domain.RolePrompt, error)
	First(ctx context.Context) (*domain.RolePrompt, error)
	List(ctx context.Context) ([]domain.RolePrompt, error)
	Create(ctx context.Context, p *domain.RolePrompt) error
}

type GormModelConfigRepository struct{ db *gorm.DB }

func NewModelConfigRepository(db *gorm.DB) ModelConfigRepository {
	return &GormModelConfigRepository{db: db}
}

func (r *GormModelConfigRepository) FindByID(ctx context.Context, id uint) (*domain.ModelConfig, error) {
	return r.first(ctx, "find_by_id", r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *GormModelConfigRepository) First(ctx context.Context) (*domain.ModelConfig, error) {
	return r.first(ctx, "first", r.db.WithContext(ctx).Order("id ASC"))
}

func (r *GormModelConfigRepository) first(ctx context.Context, op string, q *gorm.DB) (*domain.ModelConfig, error) {
	var m domain.ModelConfig
	if err := q.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "model_config", op, "not_found")
			return nil, ErrModelConfigNotFound
		}
		observability.RecordRepositoryOperation(ctx, "model_config", op, "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "model_config", op, "success")
	return &m, nil
}

func (r *GormModelConfigRepository) List(ctx context.Context) ([]domain.ModelConfig, error) {
	var out []domain.ModelConfig
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&out).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "model_config", "list", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "model_config", "list", "success")
	return out, nil
}

func (r *GormModelConfigRepository) Create(ctx context.Context, m *domain.ModelConfig) error {
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "model_config", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "model_config", "create", "success")
	return nil
}

type GormRolePromptRepository struct{ db *gorm.DB }

func NewRolePromptRepository(db *gorm.DB) RolePromptRepository {
	return &GormRolePromptRepository{db: db}
}

func (r *GormRolePromptRepository) FindByID(ctx context.Context, id uint) (*domain.RolePrompt, error) {
	return r.first(ctx, "find_by_id", r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *GormRolePromptRepository) First(ctx context.Context) (*domain.RolePrompt, error) {
	return r.first(ctx, "first", r.db.WithContext(ctx).Order("id ASC"))
}

func (r *GormRolePromptRepository) first(ctx context.Context, op string, q *gorm.DB) (*domain.RolePrompt, error) {
	var p domain.RolePrompt
	if err := q.First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "role_prompt", op, "not_found")
			return nil, ErrRolePromptNotFound
		}
		observability.RecordRepositoryOperation(ctx, "role_prompt", op, "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "role_prompt", op, "success")
	return &p, nil
}

func (r *GormRolePromptRepository) List(ctx context.Context) ([]domain.RolePrompt, error) {
	var out []domain.RolePrompt
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&out).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "role_prompt", "list", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "role_prompt", "list", "success")
	return out, nil
}

func (r *GormRolePromptRepository) Create(ctx context.Context, p *domain.RolePrompt) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "role_prompt", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "role_prompt", "create", "success")
	return nil
}
