package service

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/sandeepkv93/realtime-hub/internal/domain"
	"github.com/sandeepkv93/realtime-hub/internal/repository"
)

type ModelConfigInput struct {
	Name        string  `json:"name"`
	BaseURL     string  `json:"base_url"`
	APIKey      string  `json:"api_key"`
	ModelName   string  `json:"model_name"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float32 `json:"temperature"`
	OwnerID     *uint   `json:"owner_id,omitempty"`
}

type RolePromptInput struct {
	Name   string `json:"name"`
	Prompt string `json:"prompt"`
}

// CatalogService manages the chat backend configurations and role prompts
// the relay selects from.
type CatalogService struct {
	models  repository.ModelConfigRepository
	prompts repository.RolePromptRepository
	logger  *slog.Logger
}

func NewCatalogService(models repository.ModelConfigRepository, prompts repository.RolePromptRepository, logger *slog.Logger) *CatalogService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogService{models: models, prompts: prompts, logger: logger}
}

// ModelsFor lists the configurations user may select, in id order.
func (s *CatalogService) ModelsFor(ctx context.Context, user domain.User) ([]domain.ModelConfig, error) {
	all, err := s.models.List(ctx)
	if err != nil {
		return nil, storageErr("list model configs", err)
	}
	out := make([]domain.ModelConfig, 0, len(all))
	for _, m := range all {
		if m.UsableBy(user) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *CatalogService) CreateModel(ctx context.Context, in ModelConfigInput) (*domain.ModelConfig, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.ModelName = strings.TrimSpace(in.ModelName)
	if in.Name == "" || in.ModelName == "" {
		return nil, invalidArgument("name and model_name are required")
	}
	u, err := url.Parse(strings.TrimSpace(in.BaseURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, invalidArgument("base_url must be an absolute http(s) url")
	}
	if in.MaxTokens < 0 {
		return nil, invalidArgument("max_tokens must not be negative")
	}
	if in.Temperature < 0 || in.Temperature > 2 {
		return nil, invalidArgument("temperature must be within [0,2]")
	}
	m := &domain.ModelConfig{
		Name:        in.Name,
		BaseURL:     u.String(),
		APIKey:      in.APIKey,
		ModelName:   in.ModelName,
		MaxTokens:   in.MaxTokens,
		Temperature: in.Temperature,
		OwnerID:     in.OwnerID,
	}
	if err := s.models.Create(ctx, m); err != nil {
		return nil, storageErr("create model config", err)
	}
	s.logger.Info("model config created", "model_config_id", m.ID, "model", m.ModelName)
	return m, nil
}

func (s *CatalogService) RolePrompts(ctx context.Context) ([]domain.RolePrompt, error) {
	out, err := s.prompts.List(ctx)
	if err != nil {
		return nil, storageErr("list role prompts", err)
	}
	return out, nil
}

func (s *CatalogService) CreateRolePrompt(ctx context.Context, in RolePromptInput) (*domain.RolePrompt, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Prompt = strings.TrimSpace(in.Prompt)
	if in.Name == "" || in.Prompt == "" {
		return nil, invalidArgument("name and prompt are required")
	}
	p := &domain.RolePrompt{Name: in.Name, Prompt: in.Prompt}
	if err := s.prompts.Create(ctx, p); err != nil {
		return nil, storageErr("create role prompt", err)
	}
	return p, nil
}
