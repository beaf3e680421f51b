package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/sandeepkv93/realtime-hub/internal/domain"
	"github.com/sandeepkv93/realtime-hub/internal/repository"
	"github.com/sandeepkv93/realtime-hub/internal/service"
)

const (
	DefaultMemoryLimit = 3
	defaultMaxTokens   = 4096
)

type Caller struct {
	ID   uint
	Name string
	Role string
}

func CallerFromUser(u domain.User) Caller {
	return Caller{ID: u.ID, Name: u.Name, Role: u.Role}
}

func (c Caller) user() domain.User {
	return domain.User{ID: c.ID, Name: c.Name, Role: c.Role}
}

type ChatRequest struct {
	ModelID    *uint             `json:"model_id,omitempty"`
	Messages   []json.RawMessage `json:"messages"`
	Stream     bool              `json:"stream,omitempty"`
	RolePrompt string            `json:"role_prompt,omitempty"`
	RoleID     *uint             `json:"role_id,omitempty"`
}

// Prepared is a fully assembled upstream call. Candidates starts with
// Primary and lists every other configuration the caller may use, in id
// order.
type Prepared struct {
	Primary    domain.ModelConfig
	Candidates []domain.ModelConfig
	Body       CompletionBody
}

type MemorySearcher interface {
	Search(ctx context.Context, query string, userID uint, limit int) ([]string, error)
}

type NoopMemorySearcher struct{}

func (NoopMemorySearcher) Search(context.Context, string, uint, int) ([]string, error) {
	return nil, nil
}

type BuilderConfig struct {
	MemoryEnabled bool
	MemoryLimit   int
}

type Builder struct {
	models  repository.ModelConfigRepository
	prompts repository.RolePromptRepository
	memory  MemorySearcher
	cfg     BuilderConfig
	logger  *slog.Logger
}

func NewBuilder(models repository.ModelConfigRepository, prompts repository.RolePromptRepository, memory MemorySearcher, cfg BuilderConfig, logger *slog.Logger) *Builder {
	if memory == nil {
		memory = NoopMemorySearcher{}
	}
	if cfg.MemoryLimit <= 0 {
		cfg.MemoryLimit = DefaultMemoryLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{models: models, prompts: prompts, memory: memory, cfg: cfg, logger: logger}
}

func (b *Builder) Build(ctx context.Context, caller Caller, req ChatRequest) (*Prepared, error) {
	turns, err := decodeTurns(req.Messages)
	if err != nil {
		return nil, err
	}
	primary, err := b.selectModel(ctx, req.ModelID)
	if err != nil {
		return nil, err
	}
	if !primary.UsableBy(caller.user()) {
		return nil, fmt.Errorf("%w: model %d is not available to this user", service.ErrForbidden, primary.ID)
	}
	candidates, err := b.candidates(ctx, caller, *primary)
	if err != nil {
		return nil, err
	}

	system := []json.RawMessage{systemMessage(fmt.Sprintf(
		"Current user: %s, role: %s. Answer politely and concisely, taking the user's role into account.", caller.Name, caller.Role))}
	if mem := b.memoryContext(ctx, caller, turns); mem != "" {
		system = append(system, systemMessage(mem))
	}
	rolePrompt, err := b.rolePrompt(ctx, req)
	if err != nil {
		return nil, err
	}
	if rolePrompt != "" {
		system = append(system, systemMessage(rolePrompt))
	}

	messages := make([]json.RawMessage, 0, len(system)+len(req.Messages))
	messages = append(messages, system...)
	messages = append(messages, req.Messages...)

	maxTokens := primary.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Prepared{
		Primary:    *primary,
		Candidates: candidates,
		Body: CompletionBody{
			Model:       primary.ModelName,
			Messages:    messages,
			MaxTokens:   maxTokens,
			Temperature: primary.Temperature,
			Stream:      req.Stream,
		},
	}, nil
}

func (b *Builder) selectModel(ctx context.Context, id *uint) (*domain.ModelConfig, error) {
	if id != nil {
		m, err := b.models.FindByID(ctx, *id)
		if err == nil {
			return m, nil
		}
		if !errors.Is(err, repository.ErrModelConfigNotFound) {
			return nil, &service.StorageError{Op: "find model config", Err: err}
		}
	}
	m, err := b.models.First(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrModelConfigNotFound) {
			return nil, fmt.Errorf("%w: no model is configured", service.ErrNotFound)
		}
		return nil, &service.StorageError{Op: "find model config", Err: err}
	}
	return m, nil
}

func (b *Builder) candidates(ctx context.Context, caller Caller, primary domain.ModelConfig) ([]domain.ModelConfig, error) {
	all, err := b.models.List(ctx)
	if err != nil {
		return nil, &service.StorageError{Op: "list model configs", Err: err}
	}
	out := []domain.ModelConfig{primary}
	for _, m := range all {
		if m.ID == primary.ID || !m.UsableBy(caller.user()) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (b *Builder) memoryContext(ctx context.Context, caller Caller, history []turn) string {
	if !b.cfg.MemoryEnabled {
		return ""
	}
	var query string
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == openai.ChatMessageRoleUser {
			query = strings.TrimSpace(history[i].text())
			break
		}
	}
	if query == "" {
		return ""
	}
	memories, err := b.memory.Search(ctx, query, caller.ID, b.cfg.MemoryLimit)
	if err != nil {
		b.logger.Warn("memory search failed", "user_id", caller.ID, "error", err)
		return ""
	}
	if len(memories) > b.cfg.MemoryLimit {
		memories = memories[:b.cfg.MemoryLimit]
	}
	if len(memories) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Related memories:")
	for _, m := range memories {
		sb.WriteString("\n- ")
		sb.WriteString(m)
	}
	return sb.String()
}

func (b *Builder) rolePrompt(ctx context.Context, req ChatRequest) (string, error) {
	if req.RoleID != nil {
		p, err := b.prompts.FindByID(ctx, *req.RoleID)
		if err != nil {
			if errors.Is(err, repository.ErrRolePromptNotFound) {
				return "", fmt.Errorf("%w: role prompt %d does not exist", service.ErrNotFound, *req.RoleID)
			}
			return "", &service.StorageError{Op: "find role prompt", Err: err}
		}
		return p.Prompt, nil
	}
	if req.RolePrompt != "" {
		return req.RolePrompt, nil
	}
	p, err := b.prompts.First(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrRolePromptNotFound) {
			return "", nil
		}
		return "", &service.StorageError{Op: "find role prompt", Err: err}
	}
	return p.Prompt, nil
}
