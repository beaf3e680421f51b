package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sandeepkv93/realtime-hub/internal/domain"
	"github.com/sandeepkv93/realtime-hub/internal/observability"
	"github.com/sandeepkv93/realtime-hub/internal/repository"
	"github.com/sandeepkv93/realtime-hub/internal/security"
)

type RegisterInput struct {
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt *time.Time   `json:"expires_at,omitempty"`
	User      *domain.User `json:"user"`
}

type AuthService struct {
	users            repository.UserRepository
	tokens           *TokenService
	presence         *PresenceService
	tokenTTL         time.Duration
	allowAdminSignup bool
	logger           *slog.Logger
}

func NewAuthService(users repository.UserRepository, tokens *TokenService, presence *PresenceService, tokenTTL time.Duration, allowAdminSignup bool, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		users:            users,
		tokens:           tokens,
		presence:         presence,
		tokenTTL:         tokenTTL,
		allowAdminSignup: allowAdminSignup,
		logger:           logger,
	}
}

// Register creates a user. An admin role is granted only while no admin
// exists; any other requested role falls back to a regular user.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalidArgument("name is required")
	}
	if strings.TrimSpace(in.Password) == "" {
		return nil, invalidArgument("password is required")
	}

	role := domain.RoleUser
	if in.Role == domain.RoleAdmin && s.allowAdminSignup {
		exists, err := s.users.AdminExists(ctx)
		if err != nil {
			return nil, storageErr("check admin", err)
		}
		if !exists {
			role = domain.RoleAdmin
		}
	}

	salt, err := security.NewSalt()
	if err != nil {
		return nil, err
	}
	user := &domain.User{
		Name:         name,
		PasswordHash: security.HashPassword(in.Password, salt),
		Salt:         salt,
		Role:         role,
		Email:        strings.TrimSpace(in.Email),
		Phone:        strings.TrimSpace(in.Phone),
	}
	if err := s.users.Create(ctx, user); err != nil {
		observability.RecordAuthEvent(ctx, "register", "error")
		if errors.Is(err, repository.ErrDuplicateUser) {
			return nil, fmt.Errorf("%w: user name already taken", ErrConflict)
		}
		return nil, storageErr("create user", err)
	}
	observability.RecordAuthEvent(ctx, "register", "success")
	s.presence.RecordRegistration(ctx)
	s.logger.Info("user registered", "user_id", user.ID, "role", user.Role)
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, name, password string) (*LoginResult, error) {
	user, err := s.users.FindByName(ctx, strings.TrimSpace(name))
	if err != nil {
		observability.RecordAuthEvent(ctx, "login", "unknown_user")
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, notFound("user does not exist")
		}
		return nil, storageErr("find user", err)
	}
	if !security.VerifyPassword(password, user.Salt, user.PasswordHash) {
		observability.RecordAuthEvent(ctx, "login", "bad_password")
		return nil, fmt.Errorf("%w: wrong password", ErrUnauthenticated)
	}

	rec, err := s.tokens.Issue(ctx, user.ID, s.tokenTTL)
	if err != nil {
		observability.RecordAuthEvent(ctx, "login", "error")
		return nil, err
	}
	s.presence.RecordOnline(ctx, rec.Token)
	observability.RecordAuthEvent(ctx, "login", "success")
	return &LoginResult{Token: rec.Token, User: user, ExpiresAt: rec.ExpiresAt}, nil
}

func (s *AuthService) Logout(ctx context.Context, token string) error {
	if err := s.tokens.Revoke(ctx, token); err != nil {
		observability.RecordAuthEvent(ctx, "logout", "error")
		return err
	}
	s.presence.RecordOffline(ctx, token)
	observability.RecordAuthEvent(ctx, "logout", "success")
	return nil
}

// Authenticate resolves a session token to its user.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	userID, err := s.tokens.Validate(ctx, token)
	if err != nil {
		return nil, err
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, storageErr("find user", err)
	}
	return user, nil
}
