package di

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/redis/go-redis/v9"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"gorm.io/gorm"

	"github.com/sandeepkv93/realtime-hub/internal/app"
	"github.com/sandeepkv93/realtime-hub/internal/config"
	"github.com/sandeepkv93/realtime-hub/internal/health"
	"github.com/sandeepkv93/realtime-hub/internal/http/handler"
	"github.com/sandeepkv93/realtime-hub/internal/http/router"
	"github.com/sandeepkv93/realtime-hub/internal/observability"
	"github.com/sandeepkv93/realtime-hub/internal/realtime"
	"github.com/sandeepkv93/realtime-hub/internal/relay"
	"github.com/sandeepkv93/realtime-hub/internal/repository"
	"github.com/sandeepkv93/realtime-hub/internal/service"
)

func provideRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger, lp *sdklog.LoggerProvider) (*observability.Runtime, error) {
	return observability.InitRuntime(ctx, cfg, logger, lp)
}

func provideDB(cfg *config.Config, logger *slog.Logger) (*gorm.DB, error) {
	db, err := repository.Open(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := repository.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// provideRedisClient returns nil when Redis is not configured or stays
// unreachable for REDIS_CONNECT_TIMEOUT; presence then runs without a cache.
func provideRedisClient(ctx context.Context, cfg *config.Config, logger *slog.Logger) redis.UniversalClient {
	if cfg.RedisAddr == "" {
		logger.Info("redis disabled")
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := connectRedis(ctx, client, cfg.RedisConnectTimeout, logger); err != nil {
		logger.Warn("redis unreachable, presence cache disabled", "addr", cfg.RedisAddr, "error", err)
		_ = client.Close()
		return nil
	}
	logger.Info("redis connected", "addr", cfg.RedisAddr)
	return client
}

func connectRedis(ctx context.Context, client redis.UniversalClient, maxElapsed time.Duration, logger *slog.Logger) error {
	ping := func() (string, error) {
		return client.Ping(ctx).Result()
	}
	if maxElapsed <= 0 {
		_, err := ping()
		return err
	}
	_, err := backoff.Retry(ctx, ping,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(maxElapsed),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn("redis ping failed, retrying", "error", err, "retry_in", next)
		}),
	)
	return err
}

func provideTokenService(cfg *config.Config, repo repository.TokenRepository, client redis.UniversalClient, logger *slog.Logger) *service.TokenService {
	tokens := service.NewTokenService(repo, logger)
	var cache service.RejectedTokenCache = service.NewInMemoryRejectedTokenCache()
	if client != nil {
		cache = service.NewRedisRejectedTokenCache(client, cfg.RedisPrefix)
	}
	tokens.UseRejectedCache(cache, cfg.RejectedTokenTTL)
	return tokens
}

func providePresenceCacheStore(cfg *config.Config, client redis.UniversalClient) service.PresenceCacheStore {
	if client == nil {
		return service.NewNoopPresenceCacheStore()
	}
	return service.NewRedisPresenceCacheStore(client, cfg.RedisPrefix, cfg.PresenceCacheTTL)
}

func provideAuthService(cfg *config.Config, users repository.UserRepository, tokens *service.TokenService, presence *service.PresenceService, logger *slog.Logger) *service.AuthService {
	return service.NewAuthService(users, tokens, presence, cfg.TokenTTL, cfg.AllowAdminSignup, logger)
}

func provideRegistry(cfg *config.Config, logger *slog.Logger) *realtime.Registry {
	return realtime.NewRegistry(cfg.WSWriteTimeout, logger)
}

func provideWSHandler(cfg *config.Config, registry *realtime.Registry, auth *service.AuthService, logger *slog.Logger) *realtime.Handler {
	return realtime.NewHandler(registry, auth, realtime.HandlerConfig{
		HeartbeatTimeout: cfg.WSHeartbeatTimeout,
		WriteTimeout:     cfg.WSWriteTimeout,
		MaxMessageBytes:  cfg.WSMaxMessageBytes,
	}, logger)
}

func provideMemorySearcher() relay.MemorySearcher {
	return relay.NoopMemorySearcher{}
}

func provideBuilder(cfg *config.Config, models repository.ModelConfigRepository, prompts repository.RolePromptRepository, memory relay.MemorySearcher, logger *slog.Logger) *relay.Builder {
	return relay.NewBuilder(models, prompts, memory, relay.BuilderConfig{
		MemoryEnabled: cfg.MemoryEnabled,
		MemoryLimit:   cfg.MemoryLimit,
	}, logger)
}

func provideExecutor(cfg *config.Config, logger *slog.Logger) *relay.Executor {
	return relay.NewExecutor(relay.ExecutorConfig{
		Timeout:       cfg.RelayTimeout,
		RetryStatuses: cfg.RetryStatuses(),
	}, logger)
}

func provideReadiness(db *gorm.DB, client redis.UniversalClient) *health.ProbeRunner {
	return health.NewProbeRunner(2*time.Second, time.Second, health.DBChecker{DB: db}, health.RedisChecker{Client: client})
}

func provideRouterDependencies(
	cfg *config.Config,
	authHandler *handler.AuthHandler,
	contactHandler *handler.ContactHandler,
	chatHandler *handler.ChatHandler,
	catalogHandler *handler.CatalogHandler,
	presenceHandler *handler.PresenceHandler,
	wsHandler *realtime.Handler,
	auth *service.AuthService,
	readiness *health.ProbeRunner,
) router.Dependencies {
	return router.Dependencies{
		AuthHandler:     authHandler,
		ContactHandler:  contactHandler,
		ChatHandler:     chatHandler,
		CatalogHandler:  catalogHandler,
		PresenceHandler: presenceHandler,
		WSHandler:       wsHandler,
		Authenticator:   auth,
		CORSOrigins:     cfg.CORSOrigins(),
		BodyLimitBytes:  cfg.HTTPBodyLimitBytes,
		Readiness:       readiness,
		EnableOTelHTTP:  cfg.OTELHTTPEnabled,
	}
}

func provideHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

func provideStopBackgroundTasks(db *gorm.DB, client redis.UniversalClient, logger *slog.Logger) func() {
	return func() {
		if client != nil {
			if err := client.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}
		if sqlDB, err := db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				logger.Warn("close database", "error", err)
			}
		}
	}
}

func provideApp(cfg *config.Config, logger *slog.Logger, server *http.Server, registry *realtime.Registry, runtime *observability.Runtime, tokens *service.TokenService, readiness *health.ProbeRunner, stop func()) *app.App {
	return app.New(cfg, logger, server, registry, runtime, tokens, readiness, stop)
}
