//go:build wireinject
// +build wireinject

package di

import (
	"context"
	"log/slog"

	"github.com/google/wire"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/sandeepkv93/realtime-hub/internal/app"
	"github.com/sandeepkv93/realtime-hub/internal/config"
	"github.com/sandeepkv93/realtime-hub/internal/http/handler"
	"github.com/sandeepkv93/realtime-hub/internal/http/router"
	"github.com/sandeepkv93/realtime-hub/internal/realtime"
	"github.com/sandeepkv93/realtime-hub/internal/repository"
	"github.com/sandeepkv93/realtime-hub/internal/service"
)

var repositorySet = wire.NewSet(
	provideDB,
	repository.NewUserRepository,
	repository.NewTokenRepository,
	repository.NewMessageRepository,
	repository.NewModelConfigRepository,
	repository.NewRolePromptRepository,
)

var serviceSet = wire.NewSet(
	provideRedisClient,
	providePresenceCacheStore,
	provideTokenService,
	service.NewPresenceService,
	provideAuthService,
	service.NewMessageService,
	service.NewCatalogService,
	wire.Bind(new(service.PeerNotifier), new(*realtime.Registry)),
)

var transportSet = wire.NewSet(
	provideRegistry,
	provideWSHandler,
	provideMemorySearcher,
	provideBuilder,
	provideExecutor,
	handler.NewAuthHandler,
	handler.NewContactHandler,
	handler.NewChatHandler,
	handler.NewCatalogHandler,
	handler.NewPresenceHandler,
	wire.Bind(new(handler.ConnectionCounter), new(*realtime.Registry)),
	provideReadiness,
	provideRouterDependencies,
	router.NewRouter,
	provideHTTPServer,
)

func InitializeApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, lp *sdklog.LoggerProvider) (*app.App, error) {
	wire.Build(
		provideRuntime,
		repositorySet,
		serviceSet,
		transportSet,
		provideStopBackgroundTasks,
		provideApp,
	)
	return nil, nil
}
