package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sandeepkv93/realtime-hub/internal/config"
	"github.com/sandeepkv93/realtime-hub/internal/health"
	"github.com/sandeepkv93/realtime-hub/internal/observability"
	"github.com/sandeepkv93/realtime-hub/internal/realtime"
	"github.com/sandeepkv93/realtime-hub/internal/service"
)

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Server        *http.Server
	Registry      *realtime.Registry
	Observability *observability.Runtime
	Tokens        *service.TokenService
	Readiness     *health.ProbeRunner

	StopBackgroundTasks func()

	ShutdownTimeout              time.Duration
	ShutdownHTTPDrainTimeout     time.Duration
	ShutdownRealtimeTimeout      time.Duration
	ShutdownObservabilityTimeout time.Duration
	TokenSweepInterval           time.Duration
}

func New(cfg *config.Config, logger *slog.Logger, server *http.Server, registry *realtime.Registry, runtime *observability.Runtime, tokens *service.TokenService, readiness *health.ProbeRunner, stop func()) *App {
	if logger == nil {
		logger = slog.Default()
	}
	if stop == nil {
		stop = func() {}
	}
	return &App{
		Config:                       cfg,
		Logger:                       logger,
		Server:                       server,
		Registry:                     registry,
		Observability:                runtime,
		Tokens:                       tokens,
		Readiness:                    readiness,
		StopBackgroundTasks:          stop,
		ShutdownTimeout:              cfg.ShutdownTimeout,
		ShutdownHTTPDrainTimeout:     cfg.ShutdownHTTPDrainTimeout,
		ShutdownRealtimeTimeout:      cfg.ShutdownRealtimeTimeout,
		ShutdownObservabilityTimeout: cfg.ShutdownObservabilityTimeout,
		TokenSweepInterval:           cfg.TokenSweepInterval,
	}
}

// Run serves HTTP until ctx is cancelled or the listener fails, then shuts
// down gracefully.
func (a *App) Run(ctx context.Context) error {
	bgCtx, cancelBackground := context.WithCancel(context.Background())
	defer cancelBackground()

	g, gctx := errgroup.WithContext(ctx)
	if a.Tokens != nil && a.TokenSweepInterval > 0 {
		go a.Tokens.RunSweeper(bgCtx, a.TokenSweepInterval)
	}
	g.Go(func() error {
		a.Logger.Info("http server listening", "addr", a.Server.Addr)
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		cancelBackground()
		return a.Shutdown(context.Background())
	})
	return g.Wait()
}

// Shutdown closes websocket clients first, because http.Server.Shutdown does
// not track hijacked connections, then drains HTTP and flushes telemetry.
// Each phase has its own budget inside the overall ShutdownTimeout.
func (a *App) Shutdown(ctx context.Context) error {
	if a.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.ShutdownTimeout)
		defer cancel()
	}
	a.Logger.Info("shutdown started")
	start := time.Now()

	var errs []error
	if a.Registry != nil {
		if err := a.phase(ctx, a.ShutdownRealtimeTimeout, a.Registry.ShutdownAll); err != nil {
			a.Logger.Warn("realtime shutdown incomplete", "error", err)
			errs = append(errs, fmt.Errorf("realtime: %w", err))
		}
	}
	if a.Server != nil {
		if err := a.phase(ctx, a.ShutdownHTTPDrainTimeout, a.Server.Shutdown); err != nil {
			a.Logger.Warn("http drain incomplete", "error", err)
			_ = a.Server.Close()
			errs = append(errs, fmt.Errorf("http: %w", err))
		}
	}
	a.StopBackgroundTasks()
	if a.Observability != nil {
		if err := a.phase(ctx, a.ShutdownObservabilityTimeout, a.Observability.Shutdown); err != nil {
			errs = append(errs, fmt.Errorf("observability: %w", err))
		}
	}

	a.Logger.Info("shutdown finished", "duration_ms", time.Since(start).Milliseconds(), "errors", len(errs))
	return errors.Join(errs...)
}

func (a *App) phase(ctx context.Context, budget time.Duration, fn func(context.Context) error) error {
	if budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}
	return fn(ctx)
}
