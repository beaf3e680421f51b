package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/realtime-hub/internal/config"
	"github.com/sandeepkv93/realtime-hub/internal/di"
	"github.com/sandeepkv93/realtime-hub/internal/observability"
	"github.com/sandeepkv93/realtime-hub/internal/repository"
	"github.com/sandeepkv93/realtime-hub/internal/service"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var envFile string
	cmd := &cobra.Command{
		Use:          "realtime-hub",
		Short:        "Session, presence and chat relay server",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional env file read before the process environment")
	cmd.AddCommand(
		newServeCommand(&envFile),
		newMigrateCommand(&envFile),
		newSweepCommand(&envFile),
	)
	return cmd
}

func setup(ctx context.Context, envFile string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadFile(envFile)
	if err != nil {
		return nil, nil, err
	}
	logger, _, err := observability.InitLogging(ctx, cfg, os.Stdout)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newServeCommand(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := config.LoadFile(*envFile)
			if err != nil {
				return err
			}
			logger, lp, err := observability.InitLogging(ctx, cfg, os.Stdout)
			if err != nil {
				return err
			}
			a, err := di.InitializeApp(ctx, cfg, logger, lp)
			if err != nil {
				logger.Error("initialize app", "error", err)
				return err
			}
			if err := a.Run(ctx); err != nil {
				logger.Error("server stopped with error", "error", err)
				return err
			}
			return nil
		},
	}
}

func newMigrateCommand(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd.Context(), *envFile)
			if err != nil {
				return err
			}
			db, err := repository.Open(cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if sqlDB, err := db.DB(); err == nil {
					_ = sqlDB.Close()
				}
			}()
			if err := repository.Migrate(db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			logger.Info("schema migrated")
			return nil
		},
	}
}

func newSweepCommand(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired session tokens once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd.Context(), *envFile)
			if err != nil {
				return err
			}
			db, err := repository.Open(cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if sqlDB, err := db.DB(); err == nil {
					_ = sqlDB.Close()
				}
			}()
			tokens := service.NewTokenService(repository.NewTokenRepository(db), logger)
			n, err := tokens.SweepExpired(cmd.Context())
			if err != nil {
				return err
			}
			logger.Info("expired tokens swept", "deleted", n)
			return nil
		},
	}
}
