package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"staybook/internal/infra/config"
	mongodb "staybook/internal/infra/db/mongo"
	ginserver "staybook/internal/infra/http/gin"
	"staybook/internal/infra/obs"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var envFiles []string
	root := &cobra.Command{
		Use:           "staybook",
		Short:         "Availability and booking engine for rental properties",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return config.LoadDotEnv(envFiles...)
		},
	}
	root.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "dotenv files loaded before reading the environment")
	root.AddCommand(newServeCommand(), newIndexesCommand())
	return root
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the outbox relay and the user event consumer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := obs.NewLogger(cfg.Env, cfg.LogLevel)
			slog.SetDefault(logger)
			return serve(ctx, cfg, logger)
		},
	}
}

func newIndexesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "indexes",
		Short: "Create the MongoDB indexes the stores rely on",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Storage != config.StorageMongo {
				return fmt.Errorf("indexes: STORAGE must be %q, got %q", config.StorageMongo, cfg.Storage)
			}
			logger := obs.NewLogger(cfg.Env, cfg.LogLevel)
			client, err := mongodb.New(cmd.Context(), cfg.MongoURI, cfg.MongoDB)
			if err != nil {
				return err
			}
			defer client.Close(context.Background())
			if err := mongodb.EnsureIndexes(cmd.Context(), client.DB, cfg.IdempotencyTTL); err != nil {
				return err
			}
			logger.Info("indexes ensured", "database", cfg.MongoDB)
			return nil
		},
	}
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	app, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.close()

	if err := app.loadPropertyFixtures(ctx, cfg.PropertyFixtures); err != nil {
		logger.Warn("property fixtures load failed", "error", err, "path", cfg.PropertyFixtures)
	}

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger, Metrics: app.metrics}, app.health, app.handlers)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server starting", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		if err := app.worker.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("outbox worker: %w", err)
		}
		return nil
	})
	if app.consumer != nil {
		g.Go(func() error {
			if err := app.consumer.Run(gctx, app.consumerTopics); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("user events consumer: %w", err)
			}
			return nil
		})
	}

	err = g.Wait()
	logger.Info("staybook stopped")
	return err
}
