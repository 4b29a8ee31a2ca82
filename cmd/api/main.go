package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joshua-takyi/eventflow/internal/config"
	"github.com/joshua-takyi/eventflow/internal/connect"
	"github.com/joshua-takyi/eventflow/internal/container"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "eventflow",
		Short:         "Campus event requests and venue booking approvals",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newImportVenuesCmd(),
		newImportAvailabilityCmd(),
		newSweepCmd(),
	)
	return cmd
}

func setupLogger(cfg *config.Config) *slog.Logger {
	var handler slog.Handler

	if cfg.IsProduction() {
		// JSON logging for production
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: cfg.SlogLevel(),
		})
	} else {
		// Human-readable logging for development
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}

	return slog.New(handler).With("service", "eventflow")
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return nil, nil, err
	}
	return cfg, setupLogger(cfg), nil
}

// bootstrap opens every backing connection and wires the container. The
// returned cleanup closes them in reverse order.
func bootstrap(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*container.Container, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(what string, err error) (*container.Container, func(), error) {
		cleanup()
		logger.Error("Failed to connect", "backend", what, "error", err)
		return nil, nil, fmt.Errorf("%s: %w", what, err)
	}

	pool, err := connect.PostgresConnect(ctx, cfg)
	if err != nil {
		return fail("postgres", err)
	}
	closers = append(closers, pool.Close)
	logger.Info("Connected to Postgres successfully")

	supa, supaService, err := connect.InitSupabase(cfg)
	if err != nil {
		return fail("supabase", err)
	}
	logger.Info("Connected to Supabase successfully", "service_role", supaService != nil)

	mongoClient, err := connect.MongoDBConnect(ctx, cfg)
	if err != nil {
		return fail("mongodb", err)
	}
	closers = append(closers, func() {
		if err := connect.MongoDBDisconnect(mongoClient); err != nil {
			logger.Error("Error disconnecting from MongoDB", "error", err)
		}
	})
	logger.Info("Connected to MongoDB successfully")

	redisClient, err := connect.RedisConnect(ctx, cfg)
	if err != nil {
		return fail("redis", err)
	}
	if redisClient != nil {
		closers = append(closers, func() { _ = redisClient.Close() })
		logger.Info("Connected to Redis successfully")
	} else {
		logger.Warn("REDIS_URL not set, notifications are delivered inline")
	}

	cld, err := connect.CloudinaryCredentials(cfg)
	if err != nil {
		return fail("cloudinary", err)
	}
	if cld == nil {
		logger.Warn("Cloudinary not configured, document uploads are disabled")
	}

	c := container.NewContainer(cfg, logger, container.Clients{
		Postgres:        pool,
		Supabase:        supa,
		SupabaseService: supaService,
		MongoDB:         mongoClient,
		Redis:           redisClient,
		Cloudinary:      cld,
	})
	if c.Inline != nil {
		// runs before the Mongo disconnect
		closers = append(closers, c.Inline.Wait)
	}
	if err := c.Mongo.EnsureIndexes(ctx); err != nil {
		logger.Warn("Failed to ensure MongoDB indexes", "error", err)
	}
	return c, cleanup, nil
}
