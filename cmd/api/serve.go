package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joshua-takyi/eventflow/internal/routes"
	"github.com/joshua-takyi/eventflow/internal/scheduler"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, completion scheduler and notification worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			logger.Info("Starting EventFlow API server", "environment", cfg.Environment)

			appContainer, cleanup, err := bootstrap(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			sched, err := scheduler.New(cfg.CompletionSchedule, appContainer.CompletionService, logger)
			if err != nil {
				return err
			}
			sched.Start()

			workerCtx, stopWorker := context.WithCancel(context.Background())
			var wg sync.WaitGroup
			if appContainer.Worker != nil {
				wg.Add(1)
				go func() {
					defer wg.Done()
					appContainer.Worker.Run(workerCtx)
				}()
			}

			server := &http.Server{
				Addr:         ":" + cfg.Port,
				Handler:      routes.SetupRoutes(appContainer),
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 15 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			serveErr := make(chan error, 1)
			go func() {
				logger.Info("Server starting", "port", cfg.Port)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
			}()

			// Wait for interrupt signal to gracefully shutdown the server
			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			select {
			case <-quit:
			case err = <-serveErr:
				logger.Error("Server failed to start", "error", err)
			}

			logger.Info("Server is shutting down...")
			ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()

			if shutdownErr := server.Shutdown(ctx); shutdownErr != nil {
				logger.Error("Server forced to shutdown", "error", shutdownErr)
			}
			sched.Stop(ctx)
			stopWorker()
			wg.Wait()
			appContainer.Tokens.Close()

			logger.Info("Server exited")
			return err
		},
	}
}
