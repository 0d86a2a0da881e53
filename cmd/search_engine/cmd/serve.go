package cmd

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

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/gcbaptista/go-searcher/api"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(rt *app) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP search server",
		Long: `Start the HTTP search server over the data directory.

On SIGINT or SIGTERM the server stops accepting requests, drains the ones in
flight, waits for running jobs to stop and persists every index.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if port != 0 {
				rt.cfg.Server.Port = port
			}
			return runServe(cmd.Context(), rt)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (overrides the configuration)")
	return cmd
}

func runServe(ctx context.Context, rt *app) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	gin.SetMode(gin.ReleaseMode)
	eng := rt.openEngine()
	router := api.NewRouter(eng, rt.cfg.Server,
		api.WithSearchConfig(rt.cfg.Search),
		api.WithLogger(rt.logger))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", rt.cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		rt.logger.Info("server_started",
			slog.String("addr", srv.Addr),
			slog.String("data_dir", rt.cfg.DataDir),
			slog.Int("indexes", len(eng.ListIndexes())))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		rt.logger.Info("server_stopping")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		rt.logger.Error("server_shutdown_failed", slog.String("error", err.Error()))
	}
	if err := eng.Close(); err != nil {
		rt.logger.Error("engine_close_failed", slog.String("error", err.Error()))
		if serveErr == nil {
			serveErr = err
		}
	}
	rt.logger.Info("server_stopped")

	if serveErr != nil {
		return fmt.Errorf("server failed: %w", serveErr)
	}
	return nil
}
