package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/tripmesh/internal/api"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP, SSE and WebSocket chat API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mesh, cleanup, err := buildMesh(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := cleanup.Close(); err != nil {
			logger.Error("release resources failed", "error", err)
		}
	}()

	mesh.Start(ctx)

	server := api.New(mesh, func(o *api.Options) {
		o.AllowedOrigins = cfg.AllowedOrigins
		o.Artifacts = mesh.Artifacts()
		o.Logger = logger
	})

	// SSE streams stay open for the whole turn, so there is no write timeout.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr, "provider", cfg.Model.Provider, "store", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown requested")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}

	if err := mesh.Close(shutdownCtx); err != nil {
		logger.Warn("pending deliveries abandoned", "error", err)
	}

	logger.Info("server stopped", "delivered", mesh.DeliveryStats().Delivered, "failed", mesh.DeliveryStats().Failed)

	return nil
}
