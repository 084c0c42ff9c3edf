package main

import (
	"context"

	"github.com/vyrodovalexey/fieldremap/internal/observability"
)

// run serves until ctx is canceled, then shuts down gracefully.
func run(ctx context.Context, app *application, logger observability.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- app.server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.Spec.Proxy.ShutdownTimeout.Duration())
	defer cancel()

	if err := app.server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to stop server gracefully", observability.Error(err))
	}
	serveErr := <-errCh

	if err := app.tracer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown tracer", observability.Error(err))
	}

	logger.Info("fieldremap stopped")
	return serveErr
}
