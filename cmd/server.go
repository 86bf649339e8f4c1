package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"seat-reservation/internal/usecase"
	"seat-reservation/pkg/utils"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// APIServer serves HTTP and runs the expiry sweeper until ctx is done,
// then drains in-flight requests within the shutdown timeout.
func APIServer(ctx context.Context, route http.Handler, sweeper *usecase.Sweeper, cfg utils.AppConfig, log *zap.Logger) error {
	addr := fmt.Sprintf(":%s", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           route,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("Server running", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := sweeper.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		sweeper.Stop()
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		timeout := cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		log.Info("Shutting down HTTP server", zap.Duration("timeout", timeout))
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	})

	return g.Wait()
}
