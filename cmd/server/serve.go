package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/warp/schedule-engine/api"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Port          int
	Retry         bool
	RetryInterval time.Duration
}

func newServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API.

On SIGINT/SIGTERM the server stops accepting connections, waits up to 30s
for active requests, stops the retry sweep and closes the database.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), opts)
		},
	}

	cmd.Flags().IntVar(&opts.Port, "port", 8080, "HTTP server port")
	cmd.Flags().BoolVar(&opts.Retry, "retry", false, "retry failed apply runs in the background")
	cmd.Flags().DurationVar(&opts.RetryInterval, "retry-interval", time.Minute, "how often the retry sweep runs")

	return cmd
}

func serve(ctx context.Context, opts *ServeOptions) error {
	handler, closeStore, err := opts.openHandler()
	if err != nil {
		return err
	}
	defer closeStore()
	log := opts.log

	if opts.Retry {
		scheduler := api.NewRetryScheduler(handler)
		scheduler.CheckInterval = opts.RetryInterval
		scheduler.Start()
		defer scheduler.Stop()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.Port),
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Infof("Server starting on http://localhost:%d", opts.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
		close(errc)
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errc:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
