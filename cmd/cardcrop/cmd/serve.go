package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/MeKo-Tech/cardcrop/internal/server"
	"github.com/spf13/cobra"
)

// newServeCmd builds the command that runs the HTTP API.
func (a *app) newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server for the crop API",
		Long: `Start an HTTP server that crops uploaded images.

The server provides the following endpoints:
  POST /crop        - Crop an uploaded image (json, png or overlay)
  POST /crop/batch  - Crop up to ten base64 images
  POST /crop/pdf    - Crop the pages of an uploaded PDF
  GET  /ws          - Crop over WebSocket with stage progress
  GET  /health      - Health check endpoint
  GET  /version     - Build information
  GET  /metrics     - Prometheus metrics

Examples:
  cardcrop serve
  cardcrop serve --port 8080
  cardcrop serve --host 0.0.0.0 --rate-limit-enabled`,
		Args: cobra.NoArgs,
		RunE: a.runServe,
	}

	f := cmd.Flags()
	f.StringP("host", "H", "localhost", "server host")
	f.IntP("port", "p", 8080, "server port")
	f.String("cors-origin", "*", "CORS allowed origins")
	f.Int64("max-upload-mb", 50, "maximum upload size in MB")
	f.Int("timeout", 30, "request timeout in seconds")
	f.Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	f.Bool("overlay-enable", true, "enable overlay image responses")
	f.Bool("multi", false, "crop every card in an image instead of the best one")
	f.Bool("rate-limit-enabled", false, "enable rate limiting")
	f.Int("requests-per-minute", 60, "maximum requests per minute per client")
	f.Int("requests-per-hour", 1000, "maximum requests per hour per client")
	f.Int("max-requests-per-day", 5000, "maximum requests per day per client")
	f.Int64("max-data-per-day-mb", 1024, "maximum upload volume per day per client in MB")
	a.bind(cmd, map[string]string{
		"host":                 "server.host",
		"port":                 "server.port",
		"cors-origin":          "server.cors_origin",
		"max-upload-mb":        "server.max_upload_mb",
		"timeout":              "server.timeout_sec",
		"shutdown-timeout":     "server.shutdown_timeout",
		"overlay-enable":       "server.overlay_enabled",
		"multi":                "pipeline.multi_card",
		"rate-limit-enabled":   "server.rate_limit.enabled",
		"requests-per-minute":  "server.rate_limit.requests_per_minute",
		"requests-per-hour":    "server.rate_limit.requests_per_hour",
		"max-requests-per-day": "server.rate_limit.max_requests_per_day",
		"max-data-per-day-mb":  "server.rate_limit.max_data_per_day_mb",
	})
	return cmd
}

func (a *app) runServe(cmd *cobra.Command, _ []string) error {
	pl, _, err := a.newPipeline()
	if err != nil {
		return fmt.Errorf("failed to build card pipeline: %w", err)
	}

	sc := a.cfg.ToServerConfig()
	srv := server.NewServer(sc, pl)

	mux := http.NewServeMux()
	srv.SetupRoutes(mux)

	timeout := time.Duration(sc.TimeoutSec) * time.Second
	httpServer := &http.Server{
		Addr:              net.JoinHostPort(sc.Host, strconv.Itoa(sc.Port)),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       timeout,
		WriteTimeout:      timeout + 5*time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("Starting cardcrop server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("Received shutdown signal")
	case err, ok := <-serveErr:
		if ok {
			slog.Error("Server error", "error", err)
			runErr = err
		}
	}

	shutdownTimeout := time.Duration(a.cfg.Server.ShutdownTimeout) * time.Second
	slog.Info("Starting graceful shutdown", "timeout", shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}
	// Close stops the rate limiter and closes the pipeline.
	if err := srv.Close(); err != nil {
		slog.Error("Server cleanup error", "error", err)
	}
	slog.Info("Graceful shutdown completed")
	return runErr
}
