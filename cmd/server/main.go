package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"ipanalyzer/internal/app"
	"ipanalyzer/internal/config"
	"ipanalyzer/internal/handler"
	"ipanalyzer/internal/logging"
	"ipanalyzer/internal/middleware"
	"ipanalyzer/internal/router"
)

const shutdownTimeout = 30 * time.Second

// multipartOverhead covers form boundaries and the small text fields sent
// next to an uploaded file.
const multipartOverhead = 1 << 20

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := logging.New(cfg.Log)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := cfg.Validate(); err != nil {
		// The server still starts so /readyz can report the problem.
		log.Warn().Err(err).Msg("server: credentials incomplete")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}

	// Initialize handlers
	analysisH := handler.NewAnalysisHandler(a.Analysis, a.Delivery, a.Reader, maxBodyBytes(cfg), cfg.Report.Formats,
		log.With().Str("component", "handler").Logger())
	checks := []handler.ReadinessCheck{{
		Name:  "credentials",
		Check: func(context.Context) error { return cfg.Validate() },
	}}
	if a.Publisher != nil {
		checks = append(checks, handler.ReadinessCheck{Name: "report-store", Check: a.Publisher.Check})
	}
	healthH := handler.NewHealthHandler(checks...)

	// Setup router
	r := router.Setup(log, a.Metrics, middleware.NewTokenValidator(cfg.Auth), cfg.Server.AllowedOrigins, analysisH, healthH)

	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           r,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}
	return serve(ctx, srv, log)
}

// maxBodyBytes is the larger of the file size limit and the text limit
// (four bytes per character at most), plus multipart overhead.
func maxBodyBytes(cfg *config.Config) int64 {
	limit := cfg.Run.MaxFileSizeMB << 20
	if text := int64(cfg.Extractor.MaxInputChars) * 4; text > limit {
		limit = text
	}
	return limit + multipartOverhead
}

func serve(ctx context.Context, srv *http.Server, log zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", config.ApplicationVersion).Msg("server: listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("server: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
