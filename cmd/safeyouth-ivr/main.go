package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/safeyouth/ivr/internal/api"
	"github.com/safeyouth/ivr/internal/config"
	"github.com/safeyouth/ivr/internal/ivr"
	"github.com/safeyouth/ivr/internal/metrics"
	"github.com/safeyouth/ivr/internal/tts"
	"github.com/safeyouth/ivr/internal/tts/google"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(cfg.SlogHandler(os.Stdout))
	slog.SetDefault(logger)

	slog.Info("starting safeyouth ivr",
		"http_port", cfg.HTTPPort,
		"menu_source", cfg.MenuSource,
		"menu_language", cfg.MenuLanguage,
		"signature_validation", cfg.SignatureValidationEnabled(),
	)

	// A menu that fails validation refuses startup.
	m, err := loadMenu(context.Background(), cfg)
	if err != nil {
		slog.Error("failed to load menu", "error", err)
		os.Exit(1)
	}

	ctrl, err := ivr.New(m, ivr.Options{
		OperatorNumber:      cfg.OperatorNumber,
		OperatorDialTimeout: cfg.OperatorDialTimeout,
	}, logger)
	if err != nil {
		slog.Error("invalid menu", "error", err)
		os.Exit(1)
	}
	slog.Info("menu loaded", "language", m.Language, "options", len(m.Options))

	provider, err := google.New(google.Config{Host: cfg.TTSHost, Slow: cfg.TTSSlow})
	if err != nil {
		slog.Error("failed to create tts provider", "error", err)
		os.Exit(1)
	}
	ttsCfg := tts.DefaultConfig()
	ttsCfg.DefaultLanguage = cfg.TTSDefaultLang
	ttsCfg.FallbackLanguage = cfg.TTSFallbackLang
	bridge := tts.NewBridge(provider, ttsCfg, logger)

	collector := metrics.NewCollector(ctrl, time.Now())
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collector,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	handler := api.NewServer(cfg, api.Deps{
		IVR:      ctrl,
		TTS:      bridge,
		Metrics:  collector,
		Gatherer: reg,
		Logger:   logger,
	})
	defer handler.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt or server error.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		slog.Error("http server error", "error", err)
	}

	// Graceful shutdown with timeout.
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("http server shutdown error", "error", err)
		os.Exit(1)
	}

	slog.Info("safeyouth ivr stopped")
}
