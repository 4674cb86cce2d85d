// Package main is the entry point for the market calendar service.
// It serves trading schedules, holidays and live open/closed status for the
// exchanges defined in the embedded calendar files, plus any calendars
// supplied through CALENDARS_FILE.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/aristath/marketcal/internal/config"
	"github.com/aristath/marketcal/internal/metrics"
	"github.com/aristath/marketcal/internal/modules/exchanges"
	"github.com/aristath/marketcal/internal/scheduler"
	"github.com/aristath/marketcal/internal/server"
	"github.com/aristath/marketcal/pkg/embedded"
	"github.com/aristath/marketcal/pkg/logger"
)

// main orchestrates startup:
// 1. Loads configuration from environment variables (.env file)
// 2. Initializes logging
// 3. Loads the embedded calendars, then CALENDARS_FILE on top
// 4. Registers Prometheus collectors
// 5. Starts the session monitor job
// 6. Starts the HTTP server
// 7. Waits for a shutdown signal and shuts down gracefully
func main() {
	// Load configuration first to get log level
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Pretty console output in development, JSON lines otherwise
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting market calendar service")

	// Calendars: built-in definitions first, so a local file can override them by code
	registry := exchanges.NewRegistry()
	if err := registry.LoadFS(embedded.Calendars(), embedded.CalendarPattern); err != nil {
		log.Fatal().Err(err).Msg("Failed to load embedded calendars")
	}
	if cfg.CalendarsFile != "" {
		if err := registry.LoadFile(cfg.CalendarsFile); err != nil {
			log.Fatal().Err(err).Str("file", cfg.CalendarsFile).Msg("Failed to load calendars file")
		}
	}
	log.Info().Int("calendars", registry.Len()).Strs("codes", registry.Codes()).Msg("Calendars loaded")

	if _, err := registry.Get(cfg.DefaultExchange); err != nil {
		log.Fatal().Err(err).Msg("DEFAULT_EXCHANGE is not a loaded calendar")
	}

	// Metrics
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics.Init(promRegistry)

	service := exchanges.NewService(registry, cfg.StatusLookaheadDays, log)

	// Background jobs
	sched := scheduler.New(log)
	if cfg.Monitor.Enabled {
		monitor := scheduler.NewSessionMonitorJob(scheduler.SessionMonitorConfig{
			Log:      log,
			Sessions: service,
		})
		if err := sched.AddJob(cfg.Monitor.Schedule, monitor); err != nil {
			log.Fatal().Err(err).Msg("Failed to register session monitor")
		}
		// Seed the gauges so /metrics is populated before the first tick
		if err := sched.RunNow(monitor); err != nil {
			log.Warn().Err(err).Msg("Initial session check failed")
		}
	}
	sched.Start()

	srv := server.New(server.Config{
		Log:             log,
		Port:            cfg.Port,
		DevMode:         cfg.DevMode,
		Service:         service,
		DefaultExchange: cfg.DefaultExchange,
		Gatherer:        promRegistry,
	})

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Stop scheduling new runs; waits for a running monitor pass to finish
	sched.Stop()

	// Graceful shutdown, up to 10 seconds for in-flight requests
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
