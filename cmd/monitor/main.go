// Package main provides the entrypoint for the Pigeon monitoring daemon.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/pigeonline/pigeon/internal/backend"
	"github.com/pigeonline/pigeon/internal/database"
	"github.com/pigeonline/pigeon/internal/intervention"
	"github.com/pigeonline/pigeon/internal/monitor"
	"github.com/pigeonline/pigeon/internal/notify"
	"github.com/pigeonline/pigeon/internal/ops"
	"github.com/pigeonline/pigeon/internal/ops/handler"
	"github.com/pigeonline/pigeon/internal/ops/middleware"
	"github.com/pigeonline/pigeon/internal/personalization"
	"github.com/pigeonline/pigeon/internal/risk"
	"github.com/pigeonline/pigeon/internal/settings"
	"github.com/pigeonline/pigeon/internal/telemetry"
	"github.com/pigeonline/pigeon/internal/zone"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "pigeon-monitor"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting Pigeon monitor")

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8787"
	}

	// Initialize OpenTelemetry
	ctx := context.Background()
	telemetryCfg := telemetry.ConfigFromEnv(serviceName, Version)

	tp, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if telemetryCfg.Enabled {
		log.Info().
			Str("otlp_endpoint", telemetryCfg.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	// Storage: postgres when configured, in-memory otherwise. An in-memory
	// daemon monitors fine but forgets learned regret scores on restart.
	var (
		personalizationRepo personalization.Repository
		interventionRepo    intervention.Repository
		settingsRepo        settings.Repository
		dbPinger            handler.Pinger
	)
	if os.Getenv("PIGEON_STORAGE") == "postgres" {
		dbConfig := database.ConfigFromEnv()
		pool, err := database.Connect(ctx, dbConfig)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		log.Info().
			Str("host", dbConfig.Host).
			Int("port", dbConfig.Port).
			Str("database", dbConfig.Database).
			Msg("database connected")

		personalizationRepo = personalization.NewPostgresRepository(pool)
		interventionRepo = intervention.NewPostgresRepository(pool)
		settingsRepo = settings.NewPostgresRepository(pool)
		dbPinger = pool
	} else {
		personalizationRepo = personalization.NewInMemoryRepository()
		interventionRepo = intervention.NewInMemoryRepository()
		settingsRepo = settings.NewInMemoryRepository()
		log.Info().Msg("using in-memory storage")
	}

	// Backend client
	backendClient := backend.NewClient(backend.ClientConfig{
		BaseURL: os.Getenv("PIGEON_BACKEND_URL"),
	})
	log.Info().Msg("backend client initialized")

	settingsService := settings.NewService(settings.ServiceConfig{
		Repository: settingsRepo,
		Logger:     log,
		CacheTTL:   1 * time.Minute,
	})

	store := personalization.NewService(personalization.ServiceConfig{
		Repository: personalizationRepo,
		Logger:     log,
	})

	// Risk scoring: trained model first, heuristic when the model is down
	threshold := settingsService.NotificationThreshold(ctx)
	scorer := risk.WithFallback(
		risk.NewModelScorer(backendClient, threshold),
		risk.NewHeuristicScorer(threshold),
		log,
	)

	// Notifications go to the host platform webhook when configured
	var notifier notify.Notifier
	if webhookURL := os.Getenv("PIGEON_WEBHOOK_URL"); webhookURL != "" {
		notifier = notify.NewWebhookNotifier(webhookURL, 5*time.Second)
		log.Info().Str("url", webhookURL).Msg("webhook notifier initialized")
	} else {
		notifier = notify.NewLogNotifier(log)
		log.Warn().Msg("no webhook configured, notifications go to the log")
	}
	if !settingsService.NotificationsEnabled(ctx) {
		notifier = notify.NewLogNotifier(log)
		log.Info().Msg("notifications disabled by settings")
	}

	dispatcher := intervention.NewDispatcher(intervention.DispatcherConfig{
		Notifier:   notifier,
		Repository: interventionRepo,
		Logger:     log,
	})

	feedbackLoop := intervention.NewFeedbackLoop(intervention.FeedbackLoopConfig{
		Repository: interventionRepo,
		Store:      store,
		Submitter:  backendClient,
		Logger:     log,
	})

	registry := zone.NewRegistry(backendClient, log)

	// Host-platform bridges: positions and region entries arrive over the
	// ops API and are pushed into whichever monitor strategy is active.
	locationSource := monitor.NewChannelLocationSource()
	geofenceProvider := monitor.NewChannelGeofenceProvider()
	permissions := monitor.AllPermissionsGranted()

	var proximity monitor.ProximityMonitor
	mode := settingsService.PreferredMode(ctx)
	if mode == "polling" {
		proximity = monitor.NewPollingMonitor(monitor.PollingMonitorConfig{
			Source:      locationSource,
			Permissions: permissions,
			Registry:    registry,
			Logger:      log,
			Interval:    settingsService.PollInterval(ctx),
		})
	} else {
		proximity = monitor.NewGeofenceMonitor(monitor.GeofenceMonitorConfig{
			Provider:    geofenceProvider,
			Permissions: permissions,
			Registry:    registry,
			Logger:      log,
		})
	}
	log.Info().Str("mode", mode).Msg("proximity monitor initialized")

	budget := monitor.StaticBudget(0)
	if v := os.Getenv("PIGEON_BUDGET_UTILIZATION"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 1 {
			budget = monitor.StaticBudget(f)
		} else {
			log.Warn().Str("value", v).Msg("ignoring invalid PIGEON_BUDGET_UTILIZATION")
		}
	}

	session := monitor.NewSession(monitor.SessionConfig{
		Monitor:    proximity,
		Registry:   registry,
		Scorer:     scorer,
		Store:      store,
		Dispatcher: dispatcher,
		Budget:     budget,
		Logger:     log,
	})

	if settingsService.MonitoringEnabled(ctx) {
		if err := session.Start(ctx); err != nil {
			log.Error().Err(err).Msg("failed to start monitoring session")
		}
	} else {
		log.Info().Msg("monitoring disabled by settings")
	}
	defer session.Stop()

	router := ops.NewRouter(ops.RouterConfig{
		Version:   Version,
		BuildTime: BuildTime,
		Logger:    log,
		Metrics:   metrics,
		Session:   session,
		Registry:  registry,
		Settings:  settingsService,
		Feedback:  feedbackLoop,
		Positions: locationSource,
		Entries:   geofenceProvider,
		Checker:   backendClient,
		DB:        dbPinger,
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("ops server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("stopped")
}
