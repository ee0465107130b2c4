package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"

	"github.com/integrity-spine/spine/internal/api/routes"
	"github.com/integrity-spine/spine/internal/infrastructure/config"
	"github.com/integrity-spine/spine/internal/infrastructure/di"
	"github.com/integrity-spine/spine/internal/infrastructure/storage"
	"github.com/integrity-spine/spine/pkg/logger"
	"github.com/integrity-spine/spine/pkg/metrics"
	"github.com/integrity-spine/spine/pkg/tracing"
)

// Application wires configuration, the DI container, the HTTP server, and
// the background sweepers into one process lifecycle.
type Application struct {
	cfg       *config.Config
	log       *logger.Logger
	server    *http.Server
	container *di.Container

	sweepers *cron.Cron

	tracingShutdown func(context.Context) error
}

// NewApplication creates a new application instance
func NewApplication() *Application {
	return &Application{}
}

// Initialize initializes the application
func (app *Application) Initialize() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	app.cfg = cfg

	log := logger.New(cfg.LogLevel, cfg.Environment)
	app.log = log

	if err := storage.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := app.initializeTracing(); err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}

	container, err := di.NewContainer(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create DI container: %w", err)
	}
	app.container = container

	app.initializeSweepers()

	if err := app.initializeServer(); err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	return nil
}

// initializeTracing initializes OpenTelemetry tracing
func (app *Application) initializeTracing() error {
	tracingConfig := tracing.Config{
		Enabled:      app.cfg.Environment != "test",
		CollectorURL: getEnvOrDefault("OTEL_COLLECTOR_URL", "localhost:4317"),
		Environment:  app.cfg.Environment,
		SampleRate:   getSampleRate(app.cfg.Environment),
	}

	tracingShutdown, err := tracing.InitTracer(context.Background(), tracingConfig, app.log.Zap())
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}

	app.tracingShutdown = tracingShutdown
	app.log.Info("OpenTelemetry tracing initialized", "collector_url", tracingConfig.CollectorURL)
	return nil
}

// initializeSweepers schedules the three background cron jobs named in
// the Sweeper config: the Escalation Queue SLA gauge refresh, the
// MutationLog TTL sweep, and the verifier cache janitor.
func (app *Application) initializeSweepers() {
	c := cron.New()

	sweeperLog := app.log

	if _, err := c.AddFunc(app.cfg.Sweeper.EscalationSLASchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		entries, err := app.container.Escalation.List(ctx)
		if err != nil {
			sweeperLog.Warn("escalation sla sweep failed", "error", err)
			return
		}
		metrics.EscalationsOpen.Set(float64(len(entries)))
	}); err != nil {
		sweeperLog.Warn("failed to schedule escalation sla sweep", "error", err)
	}

	if _, err := c.AddFunc(app.cfg.Sweeper.MutationLogSweepCron, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		horizon := time.Now().UTC().Add(-app.cfg.Sweeper.MutationLogTTL)
		n, err := app.container.Idempotency.SweepExpired(ctx, horizon, 500)
		if err != nil {
			sweeperLog.Warn("mutation log sweep failed", "error", err)
			return
		}
		if n > 0 {
			sweeperLog.Info("mutation log sweep completed", "rows_deleted", n)
		}
	}); err != nil {
		sweeperLog.Warn("failed to schedule mutation log sweep", "error", err)
	}

	if _, err := c.AddFunc(app.cfg.Sweeper.CacheJanitorCron, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		n, err := app.container.VerifierCacheRepo.DeleteExpired(ctx, time.Now().UTC())
		if err != nil {
			sweeperLog.Warn("verifier cache janitor failed", "error", err)
			return
		}
		if n > 0 {
			sweeperLog.Info("verifier cache janitor completed", "rows_deleted", n)
		}
	}); err != nil {
		sweeperLog.Warn("failed to schedule verifier cache janitor", "error", err)
	}

	c.Start()
	app.sweepers = c
	app.log.Info("background sweepers started",
		"escalation_sla_schedule", app.cfg.Sweeper.EscalationSLASchedule,
		"mutation_log_sweep_cron", app.cfg.Sweeper.MutationLogSweepCron,
		"cache_janitor_cron", app.cfg.Sweeper.CacheJanitorCron,
	)
}

// initializeServer initializes the HTTP server
func (app *Application) initializeServer() error {
	if app.cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := routes.SetupRoutes(app.container)

	app.server = &http.Server{
		Addr:           fmt.Sprintf(":%d", app.cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    time.Duration(app.cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(app.cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	return nil
}

// Start starts the application
func (app *Application) Start() error {
	go func() {
		app.log.Info("Starting server",
			"port", app.cfg.Server.Port,
			"environment", app.cfg.Environment,
			"read_timeout", app.cfg.Server.ReadTimeout,
			"write_timeout", app.cfg.Server.WriteTimeout,
		)

		if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.log.Fatal("Failed to start server", "error", err)
		}
	}()

	go app.startMetricsCollection()

	return nil
}

// startMetricsCollection samples the storage adapter's connection pool
// periodically.
func (app *Application) startMetricsCollection() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		stats := app.container.Storage.Stats()
		metrics.DatabaseConnectionsGauge.WithLabelValues("open").Set(float64(stats.OpenConnections))
		metrics.DatabaseConnectionsGauge.WithLabelValues("idle").Set(float64(stats.Idle))
		metrics.DatabaseConnectionsGauge.WithLabelValues("in_use").Set(float64(stats.InUse))
	}
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.log.Info("Shutting down server...")

	if app.sweepers != nil {
		app.log.Info("Stopping background sweepers...")
		stopCtx := app.sweepers.Stop()
		<-stopCtx.Done()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.log.Fatal("Server forced to shutdown", "error", err)
	}

	if app.container != nil {
		if err := app.container.Close(); err != nil {
			app.log.Warn("Error closing DI container", "error", err)
		}
	}

	if app.tracingShutdown != nil {
		app.tracingShutdown(context.Background())
	}

	app.log.Info("Server exited gracefully")
	return nil
}

// WaitForShutdown waits for interrupt signal
func (app *Application) WaitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
}

// getEnvOrDefault returns environment variable value or default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getSampleRate returns appropriate sampling rate based on environment
func getSampleRate(env string) float64 {
	switch env {
	case "production":
		return 0.1 // 10% sampling in production
	case "staging":
		return 0.5 // 50% sampling in staging
	default:
		return 1.0 // 100% sampling in development/test
	}
}
