// Command main is the entry point for the Guildhall backend server.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"guildhall/internal/bootstrap"
	"guildhall/internal/config"
	"guildhall/internal/featureflags"
	"guildhall/internal/middleware"
	"guildhall/internal/observability"
	"guildhall/internal/reminders"
	"guildhall/internal/server"
)

// @title Guildhall API
// @version 1.0
// @description Member network API: client referrals, vetting applications and member notifications.
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email support@guildhall.dev

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8375
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the session JWT.

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// APP_ENV may come from .env, which the package init does not see.
	middleware.Logger = middleware.NewLogger(cfg.Env, os.Getenv("LOG_LEVEL"))

	shutdownTracing, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:    "guildhall-api",
		ServiceVersion: "1.0",
		Environment:    cfg.Env,
		Enabled:        cfg.TracingEnabled,
		Exporter:       cfg.TracingExporter,
		OTLPEndpoint:   cfg.TracingOTLPEndpoint,
		SamplerRatio:   cfg.TracingSamplerRatio,
	})
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	db, rdb, err := bootstrap.InitRuntime(cfg, bootstrap.Options{})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}

	// Create server with dependency injection
	srv, err := server.NewServerWithDeps(cfg, db, rdb)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	scheduler := startReminderScheduler(cfg, srv.Reminders())

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		middleware.Logger.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if scheduler != nil {
			scheduler.Stop(ctx)
		}
		if err := srv.Shutdown(ctx); err != nil {
			middleware.Logger.Error("server resource shutdown error", slog.String("error", err.Error()))
		}
		if err := shutdownTracing(ctx); err != nil {
			middleware.Logger.Error("tracing shutdown error", slog.String("error", err.Error()))
		}
	}()

	if err := srv.Start(); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}

// startReminderScheduler runs reminder passes in-process when REMINDER_SCHEDULE
// is set or the reminder_cron flag is on. Otherwise passes come from the cron route.
func startReminderScheduler(cfg *config.Config, runner *reminders.Runner) *reminders.Scheduler {
	spec := cfg.ReminderSchedule
	if spec == "" {
		if !featureflags.NewManager(cfg.FeatureFlags).Global(featureflags.ReminderCron) {
			return nil
		}
		spec = reminders.DefaultSchedule
	}

	scheduler, err := reminders.NewScheduler(spec, runner)
	if err != nil {
		log.Fatalf("Invalid REMINDER_SCHEDULE %q: %v", spec, err)
	}
	scheduler.Start()
	return scheduler
}
