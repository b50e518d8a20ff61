package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hotelpms/server/internal/app"
	"github.com/hotelpms/server/internal/config"
	"github.com/hotelpms/server/internal/handlers"
	"github.com/hotelpms/server/internal/observability"
	"github.com/hotelpms/server/internal/repository"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize telemetry
	telemetry, err := observability.Initialize(context.Background(), observability.NewConfig(
		"hotelpms-conflicts",
		handlers.Version,
		cfg.Telemetry.Environment,
		cfg.Telemetry.Endpoint,
		cfg.Telemetry.Enabled,
	))
	if err != nil {
		log.Fatalf("Failed to initialize telemetry: %v", err)
	}

	// Initialize database
	if cfg.UsePostgres() {
		log.Println("Using PostgreSQL database")
	} else {
		log.Printf("Using SQLite database at %s", cfg.DatabasePath)
	}
	db, err := repository.Open(cfg.DatabaseURL, cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if err := db.Instrument(); err != nil {
		log.Printf("Warning: database instrumentation disabled: %v", err)
	}

	// Initialize services
	engine, err := app.New(cfg, db)
	if err != nil {
		log.Fatalf("Failed to initialize conflict engine: %v", err)
	}
	if err := engine.EnableMetrics(); err != nil {
		log.Printf("Warning: conflict metrics disabled: %v", err)
	}

	httpMetrics, err := observability.NewHTTPMetrics()
	if err != nil {
		log.Printf("Warning: HTTP metrics disabled: %v", err)
		httpMetrics = nil
	}

	go engine.Hub.Run()

	if cfg.Detection.Enabled && cfg.Detection.AutoStart {
		engine.Scheduler.Start()
	}

	// Create server
	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      engine.Router(httpMetrics),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // Longer for detection passes
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Conflict engine %s starting on %s", handlers.Version, cfg.ServerAddress)
		log.Printf("Detection: every %s, timezone %s, auto-resolve %t",
			cfg.Detection.Interval(), cfg.Detection.Timezone, cfg.Detection.AutoResolve)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	engine.Scheduler.Stop()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	engine.Hub.Shutdown()

	if err := telemetry.Shutdown(ctx); err != nil {
		log.Printf("Telemetry shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
