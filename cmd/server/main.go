package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"

	"github.com/salestrack/oppsmon/internal/config"
	"github.com/salestrack/oppsmon/internal/db"
	"github.com/salestrack/oppsmon/internal/domain"
	"github.com/salestrack/oppsmon/internal/merge"
	"github.com/salestrack/oppsmon/internal/middleware"
	"github.com/salestrack/oppsmon/internal/repository"
	"github.com/salestrack/oppsmon/internal/snapshot"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Setup database connection
	conn, err := db.NewConnection(ctx, cfg.DB)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()

	// Run migrations
	if err := db.RunMigrations(cfg.DB); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Create repositories
	oppRepo := repository.NewOpportunityRepository(conn)
	revisionRepo := repository.NewRevisionRepository(conn.Pool)
	snapshotRepo := repository.NewSnapshotRepository(conn.Pool)
	importLogRepo := repository.NewImportLogRepository(conn.Pool)

	// Create services
	mergeService := merge.NewService(oppRepo, importLogRepo)
	aggregator := snapshot.NewAggregator(oppRepo, snapshotRepo)
	calculator := snapshot.NewCalculator(aggregator, snapshotRepo)

	// Setup the snapshot scheduler
	var scheduler *snapshot.Scheduler
	if cfg.Scheduler.Enabled {
		scheduler, err = snapshot.NewScheduler(aggregator, cfg.Scheduler.Timezone)
		if err != nil {
			log.Fatalf("Failed to create scheduler: %v", err)
		}
		if err := scheduler.Register(domain.SnapshotWeekly, cfg.Scheduler.WeeklySpec); err != nil {
			log.Fatalf("Failed to register weekly snapshots: %v", err)
		}
		if err := scheduler.Register(domain.SnapshotMonthly, cfg.Scheduler.MonthlySpec); err != nil {
			log.Fatalf("Failed to register monthly snapshots: %v", err)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	// Mount routes
	mux := http.NewServeMux()
	merge.NewHTTPHandler(mergeService, oppRepo, revisionRepo, importLogRepo).Register(mux)
	snapshot.NewHTTPHandler(aggregator, calculator, scheduler, snapshotRepo).Register(mux)

	// Setup CORS
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      corsHandler.Handler(middleware.LoggingMiddleware(mux)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting opportunity server on %s", cfg.Server.Addr)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
