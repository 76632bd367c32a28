package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/valkyrieosint/valkyrie-backend/internal/analysis"
	"github.com/valkyrieosint/valkyrie-backend/internal/api/middleware"
	"github.com/valkyrieosint/valkyrie-backend/internal/api/rest"
	"github.com/valkyrieosint/valkyrie-backend/internal/api/websocket"
	"github.com/valkyrieosint/valkyrie-backend/internal/config"
	"github.com/valkyrieosint/valkyrie-backend/internal/osint"
	"github.com/valkyrieosint/valkyrie-backend/internal/pkg/logger"
	"github.com/valkyrieosint/valkyrie-backend/internal/pkg/tracing"
	"github.com/valkyrieosint/valkyrie-backend/internal/repository"
	"github.com/valkyrieosint/valkyrie-backend/internal/service"
	"github.com/valkyrieosint/valkyrie-backend/internal/tools"
	"github.com/valkyrieosint/valkyrie-backend/migrations"
)

func main() {
	log.Println("🚀 Valkyrie OSINT backend starting...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}
	slogger := logger.StdLogger(cfg.LogLevel)

	log.Printf("📋 Configuration loaded: port=%d, db=%s, model=%s", cfg.Port, cfg.DatabasePath, cfg.OllamaModel)

	// Tracing (no-op when no endpoint is configured)
	shutdownTracing, err := tracing.Init("valkyrie-backend", cfg.OTLPEndpoint, 1.0)
	if err != nil {
		log.Printf("⚠️  Tracing init failed: %v", err)
	} else {
		defer shutdownTracing()
	}

	// Initialize database
	log.Println("💾 Initializing database...")
	repo, err := repository.NewSQLiteRepository(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("❌ Failed to initialize database: %v", err)
	}
	defer repo.Close()

	migrationSQL, err := migrations.FS.ReadFile("001_initial_schema.sql")
	if err != nil {
		log.Fatalf("❌ Could not read embedded migration: %v", err)
	}
	if err := repo.RunMigrations(string(migrationSQL)); err != nil {
		log.Fatalf("❌ Failed to run migrations: %v", err)
	}
	log.Println("✅ Database migrations completed")

	repos := &repository.Repository{
		User:    repo,
		Project: repo,
		Entity:  repo,
		Finding: repo,
		Pattern: repo,
		Stats:   repo,
	}

	// WebSocket hub for run progress streaming
	wsHub := websocket.NewHub(ctx)
	go wsHub.Run()

	// OSINT pipeline
	registry := tools.NewRegistry(cfg)
	dispatcher := osint.NewDispatcher(registry, slogger, time.Duration(cfg.ToolTimeoutSec)*time.Second, cfg.ToolsConcurrent)
	crossRef := osint.NewCrossRefDetector(repos.Entity, slogger)
	runner := osint.NewRunner(repos, dispatcher, crossRef, wsHub, slogger)

	// Analysis engine
	llm := analysis.NewOllamaClient(cfg.OllamaBaseURL, cfg.OllamaModel, time.Duration(cfg.OllamaTimeoutSec)*time.Second)
	engine := analysis.NewEngine(repos, llm, analysis.GenerationParams{
		Temperature: cfg.OllamaTemperature,
		MaxTokens:   cfg.OllamaMaxTokens,
		NumCtx:      8192,
	}, slogger)

	// Services
	projectService := service.NewProjectService(repos)
	statsService := service.NewStatsService(repos.Stats, slogger)

	log.Println("✅ Services initialized")

	// Setup HTTP router
	router := mux.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.StructuredLog)
	router.Use(middleware.Auth(cfg))

	handler := rest.NewHandler(cfg, repos, projectService, statsService, runner, engine, slogger)
	rest.SetupRoutes(router, handler, middleware.RateLimit(cfg.RunRateLimitPerMin))

	// WebSocket routes
	wsHandler := websocket.NewHandler(ctx, wsHub, slogger)
	router.HandleFunc("/ws/runs", wsHandler.ServeWS).Methods("GET")

	// Setup CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	handlerWithCORS := c.Handler(router)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handlerWithCORS,
		ReadTimeout: time.Duration(cfg.RequestTimeoutSec) * time.Second,
		// No write timeout: run and analyze hold the connection while tools
		// and the inference backend work, which can take minutes.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("🌐 Server listening on port %d", cfg.Port)
		log.Printf("📡 API available at http://localhost:%d/api/v1", cfg.Port)
		log.Printf("🔌 Run progress at ws://localhost:%d/ws/runs", cfg.Port)
		log.Printf("❤️  Health check at http://localhost:%d/health", cfg.Port)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")

	wsHub.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeoutSec)*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️  Server forced to shutdown: %v", err)
	}

	log.Println("✅ Server exited gracefully")
}
