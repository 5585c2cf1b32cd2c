package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/liamwears/reelswipe/internal/config"
	"github.com/liamwears/reelswipe/internal/corpus"
	"github.com/liamwears/reelswipe/internal/database"
	"github.com/liamwears/reelswipe/internal/handlers"
	"github.com/liamwears/reelswipe/internal/middleware"
	"github.com/liamwears/reelswipe/internal/services"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	// Check for migrate command
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		runMigrations(os.Args[2:])
		return
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger, closeLog := newLogger(cfg.Log, log.LstdFlags|log.Lshortfile)
	defer closeLog()
	logger.Printf("Starting ReelSwipe server in %s mode", cfg.Server.Env)

	// Initialize database connection
	db, err := database.New(database.Config{
		URL: cfg.Database.URL,
	}, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize Redis connection
	redisClient, err := database.NewRedisClient(database.RedisConfig{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       0,
		TLS:      cfg.Redis.TLS,
	}, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	// Catalog responses are cached in Redis
	catalogCache := database.NewCatalogCache(redisClient.Client, cfg.Discovery.SearchCacheTTL, logger)

	// Title corpus, loaded once
	var loader *corpus.Loader
	if cfg.Discovery.CorpusPath != "" {
		loader = corpus.NewFileLoader(cfg.Discovery.CorpusPath, logger)
	} else {
		loader = corpus.NewEmbeddedLoader(logger)
	}
	titles := loader.Load()

	// Initialize services
	interactionService := services.NewInteractionService(db.Pool)
	tvdbService := services.NewTVDBService(services.TVDBConfig{
		APIKey:        cfg.TVDB.APIKey,
		PIN:           cfg.TVDB.PIN,
		BaseURL:       cfg.TVDB.BaseURL,
		RateLimit:     cfg.TVDB.RateLimit,
		LoginAttempts: cfg.TVDB.LoginAttempts,
	}, &http.Client{Timeout: 15 * time.Second}, catalogCache, logger)
	discoveryService := services.NewDiscoveryService(tvdbService, titles, services.DiscoveryConfig{
		PageSize: cfg.Discovery.PageSize,
		Seen:     interactionService,
	}, logger)

	// Log in before serving; requests log in again if this fails
	authCtx, authCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := tvdbService.Auth().Warm(authCtx); err != nil {
		logger.Printf("TVDB login failed, will retry on first request: %v", err)
	}
	authCancel()

	// Initialize rate limiter (100 req/min in production, 1000 in other
	// deployed environments, off in local/dev)
	maxRequests := 1000
	if cfg.IsProduction() {
		maxRequests = 100
	}
	rateLimiter := middleware.NewRateLimiter(redisClient.Client, maxRequests, time.Minute, !cfg.IsDevelopment(), logger)

	// Initialize handlers
	discoveryHandler := handlers.NewDiscoveryHandler(discoveryService, tvdbService, logger)
	interactionHandler := handlers.NewInteractionHandler(interactionService, logger)

	// Set up HTTP router
	mux := http.NewServeMux()
	discoveryHandler.Register(mux, rateLimiter.Limit)
	interactionHandler.Register(mux, rateLimiter.Limit)

	// Health check endpoint
	mux.Handle("GET /health", handlers.NewHealthHandler(map[string]database.HealthCheck{
		"database": db.Health,
		"redis":    redisClient.Health,
	}, titles.Len()))

	// Wrap with logging middleware
	handler := middleware.Logger(logger)(mux)

	// Create HTTP server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Printf("Server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Println("Server exited")
}

// runMigrations applies or rolls back database migrations
func runMigrations(args []string) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, closeLog := newLogger(cfg.Log, log.LstdFlags)
	defer closeLog()

	db, err := database.New(database.Config{
		URL: cfg.Database.URL,
	}, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	migrator := database.NewMigrator(db.Pool, logger)

	ctx := context.Background()
	if len(args) > 0 && args[0] == "down" {
		if err := migrator.Down(ctx); err != nil {
			logger.Fatalf("Failed to roll back migration: %v", err)
		}
		logger.Println("Rollback completed successfully")
		return
	}

	if err := migrator.Up(ctx); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}

	logger.Println("Migrations completed successfully")
}

// newLogger writes to stdout and, when a log file is configured, to a
// rotating file as well
func newLogger(cfg config.LogConfig, flags int) (*log.Logger, func()) {
	if cfg.File == "" {
		return log.New(os.Stdout, "[reelswipe] ", flags), func() {}
	}

	file := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
	logger := log.New(io.MultiWriter(os.Stdout, file), "[reelswipe] ", flags)
	return logger, func() { file.Close() }
}
