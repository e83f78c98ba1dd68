package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sheet-tracker/backend/internal/data"
	"github.com/sheet-tracker/backend/internal/domain"
	"github.com/sheet-tracker/backend/internal/handler"
	"github.com/sheet-tracker/backend/internal/infrastructure"
	"github.com/sheet-tracker/backend/internal/middleware"
	"github.com/sheet-tracker/backend/internal/repository"
	"github.com/sheet-tracker/backend/internal/repository/memory"
	"github.com/sheet-tracker/backend/internal/service"
)

func main() {
	// Load configuration
	config := infrastructure.LoadConfig()

	// Initialize logger
	logger, err := infrastructure.NewLogger(&config.Log)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer infrastructure.SyncLogger(logger)

	logger.Info("Starting Sheet Tracker API",
		zap.String("environment", config.Server.Environment),
		zap.Int("port", config.Server.Port),
		zap.String("db_driver", config.Database.Driver),
	)

	// Initialize context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize telemetry
	telemetry, err := infrastructure.NewTelemetry(ctx, &config.Telemetry, logger)
	if err != nil {
		logger.Error("Failed to initialize telemetry", zap.Error(err))
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = telemetry.Shutdown(shutdownCtx)
	}()

	// Create metrics
	metrics, err := telemetry.CreateMetrics()
	if err != nil {
		logger.Error("Failed to create metrics", zap.Error(err))
		os.Exit(1)
	}

	// Initialize storage
	store, healthCheck, closeStore, err := openStore(&config.Database, logger)
	if err != nil {
		logger.Error("Failed to open storage", zap.Error(err))
		os.Exit(1)
	}
	defer closeStore()

	// Seed catalog
	seeder := data.NewSeeder(store, logger)
	if err := seeder.SeedCatalog(ctx); err != nil {
		logger.Error("Failed to seed catalog", zap.Error(err))
		os.Exit(1)
	}

	// Initialize revision stats cache
	statsCache, closeCache, err := infrastructure.NewStatsCache(ctx, &config.Cache, logger)
	if err != nil {
		logger.Error("Failed to connect to Redis", zap.Error(err))
		os.Exit(1)
	}
	defer closeCache()

	// Initialize services
	gamificationService := service.NewGamificationService(store, &config.Gamification, &config.Revision, metrics, telemetry.Tracer, logger)
	revisionService := service.NewRevisionService(store, statsCache, &config.Revision, metrics, telemetry.Tracer, logger)
	progressService := service.NewProgressService(store, revisionService, gamificationService, &config.Revision, &config.Gamification, metrics, telemetry.Tracer, logger)
	userService := service.NewUserService(store.Users(), gamificationService, &config.JWT, &config.Admin, telemetry.Tracer, logger)
	problemService := service.NewProblemService(store.Problems(), store.Sheets(), config.Revision.Location(), telemetry.Tracer, logger)
	adminService := service.NewAdminService(store, gamificationService, revisionService, config.Revision.ConflictRetries, telemetry.Tracer, logger)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(userService)
	userHandler := handler.NewUserHandler(userService, progressService, gamificationService)
	problemHandler := handler.NewProblemHandler(problemService)
	progressHandler := handler.NewProgressHandler(progressService)
	revisionHandler := handler.NewRevisionHandler(revisionService)
	adminHandler := handler.NewAdminHandler(adminService)

	// Setup Gin router
	if config.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Add global middleware
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.CORSMiddleware(&config.CORS))
	router.Use(middleware.TracingMiddleware(telemetry.Tracer))
	router.Use(middleware.MetricsMiddleware(metrics))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		if err := healthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": config.Telemetry.ServiceVersion,
		})
	})

	// Metrics endpoint for Prometheus
	router.GET(config.Telemetry.MetricsEndpoint, gin.WrapH(promhttp.Handler()))

	// API routes
	api := router.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/signup", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.Refresh)
		}

		// Catalog routes (public)
		problems := api.Group("/problems")
		{
			problems.GET("", problemHandler.GetProblems)
			problems.GET("/stats", problemHandler.GetProblemStats)
			problems.GET("/:id", problemHandler.GetProblem)
		}
		sheets := api.Group("/sheets")
		{
			sheets.GET("", problemHandler.GetSheets)
			sheets.GET("/:slug", problemHandler.GetSheet)
		}

		// Protected routes
		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware(userService))
		{
			// User routes
			users := protected.Group("/users")
			{
				users.GET("/me", userHandler.GetCurrentUser)
				users.GET("/me/progress", userHandler.GetUserProgress)
				users.GET("/me/game", userHandler.GetGameState)
			}

			protected.GET("/daily-challenge", problemHandler.GetDailyChallenge)

			// Progress ledger routes
			progress := protected.Group("/progress")
			{
				progress.POST("", progressHandler.RecordSolve)
				progress.GET("", progressHandler.GetProgress)
				progress.PATCH("/:id", progressHandler.UpdateProgress)
			}

			// Revision routes
			revisions := protected.Group("/revisions")
			{
				revisions.GET("", revisionHandler.GetRevisions)
				revisions.GET("/overdue", revisionHandler.GetOverdue)
				revisions.GET("/stats", revisionHandler.GetStats)
				revisions.POST("/:id/complete", revisionHandler.CompleteRevision)
				revisions.DELETE("/:id", revisionHandler.DeleteRevision)
			}

			// Admin routes
			admin := protected.Group("/admin")
			admin.Use(middleware.RequireAdmin())
			{
				admin.POST("/users/:id/reset-progress", adminHandler.ResetProgress)
			}
		}
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port),
		Handler:      router,
		ReadTimeout:  config.Server.ReadTimeout,
		WriteTimeout: config.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("HTTP server starting",
			zap.String("address", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// openStore selects the storage driver. The memory driver keeps everything
// in process and is lost on restart.
func openStore(config *infrastructure.DatabaseConfig, logger *zap.Logger) (domain.Store, func(context.Context) error, func(), error) {
	switch config.Driver {
	case "memory":
		logger.Warn("Using in-memory storage, data will not survive restarts")
		store := memory.NewStore()
		return store, store.HealthCheck, func() {}, nil
	case "postgres", "":
		database, err := infrastructure.NewDatabase(config, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := database.AutoMigrate(); err != nil {
			database.Close()
			return nil, nil, nil, err
		}
		closeDB := func() {
			if err := database.Close(); err != nil {
				logger.Error("Failed to close database", zap.Error(err))
			}
		}
		return repository.NewStore(database.DB), database.HealthCheck, closeDB, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown database driver %q", config.Driver)
	}
}
