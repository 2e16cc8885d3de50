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
	"github.com/stwalsh4118/houseprice/internal/artifacts"
	"github.com/stwalsh4118/houseprice/internal/config"
	"github.com/stwalsh4118/houseprice/internal/currency"
	"github.com/stwalsh4118/houseprice/internal/database"
	"github.com/stwalsh4118/houseprice/internal/handlers"
	"github.com/stwalsh4118/houseprice/internal/logger"
	"github.com/stwalsh4118/houseprice/internal/middleware"
	"github.com/stwalsh4118/houseprice/internal/repository"
	"github.com/stwalsh4118/houseprice/internal/services"
)

const (
	shutdownTimeout = 30 * time.Second
	loadTimeout     = 30 * time.Second
)

func main() {
	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	log := logger.NewWithOptions(logger.Options{
		Env:   cfg.Server.Env,
		Level: cfg.Server.LogLevel,
	})
	log.Info("Starting house price API", map[string]interface{}{
		"version":         handlers.APIVersion,
		"environment":     cfg.Server.Env,
		"port":            cfg.Server.Port,
		"artifact_source": cfg.Artifacts.Source,
	})

	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()

	// The pinger stays a nil interface for file artifacts so readiness
	// reports the database as not configured.
	var pinger database.Pinger
	var source artifacts.Source

	if cfg.UsesDatabase() {
		db, err := database.NewPostgresPool(ctx, cfg.Database)
		if err != nil {
			log.Fatal("Failed to connect to database", err, map[string]interface{}{
				"host": cfg.Database.Host,
				"port": cfg.Database.Port,
				"name": cfg.Database.Name,
			})
		}
		defer db.Close()

		log.Info("Database connection established", map[string]interface{}{
			"host":     cfg.Database.Host,
			"port":     cfg.Database.Port,
			"database": cfg.Database.Name,
			"pool_min": cfg.Database.PoolMin,
			"pool_max": cfg.Database.PoolMax,
		})

		pinger = db
		source = artifacts.NewSnapshotSource(repository.NewSnapshotRepository(db), cfg.Artifacts.ModelKey)
	} else {
		fileSource, err := artifacts.NewFileSource(cfg.Artifacts.Dir, cfg.Artifacts.ModelFile, cfg.Artifacts.ParamsFile)
		if err != nil {
			log.Fatal("Failed to resolve artifact directory", err, nil)
		}
		log.Debug("Reading artifacts from disk", map[string]interface{}{
			"model":  fileSource.ModelPath(),
			"params": fileSource.ParamsPath(),
		})
		source = fileSource
	}

	// Artifacts are loaded once; the server does not start without them
	bundle, err := source.Load(ctx)
	if err != nil {
		log.Fatal("Failed to load model artifacts", err, map[string]interface{}{
			"source": cfg.Artifacts.Source,
		})
	}
	log.Info("Model artifacts loaded", map[string]interface{}{
		"source":    bundle.Source,
		"version":   bundle.Version,
		"features":  bundle.Params.Width(),
		"locations": len(bundle.Params.Columns),
	})

	formatter, err := currency.New(currency.Config{
		Locale: cfg.Currency.Locale,
		Symbol: cfg.Currency.Symbol,
	})
	if err != nil {
		log.Fatal("Failed to configure currency formatter", err, map[string]interface{}{
			"locale": cfg.Currency.Locale,
		})
	}

	predictionService, err := services.NewCachedPredictionService(
		services.NewPredictionService(bundle, formatter, log),
		cfg.Prediction.CacheSize,
		log,
	)
	if err != nil {
		log.Fatal("Failed to create prediction service", err, map[string]interface{}{
			"cache_size": cfg.Prediction.CacheSize,
		})
	}

	// Setup Gin router
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	handlers.RegisterValidatorTagNames()
	router := gin.New()

	tmpl, err := handlers.LoadTemplates()
	if err != nil {
		log.Fatal("Failed to load page templates", err, nil)
	}
	router.SetHTMLTemplate(tmpl)

	// Add middleware in order: RequestID -> Logger -> Recovery -> CORS
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log, "/health", "/health/ready"))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS(cfg.CORS.Origins))

	// Register health check routes
	healthHandler := handlers.NewHealthHandler(pinger, predictionService, cfg.Server.Env)
	router.GET("/health", healthHandler.Health)
	router.GET("/health/ready", healthHandler.Ready)
	router.GET("/api/v1/info", healthHandler.Info)

	// Register the prediction page
	pageHandler := handlers.NewPageHandler(predictionService)
	router.GET("/", pageHandler.Index)
	router.POST("/predict", pageHandler.Predict)

	// Register API v1 routes
	predictionHandler := handlers.NewPredictionHandler(predictionService)
	v1 := router.Group("/api/v1")
	{
		v1.GET("/locations", predictionHandler.Locations)
		v1.POST("/predictions", predictionHandler.Predict)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server listening", map[string]interface{}{
			"port": cfg.Server.Port,
			"addr": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", err, nil)
		}
	}()

	// Wait for interrupt signal (SIGINT or SIGTERM)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Graceful shutdown
	log.Info("Shutting down server...", nil)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", err, map[string]interface{}{
			"timeout": shutdownTimeout.String(),
		})
	}

	log.Info("Server exited", nil)
}
