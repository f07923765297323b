package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/insiderflow/insiderflow/internal/config"
	"github.com/insiderflow/insiderflow/internal/db"
	"github.com/insiderflow/insiderflow/internal/edgar"
	"github.com/insiderflow/insiderflow/internal/figi"
	"github.com/insiderflow/insiderflow/internal/handlers"
	"github.com/insiderflow/insiderflow/internal/ingest"
)

func main() {
	// Load .env file if it exists (local dev)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	if err := db.RunMigrations(cfg.DatabaseURL); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}
	logger.Info("migrations completed")

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer pool.Close()
	logger.Info("connected to database")

	repo := db.NewRepository(pool)
	edgarClient := edgar.NewClient(cfg, logger.Named("edgar"))
	figiClient := figi.NewClient(cfg, logger.Named("figi"))
	scheduler := ingest.NewScheduler(cfg, edgarClient, figiClient, repo, logger.Named("ingest"))

	// Setup Echo
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error == nil {
				logger.Info("request", zap.Int("status", v.Status), zap.String("uri", v.URI))
			} else {
				logger.Error("request", zap.Int("status", v.Status), zap.String("uri", v.URI), zap.Error(v.Error))
			}
			return nil
		},
	}))
	e.Use(middleware.Recover())

	h := handlers.New()
	ingestHandler := handlers.NewIngestHandler(scheduler, repo, cfg, logger.Named("handlers"))
	analyticsHandler := handlers.NewAnalyticsHandler(repo, logger.Named("handlers"))

	// Routes
	e.GET("/health", h.Health)

	// Trigger surface for the external cron scheduler
	admin := e.Group("/admin")
	admin.POST("/ingest/form4", ingestHandler.IngestForm4)
	admin.POST("/ingest/13f", ingestHandler.Ingest13F)
	admin.GET("/ingest/status", ingestHandler.IngestStatus)

	// Query-time aggregations
	api := e.Group("/api")
	api.GET("/clusters", analyticsHandler.Clusters)
	api.GET("/flow/:ticker", analyticsHandler.Flow)

	logger.Info("starting server", zap.String("port", cfg.Port))
	if err := e.Start(":" + cfg.Port); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
