package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/simon-dulai/optometry-purchase-predictor/internal/analytics"
	"github.com/simon-dulai/optometry-purchase-predictor/internal/archive"
	"github.com/simon-dulai/optometry-purchase-predictor/internal/config"
	"github.com/simon-dulai/optometry-purchase-predictor/internal/events"
	"github.com/simon-dulai/optometry-purchase-predictor/internal/ingest"
	"github.com/simon-dulai/optometry-purchase-predictor/internal/logger"
	"github.com/simon-dulai/optometry-purchase-predictor/internal/metrics"
	"github.com/simon-dulai/optometry-purchase-predictor/internal/models"
	"github.com/simon-dulai/optometry-purchase-predictor/internal/routes"
	"github.com/simon-dulai/optometry-purchase-predictor/internal/scoring"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("Error loading .env file: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	zl, err := logger.New(logger.Config{
		ServiceName: "optometry-predictor",
		Environment: cfg.Environment,
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
	})
	if err != nil {
		log.Fatalf("Error creating logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	db, err := models.InitDB(models.DatabaseConfig{
		Driver: cfg.Database.Driver,
		DSN:    cfg.Database.DSN,
		Logger: logger.NewGormLogger(zl),
	})
	if err != nil {
		zl.Fatal("connect database", zap.String("driver", cfg.Database.Driver), zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// Without a fitted model the service still serves auth, listings and
	// analytics; scoring calls return ErrModelUnavailable.
	scorer, err := scoring.Load(cfg.ModelArtifactPath)
	if err != nil {
		zl.Error("scorer unavailable, running degraded", zap.String("path", cfg.ModelArtifactPath), zap.Error(err))
	} else {
		zl.Info("scorer loaded", zap.String("path", cfg.ModelArtifactPath), zap.Float64("purchase_threshold", scorer.PurchaseThreshold()))
	}
	m.ScorerReady(scorer.Ready())

	ctx := context.Background()
	var store archive.Store = archive.NopStore{}
	if cfg.Archive.S3Bucket != "" {
		s3Store, err := archive.NewS3Store(ctx, cfg.Archive.S3Bucket, cfg.Archive.S3Prefix)
		if err != nil {
			zl.Error("upload archive disabled", zap.Error(err))
		} else {
			store = s3Store
		}
	}

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.Events.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			zl.Warn("close event publisher", zap.Error(err))
		}
	}()

	pipeline := ingest.NewPipeline(ingest.Options{
		DB:      db,
		Scorer:  scorer,
		Metrics: m,
		Log:     zl.Named("ingest"),
		Events:  publisher,
	})
	reader := analytics.NewReader(db, scorer, zl.Named("analytics"))

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), logger.GinMiddleware(zl))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Origin}
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", logger.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{"Content-Disposition", logger.RequestIDHeader}
	router.Use(cors.New(corsConfig))

	routes.SetupRoutes(router, routes.Dependencies{
		DB:       db,
		Cfg:      cfg,
		Scorer:   scorer,
		Pipeline: pipeline,
		Reader:   reader,
		Archive:  store,
		Events:   publisher,
		Gatherer: registry,
	})

	serverAddr := fmt.Sprintf(":%s", cfg.Port)
	zl.Info("server starting", zap.String("addr", serverAddr), zap.Bool("scorer_ready", scorer.Ready()))
	if err := router.Run(serverAddr); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
}
