package main

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/encryptcookie"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"voicebook/internal/config"
	"voicebook/internal/database"
	"voicebook/internal/database/migration"
	"voicebook/internal/generation"
	handlers "voicebook/internal/http/handler"
	"voicebook/internal/http/middleware"
	"voicebook/internal/logging"
	"voicebook/internal/model"
	tracing "voicebook/internal/otel"
	"voicebook/internal/repository"
	"voicebook/internal/repository/postgres"
	"voicebook/internal/service"
	"voicebook/internal/speech"
	"voicebook/internal/storage"
)

const shutdownTimeout = 10 * time.Second

// @title Voicebook API
// @version 1.0
// @BasePath /
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()

	log := logging.New(os.Stdout, cfg.LogLevel, logging.Location(cfg.TimeZone))
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, log)
	if err != nil {
		log.Fatal("failed to initialize tracing", zap.Error(err))
	}
	defer shutdownTracing(context.Background())

	store, err := newStore(cfg)
	if err != nil {
		log.Fatal("failed to initialize file store", zap.String("backend", cfg.Storage.Backend), zap.Error(err))
	}
	checks := []handlers.Check{{Name: "storage", Ping: store.Ping}}

	// The run journal is optional: without DB_HOST runs are only logged.
	var runs repository.RunRepository = repository.NopRuns{}
	if cfg.Database.Enabled() {
		db, err := openJournal(ctx, cfg, log)
		if err != nil {
			log.Fatal("failed to connect to database", zap.Error(err))
		}
		defer db.Close()
		runs = postgres.NewRunPostgres(db)
		checks = append(checks, handlers.Check{Name: "database", Ping: db.PingContext})
	}

	gen, err := generation.NewGemini(generation.Options{
		APIKey:  cfg.Gemini.APIKey,
		Model:   cfg.Gemini.Model,
		BaseURL: cfg.Gemini.BaseURL,
	})
	if err != nil {
		log.Fatal("failed to initialize generation client", zap.Error(err))
	}

	var synth speech.Synthesizer
	if cfg.PipelineMode == model.ModeReply {
		synth, err = speech.New(ctx, cfg.Speech, nil)
		if err != nil {
			log.Fatal("failed to initialize speech synthesizer", zap.String("provider", cfg.Speech.Provider), zap.Error(err))
		}
	}

	metrics, err := service.NewMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatal("failed to register pipeline metrics", zap.Error(err))
	}

	uploads := service.NewUploadService(store, cfg.Storage.AudioExtensions, nil)
	pipeline, err := service.NewPipeline(service.PipelineDeps{
		Mode:    cfg.PipelineMode,
		Uploads: uploads,
		Store:   store,
		Gen:     gen,
		Speech:  synth,
		Runs:    runs,
		Metrics: metrics,
		Logger:  log.Named("pipeline"),
		Timeout: time.Duration(cfg.RemoteTimeoutSec) * time.Second,
	})
	if err != nil {
		log.Fatal("failed to build pipeline", zap.Error(err))
	}

	promMW, err := middleware.NewPrometheusMiddleware(prometheus.DefaultRegisterer, "/health", "/healthz")
	if err != nil {
		log.Fatal("failed to register http metrics", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
		BodyLimit:    cfg.MaxUploadMB * 1024 * 1024,
	})

	// Register global middleware
	app.Use(otelfiber.Middleware())
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	// JSON Logger middleware for structured request logs
	app.Use(middleware.Logger(log.Named("http")))
	app.Use(promMW.Handler())
	// Flash notices travel in a cookie sealed with SECRET_KEY
	app.Use(encryptcookie.New(encryptcookie.Config{Key: cookieKey(cfg.SecretKey)}))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	handlers.RegisterRoutes(app, handlers.Deps{
		Store:           store,
		Uploads:         uploads,
		Pipeline:        pipeline,
		Runs:            runs,
		Checks:          checks,
		AudioExtensions: cfg.Storage.AudioExtensions,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(":" + cfg.Port)
	}()
	log.Info("server_started",
		zap.String("port", cfg.Port),
		zap.String("pipeline_mode", pipeline.Mode()),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.Bool("run_journal", cfg.Database.Enabled()),
	)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatal("failed to start server", zap.Error(err))
		}
	case <-ctx.Done():
		log.Info("server_stopping")
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			log.Error("server_shutdown_failed", zap.Error(err))
		}
	}
}

func newStore(cfg *config.AppConfig) (storage.Storage, error) {
	if cfg.Storage.Backend == "minio" {
		return storage.NewMinIO(cfg.MinIO)
	}
	return storage.NewLocal(cfg.Storage.Dir)
}

func openJournal(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) (*sql.DB, error) {
	db, err := database.NewPostgres(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}
	if err := migration.EnsureMigrated(ctx, db, log, cfg.Database.Host); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// cookieKey derives the 32-byte AES key encryptcookie expects from SECRET_KEY.
func cookieKey(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return base64.StdEncoding.EncodeToString(sum[:])
}
