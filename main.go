package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"go.uber.org/zap"

	"github.com/querylens/querylens-engine/pkg/config"
	"github.com/querylens/querylens-engine/pkg/database"
	"github.com/querylens/querylens-engine/pkg/handlers"
	"github.com/querylens/querylens-engine/pkg/llm"
	"github.com/querylens/querylens-engine/pkg/logging"
	"github.com/querylens/querylens-engine/pkg/middleware"
	"github.com/querylens/querylens-engine/pkg/repositories"
	"github.com/querylens/querylens-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

const migrationsDir = "migrations"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("database", cfg.Database.Database),
		zap.String("region", cfg.Database.Region),
		zap.Bool("multi_tenant", cfg.Tenancy.Enabled),
		zap.String("isolation", cfg.Tenancy.Isolation))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrateDatabase(cfg, logger); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		Region:         cfg.Database.Region,
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database",
			zap.String("error", logging.SanitizeError(err)))
	}
	defer db.Close()

	regionRepo := repositories.NewRegionRepository(db, logger)
	if cfg.Database.Region != "public" {
		if err := regionRepo.EnsureRegion(ctx, cfg.Database.Region); err != nil {
			logger.Fatal("Failed to provision region", zap.Error(err))
		}
	}
	embeddingRepo := repositories.NewEmbeddingRepository(db, cfg.Embedding.Dimension)

	embedder, err := llm.NewEmbedder(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create embedder", zap.Error(err))
	}
	generator, err := llm.NewGenerator(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create generator", zap.Error(err))
	}

	// Independent breakers: the embedding and generation providers fail
	// independently.
	embedder = llm.NewBreakerEmbedder(embedder, llm.NewCircuitBreaker(llm.DefaultCircuitBreakerConfig()))
	generator = llm.NewBreakerGenerator(generator, llm.NewCircuitBreaker(llm.DefaultCircuitBreakerConfig()))

	strategy, err := services.NewIsolationStrategy(cfg)
	if err != nil {
		logger.Fatal("Failed to create isolation strategy", zap.Error(err))
	}

	searchService := services.NewSearchService(embeddingRepo, embedder, strategy, cfg, logger)
	trainingService := services.NewTrainingService(embeddingRepo, embedder, strategy, cfg, logger)
	askService := services.NewAskService(searchService, generator, cfg, logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewTrainingHandler(trainingService, logger).RegisterRoutes(mux)
	handlers.NewAskHandler(askService, logger).RegisterRoutes(mux)

	server := &http.Server{
		Addr:              cfg.BindAddr + ":" + cfg.Port,
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting querylens-engine",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// migrateDatabase applies pending migrations through database/sql, which
// golang-migrate requires. The connection is closed once migrations finish.
func migrateDatabase(cfg *config.Config, logger *zap.Logger) error {
	sqlDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	return database.RunMigrations(sqlDB, migrationsDir, "public", logger)
}
