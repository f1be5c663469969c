// backend-go/cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pharmacheck/inventory/backend-go/internal/api"
	"github.com/pharmacheck/inventory/backend-go/internal/cache"
	"github.com/pharmacheck/inventory/backend-go/internal/config"
	"github.com/pharmacheck/inventory/backend-go/internal/domain"
	"github.com/pharmacheck/inventory/backend-go/internal/drive"
	"github.com/pharmacheck/inventory/backend-go/internal/metrics"
	"github.com/pharmacheck/inventory/backend-go/internal/pipeline"
	"github.com/pharmacheck/inventory/backend-go/internal/pipeline/ledger"
	"github.com/pharmacheck/inventory/backend-go/internal/pipeline/replenishment"
	"github.com/pharmacheck/inventory/backend-go/internal/repository"
	"github.com/pharmacheck/inventory/backend-go/internal/repository/memory"
	"github.com/pharmacheck/inventory/backend-go/internal/repository/postgres"
	"github.com/pharmacheck/inventory/backend-go/internal/service"
	"github.com/pharmacheck/inventory/backend-go/internal/storage"
	"github.com/pharmacheck/inventory/backend-go/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

type stores struct {
	ledger   repository.LedgerStore
	needs    repository.NeedsProfileStore
	recorder pipeline.RunRecorder
	history  pipeline.RunHistory
	close    func() error
}

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	logger.SetLevel(cfg.App.LogLevel)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
		logger.UseJSON(os.Stdout)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	defaults := cfg.Inventory.NeedsDefaults()
	st, err := openStores(ctx, cfg, defaults)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialize storage")
	}
	defer st.close()

	redisClient := openRedis(cfg.Cache)
	if redisClient != nil {
		defer redisClient.Close()
	}

	var (
		m        *metrics.Metrics
		gatherer prometheus.Gatherer
	)
	if cfg.Metrics.Enabled {
		m = metrics.New(prometheus.DefaultRegisterer)
		gatherer = prometheus.DefaultGatherer
	}

	orchestrator, err := buildOrchestrator(cfg, st, m)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialize reconciliation workers")
	}

	classifier := replenishment.NewClassifier(
		replenishment.WithBuffer(cfg.Inventory.ShortageBuffer),
		replenishment.WithDefaults(defaults),
	)
	inventoryService := service.NewInventoryService(st.ledger, st.needs, classifier, orchestrator,
		service.WithCache(cache.NewInventoryCache(redisClient, cache.TTLFromConfig(cfg.Cache))),
		service.WithRecentSearches(cache.NewRecentSearches(redisClient, cfg.Cache.RecentSearchLimit)),
		service.WithArchiver(storage.NewArchiver(openObjectStorage(ctx, cfg.Storage))),
		service.WithRunHistory(st.history),
	)

	if cfg.Drive.FolderID != "" && cfg.Drive.CredentialsFile != "" {
		go watchDrive(ctx, cfg, orchestrator, inventoryService)
	}

	// Initialize HTTP server
	router := api.NewRouter(&api.Services{InventoryService: inventoryService}, api.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		UploadDir:      cfg.App.UploadDir,
		MaxUploadMB:    cfg.Server.MaxUploadMB,
		Metrics:        m,
		MetricsPath:    cfg.Metrics.Path,
		Gatherer:       gatherer,
	})
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	<-ctx.Done()
	logger.Log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}

// openStores connects to postgres when enabled and falls back to in-process stores otherwise.
func openStores(ctx context.Context, cfg *config.Config, defaults domain.NeedsDefaults) (*stores, error) {
	if !cfg.Database.Enabled {
		logger.Log.Warn().Msg("Database disabled, inventory is kept in memory")
		needs := memory.NewNeedsStore(defaults)
		recorder := pipeline.NewMemoryRecorder()
		return &stores{
			ledger:   memory.NewInventoryStore(needs),
			needs:    needs,
			recorder: recorder,
			history:  recorder,
			close:    func() error { return nil },
		}, nil
	}

	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	runs := pipeline.NewRepository(db.DB)
	return &stores{
		ledger:   postgres.NewInventoryRepository(db, defaults),
		needs:    postgres.NewNeedsRepository(db, defaults),
		recorder: runs,
		history:  runs,
		close:    db.Close,
	}, nil
}

func openRedis(cfg config.CacheConfig) *redis.Client {
	if !cfg.Enabled {
		return nil
	}
	client, err := cache.NewRedisClient(cfg)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Redis unavailable, continuing without cache")
		return nil
	}
	return client
}

func openObjectStorage(ctx context.Context, cfg config.StorageConfig) storage.ObjectStorage {
	if !cfg.Enabled {
		return nil
	}
	client, err := storage.NewS3Client(ctx, cfg)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Object storage unavailable, uploads are not archived")
		return nil
	}
	return client
}

func buildOrchestrator(cfg *config.Config, st *stores, m *metrics.Metrics) (*pipeline.Orchestrator, error) {
	pcfg := pipeline.Config{
		WorkerCount:   cfg.Pipeline.WorkerCount,
		RetryAttempts: cfg.Pipeline.RetryAttempts,
		RetryBackoff:  cfg.Pipeline.RetryBackoff,
	}
	if cfg.Pipeline.ExportLedger {
		pcfg.OutputDir = cfg.App.DataDir
	}

	opts := []pipeline.WorkerOption{
		pipeline.WithCommitter(st.ledger),
		pipeline.WithRecorder(st.recorder),
	}
	if m != nil {
		opts = append(opts, pipeline.WithObserver(m))
	}

	workers := make([]*pipeline.Worker, 0, len(domain.Categories))
	for _, category := range domain.Categories {
		reconciler, err := ledger.NewReconciler(category)
		if err != nil {
			return nil, err
		}
		workers = append(workers, pipeline.NewWorker(reconciler, pcfg, opts...))
	}
	return pipeline.NewOrchestrator(workers...), nil
}

// watchDrive reconciles new exports dropped into the configured Drive folder.
func watchDrive(ctx context.Context, cfg *config.Config, orchestrator *pipeline.Orchestrator, svc *service.InventoryService) {
	credentials, err := os.ReadFile(cfg.Drive.CredentialsFile)
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to read Drive credentials")
		return
	}
	driveService, err := drive.NewService(ctx, credentials)
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to initialize Google Drive service")
		return
	}

	opts := drive.DownloadOptions{FolderID: cfg.Drive.FolderID, DownloadDir: cfg.App.UploadDir}
	err = drive.NewDownloader(driveService).Watch(ctx, opts, cfg.Drive.PollInterval, func(ctx context.Context, paths []string) error {
		results, err := orchestrator.Run(ctx, paths, pipeline.TriggerDrive)
		if err != nil {
			return err
		}
		for category := range results {
			svc.Reconciled(ctx, category)
		}
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Log.Error().Err(err).Msg("Drive watcher stopped")
	}
}
