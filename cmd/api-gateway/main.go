package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/juan-barragan/oraccio/api/swagger"
	"github.com/juan-barragan/oraccio/internal/handler"
	"github.com/juan-barragan/oraccio/internal/repository"
	"github.com/juan-barragan/oraccio/internal/service"
	"github.com/juan-barragan/oraccio/pkg/cache"
	"github.com/juan-barragan/oraccio/pkg/config"
	"github.com/juan-barragan/oraccio/pkg/database"
	"github.com/juan-barragan/oraccio/pkg/jobs"
	"github.com/juan-barragan/oraccio/pkg/logger"
	"github.com/juan-barragan/oraccio/pkg/storage"
)

// @title Oraccio Timetable API
// @version 1.0.0
// @description Weekly school timetable generation, job tracking, exports and conflict resolution.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(ctx, db); err != nil {
		logr.Fatal("failed to migrate database", zap.Error(err))
	}

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, result cache disabled", zap.Error(err))
			redisClient = nil
		}
	}

	rules, err := service.RulesFromConfig(cfg.Timetable)
	if err != nil {
		logr.Fatal("invalid timetable rules", zap.Error(err))
	}

	validate := validator.New()
	metrics := service.NewMetricsService()
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, cfg.Cache.Enabled && redisClient != nil)

	store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare export storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportSvc := service.NewExportService(store, signer, service.ExportConfig{APIPrefix: cfg.APIPrefix}, logr)

	jobRepo := repository.NewGenerationJobRepository(db)
	generator := service.NewGenerator(rules, cfg.Timetable.AttemptWorkers, logr)
	worker := service.NewGenerationWorker(jobRepo, generator, cacheSvc, metrics, cfg.Cache.TTL, logr)

	queue := jobs.NewQueue("timetable-generation", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Jobs.WorkerConcurrency,
		MaxRetries: cfg.Jobs.WorkerRetries,
		RetryDelay: cfg.Jobs.RetryDelay,
		Logger:     logr,
		OnGiveUp:   worker.GiveUp,
	})
	metrics.TrackQueueDepth(queue.Depth)

	timetableSvc := service.NewTimetableService(jobRepo, queue, cacheSvc, exportSvc, metrics, generator, validate, logr, service.TimetableServiceConfig{
		Attempts:     service.AttemptsFromConfig(cfg.Timetable, 0, nil),
		SyncMaxHours: cfg.Jobs.SyncMaxHours,
		CacheTTL:     cfg.Cache.TTL,
	})

	if cfg.Jobs.Enabled {
		queue.Start(ctx)
		defer queue.Stop()
		recovered := timetableSvc.RecoverPending(ctx)
		logr.Info("pending jobs recovered", zap.Int("count", recovered))
	}

	retention := service.NewRetentionService(jobRepo, exportSvc, cacheSvc, cfg.Jobs.ResultTTL, logr)
	if err := retention.Start(cfg.Exports.CleanupSchedule); err != nil {
		logr.Fatal("invalid cleanup schedule", zap.Error(err), zap.String("schedule", cfg.Exports.CleanupSchedule))
	}

	authSvc := service.NewAuthService(validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		OperatorKeyHash:   cfg.JWT.OperatorKeyHash,
	})

	r := newRouter(cfg, routeDeps{
		logger:     logr,
		auth:       authSvc,
		metrics:    metrics,
		authH:      handler.NewAuthHandler(authSvc),
		timetableH: handler.NewTimetableHandler(timetableSvc, 0, logr),
		exportH:    handler.NewExportHandler(exportSvc),
		metricsH: handler.NewMetricsHandler(metrics, map[string]handler.ReadinessCheck{
			"postgres": db.PingContext,
			"redis":    cacheRepo.Ping,
		}),
		jobsEnabled: cfg.Jobs.Enabled,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("server shutdown failed", zap.Error(err))
	}
	<-retention.Stop().Done()
	logr.Info("server stopped")
}
