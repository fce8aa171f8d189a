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
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/exam-room-allocator/api/swagger"
	"github.com/noah-isme/exam-room-allocator/internal/allocator"
	"github.com/noah-isme/exam-room-allocator/internal/handler"
	"github.com/noah-isme/exam-room-allocator/internal/middleware"
	"github.com/noah-isme/exam-room-allocator/internal/repository"
	"github.com/noah-isme/exam-room-allocator/internal/service"
	"github.com/noah-isme/exam-room-allocator/pkg/cache"
	"github.com/noah-isme/exam-room-allocator/pkg/config"
	"github.com/noah-isme/exam-room-allocator/pkg/database"
	"github.com/noah-isme/exam-room-allocator/pkg/jobs"
	"github.com/noah-isme/exam-room-allocator/pkg/logger"
	corsmiddleware "github.com/noah-isme/exam-room-allocator/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/exam-room-allocator/pkg/middleware/requestid"
	"github.com/noah-isme/exam-room-allocator/pkg/storage"
	"github.com/noah-isme/exam-room-allocator/pkg/tracing"
)

const version = "1.0.0"

// @title Exam Room Allocator API
// @version 1.0.0
// @description Seats student cohorts into exam rooms for every scheduled exam slot.
// @BasePath /api
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

	shutdownTracing, err := tracing.Init(cfg.Tracing.ServiceName, version, cfg.Tracing.Exporter, os.Stdout)
	if err != nil {
		logr.Fatal("failed to init tracing", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	validate := validator.New()
	metrics := service.NewMetricsService()
	checks := make(map[string]handler.ReadinessCheck)

	store, err := storage.NewObjectStorage(ctx, cfg.Storage.URL)
	if err != nil {
		logr.Fatal("failed to open storage", zap.Error(err))
	}
	checks["storage"] = store.Ping
	signer := storage.NewSignedURLSigner(cfg.Storage.SignedURLSecret, cfg.Storage.SignedURLTTL)

	var resultCache service.ResultCache
	if cfg.Cache.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Fatal("failed to connect redis", zap.Error(err))
		}
		repo := repository.NewResultCacheRepository(client, logr)
		defer repo.Close() //nolint:errcheck
		resultCache = repo
		checks["cache"] = repo.Ping
	}
	cacheSvc := service.NewCacheService(resultCache, metrics, cfg.Cache.TTL, logr, cfg.Cache.Enabled)

	exportSvc := service.NewExportService(store, signer, cacheSvc, service.ExportConfig{
		APIPrefix:       cfg.APIPrefix,
		ResultTTL:       cfg.Storage.SignedURLTTL,
		CleanupInterval: cfg.Storage.CleanupInterval,
	}, logr)
	exportSvc.StartCleanup(ctx)

	allocationSvc := service.NewAllocationService(exportSvc, cacheSvc, metrics, validate, logr, service.AllocationConfig{
		CohortOrder: allocator.CohortOrder(cfg.Allocation.CohortOrder),
		Formats:     cfg.Allocation.Formats,
		CacheTTL:    cfg.Cache.TTL,
	})

	var (
		jobSvc *service.AllocationJobService
		queue  *jobs.Queue
	)
	if cfg.Jobs.Enabled {
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			logr.Fatal("failed to connect database", zap.Error(err))
		}
		defer db.Close() //nolint:errcheck
		if err := database.Migrate(ctx, db); err != nil {
			logr.Fatal("failed to migrate database", zap.Error(err))
		}
		checks["database"] = pingDB(db)

		jobRepo := repository.NewAllocationJobRepository(db)
		retries := service.JobRetries(cfg.Jobs.WorkerRetries)
		worker := service.NewAllocationWorker(jobRepo, store, allocationSvc, retries, logr)
		queue = jobs.NewQueue(service.JobTypeAllocation, worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Jobs.WorkerConcurrency,
			MaxRetries: retries,
			OnFailure: func(ctx context.Context, job jobs.Job, err error) {
				jobSvc.OnFailure(ctx, job, err)
			},
			Logger: logr,
		})
		jobSvc = service.NewAllocationJobService(jobRepo, queue, store, exportSvc, validate, logr, service.AllocationJobConfig{
			APIPrefix:       cfg.APIPrefix,
			ResultTTL:       cfg.Storage.SignedURLTTL,
			CleanupInterval: cfg.Storage.CleanupInterval,
		})
		queue.Start(ctx)
		if recovered := jobSvc.RecoverPendingJobs(ctx); recovered > 0 {
			logr.Info("recovered pending allocation jobs", zap.Int("jobs", recovered))
		}
		jobSvc.StartCleanup(ctx)
	}

	csvSvc := service.NewCSVValidationService(validate, logr)
	noticeSvc := service.NewNoticeService(service.NewLogNotifier(logr), validate, logr)

	allocationHandler := handler.NewAllocationHandler(allocationSvc, nil, exportSvc, cfg.Allocation.MaxUploadBytes)
	if jobSvc != nil {
		allocationHandler = handler.NewAllocationHandler(allocationSvc, jobSvc, exportSvc, cfg.Allocation.MaxUploadBytes)
	}
	handlers := handler.Handlers{
		Allocation: allocationHandler,
		CSV:        handler.NewCSVHandler(csvSvc, cfg.Allocation.MaxUploadBytes),
		Notice:     handler.NewNoticeHandler(noticeSvc),
		Metrics:    handler.NewMetricsHandler(metrics, checks),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	var auth []gin.HandlerFunc
	if cfg.JWT.AuthEnabled {
		auth = append(auth,
			middleware.JWT(service.NewTokenVerifier(cfg.JWT.Secret)),
			middleware.RequireRoles(handler.AllocationRoles...),
		)
	}
	handler.RegisterRoutes(r, cfg.APIPrefix, handlers, auth...)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("server shutdown failed", zap.Error(err))
	}
	if queue != nil {
		queue.Stop()
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logr.Warn("tracing shutdown failed", zap.Error(err))
	}
}

func pingDB(db *sqlx.DB) handler.ReadinessCheck {
	return func(ctx context.Context) error {
		return db.PingContext(ctx)
	}
}
