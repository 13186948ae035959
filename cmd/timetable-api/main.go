package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/sma-timetable-engine/api/swagger"
	"github.com/noah-isme/sma-timetable-engine/internal/handler"
	"github.com/noah-isme/sma-timetable-engine/internal/middleware"
	"github.com/noah-isme/sma-timetable-engine/internal/repository"
	"github.com/noah-isme/sma-timetable-engine/internal/scheduler/engine"
	"github.com/noah-isme/sma-timetable-engine/internal/service"
	"github.com/noah-isme/sma-timetable-engine/pkg/cache"
	"github.com/noah-isme/sma-timetable-engine/pkg/config"
	"github.com/noah-isme/sma-timetable-engine/pkg/database"
	"github.com/noah-isme/sma-timetable-engine/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-timetable-engine/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-timetable-engine/pkg/middleware/requestid"
)

// @title SMA Timetable Engine
// @version 1.0.0
// @description Constraint-based academic timetable generation service
// @BasePath /api/v1
// @schemes http

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Stores are feature-gated. Without persistence, runs live in the
	// in-memory registry only and results are returned but never stored.
	var db *sqlx.DB
	if cfg.Features.Persistence {
		db, err = database.NewPostgres(cfg.Database)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
		}
		defer db.Close() //nolint:errcheck
	}

	var progressCache *cache.ProgressCache
	if cfg.Features.ProgressCache {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect to redis", "error", err)
		}
		defer redisClient.Close() //nolint:errcheck
		progressCache = cache.NewProgressCache(redisClient, cfg.Runs.TTL)
	}

	metricsSvc := service.NewMetricsService()
	eng := engine.New(logr)

	var (
		timetables *repository.TimetableRepository
		slots      *repository.TimetableSlotRepository
	)
	deps := service.RunServiceDeps{Metrics: metricsSvc}
	if db != nil {
		timetables = repository.NewTimetableRepository(db)
		slots = repository.NewTimetableSlotRepository(db)
		deps.Timetables = timetables
		deps.Slots = slots
		deps.Audit = repository.NewRunRepository(db)
		deps.Tx = db
	}
	if progressCache != nil {
		deps.Progress = progressCache
	}

	runSvc := service.NewRunService(eng, deps, validator.New(), logr, service.RunServiceConfig{
		MaxConcurrent:    cfg.Runs.MaxConcurrent,
		TTL:              cfg.Runs.TTL,
		DefaultDeadline:  cfg.Runs.DefaultDeadline,
		ProgressBuffer:   cfg.Runs.ProgressBuffer,
		SyncSessionLimit: cfg.Runs.SyncSessionLimit,
		APIPrefix:        cfg.APIPrefix,
	})
	runSvc.Start(ctx)
	defer runSvc.Stop()

	generatorHandler := handler.NewGeneratorHandler(runSvc)
	runHandler := handler.NewRunHandler(runSvc, progressCache, logr)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	var timetableHandler *handler.TimetableHandler
	if db != nil {
		timetableSvc := service.NewTimetableService(timetables, slots, db, logr)
		var exportSvc *service.ExportService
		if cfg.Features.Exports {
			exportSvc = service.NewExportService(timetables, slots, nil, nil, logr)
		}
		timetableHandler = handler.NewTimetableHandler(timetableSvc, exportSvc)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if db != nil {
			if err := db.PingContext(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Features.Docs && cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/timetables/generate", generatorHandler.Generate)
	api.GET("/runs/:id", runHandler.Status)
	api.GET("/runs/:id/result", runHandler.Result)
	api.POST("/runs/:id/cancel", runHandler.Cancel)
	api.GET("/runs/:id/events", runHandler.Events)

	if timetableHandler != nil {
		api.GET("/timetables", timetableHandler.List)
		api.GET("/timetables/:id", timetableHandler.Get)
		api.GET("/timetables/:id/slots", timetableHandler.Slots)
		api.POST("/timetables/:id/publish", timetableHandler.Publish)
		api.DELETE("/timetables/:id", timetableHandler.Delete)
		if cfg.Features.Exports {
			api.GET("/timetables/:id/export.csv", timetableHandler.ExportCSV)
			api.GET("/timetables/:id/export.pdf", timetableHandler.ExportPDF)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env,
			"persistence", cfg.Features.Persistence, "progress_cache", cfg.Features.ProgressCache)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}
}
