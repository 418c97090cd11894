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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/Sushil7090/moodle-backend/api/swagger"
	"github.com/Sushil7090/moodle-backend/internal/analytics"
	"github.com/Sushil7090/moodle-backend/internal/handler"
	"github.com/Sushil7090/moodle-backend/internal/middleware"
	"github.com/Sushil7090/moodle-backend/internal/moodle"
	"github.com/Sushil7090/moodle-backend/internal/repository"
	"github.com/Sushil7090/moodle-backend/internal/service"
	"github.com/Sushil7090/moodle-backend/pkg/cache"
	"github.com/Sushil7090/moodle-backend/pkg/config"
	"github.com/Sushil7090/moodle-backend/pkg/database"
	"github.com/Sushil7090/moodle-backend/pkg/export"
	"github.com/Sushil7090/moodle-backend/pkg/jobs"
	"github.com/Sushil7090/moodle-backend/pkg/logger"
	corsmiddleware "github.com/Sushil7090/moodle-backend/pkg/middleware/cors"
	reqidmiddleware "github.com/Sushil7090/moodle-backend/pkg/middleware/requestid"
	"github.com/Sushil7090/moodle-backend/pkg/storage"
)

// @title Moodle Reporting API
// @version 1.0.0
// @description Reporting backend for a Moodle LMS: completion histograms, engagement summaries, access-consistency reports and asynchronous exports.
// @BasePath /
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

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()

	moodleClient := moodle.NewClient(cfg.Moodle, logr)
	moodleClient.SetObserver(metricsSvc)

	validate := validator.New()

	tokenRepo := repository.NewTokenRepository(redisClient, logr)
	authSvc := service.NewAuthService(moodleClient, tokenRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
		AdminUsername:      cfg.Auth.AdminUsername,
		AdminPasswordHash:  cfg.Auth.AdminPasswordHash,
	})

	defaultPolicy, ok := analytics.ParseBucketPolicy(cfg.Analytics.CompletionPolicy)
	if !ok {
		logr.Sugar().Fatalw("invalid completion bucket policy", "policy", cfg.Analytics.CompletionPolicy)
	}
	overviewPolicy, ok := analytics.ParseBucketPolicy(cfg.Analytics.OverviewPolicy)
	if !ok {
		logr.Sugar().Fatalw("invalid overview bucket policy", "policy", cfg.Analytics.OverviewPolicy)
	}

	analyticsSvc := service.NewAnalyticsService(moodleClient, logr, service.AnalyticsConfig{
		DashboardUserID: cfg.Moodle.DashboardUserID,
		Batch:           analytics.BatchConfig{Size: cfg.Batch.Size, Pause: cfg.Batch.Pause},
		DefaultPolicy:   defaultPolicy,
		OverviewPolicy:  overviewPolicy,
		RangeLenient:    cfg.Analytics.DateRangeLenient,
	})

	authHandler := handler.NewAuthHandler(authSvc)
	reportHandler := handler.NewReportHandler(analyticsSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	auth := r.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(authSvc))

	reports := api.Group("/reports")
	{
		reports.GET("/courses/:id/completion", reportHandler.CourseCompletion)
		reports.GET("/courses/:id/engagement", reportHandler.CourseEngagement)
		reports.GET("/completion", reportHandler.CompletionOverview)
		reports.GET("/consistency", reportHandler.Consistency)
	}

	if cfg.Exports.Enabled {
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
		}
		defer db.Close() //nolint:errcheck

		store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init export storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)

		exportSvc := service.NewExportService(analyticsSvc, store, signer, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Exports.SignedURLTTL,
		}, logr, export.NewCSVExporter(), export.NewPDFExporter())

		reportRepo := repository.NewReportRepository(db)
		worker := service.NewReportWorker(reportRepo, exportSvc, cfg.Exports.WorkerRetries, logr)
		queue := jobs.NewQueue("report-exports", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Exports.WorkerConcurrency,
			MaxRetries: cfg.Exports.WorkerRetries,
			Logger:     logr,
		})
		queue.Start(ctx)
		defer queue.Stop()

		reportSvc := service.NewReportService(reportRepo, queue, exportSvc, logr, service.ReportServiceConfig{
			ResultTTL:       cfg.Exports.SignedURLTTL,
			CleanupInterval: cfg.Exports.CleanupInterval,
			MaxRetries:      cfg.Exports.WorkerRetries,
		})
		reportSvc.RecoverPendingJobs(ctx)
		reportSvc.StartCleanup(ctx)

		exportHandler := handler.NewExportHandler(reportSvc)
		api.POST("/exports", exportHandler.CreateExport)
		api.GET("/exports/:id", exportHandler.ExportStatus)
		api.GET("/export/:token", exportHandler.DownloadExport)
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
	logr.Sugar().Infow("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
	logr.Sugar().Infow("server stopped")
}
