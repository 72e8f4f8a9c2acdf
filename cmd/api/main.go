package main

import (
	"context"
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
	"go.uber.org/zap"

	_ "github.com/secaware/admin-api/api/swagger"
	"github.com/secaware/admin-api/internal/audit"
	"github.com/secaware/admin-api/internal/handler"
	"github.com/secaware/admin-api/internal/middleware"
	"github.com/secaware/admin-api/internal/models"
	"github.com/secaware/admin-api/internal/repository"
	"github.com/secaware/admin-api/internal/service"
	"github.com/secaware/admin-api/pkg/cache"
	"github.com/secaware/admin-api/pkg/config"
	"github.com/secaware/admin-api/pkg/database"
	"github.com/secaware/admin-api/pkg/logger"
	corsmiddleware "github.com/secaware/admin-api/pkg/middleware/cors"
	reqidmiddleware "github.com/secaware/admin-api/pkg/middleware/requestid"
)

// @title SecAware Admin API
// @version 1.0.0
// @description Audit trail and administration service
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsSvc := service.NewMetricsService()

	auditRepo := repository.NewAuditRepository(db)
	userRepo := repository.NewUserRepository(db)
	policyRepo := repository.NewPolicyRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	recorder := audit.NewRecorder(auditRepo, cfg.Audit, logr, metricsSvc)
	recorder.Start(ctx)

	validate := validator.New()

	auditSvc := service.NewAuditService(auditRepo, recorder, cacheRepo, service.AuditServiceConfig{
		ExportMaxRecords: cfg.Audit.ExportMaxRecords,
		StatsCacheTTL:    cfg.Audit.StatsCacheTTL,
		RetentionMinDays: cfg.Retention.MinAgeDays,
	}, logr)
	authSvc := service.NewAuthService(userRepo, recorder, validate, cfg.JWT, logr)
	policySvc := service.NewPolicyService(policyRepo, recorder, logr)

	auditHandler := handler.NewAuditHandler(auditSvc)
	authHandler := handler.NewAuthHandler(authSvc)
	policyHandler := handler.NewPolicyHandler(policySvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.Audit(recorder, middleware.AuditPolicy{
		LogLevel:       cfg.Audit.LogLevel,
		ExcludePaths:   cfg.Audit.ExcludePaths,
		ExcludeMethods: cfg.Audit.ExcludeMethods,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.JWT(authSvc))
	admin.Use(middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin))
	{
		auditLogs := admin.Group("/audit-logs")
		{
			auditLogs.GET("", auditHandler.List)
			auditLogs.GET("/export", auditHandler.Export)
			auditLogs.GET("/stats", auditHandler.Stats)
			auditLogs.GET("/user/:userId/timeline", auditHandler.Timeline)
			auditLogs.DELETE("/cleanup",
				middleware.HighRisk(recorder, "Retention cleanup requested", models.ResourceSystem),
				auditHandler.Cleanup)
			auditLogs.GET("/:id", auditHandler.Get)
		}

		policies := admin.Group("/policies")
		{
			policies.POST("/:id/publish", policyHandler.Publish)
			policies.POST("/:id/archive", policyHandler.Archive)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("http server shutdown", zap.Error(err))
	}

	// Drain pending audit writes after the listener stops accepting
	// requests so nothing new is enqueued mid-drain.
	recorder.Stop()

	logr.Info("server stopped")
}
