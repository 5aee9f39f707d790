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

	_ "github.com/imjasonkam/leave-sub000/api/swagger"
	"github.com/imjasonkam/leave-sub000/internal/handler"
	"github.com/imjasonkam/leave-sub000/internal/middleware"
	"github.com/imjasonkam/leave-sub000/internal/models"
	"github.com/imjasonkam/leave-sub000/internal/repository"
	"github.com/imjasonkam/leave-sub000/internal/service"
	"github.com/imjasonkam/leave-sub000/pkg/cache"
	"github.com/imjasonkam/leave-sub000/pkg/config"
	"github.com/imjasonkam/leave-sub000/pkg/database"
	"github.com/imjasonkam/leave-sub000/pkg/logger"
	corsmiddleware "github.com/imjasonkam/leave-sub000/pkg/middleware/cors"
	reqidmiddleware "github.com/imjasonkam/leave-sub000/pkg/middleware/requestid"
	"github.com/imjasonkam/leave-sub000/pkg/storage"
)

// @title Leave Management API
// @version 1.0.0
// @description Corporate leave management with a four-slot approval chain and ledger-derived balances
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	leaveTypeRepo := repository.NewLeaveTypeRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	appRepo := repository.NewLeaveApplicationRepository(db)
	alertRepo := repository.NewAlertRepository(db)

	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, continuing without cache", "error", err)
		} else {
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, logr)
			defer cacheRepo.Close() //nolint:errcheck
		}
	}

	store, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init report storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "leave-management-api",
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	groupSvc := service.NewGroupService(groupRepo, userRepo, validate, logr)
	leaveTypeSvc := service.NewLeaveTypeService(leaveTypeRepo, cacheSvc, cfg.Cache.LeaveTypesTTL, validate, logr)
	balanceSvc := service.NewBalanceService(ledgerRepo, leaveTypeRepo, userRepo, cacheSvc, cfg.Cache.BalanceTTL, validate, logr)

	var alertSvc *service.AlertService
	if cfg.Payroll.Enabled {
		alertSvc = service.NewAlertService(alertRepo, logr, cfg.Payroll.WorkerConcurrency, cfg.Payroll.WorkerRetries)
	}

	var payroll service.PayrollNotifier
	if alertSvc != nil {
		payroll = alertSvc
	}
	leaveSvc := service.NewLeaveService(appRepo, userRepo, leaveTypeRepo, ledgerRepo, groupRepo, userRepo, cacheSvc, metricsSvc, payroll, validate, logr)
	reportSvc := service.NewReportService(appRepo, ledgerRepo, userRepo, store, signer, validate, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if alertSvc != nil {
		alertSvc.Start(ctx)
		defer alertSvc.Stop()
	}

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	groupHandler := handler.NewGroupHandler(groupSvc)
	leaveTypeHandler := handler.NewLeaveTypeHandler(leaveTypeSvc)
	leaveHandler := handler.NewLeaveHandler(leaveSvc)
	balanceHandler := handler.NewBalanceHandler(balanceSvc)
	alertHandler := handler.NewAlertHandler(alertSvc)
	reportHandler := handler.NewReportHandler(reportSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
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
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		auth.POST("/change-password", middleware.JWT(authSvc), authHandler.ChangePassword)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	}

	users := api.Group("/users", middleware.JWT(authSvc))
	{
		users.GET("", middleware.RequireRoles(models.RoleAdmin, models.RoleHR), userHandler.List)
		users.POST("", middleware.RequireRoles(models.RoleAdmin), userHandler.Create)
		users.GET("/:id", middleware.RBAC(string(models.RoleAdmin), string(models.RoleHR), "SELF"), userHandler.Get)
		users.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), userHandler.Update)
		users.PUT("/:id/routing", middleware.RequireRoles(models.RoleAdmin, models.RoleHR), userHandler.UpdateRouting)
		users.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), userHandler.Delete)

		users.GET("/:id/balances", middleware.RBAC(string(models.RoleAdmin), string(models.RoleHR), "SELF"), balanceHandler.Summary)
		users.GET("/:id/balances/entries", middleware.RBAC(string(models.RoleAdmin), string(models.RoleHR), "SELF"), balanceHandler.Entries)
	}

	groups := api.Group("/groups", middleware.JWT(authSvc))
	{
		groups.GET("", groupHandler.List)
		groups.POST("", middleware.RequireRoles(models.RoleAdmin), groupHandler.Create)
		groups.GET("/:id", groupHandler.Get)
		groups.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), groupHandler.Update)
		groups.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), groupHandler.Delete)
		groups.GET("/:id/members", groupHandler.Members)
		groups.POST("/:id/members", middleware.RequireRoles(models.RoleAdmin, models.RoleHR), groupHandler.AddMember)
		groups.DELETE("/:id/members/:userId", middleware.RequireRoles(models.RoleAdmin, models.RoleHR), groupHandler.RemoveMember)
	}

	leaveTypes := api.Group("/leave-types", middleware.JWT(authSvc))
	{
		leaveTypes.GET("", leaveTypeHandler.List)
		leaveTypes.GET("/:id", leaveTypeHandler.Get)
		leaveTypes.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleHR), leaveTypeHandler.Create)
		leaveTypes.PUT("/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleHR), leaveTypeHandler.Update)
		leaveTypes.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), leaveTypeHandler.Delete)
	}

	leave := api.Group("/leave-applications", middleware.JWT(authSvc))
	{
		leave.POST("", leaveHandler.Submit)
		leave.GET("", leaveHandler.List)
		leave.GET("/:id", leaveHandler.Get)
		leave.POST("/:id/decision", leaveHandler.Decide)
		leave.POST("/:id/reverse", middleware.RequireRoles(models.RoleAdmin, models.RoleHR), leaveHandler.Reverse)
	}

	api.POST("/balances/grants", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin, models.RoleHR), balanceHandler.Grant)

	if alertSvc != nil {
		alerts := api.Group("/payroll-alerts", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin, models.RoleHR))
		{
			alerts.GET("", alertHandler.List)
			alerts.POST("/:id/ack", alertHandler.Acknowledge)
		}
	}

	reports := api.Group("/reports", middleware.JWT(authSvc))
	{
		reports.POST("/leave", middleware.RequireRoles(models.RoleAdmin, models.RoleHR), middleware.Audit(userRepo, models.AuditActionReportGenerate, "reports"), reportHandler.GenerateLeaveReport)
		reports.POST("/balances", middleware.RequireRoles(models.RoleAdmin, models.RoleHR), middleware.Audit(userRepo, models.AuditActionReportGenerate, "reports"), reportHandler.GenerateBalanceReport)
		reports.GET("/download", reportHandler.Download)
	}

	go reportCleanupLoop(ctx, reportSvc, cfg.Reports.CleanupAfter)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

func reportCleanupLoop(ctx context.Context, reports *service.ReportService, ttl time.Duration) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reports.Cleanup(ttl)
		}
	}
}
