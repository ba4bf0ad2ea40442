package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/almufid-api/api/swagger"
	"github.com/noah-isme/almufid-api/internal/authz"
	"github.com/noah-isme/almufid-api/internal/handler"
	"github.com/noah-isme/almufid-api/internal/middleware"
	"github.com/noah-isme/almufid-api/internal/repository"
	"github.com/noah-isme/almufid-api/internal/service"
	"github.com/noah-isme/almufid-api/pkg/cache"
	"github.com/noah-isme/almufid-api/pkg/config"
	"github.com/noah-isme/almufid-api/pkg/database"
	"github.com/noah-isme/almufid-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/almufid-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/almufid-api/pkg/middleware/requestid"
)

// @title Al-Mufid Assessment API
// @version 1.0.0
// @description Qur'an recitation assessment record keeper
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// The API works without redis; stats just skip the cache.
		logr.Warn("redis unavailable, stats caching disabled", zap.Error(err))
		redisClient = nil
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	assessmentRepo := repository.NewAssessmentRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	accountSvc := service.NewAccountService(userRepo, cacheRepo, validate, logr, cfg.Stats.CacheTTL)
	assessmentSvc := service.NewAssessmentService(assessmentRepo, userRepo, validate, logr)

	if cfg.Seed.AdminPassword != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := accountSvc.SeedAdmin(ctx, cfg.Seed.AdminName, cfg.Seed.AdminEmail, cfg.Seed.AdminPassword); err != nil {
			logr.Fatal("failed to seed admin account", zap.Error(err))
		}
		cancel()
	}

	authHandler := handler.NewAuthHandler(authSvc, accountSvc)
	accountHandler := handler.NewAccountHandler(accountSvc, metricsSvc)
	assessmentHandler := handler.NewAssessmentHandler(assessmentSvc, metricsSvc)
	studentHandler := handler.NewStudentHandler(assessmentSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unavailable"})
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
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)

		authed := auth.Group("")
		authed.Use(middleware.JWT(authSvc))
		authed.POST("/logout", authHandler.Logout)
		authed.GET("/me", authHandler.Me)
		authed.GET("/status", middleware.Authorize(authz.ActionViewOwnStatus), authHandler.Status)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.JWT(authSvc))
	{
		admin.GET("/users", middleware.Authorize(authz.ActionManageUsers), accountHandler.List)
		admin.POST("/users/:id/approve", middleware.Authorize(authz.ActionManageUsers), accountHandler.Approve)
		admin.POST("/users/:id/reject", middleware.Authorize(authz.ActionManageUsers), accountHandler.Reject)
		admin.DELETE("/users/:id", middleware.Authorize(authz.ActionManageUsers), accountHandler.Delete)
		admin.GET("/stats", middleware.Authorize(authz.ActionViewAdminStats), accountHandler.Stats)
	}

	ustadz := api.Group("/ustadz")
	ustadz.Use(middleware.JWT(authSvc))
	{
		ustadz.POST("/assessments", middleware.Authorize(authz.ActionCreateAssessment), assessmentHandler.Create)
		ustadz.GET("/assessments", middleware.Authorize(authz.ActionListAssessments), assessmentHandler.List)
		ustadz.GET("/assessments/export", middleware.Authorize(authz.ActionListAssessments), assessmentHandler.Export)
		ustadz.GET("/assessments/:id", assessmentHandler.Get)
		ustadz.DELETE("/assessments/:id", assessmentHandler.Delete)
		ustadz.GET("/students", middleware.Authorize(authz.ActionListStudents), studentHandler.List)
		ustadz.GET("/stats", middleware.Authorize(authz.ActionViewUstadzStats), assessmentHandler.UstadzStats)
	}

	santri := api.Group("/santri")
	santri.Use(middleware.JWT(authSvc))
	{
		santri.GET("/assessments", middleware.Authorize(authz.ActionReadOwnAssessments), assessmentHandler.OwnList)
		santri.GET("/assessments/:id", assessmentHandler.OwnGet)
		santri.GET("/stats", middleware.Authorize(authz.ActionViewSantriStats), assessmentHandler.SantriStats)
		santri.GET("/report", middleware.Authorize(authz.ActionReadOwnAssessments), assessmentHandler.ReportCard)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
