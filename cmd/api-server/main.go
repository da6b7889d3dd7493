package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/campus-bulletin-api/api/swagger"
	"github.com/noah-isme/campus-bulletin-api/internal/handler"
	"github.com/noah-isme/campus-bulletin-api/internal/middleware"
	"github.com/noah-isme/campus-bulletin-api/internal/models"
	"github.com/noah-isme/campus-bulletin-api/internal/provider"
	"github.com/noah-isme/campus-bulletin-api/internal/repository"
	"github.com/noah-isme/campus-bulletin-api/internal/service"
	"github.com/noah-isme/campus-bulletin-api/pkg/cache"
	"github.com/noah-isme/campus-bulletin-api/pkg/config"
	"github.com/noah-isme/campus-bulletin-api/pkg/database"
	"github.com/noah-isme/campus-bulletin-api/pkg/jobs"
	"github.com/noah-isme/campus-bulletin-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/campus-bulletin-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/campus-bulletin-api/pkg/middleware/requestid"
	"github.com/noah-isme/campus-bulletin-api/pkg/ratelimit"
	"github.com/noah-isme/campus-bulletin-api/pkg/storage"
)

// @title Campus Bulletin API
// @version 1.0.0
// @description University announcement board with generated summaries and cover images
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	if cfg.AutoMigrate {
		if err := database.Migrate(db, logr); err != nil {
			logr.Fatal("failed to apply migrations", zap.Error(err))
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, continuing with in-process limiter and no list cache", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close() //nolint:errcheck
		}
	}

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		logr.Fatal("failed to init attachment storage", zap.Error(err))
	}
	purger := storage.NewAsyncDeleter(store, jobs.Config{Workers: 2, MaxRetries: 3, RetryDelay: 2 * time.Second, Logger: logr})
	purger.Start(ctx)
	defer purger.Stop()

	metrics := service.NewMetricsService()
	validate := validator.New()

	limitCfg := ratelimit.Config{Max: cfg.RateLimit.LoginMax, Window: cfg.RateLimit.LoginWindow}
	memoryLimiter := ratelimit.NewMemoryLimiter(limitCfg)
	var limiter ratelimit.Limiter = memoryLimiter
	var cacheRepo service.CacheRepository
	if redisClient != nil {
		limiter = ratelimit.NewFallbackLimiter(ratelimit.NewRedisLimiter(redisClient, limitCfg), memoryLimiter, logr)
		cacheRepo = repository.NewCacheRepository(redisClient)
	}
	go cleanupLimiter(ctx, memoryLimiter, logr)

	announcementRepo := repository.NewAnnouncementRepository(db)
	userRepo := repository.NewUserRepository(db)

	contentSvc := service.NewContentService(summaryProvider(cfg.Content), imageProviders(cfg.Content), metrics, logr, service.ContentConfig{
		Timeout:        cfg.Content.Timeout,
		PlaceholderURL: cfg.Content.PicsumBaseURL,
	})
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.ListTTL, logr)
	announcementSvc := service.NewAnnouncementService(announcementRepo, contentSvc, purger, cacheSvc, metrics, validate, logr, service.AnnouncementConfig{
		MaxAttachmentSize: cfg.Storage.MaxAttachmentSize,
	})
	recipientSvc := service.NewRecipientService(announcementSvc, cfg.Storage.MaxRosterSize, logr)
	userSvc := service.NewUserService(userRepo, validate, logr)
	authSvc, err := service.NewAuthService(userRepo, limiter, validate, logr, metrics, service.AuthConfig{
		Env:    cfg.Env,
		Secret: cfg.JWT.Secret,
		Expiry: cfg.JWT.Expiration,
		Issuer: cfg.JWT.Issuer,
	})
	if err != nil {
		logr.Fatal("failed to init auth", zap.Error(err))
	}

	if cfg.Env != config.EnvProduction {
		seeded, err := userSvc.EnsureDefaultUsers(ctx, cfg.Seed.Password)
		if err != nil {
			logr.Warn("failed to seed default users", zap.Error(err))
		} else if seeded {
			logr.Info("seeded default users")
		}
	}

	checks := map[string]handler.ReadinessCheck{
		"database": func(ctx context.Context) error { return database.Ping(ctx, db) },
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	r := buildRouter(cfg, logr, routes{
		announcements: handler.NewAnnouncementHandler(announcementSvc),
		recipients:    handler.NewRecipientHandler(recipientSvc),
		auth:          handler.NewAuthHandler(authSvc),
		metrics:       handler.NewMetricsHandler(metrics, checks),
		metricsSvc:    metrics,
		tokens:        authSvc,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

type routes struct {
	announcements *handler.AnnouncementHandler
	recipients    *handler.RecipientHandler
	auth          *handler.AuthHandler
	metrics       *handler.MetricsHandler
	metricsSvc    *service.MetricsService
	tokens        middleware.TokenValidator
}

func buildRouter(cfg *config.Config, logr *zap.Logger, h routes) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.MaxMultipartMemory = cfg.Storage.MaxAttachmentSize
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(middleware.Metrics(h.metricsSvc))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	r.GET("/health", h.metrics.Health)
	r.GET("/ready", h.metrics.Ready)
	r.GET("/metrics", h.metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
	if (cfg.Storage.Driver == "" || cfg.Storage.Driver == config.StorageDriverLocal) && strings.HasPrefix(cfg.Storage.BaseURL, "/") {
		r.Static(cfg.Storage.BaseURL, cfg.Storage.UploadDir)
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", h.auth.Login)
	auth.GET("/me", middleware.JWT(h.tokens), h.auth.Me)

	ann := api.Group("/announcements", middleware.OptionalJWT(h.tokens))
	ann.GET("", h.announcements.List)
	ann.POST("", h.announcements.Create)
	ann.POST("/recipients/import", middleware.JWT(h.tokens), middleware.RequireRoles(models.RoleTeacher), h.recipients.Import)
	ann.GET("/:id", h.announcements.Get)
	ann.PUT("/:id", h.announcements.Update)
	ann.DELETE("/:id", h.announcements.Delete)
	ann.POST("/:id/regenerate-image", h.announcements.RegenerateImage)
	ann.POST("/:id/upload", h.announcements.UploadAttachments)
	ann.DELETE("/:id/attachment/:attachmentId", h.announcements.DeleteAttachment)
	ann.GET("/:id/recipients/export", h.recipients.Export)

	return r
}

func summaryProvider(cfg config.ContentConfig) service.SummaryProvider {
	if cfg.GeminiAPIKey == "" {
		return nil
	}
	return provider.NewGeminiClient(cfg.GeminiBaseURL, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.Timeout)
}

func imageProviders(cfg config.ContentConfig) []service.ImageProvider {
	var providers []service.ImageProvider
	if cfg.UnsplashEnabled {
		providers = append(providers, provider.NewUnsplashClient(cfg.UnsplashBaseURL, cfg.Timeout))
	}
	if cfg.PexelsAPIKey != "" {
		providers = append(providers, provider.NewPexelsClient(cfg.PexelsBaseURL, cfg.PexelsAPIKey, cfg.Timeout))
	}
	return providers
}

func cleanupLimiter(ctx context.Context, limiter *ratelimit.MemoryLimiter, logr *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := limiter.Cleanup(); removed > 0 {
				logr.Debug("pruned login limiter keys", zap.Int("removed", removed))
			}
		}
	}
}
