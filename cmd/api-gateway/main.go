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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/mediare/family-trust-api/api/swagger"
	"github.com/mediare/family-trust-api/internal/classifier"
	"github.com/mediare/family-trust-api/internal/handler"
	"github.com/mediare/family-trust-api/internal/middleware"
	"github.com/mediare/family-trust-api/internal/models"
	"github.com/mediare/family-trust-api/internal/repository"
	"github.com/mediare/family-trust-api/internal/service"
	"github.com/mediare/family-trust-api/pkg/cache"
	"github.com/mediare/family-trust-api/pkg/config"
	"github.com/mediare/family-trust-api/pkg/database"
	"github.com/mediare/family-trust-api/pkg/export"
	"github.com/mediare/family-trust-api/pkg/jobs"
	"github.com/mediare/family-trust-api/pkg/logger"
	corsmiddleware "github.com/mediare/family-trust-api/pkg/middleware/cors"
	reqidmiddleware "github.com/mediare/family-trust-api/pkg/middleware/requestid"
	"github.com/mediare/family-trust-api/pkg/storage"
)

// @title Family Trust API
// @version 1.0.0
// @description Moderated family chat, child points ledger and notifications for co-parenting families
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db, logr); err != nil {
			logr.Fatal("failed to apply migrations", zap.Error(err))
		}
	}

	metricsSvc := service.NewMetricsService()

	var (
		redisClient *redis.Client
		cacheRepo   service.CacheRepository
	)
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Moderation.ListCacheTTL, logr, cacheRepo != nil)

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	familyRepo := repository.NewFamilyRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	budgetRepo := repository.NewBudgetRepository(db)

	guard := service.NewAccessGuard(familyRepo, userRepo, logr)

	notificationSvc := service.NewNotificationService(notificationRepo, familyRepo, guard, validate, metricsSvc, logr, service.NotificationConfig{
		EmergencyBypassSuppression: cfg.Notifications.EmergencyBypassSuppression,
	})
	notifyQueue := jobs.NewQueue("notifications", notificationSvc.Handle, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		Logger:     logr,
	})
	notificationSvc.SetQueue(notifyQueue)
	notifyQueue.Start(ctx)
	defer notifyQueue.Stop()

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	familySvc := service.NewFamilyService(familyRepo, userRepo, guard, validate, logr)

	classifierPort, err := classifier.New(ctx, cfg.Classifier, logr)
	if err != nil {
		logr.Fatal("failed to init classifier", zap.Error(err))
	}
	audioStore, err := storage.NewLocalStorage(cfg.Moderation.AudioStorageDir)
	if err != nil {
		logr.Fatal("failed to init audio storage", zap.Error(err))
	}
	moderationSvc := service.NewModerationService(conversationRepo, guard, classifierPort, audioStore, notificationSvc, cacheSvc, validate, metricsSvc, logr, service.ModerationConfig{
		ClassifierTimeout: cfg.Moderation.ClassifierTimeout,
		RewritePolicy:     cfg.Moderation.RewritePolicy,
		Denylist:          cfg.Moderation.Denylist,
		AudioMaxBytes:     cfg.Moderation.AudioMaxBytes,
		AudioAllowedMIMEs: cfg.Moderation.AudioAllowedMIMEs,
		ListCacheTTL:      cfg.Moderation.ListCacheTTL,
	})

	ledgerSvc := service.NewLedgerService(ledgerRepo, familyRepo, guard, validate, metricsSvc, logr, service.LedgerConfig{
		PointsPerLevel: cfg.Ledger.PointsPerLevel,
	})
	taskSvc := service.NewTaskService(taskRepo, familyRepo, guard, ledgerSvc, notificationSvc, validate, logr)
	budgetSvc := service.NewBudgetService(budgetRepo, guard, logr)

	exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Fatal("failed to init export storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportSvc := service.NewExportService(ledgerSvc, exportStore, signer, service.ExportConfig{
		APIPrefix:      cfg.APIPrefix,
		ResultTTL:      cfg.Exports.SignedURLTTL,
		PointsPerLevel: cfg.Ledger.PointsPerLevel,
	}, logr, export.NewCSVExporter(), export.NewPDFExporter())
	go runExportCleanup(ctx, exportSvc, cfg.Exports.CleanupInterval, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	if cfg.Metrics.Enabled {
		r.Use(middleware.Metrics(metricsSvc))
	}

	checks := map[string]handler.ReadinessCheck{"database": db.PingContext}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	metricsHandler := handler.NewMetricsHandler(metricsSvc, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	if cfg.Metrics.Enabled {
		r.GET("/metrics", metricsHandler.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r.Group(cfg.APIPrefix), routeDeps{
		guard:         guard,
		auditLog:      userRepo,
		logger:        logr,
		auth:          handler.NewAuthHandler(authSvc),
		authSvc:       authSvc,
		families:      handler.NewFamilyHandler(familySvc),
		conversations: handler.NewConversationHandler(moderationSvc, cfg.Moderation.AudioMaxBytes),
		tasks:         handler.NewTaskHandler(taskSvc),
		ledger:        handler.NewLedgerHandler(ledgerSvc, exportSvc),
		budgets:       handler.NewBudgetHandler(budgetSvc),
		notifications: handler.NewNotificationHandler(notificationSvc),
	})

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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}

type routeDeps struct {
	guard         *service.AccessGuard
	auditLog      *repository.UserRepository
	logger        *zap.Logger
	authSvc       *service.AuthService
	auth          *handler.AuthHandler
	families      *handler.FamilyHandler
	conversations *handler.ConversationHandler
	tasks         *handler.TaskHandler
	ledger        *handler.LedgerHandler
	budgets       *handler.BudgetHandler
	notifications *handler.NotificationHandler
}

func registerRoutes(api *gin.RouterGroup, d routeDeps) {
	audit := func(action, resource, idParam string) gin.HandlerFunc {
		return middleware.Audit(d.auditLog, d.logger, action, resource, idParam)
	}

	api.POST("/auth/login", d.auth.Login)
	api.POST("/auth/refresh", d.auth.Refresh)
	api.GET("/exports/:token", d.ledger.Download)

	secured := api.Group("")
	secured.Use(middleware.JWT(d.authSvc))

	secured.POST("/auth/logout", audit(models.AuditActionLogout, "session", ""), d.auth.Logout)
	secured.GET("/me", d.auth.Me)
	secured.PUT("/me/suppression", d.families.Suppression)

	secured.GET("/families", d.families.List)
	secured.POST("/families/switch", audit(models.AuditActionFamilySwitch, "family", ""), d.families.Switch)

	family := secured.Group("/families/:familyId")
	family.Use(middleware.FamilyRole(d.guard))
	family.GET("/children", d.families.Children)
	family.POST("/conversations", d.conversations.Create)
	family.GET("/conversations", d.conversations.List)
	family.GET("/tasks", d.tasks.ListTasks)
	family.POST("/tasks", middleware.FamilyRole(d.guard, models.RoleParent), audit(models.AuditActionTaskCreate, "task", ""), d.tasks.CreateTask)
	family.GET("/rewards", d.tasks.ListRewards)
	family.POST("/rewards", middleware.FamilyRole(d.guard, models.RoleParent), audit(models.AuditActionRewardCreate, "reward", ""), d.tasks.CreateReward)

	secured.POST("/conversations/:conversationId/messages", audit(models.AuditActionMessageSend, "conversation", "conversationId"), d.conversations.SendText)
	secured.POST("/conversations/:conversationId/audio", audit(models.AuditActionMessageSend, "conversation", "conversationId"), d.conversations.SendAudio)
	secured.GET("/conversations/:conversationId/messages", d.conversations.Messages)
	secured.POST("/messages/:messageId/read", d.conversations.MarkRead)

	secured.POST("/tasks/:taskId/complete", audit(models.AuditActionTaskComplete, "task", "taskId"), d.tasks.CompleteTask)
	secured.POST("/rewards/:rewardId/redeem", audit(models.AuditActionRewardRedeem, "reward", "rewardId"), d.tasks.RedeemReward)
	secured.DELETE("/tasks/:taskId", audit(models.AuditActionTaskDelete, "task", "taskId"), d.tasks.DeleteTask)
	secured.DELETE("/rewards/:rewardId", audit(models.AuditActionRewardDelete, "reward", "rewardId"), d.tasks.DeleteReward)

	secured.GET("/children/:childId/progress", d.ledger.Progress)
	secured.GET("/children/:childId/ledger", d.ledger.History)
	secured.GET("/children/:childId/ledger/verify", d.ledger.Verify)
	secured.POST("/children/:childId/ledger/statement", audit(models.AuditActionStatementMake, "child", "childId"), d.ledger.Statement)

	secured.GET("/budgets", d.budgets.List)
	secured.GET("/budgets/:budgetId", d.budgets.Get)

	secured.GET("/notifications", d.notifications.List)
	secured.POST("/notifications/emergency", audit(models.AuditActionEmergencyAlert, "notification", ""), d.notifications.Emergency)
	secured.POST("/notifications/:notificationId/read", d.notifications.MarkRead)
}

func runExportCleanup(ctx context.Context, exports *service.ExportService, interval time.Duration, logr *zap.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := exports.Cleanup()
			if err != nil {
				logr.Warn("export cleanup failed", zap.Error(err))
				continue
			}
			if len(removed) > 0 {
				logr.Info("expired statements removed", zap.Int("count", len(removed)))
			}
		}
	}
}
