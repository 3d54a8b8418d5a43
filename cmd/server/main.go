package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/cache"
	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/config"
	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/database"
	applogger "github.com/Construye-bit/ehc-gym-repo-sub003/internal/logger"
	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/messaging"
	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/metrics"
	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/models"
	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/repository"
	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/routes"
	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/services"
	chatws "github.com/Construye-bit/ehc-gym-repo-sub003/internal/websocket"
	"github.com/Construye-bit/ehc-gym-repo-sub003/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

func main() {
	// 1. Load Config
	cfg, envLoaded, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := applogger.New(cfg.LogLevel, cfg.AppEnv)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() {
		_ = zlog.Sync()
	}()
	if !envLoaded {
		zlog.Debug("no .env file found, using process environment")
	}

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, zlog *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	period, err := services.ParseResetPeriod(cfg.QuotaResetPeriod)
	if err != nil {
		return err
	}
	policy := services.QuotaPolicy{MaxFree: cfg.QuotaMaxFreeMessages, Period: period}

	// 2. Connect to Database
	if cfg.DBUrl == "" {
		return errors.New("DB_URL is required")
	}
	pool, err := database.Connect(ctx, cfg.DBUrl, zlog)
	if err != nil {
		return err
	}
	defer pool.Close()

	observers := services.Observers{Logger: zlog, Events: messaging.NopPublisher{}}
	if cfg.MetricsEnabled {
		observers.Metrics = metrics.New()
	}
	if cfg.NATSUrl != "" {
		publisher, err := messaging.Connect(cfg.NATSUrl)
		if err != nil {
			return err
		}
		defer publisher.Close()
		observers.Events = publisher
		zlog.Info("publishing domain events to nats")
	}

	var postCache services.PostCache
	if cfg.RedisAddr != "" {
		client, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return err
		}
		defer func() {
			_ = client.Close()
		}()
		postCache = cache.NewPostCache(client, cfg.PostCacheTTL)
		zlog.Info("post cache enabled", zap.Duration("ttl", cfg.PostCacheTTL))
	}

	userRepo := repository.NewUserRepository(pool)
	conversationRepo := repository.NewConversationRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)
	quotaRepo := repository.NewQuotaRepository(pool)
	contractRepo := repository.NewContractRepository(pool)
	postRepo := repository.NewPostRepository(pool)
	postLikeRepo := repository.NewPostLikeRepository(pool)

	if cfg.SeedAdmin() {
		if err := seedAdmin(ctx, userRepo, cfg, zlog); err != nil {
			return err
		}
	}

	quotaService := services.NewQuotaService(pool, conversationRepo, quotaRepo, policy, observers)
	chatService := services.NewChatService(pool, conversationRepo, messageRepo, quotaRepo, policy, observers)
	contractService := services.NewContractService(pool, contractRepo, policy, observers)
	postService := services.NewPostService(pool, postRepo, postLikeRepo, postCache, observers)

	hub := chatws.NewHub(zlog)
	go hub.Run(ctx)

	worker := services.NewMaintenanceWorker(
		quotaService,
		postService,
		cfg.QuotaResetInterval,
		cfg.LikesReconcileInterval,
		zlog,
	)
	worker.Start()
	defer func() {
		if err := worker.Stop(); err != nil {
			zlog.Warn("maintenance worker stopped with error", zap.Error(err))
		}
	}()

	// 3. Setup Fiber
	app := fiber.New()

	app.Use(cors.New())
	app.Use(logger.New())
	app.Use(recover.New())

	routes.RegisterRoutes(app, routes.Dependencies{
		Config:    cfg,
		Users:     userRepo,
		Chat:      chatService,
		Quotas:    quotaService,
		Contracts: contractService,
		Posts:     postService,
		Hub:       hub,
		Metrics:   observers.Metrics,
		Logger:    zlog,
	})

	// 4. Start Server
	listenErr := make(chan error, 1)
	go func() {
		zlog.Info("server starting",
			zap.String("port", cfg.Port),
			zap.Int("max_free_messages", policy.MaxFree),
			zap.String("reset_period", string(policy.Period)),
		)
		listenErr <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-listenErr:
		return err
	case <-ctx.Done():
	}

	zlog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return app.ShutdownWithContext(shutdownCtx)
}

func seedAdmin(ctx context.Context, users *repository.UserRepository, cfg *config.Config, zlog *zap.Logger) error {
	hashed, err := utils.HashPassword(cfg.DefaultAdminPassword)
	if err != nil {
		return err
	}
	admin := &models.User{
		Email:        strings.ToLower(strings.TrimSpace(cfg.DefaultAdminEmail)),
		PasswordHash: hashed,
		Role:         models.RoleAdmin,
	}
	created, err := users.CreateIfAbsent(ctx, admin)
	if err != nil {
		return err
	}
	if created {
		zlog.Info("seeded admin account", zap.String("email", admin.Email))
	}
	return nil
}
