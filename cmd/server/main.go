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

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/qs3c/betfaro_server/config"
	"github.com/qs3c/betfaro_server/internal/api"
	"github.com/qs3c/betfaro_server/internal/api/handler"
	"github.com/qs3c/betfaro_server/internal/database"
	"github.com/qs3c/betfaro_server/internal/pkg/backend"
	"github.com/qs3c/betfaro_server/internal/pkg/cron"
	"github.com/qs3c/betfaro_server/internal/pkg/jwt"
	"github.com/qs3c/betfaro_server/internal/pkg/logger"
	"github.com/qs3c/betfaro_server/internal/pkg/payment"
	"github.com/qs3c/betfaro_server/internal/pkg/pubsub"
	"github.com/qs3c/betfaro_server/internal/pkg/queue"
	"github.com/qs3c/betfaro_server/internal/pkg/ws"
	"github.com/qs3c/betfaro_server/internal/repository"
	"github.com/qs3c/betfaro_server/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	// 加载配置
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zl.Sync()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	// 初始化数据库
	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	zl.Info("database connected", zap.String("driver", cfg.Database.Driver))

	// 初始化 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	zl.Info("redis connected")

	// 初始化 Queue、Pub/Sub 与 WebSocket Hub
	paymentQueue := queue.NewQueue(rdb, cfg.Queue.PaymentQueue)
	publisher := pubsub.NewPublisher(rdb)
	subscriber := pubsub.NewSubscriber(rdb)
	wsHub := ws.NewHub(zl.Named("ws"))

	// 外部服务
	backendClient := backend.NewClient(cfg.Backend.URL, cfg.Backend.InternalKey,
		time.Duration(cfg.Backend.TimeoutSeconds)*time.Second)
	gateway := payment.NewStripeGateway(cfg.Stripe.SecretKey)

	// 初始化 Repository
	profileRepo := repository.NewProfileRepository(db)
	subRepo := repository.NewSubscriptionRepository(db)
	chatRepo := repository.NewChatRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	// 初始化 Service
	accountService := service.NewSubscriptionService(profileRepo, subRepo)
	wsHub.SetAdminCheck(accountService.IsAdmin)
	quotaService := service.NewQuotaService(rdb)
	adminService := service.NewAdminService(profileRepo, subRepo, chatRepo, auditRepo, publisher, zl.Named("admin"))
	billingService := service.NewBillingService(profileRepo, subRepo, gateway, publisher, cfg, zl.Named("billing"))
	picksService := service.NewPicksService(backendClient)
	chatService := service.NewChatService(chatRepo, accountService, quotaService, backendClient, zl.Named("chat"))

	// 初始化 Router
	router := api.NewRouter(
		handler.NewHealthHandler(),
		handler.NewAccountHandler(accountService, quotaService),
		handler.NewBillingHandler(billingService, paymentQueue, cfg.Stripe.WebhookSecret, zl.Named("webhook")),
		handler.NewPicksHandler(picksService),
		handler.NewChatHandler(chatService),
		handler.NewAdminHandler(adminService),
		handler.NewWebSocketHandler(wsHub, accountService, cfg.CORS, zl.Named("ws")),
		jwt.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Audience),
		accountService,
		quotaService,
		zl.Named("http"),
		cfg,
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 到期扫描
	cronService := cron.NewService(adminService, time.Duration(cfg.Cron.ExpireIntervalMinutes)*time.Minute, zl.Named("cron"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		zl.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// 订阅变更只作为脏标记转发，客户端自行重新拉取
	g.Go(func() error {
		err := subscriber.Subscribe(gctx, func(msg *pubsub.ChangeMessage) {
			if err := wsHub.Notify(msg.UserID, &ws.Message{Type: pubsub.TypeSubscriptionChanged}); err != nil {
				zl.Warn("ws notify failed", zap.String("user_id", msg.UserID), zap.Error(err))
			}
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		cronService.Start()
		<-gctx.Done()
		cronService.Stop()
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		zl.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
