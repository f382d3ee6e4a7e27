package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/qs3c/betfaro_server/config"
	"github.com/qs3c/betfaro_server/internal/database"
	"github.com/qs3c/betfaro_server/internal/pkg/logger"
	"github.com/qs3c/betfaro_server/internal/pkg/payment"
	"github.com/qs3c/betfaro_server/internal/pkg/pubsub"
	"github.com/qs3c/betfaro_server/internal/pkg/queue"
	"github.com/qs3c/betfaro_server/internal/repository"
	"github.com/qs3c/betfaro_server/internal/service"
)

const popTimeout = 5 * time.Second

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

	// 初始化数据库
	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		zl.Fatal("failed to connect database", zap.Error(err))
	}

	// 初始化 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		zl.Fatal("failed to connect redis", zap.Error(err))
	}

	paymentQueue := queue.NewQueue(rdb, cfg.Queue.PaymentQueue)
	publisher := pubsub.NewPublisher(rdb)

	billingService := service.NewBillingService(
		repository.NewProfileRepository(db),
		repository.NewSubscriptionRepository(db),
		payment.NewStripeGateway(cfg.Stripe.SecretKey),
		publisher,
		cfg,
		zl.Named("billing"),
	)

	// 创建 context 用于优雅关闭
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	workers := cfg.Queue.MaxWorkers
	if workers <= 0 {
		workers = 1
	}
	zl.Info("worker started", zap.Int("workers", workers), zap.String("queue", cfg.Queue.PaymentQueue))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			consume(ctx, paymentQueue, billingService, zl.With(zap.Int("worker", workerID)))
		}(i)
	}

	wg.Wait()
	zl.Info("worker shutdown complete")
}

// consume 单个事件失败只记录日志；Stripe 会按自身策略重发
func consume(ctx context.Context, q *queue.Queue, billing *service.BillingService, zl *zap.Logger) {
	for {
		if ctx.Err() != nil {
			return
		}

		msg, err := q.Pop(ctx, popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			zl.Warn("failed to pop event", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if msg == nil {
			continue // 超时，继续等待
		}

		if err := billing.HandleEvent(ctx, msg); err != nil {
			zl.Error("payment event failed",
				zap.String("event_id", msg.ID),
				zap.String("type", msg.Type),
				zap.Error(err),
			)
			continue
		}
		zl.Info("payment event applied", zap.String("event_id", msg.ID), zap.String("type", msg.Type))
	}
}
