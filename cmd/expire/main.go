package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/qs3c/betfaro_server/config"
	"github.com/qs3c/betfaro_server/internal/database"
	"github.com/qs3c/betfaro_server/internal/pkg/logger"
	"github.com/qs3c/betfaro_server/internal/pkg/pubsub"
	"github.com/qs3c/betfaro_server/internal/repository"
	"github.com/qs3c/betfaro_server/internal/service"
)

var (
	dryRun  = flag.Bool("dry-run", true, "List expired manual grants without canceling them")
	timeout = flag.Duration("timeout", time.Minute, "Overall timeout for the sweep")
)

func main() {
	flag.Parse()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zl.Sync()

	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		zl.Fatal("failed to connect database", zap.Error(err))
	}

	// Redis 不可用时仍可执行扫描，只是不推送变更
	var notifier service.ChangeNotifier
	if rdb, err := database.NewRedis(&cfg.Redis); err != nil {
		zl.Warn("redis unavailable, change signals disabled", zap.Error(err))
	} else {
		notifier = pubsub.NewPublisher(rdb)
	}

	adminService := service.NewAdminService(
		repository.NewProfileRepository(db),
		repository.NewSubscriptionRepository(db),
		repository.NewChatRepository(db),
		repository.NewAuditRepository(db),
		notifier,
		zl.Named("expire"),
	)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	userIDs, err := adminService.ExpireManualGrants(ctx, *dryRun)
	if err != nil {
		zl.Fatal("sweep failed", zap.Error(err), zap.Int("processed", len(userIDs)))
	}

	for _, id := range userIDs {
		zl.Info("expired manual grant", zap.String("user_id", id), zap.Bool("dry_run", *dryRun))
	}
	if *dryRun {
		zl.Info("dry run: nothing was changed, run with -dry-run=false to cancel", zap.Int("count", len(userIDs)))
		return
	}
	zl.Info("sweep completed", zap.Int("count", len(userIDs)))
}
