package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/qs3c/betfaro_server/internal/pkg/pubsub"
)

// ChangeNotifier 订阅变更信号的发布方，可为 nil
type ChangeNotifier interface {
	PublishChange(ctx context.Context, msg *pubsub.ChangeMessage) error
}

// publishChange 发布失败只记录日志，不影响写入结果
func publishChange(ctx context.Context, n ChangeNotifier, logger *zap.Logger, userID, kind string) {
	if n == nil {
		return
	}
	if err := n.PublishChange(ctx, &pubsub.ChangeMessage{UserID: userID, Kind: kind}); err != nil {
		logger.Warn("publish subscription change failed",
			zap.String("user_id", userID),
			zap.String("kind", kind),
			zap.Error(err),
		)
	}
}

func orNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
