package cron

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultInterval = time.Hour

// Expirer 取消到期的手动授权
type Expirer interface {
	ExpireManualGrants(ctx context.Context, dryRun bool) ([]string, error)
}

type Service struct {
	expirer  Expirer
	interval time.Duration
	logger   *zap.Logger
	stopChan chan struct{}
	stopOnce sync.Once
}

func NewService(expirer Expirer, interval time.Duration, logger *zap.Logger) *Service {
	if interval <= 0 {
		interval = defaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		expirer:  expirer,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start 启动定时任务，启动时先执行一次
func (s *Service) Start() {
	go s.runExpirySweep()
	s.logger.Info("cron service started", zap.Duration("interval", s.interval))
}

// Stop 停止定时任务，可重复调用
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		s.logger.Info("cron service stopped")
	})
}

func (s *Service) runExpirySweep() {
	s.sweep()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Service) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	// 停止信号同时取消进行中的查询
	go func() {
		select {
		case <-s.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	if _, err := s.RunNow(ctx); err != nil {
		s.logger.Error("expire manual grants failed", zap.Error(err))
	}
}

// RunNow 立即执行一次到期扫描
func (s *Service) RunNow(ctx context.Context) ([]string, error) {
	return s.expirer.ExpireManualGrants(ctx, false)
}
