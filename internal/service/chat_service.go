package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/qs3c/betfaro_server/internal/model"
	"github.com/qs3c/betfaro_server/internal/model/dto"
	"github.com/qs3c/betfaro_server/internal/pkg/backend"
	"github.com/qs3c/betfaro_server/internal/plan"
	"github.com/qs3c/betfaro_server/internal/repository"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// ChatBackend 聊天机器人
type ChatBackend interface {
	Chat(ctx context.Context, in *backend.ChatRequest) (*backend.ChatResponse, error)
}

type ChatService struct {
	chatRepo *repository.ChatRepository
	account  *SubscriptionService
	quota    *QuotaService
	backend  ChatBackend
	logger   *zap.Logger
}

func NewChatService(
	chatRepo *repository.ChatRepository,
	account *SubscriptionService,
	quota *QuotaService,
	backend ChatBackend,
	logger *zap.Logger,
) *ChatService {
	return &ChatService{
		chatRepo: chatRepo,
		account:  account,
		quota:    quota,
		backend:  backend,
		logger:   orNop(logger),
	}
}

// History 最近的对话，按时间升序
func (s *ChatService) History(ctx context.Context, userID string, limit int) ([]dto.ChatHistoryItem, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	msgs, err := s.chatRepo.ListRecent(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	items := make([]dto.ChatHistoryItem, 0, len(msgs))
	for _, m := range msgs {
		items = append(items, dto.ChatHistoryItem{
			ID:        m.ID,
			Role:      m.Role,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		})
	}
	return items, nil
}

// Send 占用一次额度后转发给聊天机器人，后端失败时退还额度
func (s *ChatService) Send(ctx context.Context, userID, content string) (*dto.ChatReply, error) {
	effective, err := s.account.EffectivePlan(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.quota.Use(ctx, userID, plan.PolicyFor(effective).DailyLimit); err != nil {
		return nil, err
	}

	if err := s.chatRepo.Create(ctx, &model.ChatMessage{
		UserID:  userID,
		Role:    model.ChatRoleUser,
		Content: content,
	}); err != nil {
		s.refund(ctx, userID)
		return nil, err
	}

	resp, err := s.backend.Chat(ctx, &backend.ChatRequest{
		UserID:  userID,
		Plan:    string(effective),
		Content: content,
	})
	if err != nil {
		s.refund(ctx, userID)
		return nil, err
	}

	reply := &model.ChatMessage{
		UserID:  userID,
		Role:    model.ChatRoleAssistant,
		Content: resp.Response,
	}
	if err := s.chatRepo.Create(ctx, reply); err != nil {
		s.logger.Warn("store chat reply failed", zap.String("user_id", userID), zap.Error(err))
		reply.CreatedAt = time.Now()
	}

	return &dto.ChatReply{
		Response:  resp.Response,
		Timestamp: reply.CreatedAt,
	}, nil
}

func (s *ChatService) refund(ctx context.Context, userID string) {
	if err := s.quota.Refund(ctx, userID); err != nil {
		s.logger.Warn("refund quota failed", zap.String("user_id", userID), zap.Error(err))
	}
}
