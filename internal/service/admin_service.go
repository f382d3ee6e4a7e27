package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/qs3c/betfaro_server/internal/model"
	"github.com/qs3c/betfaro_server/internal/model/dto"
	"github.com/qs3c/betfaro_server/internal/pkg/pubsub"
	"github.com/qs3c/betfaro_server/internal/plan"
	"github.com/qs3c/betfaro_server/internal/repository"
)

var (
	ErrUserNotFound         = errors.New("usuário não encontrado")
	ErrInvalidPlan          = errors.New("plano inválido")
	ErrInvalidDays          = errors.New("quantidade de dias inválida")
	ErrNoActiveSubscription = errors.New("nenhuma assinatura ativa")
)

const (
	adminListLimit      = 100
	detailChatLimit     = 20
	detailAuditLimit    = 10
	chatPreviewRunes    = 100
	chatPreviewEllipsis = "..."
)

type AdminService struct {
	profileRepo *repository.ProfileRepository
	subRepo     *repository.SubscriptionRepository
	chatRepo    *repository.ChatRepository
	auditRepo   *repository.AuditRepository
	notifier    ChangeNotifier
	logger      *zap.Logger
	now         func() time.Time
}

func NewAdminService(
	profileRepo *repository.ProfileRepository,
	subRepo *repository.SubscriptionRepository,
	chatRepo *repository.ChatRepository,
	auditRepo *repository.AuditRepository,
	notifier ChangeNotifier,
	logger *zap.Logger,
) *AdminService {
	return &AdminService{
		profileRepo: profileRepo,
		subRepo:     subRepo,
		chatRepo:    chatRepo,
		auditRepo:   auditRepo,
		notifier:    notifier,
		logger:      orNop(logger),
		now:         time.Now,
	}
}

// ListUsers 服务端按邮箱搜索，无匹配时返回空列表
func (s *AdminService) ListUsers(ctx context.Context, search string) (*dto.AdminUserList, error) {
	profiles, err := s.profileRepo.Search(ctx, search, adminListLimit)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(profiles))
	for _, p := range profiles {
		ids = append(ids, p.ID)
	}

	subs, err := s.subRepo.ListByUserIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	users := make([]*dto.AdminUser, 0, len(profiles))
	for _, p := range profiles {
		users = append(users, dto.NewAdminUser(p, subs[p.ID]))
	}

	return &dto.AdminUserList{Users: users, Total: len(users)}, nil
}

// GetUser 单个用户及其订阅
func (s *AdminService) GetUser(ctx context.Context, userID string) (*dto.AdminUser, error) {
	profile, err := s.profileRepo.GetByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	sub, err := s.findSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}
	return dto.NewAdminUser(profile, sub), nil
}

func (s *AdminService) findSubscription(ctx context.Context, userID string) (*model.Subscription, error) {
	sub, err := s.subRepo.GetByUserID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return sub, err
}

// UpdatePlan 手动授予套餐：状态置为 active，保留已有的 Stripe 关联
// days 为空时不设到期时间
func (s *AdminService) UpdatePlan(ctx context.Context, actorID, userID, planName string, days *int) (*dto.AdminUser, error) {
	p, ok := plan.ParsePlan(planName)
	if !ok {
		return nil, ErrInvalidPlan
	}
	if days != nil && *days <= 0 {
		return nil, ErrInvalidDays
	}

	if _, err := s.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	existing, err := s.findSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}

	sub := &model.Subscription{UserID: userID}
	from := plan.Free
	if existing != nil {
		*sub = *existing
		from = existing.Plan
	}
	sub.Plan = p
	sub.Status = plan.StatusActive
	sub.Provider = plan.ProviderManual
	sub.UpdatedAt = s.now()
	sub.CurrentPeriodEnd = nil
	if days != nil {
		end := s.now().Add(time.Duration(*days) * 24 * time.Hour)
		sub.CurrentPeriodEnd = &end
	}

	if err := s.subRepo.Upsert(ctx, sub); err != nil {
		return nil, err
	}

	details := map[string]interface{}{"from": from, "to": p}
	if days != nil {
		details["days"] = *days
	}
	s.audit(ctx, &actorID, userID, model.AuditPlanUpdated, details)
	publishChange(ctx, s.notifier, s.logger, userID, pubsub.KindPlanUpdated)

	s.logger.Info("subscription plan updated",
		zap.String("actor_id", actorID),
		zap.String("user_id", userID),
		zap.String("plan", string(p)),
	)

	return s.GetUser(ctx, userID)
}

// Revoke 取消激活中的订阅，不删除记录
func (s *AdminService) Revoke(ctx context.Context, actorID, userID string) (*dto.AdminUser, error) {
	if _, err := s.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	sub, err := s.findSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sub == nil || !plan.IsActive(sub.Status) {
		return nil, ErrNoActiveSubscription
	}

	if _, err := s.subRepo.UpdateFields(ctx, userID, map[string]interface{}{
		"status": plan.StatusCanceled,
	}); err != nil {
		return nil, err
	}

	s.audit(ctx, &actorID, userID, model.AuditRevoked, map[string]interface{}{"plan": sub.Plan})
	publishChange(ctx, s.notifier, s.logger, userID, pubsub.KindRevoked)

	return s.GetUser(ctx, userID)
}

// GetUserDetails 用户详情：最近聊天（截断）与审计记录
func (s *AdminService) GetUserDetails(ctx context.Context, userID string) (*dto.UserDetails, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	chats, err := s.chatRepo.ListRecent(ctx, userID, detailChatLimit)
	if err != nil {
		return nil, err
	}
	previews := make([]dto.ChatPreview, 0, len(chats))
	for _, c := range chats {
		previews = append(previews, dto.ChatPreview{
			Role:      c.Role,
			Content:   truncate(c.Content, chatPreviewRunes),
			CreatedAt: c.CreatedAt,
		})
	}

	logs, err := s.auditRepo.ListRecent(ctx, userID, detailAuditLimit)
	if err != nil {
		return nil, err
	}

	return &dto.UserDetails{
		User:        user,
		RecentChats: previews,
		AuditLogs:   logs,
	}, nil
}

// ExpireManualGrants 取消已过期的手动授权，返回受影响的用户
func (s *AdminService) ExpireManualGrants(ctx context.Context, dryRun bool) ([]string, error) {
	expired, err := s.subRepo.ListExpiredManual(ctx, s.now())
	if err != nil {
		return nil, err
	}

	userIDs := make([]string, 0, len(expired))
	for _, sub := range expired {
		userIDs = append(userIDs, sub.UserID)
		if dryRun {
			continue
		}

		if _, err := s.subRepo.UpdateFields(ctx, sub.UserID, map[string]interface{}{
			"status": plan.StatusCanceled,
		}); err != nil {
			return userIDs, err
		}

		s.audit(ctx, nil, sub.UserID, model.AuditExpired, map[string]interface{}{
			"plan":               sub.Plan,
			"current_period_end": sub.CurrentPeriodEnd,
		})
		publishChange(ctx, s.notifier, s.logger, sub.UserID, pubsub.KindExpired)
	}

	if len(userIDs) > 0 {
		s.logger.Info("manual grants expired", zap.Int("count", len(userIDs)), zap.Bool("dry_run", dryRun))
	}
	return userIDs, nil
}

// audit 审计写入失败不影响主流程
func (s *AdminService) audit(ctx context.Context, actorID *string, userID, action string, details map[string]interface{}) {
	data, _ := json.Marshal(details)
	if err := s.auditRepo.Create(ctx, &model.AuditLog{
		UserID:  userID,
		ActorID: actorID,
		Action:  action,
		Details: string(data),
	}); err != nil {
		s.logger.Warn("write audit log failed", zap.String("user_id", userID), zap.String("action", action), zap.Error(err))
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + chatPreviewEllipsis
}
