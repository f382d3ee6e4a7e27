package service

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/qs3c/betfaro_server/internal/model"
	"github.com/qs3c/betfaro_server/internal/model/dto"
	"github.com/qs3c/betfaro_server/internal/plan"
	"github.com/qs3c/betfaro_server/internal/repository"
)

// SubscriptionService 账户读取路径，所有客户端状态都经由这里获取
type SubscriptionService struct {
	profileRepo *repository.ProfileRepository
	subRepo     *repository.SubscriptionRepository
}

func NewSubscriptionService(profileRepo *repository.ProfileRepository, subRepo *repository.SubscriptionRepository) *SubscriptionService {
	return &SubscriptionService{
		profileRepo: profileRepo,
		subRepo:     subRepo,
	}
}

// GetSubscription 无订阅时返回 nil, nil
func (s *SubscriptionService) GetSubscription(ctx context.Context, userID string) (*model.Subscription, error) {
	sub, err := s.subRepo.GetByUserID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// GetProfile 无记录时返回 nil, nil
func (s *SubscriptionService) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	profile, err := s.profileRepo.GetByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// EffectivePlan 当前有效套餐
func (s *SubscriptionService) EffectivePlan(ctx context.Context, userID string) (plan.Plan, error) {
	sub, err := s.GetSubscription(ctx, userID)
	if err != nil {
		return plan.Free, err
	}
	return sub.EffectivePlan(), nil
}

// IsAdmin 以数据库中的角色为准
func (s *SubscriptionService) IsAdmin(ctx context.Context, userID string) (bool, error) {
	profile, err := s.GetProfile(ctx, userID)
	if err != nil {
		return false, err
	}
	return profile.IsAdmin(), nil
}

// GetState 读取 profile 与订阅，缺失记录视为空状态
func (s *SubscriptionService) GetState(ctx context.Context, userID string) (*dto.AccountState, error) {
	profile, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	sub, err := s.GetSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}

	effective := sub.EffectivePlan()
	policy := plan.PolicyFor(effective)

	return &dto.AccountState{
		Profile:       profile,
		Subscription:  sub,
		EffectivePlan: effective,
		DailyLimit:    policy.DailyLimit,
		Features:      policy.Features,
	}, nil
}
