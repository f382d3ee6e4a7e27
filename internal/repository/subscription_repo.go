package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qs3c/betfaro_server/internal/model"
	"github.com/qs3c/betfaro_server/internal/plan"
)

type SubscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// GetByUserID 不存在时返回 gorm.ErrRecordNotFound
func (r *SubscriptionRepository) GetByUserID(ctx context.Context, userID string) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *SubscriptionRepository) GetByCustomerID(ctx context.Context, customerID string) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.WithContext(ctx).Where("stripe_customer_id = ?", customerID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// Upsert 以 user_id 为冲突键整行写入
func (r *SubscriptionRepository) Upsert(ctx context.Context, sub *model.Subscription) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(sub).Error
}

// UpdateFields 更新指定字段，返回受影响行数
func (r *SubscriptionRepository) UpdateFields(ctx context.Context, userID string, fields map[string]interface{}) (int64, error) {
	result := r.db.WithContext(ctx).Model(&model.Subscription{}).
		Where("user_id = ?", userID).
		Updates(fields)
	return result.RowsAffected, result.Error
}

// ListByUserIDs 批量查询，按 user_id 索引
func (r *SubscriptionRepository) ListByUserIDs(ctx context.Context, userIDs []string) (map[string]*model.Subscription, error) {
	out := make(map[string]*model.Subscription, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	var subs []*model.Subscription
	if err := r.db.WithContext(ctx).Where("user_id IN ?", userIDs).Find(&subs).Error; err != nil {
		return nil, err
	}
	for _, s := range subs {
		out[s.UserID] = s
	}
	return out, nil
}

// ListExpiredManual 查询已过期但仍处于激活状态的手动授权
func (r *SubscriptionRepository) ListExpiredManual(ctx context.Context, now time.Time) ([]*model.Subscription, error) {
	var subs []*model.Subscription
	err := r.db.WithContext(ctx).
		Where("provider = ?", plan.ProviderManual).
		Where("status IN ?", []plan.Status{plan.StatusActive, plan.StatusTrialing}).
		Where("current_period_end IS NOT NULL AND current_period_end < ?", now).
		Find(&subs).Error
	return subs, err
}
