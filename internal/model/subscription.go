package model

import (
	"time"

	"github.com/qs3c/betfaro_server/internal/plan"
)

// Subscription 与 Profile 一对一，不做物理删除，取消时状态置为 canceled
type Subscription struct {
	UserID               string        `gorm:"primaryKey;size:36" json:"user_id"`
	Plan                 plan.Plan     `gorm:"size:20;not null;default:free" json:"plan"`
	Status               plan.Status   `gorm:"size:20;not null;default:active;index" json:"status"`
	Provider             plan.Provider `gorm:"size:20;not null;default:manual" json:"provider"`
	StripeCustomerID     *string       `gorm:"size:100;index" json:"stripe_customer_id"`
	StripeSubscriptionID *string       `gorm:"size:100" json:"stripe_subscription_id"`
	StripePriceID        *string       `gorm:"size:100" json:"stripe_price_id"`
	CurrentPeriodEnd     *time.Time    `json:"current_period_end"`
	UpdatedAt            time.Time     `json:"updated_at"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}

// Snapshot 允许 nil 接收者，nil 订阅对应 nil 快照
func (s *Subscription) Snapshot() *plan.Snapshot {
	if s == nil {
		return nil
	}
	return &plan.Snapshot{Plan: s.Plan, Status: s.Status}
}

func (s *Subscription) EffectivePlan() plan.Plan {
	return plan.Effective(s.Snapshot())
}

func (s *Subscription) CustomerID() string {
	if s == nil || s.StripeCustomerID == nil {
		return ""
	}
	return *s.StripeCustomerID
}
