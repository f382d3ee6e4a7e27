package dto

import (
	"time"

	"github.com/qs3c/betfaro_server/internal/model"
	"github.com/qs3c/betfaro_server/internal/plan"
)

// SubscriptionSummary 列表中展示的订阅信息
type SubscriptionSummary struct {
	Plan             plan.Plan     `json:"plan"`
	Status           plan.Status   `json:"status"`
	Provider         plan.Provider `json:"provider"`
	StripeCustomerID *string       `json:"stripe_customer_id,omitempty"`
	CurrentPeriodEnd *time.Time    `json:"current_period_end,omitempty"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// AdminUser 用户与其订阅（至多一条）
type AdminUser struct {
	ID            string               `json:"id"`
	Email         string               `json:"email"`
	Name          *string              `json:"name"`
	Role          model.Role           `json:"role"`
	CreatedAt     time.Time            `json:"created_at"`
	Subscription  *SubscriptionSummary `json:"subscription"`
	EffectivePlan plan.Plan            `json:"effective_plan"`
}

// NewAdminUser 将关联订阅压平为单个可选对象
func NewAdminUser(p *model.Profile, sub *model.Subscription) *AdminUser {
	u := &AdminUser{
		ID:            p.ID,
		Email:         p.Email,
		Name:          p.Name,
		Role:          p.Role,
		CreatedAt:     p.CreatedAt,
		EffectivePlan: sub.EffectivePlan(),
	}
	if sub != nil {
		u.Subscription = &SubscriptionSummary{
			Plan:             sub.Plan,
			Status:           sub.Status,
			Provider:         sub.Provider,
			StripeCustomerID: sub.StripeCustomerID,
			CurrentPeriodEnd: sub.CurrentPeriodEnd,
			UpdatedAt:        sub.UpdatedAt,
		}
	}
	return u
}

type AdminUserList struct {
	Users []*AdminUser `json:"users"`
	Total int          `json:"total"`
}

// UpdatePlanRequest 管理员修改套餐
type UpdatePlanRequest struct {
	Plan string `json:"plan" binding:"required"`
	Days *int   `json:"days,omitempty" binding:"omitempty,min=1,max=3650"`
}

type ChatPreview struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// UserDetails 用户详情面板
type UserDetails struct {
	User        *AdminUser        `json:"user"`
	RecentChats []ChatPreview     `json:"recent_chats"`
	AuditLogs   []*model.AuditLog `json:"audit_logs"`
}
