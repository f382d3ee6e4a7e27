package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/qs3c/betfaro_server/internal/model"
	"github.com/qs3c/betfaro_server/internal/plan"
)

// TestProfile 创建测试用户
func TestProfile(t *testing.T, db *gorm.DB, opts ...func(*model.Profile)) *model.Profile {
	t.Helper()

	id := uuid.NewString()
	profile := &model.Profile{
		ID:    id,
		Email: fmt.Sprintf("test_%s@example.com", id[:8]),
		Role:  model.RoleUser,
	}

	for _, opt := range opts {
		opt(profile)
	}

	if err := db.Create(profile).Error; err != nil {
		t.Fatalf("Failed to create test profile: %v", err)
	}

	return profile
}

// WithEmail 设置邮箱
func WithEmail(email string) func(*model.Profile) {
	return func(p *model.Profile) {
		p.Email = email
	}
}

// WithName 设置昵称
func WithName(name string) func(*model.Profile) {
	return func(p *model.Profile) {
		p.Name = &name
	}
}

// AsAdmin 设置为管理员
func AsAdmin() func(*model.Profile) {
	return func(p *model.Profile) {
		p.Role = model.RoleAdmin
	}
}

// WithCreatedAt 设置创建时间
func WithCreatedAt(at time.Time) func(*model.Profile) {
	return func(p *model.Profile) {
		p.CreatedAt = at
	}
}

// TestSubscription 为用户创建订阅，默认 free/active/manual
func TestSubscription(t *testing.T, db *gorm.DB, userID string, opts ...func(*model.Subscription)) *model.Subscription {
	t.Helper()

	sub := &model.Subscription{
		UserID:   userID,
		Plan:     plan.Free,
		Status:   plan.StatusActive,
		Provider: plan.ProviderManual,
	}

	for _, opt := range opts {
		opt(sub)
	}

	if err := db.Create(sub).Error; err != nil {
		t.Fatalf("Failed to create test subscription: %v", err)
	}

	return sub
}

// WithPlan 设置套餐与状态
func WithPlan(p plan.Plan, status plan.Status) func(*model.Subscription) {
	return func(s *model.Subscription) {
		s.Plan = p
		s.Status = status
	}
}

// WithStripeCustomer 设置 Stripe 客户
func WithStripeCustomer(customerID string) func(*model.Subscription) {
	return func(s *model.Subscription) {
		s.Provider = plan.ProviderStripe
		s.StripeCustomerID = &customerID
	}
}

// WithPeriodEnd 设置到期时间
func WithPeriodEnd(at time.Time) func(*model.Subscription) {
	return func(s *model.Subscription) {
		s.CurrentPeriodEnd = &at
	}
}

// TestChatMessage 写入一条聊天记录
func TestChatMessage(t *testing.T, db *gorm.DB, userID, role, content string, at time.Time) *model.ChatMessage {
	t.Helper()

	msg := &model.ChatMessage{
		UserID:    userID,
		Role:      role,
		Content:   content,
		CreatedAt: at,
	}
	if err := db.Create(msg).Error; err != nil {
		t.Fatalf("Failed to create test chat message: %v", err)
	}
	return msg
}
