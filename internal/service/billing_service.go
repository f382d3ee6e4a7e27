package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/qs3c/betfaro_server/config"
	"github.com/qs3c/betfaro_server/internal/model"
	"github.com/qs3c/betfaro_server/internal/pkg/payment"
	"github.com/qs3c/betfaro_server/internal/pkg/pubsub"
	"github.com/qs3c/betfaro_server/internal/pkg/queue"
	"github.com/qs3c/betfaro_server/internal/plan"
	"github.com/qs3c/betfaro_server/internal/repository"
	"github.com/qs3c/betfaro_server/internal/session"
)

var (
	ErrInvalidCheckoutPlan = errors.New("plano inválido para checkout")
	ErrPriceNotConfigured  = errors.New("preço do plano não configurado")
	ErrUnknownCustomer     = errors.New("assinatura sem usuário correspondente")
	ErrNoBillingAccount    = errors.New("nenhuma assinatura paga encontrada")
)

// Gateway 支付网关，生产环境为 Stripe
type Gateway interface {
	CreateCustomer(ctx context.Context, email, userID string) (string, error)
	CreateCheckoutSession(ctx context.Context, p *payment.CheckoutParams) (string, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
}

type BillingService struct {
	profileRepo *repository.ProfileRepository
	subRepo     *repository.SubscriptionRepository
	gateway     Gateway
	notifier    ChangeNotifier
	stripeCfg   config.StripeConfig
	appURL      string
	logger      *zap.Logger
}

func NewBillingService(
	profileRepo *repository.ProfileRepository,
	subRepo *repository.SubscriptionRepository,
	gateway Gateway,
	notifier ChangeNotifier,
	cfg *config.Config,
	logger *zap.Logger,
) *BillingService {
	return &BillingService{
		profileRepo: profileRepo,
		subRepo:     subRepo,
		gateway:     gateway,
		notifier:    notifier,
		stripeCfg:   cfg.Stripe,
		appURL:      strings.TrimRight(cfg.App.BaseURL, "/"),
		logger:      orNop(logger),
	}
}

// CreateCheckout 创建结账会话并返回跳转地址
// 首次结账时创建 Stripe 客户并写入占位订阅；已有客户 ID 时直接复用
func (s *BillingService) CreateCheckout(ctx context.Context, sess *session.Session, planName string) (string, error) {
	p, ok := plan.ParsePlan(planName)
	if !ok || p == plan.Free {
		return "", ErrInvalidCheckoutPlan
	}

	priceID := s.stripeCfg.PriceFor(string(p))
	if priceID == "" {
		return "", ErrPriceNotConfigured
	}

	customerID, err := s.ensureCustomer(ctx, sess)
	if err != nil {
		return "", err
	}

	metadata := map[string]string{
		"user_id": sess.UserID,
		"plan":    string(p),
	}

	return s.gateway.CreateCheckoutSession(ctx, &payment.CheckoutParams{
		CustomerID: customerID,
		PriceID:    priceID,
		UserID:     sess.UserID,
		SuccessURL: fmt.Sprintf("%s/account?success=true&plan=%s", s.appURL, p),
		CancelURL:  s.appURL + "/plans?canceled=true",
		Metadata:   metadata,
	})
}

// CreatePortal 已有 Stripe 客户的用户进入自助管理页面
func (s *BillingService) CreatePortal(ctx context.Context, userID string) (string, error) {
	sub, err := s.subRepo.GetByUserID(ctx, userID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}
	customerID := sub.CustomerID()
	if customerID == "" {
		return "", ErrNoBillingAccount
	}
	return s.gateway.CreatePortalSession(ctx, customerID, s.appURL+"/account")
}

func (s *BillingService) ensureCustomer(ctx context.Context, sess *session.Session) (string, error) {
	existing, err := s.subRepo.GetByUserID(ctx, sess.UserID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}
	if id := existing.CustomerID(); id != "" {
		return id, nil
	}

	email := sess.Email
	if email == "" {
		profile, err := s.profileRepo.GetByID(ctx, sess.UserID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return "", err
		}
		if profile != nil {
			email = profile.Email
		}
	}

	customerID, err := s.gateway.CreateCustomer(ctx, email, sess.UserID)
	if err != nil {
		return "", fmt.Errorf("create customer: %w", err)
	}

	// 已有行只补客户 ID，不改动套餐与状态
	if existing != nil {
		_, err = s.subRepo.UpdateFields(ctx, sess.UserID, map[string]interface{}{
			"stripe_customer_id": customerID,
		})
	} else {
		err = s.subRepo.Upsert(ctx, &model.Subscription{
			UserID:           sess.UserID,
			Plan:             plan.Free,
			Status:           plan.StatusActive,
			Provider:         plan.ProviderStripe,
			StripeCustomerID: &customerID,
		})
	}
	if err != nil {
		return "", fmt.Errorf("store customer: %w", err)
	}

	s.logger.Info("stripe customer provisioned", zap.String("user_id", sess.UserID), zap.String("customer_id", customerID))
	return customerID, nil
}

// HandleEvent 应用一条已验签的支付事件，不关心的类型直接忽略
func (s *BillingService) HandleEvent(ctx context.Context, event *queue.EventMessage) error {
	switch event.Type {
	case "checkout.session.completed":
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data, &cs); err != nil {
			return fmt.Errorf("decode checkout session: %w", err)
		}
		return s.applyCheckout(ctx, &cs)

	case "customer.subscription.created", "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data, &sub); err != nil {
			return fmt.Errorf("decode subscription: %w", err)
		}
		return s.applySubscription(ctx, &sub, false)

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data, &sub); err != nil {
			return fmt.Errorf("decode subscription: %w", err)
		}
		return s.applySubscription(ctx, &sub, true)
	}

	s.logger.Debug("ignored payment event", zap.String("event_id", event.ID), zap.String("type", event.Type))
	return nil
}

func (s *BillingService) applyCheckout(ctx context.Context, cs *stripe.CheckoutSession) error {
	userID := cs.Metadata["user_id"]
	if userID == "" {
		userID = cs.ClientReferenceID
	}
	customerID := ""
	if cs.Customer != nil {
		customerID = cs.Customer.ID
	}

	current, err := s.resolveSubscription(ctx, userID, customerID)
	if err != nil {
		return err
	}

	p, ok := plan.ParsePlan(cs.Metadata["plan"])
	if !ok {
		p = current.Plan
	}

	current.Plan = p
	current.Status = plan.StatusActive
	current.Provider = plan.ProviderStripe
	current.UpdatedAt = time.Now()
	if customerID != "" {
		current.StripeCustomerID = &customerID
	}
	if cs.Subscription != nil && cs.Subscription.ID != "" {
		subID := cs.Subscription.ID
		current.StripeSubscriptionID = &subID
	}
	if priceID := s.stripeCfg.PriceFor(string(p)); priceID != "" {
		current.StripePriceID = &priceID
	}

	if err := s.subRepo.Upsert(ctx, current); err != nil {
		return err
	}

	publishChange(ctx, s.notifier, s.logger, current.UserID, pubsub.KindCheckout)
	return nil
}

func (s *BillingService) applySubscription(ctx context.Context, sub *stripe.Subscription, deleted bool) error {
	customerID := ""
	if sub.Customer != nil {
		customerID = sub.Customer.ID
	}

	current, err := s.resolveSubscription(ctx, sub.Metadata["user_id"], customerID)
	if err != nil {
		return err
	}

	current.Provider = plan.ProviderStripe
	current.UpdatedAt = time.Now()
	if customerID != "" {
		current.StripeCustomerID = &customerID
	}
	if sub.ID != "" {
		subID := sub.ID
		current.StripeSubscriptionID = &subID
	}

	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		priceID := sub.Items.Data[0].Price.ID
		current.StripePriceID = &priceID
		if p, ok := plan.ParsePlan(s.stripeCfg.PlanForPrice(priceID)); ok {
			current.Plan = p
		}
	}

	if sub.CurrentPeriodEnd > 0 {
		end := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		current.CurrentPeriodEnd = &end
	}

	if deleted {
		current.Status = plan.StatusCanceled
	} else {
		current.Status = MapStripeStatus(sub.Status)
	}

	if err := s.subRepo.Upsert(ctx, current); err != nil {
		return err
	}

	publishChange(ctx, s.notifier, s.logger, current.UserID, pubsub.KindPayment)
	return nil
}

// resolveSubscription 先按 user_id，再按客户 ID 定位订阅行；按 user_id 找不到时返回新行
func (s *BillingService) resolveSubscription(ctx context.Context, userID, customerID string) (*model.Subscription, error) {
	if userID != "" {
		sub, err := s.subRepo.GetByUserID(ctx, userID)
		if err == nil {
			return sub, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return &model.Subscription{UserID: userID, Plan: plan.Free, Status: plan.StatusIncomplete}, nil
	}

	if customerID != "" {
		sub, err := s.subRepo.GetByCustomerID(ctx, customerID)
		if err == nil {
			return sub, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	return nil, ErrUnknownCustomer
}

// MapStripeStatus Stripe 状态映射到本地状态集合
func MapStripeStatus(status stripe.SubscriptionStatus) plan.Status {
	switch status {
	case stripe.SubscriptionStatusActive:
		return plan.StatusActive
	case stripe.SubscriptionStatusTrialing:
		return plan.StatusTrialing
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid, stripe.SubscriptionStatusPaused:
		return plan.StatusPastDue
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		return plan.StatusCanceled
	}
	return plan.StatusIncomplete
}
