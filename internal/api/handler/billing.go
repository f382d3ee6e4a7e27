package handler

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/qs3c/betfaro_server/internal/model/dto"
	"github.com/qs3c/betfaro_server/internal/pkg/payment"
	"github.com/qs3c/betfaro_server/internal/pkg/queue"
	"github.com/qs3c/betfaro_server/internal/pkg/response"
	"github.com/qs3c/betfaro_server/internal/service"
	"github.com/qs3c/betfaro_server/internal/session"
)

const maxWebhookBodyBytes = int64(65536)

type BillingHandler struct {
	billingService *service.BillingService
	queue          *queue.Queue
	webhookSecret  string
	logger         *zap.Logger
}

func NewBillingHandler(billingService *service.BillingService, q *queue.Queue, webhookSecret string, logger *zap.Logger) *BillingHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BillingHandler{
		billingService: billingService,
		queue:          q,
		webhookSecret:  webhookSecret,
		logger:         logger,
	}
}

// Checkout 创建 Stripe 结账会话
// POST /api/billing/checkout
func (h *BillingHandler) Checkout(c *gin.Context) {
	sess, ok := session.FromContext(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "Plano obrigatório")
		return
	}

	url, err := h.billingService.CreateCheckout(c.Request.Context(), sess, req.Plan)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, dto.CheckoutResponse{URL: url})
}

// Portal 进入 Stripe 客户自助页面
// POST /api/billing/portal
func (h *BillingHandler) Portal(c *gin.Context) {
	sess, ok := session.FromContext(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	url, err := h.billingService.CreatePortal(c.Request.Context(), sess.UserID)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, dto.CheckoutResponse{URL: url})
}

// Webhook 校验签名后入队，由 worker 异步处理
// POST /api/billing/webhook
func (h *BillingHandler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		response.ParamError(c, "Corpo da requisição inválido")
		return
	}

	event, err := payment.VerifyEvent(body, c.GetHeader("Stripe-Signature"), h.webhookSecret)
	if err != nil {
		h.logger.Warn("webhook signature rejected", zap.Error(err))
		response.ParamError(c, "Assinatura inválida")
		return
	}

	msg := &queue.EventMessage{
		ID:         event.ID,
		Type:       string(event.Type),
		ReceivedAt: time.Now(),
	}
	if event.Data != nil {
		msg.Data = event.Data.Raw
	}

	// 入队失败返回 500，Stripe 会重试投递
	if err := h.queue.Push(c.Request.Context(), msg); err != nil {
		handleError(c, err)
		return
	}

	h.logger.Info("payment event queued", zap.String("event_id", msg.ID), zap.String("type", msg.Type))
	response.Success(c, gin.H{"received": true})
}
