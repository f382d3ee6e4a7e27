package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/betfaro_server/internal/api/middleware"
	"github.com/qs3c/betfaro_server/internal/pkg/response"
	"github.com/qs3c/betfaro_server/internal/service"
)

type AccountHandler struct {
	accountService *service.SubscriptionService
	quotaService   *service.QuotaService
}

func NewAccountHandler(accountService *service.SubscriptionService, quotaService *service.QuotaService) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		quotaService:   quotaService,
	}
}

// Get 当前用户的资料、订阅与有效套餐
// GET /api/account
func (h *AccountHandler) Get(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	state, err := h.accountService.GetState(c.Request.Context(), userID)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, state)
}

// Quota 获取当前用户配额信息
// GET /api/account/quota
func (h *AccountHandler) Quota(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	effective, err := h.accountService.EffectivePlan(c.Request.Context(), userID)
	if err != nil {
		handleError(c, err)
		return
	}

	info, err := h.quotaService.Info(c.Request.Context(), userID, effective)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, info)
}
