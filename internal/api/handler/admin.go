package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/betfaro_server/internal/api/middleware"
	"github.com/qs3c/betfaro_server/internal/model/dto"
	"github.com/qs3c/betfaro_server/internal/pkg/response"
	"github.com/qs3c/betfaro_server/internal/service"
)

type AdminHandler struct {
	adminService *service.AdminService
}

func NewAdminHandler(adminService *service.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

// ListUsers 用户列表，search 为空时返回最新注册的用户
// GET /api/admin/users?search=
func (h *AdminHandler) ListUsers(c *gin.Context) {
	list, err := h.adminService.ListUsers(c.Request.Context(), c.Query("search"))
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, list)
}

// GetUser 用户详情：订阅、最近聊天与审计日志
// GET /api/admin/users/:id
func (h *AdminHandler) GetUser(c *gin.Context) {
	details, err := h.adminService.GetUserDetails(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, details)
}

// UpdateSubscription 手动授予套餐
// PATCH /api/admin/users/:id/subscription
func (h *AdminHandler) UpdateSubscription(c *gin.Context) {
	actorID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.UpdatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	user, err := h.adminService.UpdatePlan(c.Request.Context(), actorID, c.Param("id"), req.Plan, req.Days)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, gin.H{"user": user})
}

// Revoke 取消当前有效订阅
// POST /api/admin/users/:id/revoke
func (h *AdminHandler) Revoke(c *gin.Context) {
	actorID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	user, err := h.adminService.Revoke(c.Request.Context(), actorID, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, gin.H{"user": user})
}
