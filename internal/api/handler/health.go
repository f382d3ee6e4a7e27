package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/betfaro_server/internal/pkg/response"
	"github.com/qs3c/betfaro_server/internal/plan"
)

type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// Health GET /api/health
func (h *HealthHandler) Health(c *gin.Context) {
	response.Success(c, gin.H{"status": "ok"})
}

// Plans 套餐表
// GET /api/plans
func (h *HealthHandler) Plans(c *gin.Context) {
	response.Success(c, gin.H{"plans": plan.Policies()})
}
