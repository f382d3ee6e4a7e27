package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/betfaro_server/internal/pkg/response"
	"github.com/qs3c/betfaro_server/internal/plan"
	"github.com/qs3c/betfaro_server/internal/service"
)

// QuotaCheck 配额检查中间件，只检查不扣减；扣减在服务层原子完成
func QuotaCheck(account *service.SubscriptionService, quotaService *service.QuotaService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := GetUserID(c)
		if !ok {
			response.AuthError(c, "")
			c.Abort()
			return
		}

		effective, err := account.EffectivePlan(c.Request.Context(), userID)
		if err != nil {
			response.ServerError(c, "Falha ao verificar o limite diário")
			c.Abort()
			return
		}

		hasQuota, err := quotaService.Check(c.Request.Context(), userID, plan.PolicyFor(effective).DailyLimit)
		if err != nil {
			response.ServerError(c, "Falha ao verificar o limite diário")
			c.Abort()
			return
		}

		if !hasQuota {
			response.QuotaError(c, "")
			c.Abort()
			return
		}

		c.Next()
	}
}
