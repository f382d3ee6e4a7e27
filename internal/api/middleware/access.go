package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/betfaro_server/internal/pkg/response"
	"github.com/qs3c/betfaro_server/internal/plan"
	"github.com/qs3c/betfaro_server/internal/service"
)

const EffectivePlanKey = "effectivePlan"

// RequireAdmin 按存储中的角色判断，不信任令牌里的声明
func RequireAdmin(account *service.SubscriptionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := GetUserID(c)
		if !ok {
			response.AuthError(c, "")
			c.Abort()
			return
		}

		isAdmin, err := account.IsAdmin(c.Request.Context(), userID)
		if err != nil {
			response.ServerError(c, "")
			c.Abort()
			return
		}
		if !isAdmin {
			response.PermissionError(c, "Acesso restrito a administradores")
			c.Abort()
			return
		}

		c.Next()
	}
}

// RequirePlan 有效套餐低于 required 时返回 403
func RequirePlan(account *service.SubscriptionService, required plan.Plan) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := GetUserID(c)
		if !ok {
			response.AuthError(c, "")
			c.Abort()
			return
		}

		effective, err := account.EffectivePlan(c.Request.Context(), userID)
		if err != nil {
			response.ServerError(c, "")
			c.Abort()
			return
		}
		if plan.Rank(effective) < plan.Rank(required) {
			response.PermissionError(c, "Recurso exclusivo do plano "+string(required))
			c.Abort()
			return
		}

		c.Set(EffectivePlanKey, effective)
		c.Next()
	}
}
