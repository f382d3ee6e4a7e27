package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/betfaro_server/internal/pkg/backend"
	"github.com/qs3c/betfaro_server/internal/pkg/payment"
	"github.com/qs3c/betfaro_server/internal/pkg/response"
	"github.com/qs3c/betfaro_server/internal/service"
)

// handleError 将服务层错误映射为统一错误信封，原始错误只进日志
func handleError(c *gin.Context, err error) {
	_ = c.Error(err)

	var upstream *backend.Error
	switch {
	case errors.As(err, &upstream):
		response.UpstreamError(c, upstream.Status, upstream.Detail)

	case errors.Is(err, service.ErrQuotaExceeded):
		response.QuotaError(c, "")

	case errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrNoActiveSubscription),
		errors.Is(err, service.ErrNoBillingAccount):
		response.NotFoundError(c, err.Error())

	case errors.Is(err, service.ErrInvalidPlan),
		errors.Is(err, service.ErrInvalidDays),
		errors.Is(err, service.ErrInvalidCheckoutPlan),
		errors.Is(err, service.ErrInvalidRange):
		response.ParamError(c, err.Error())

	case errors.Is(err, service.ErrPriceNotConfigured),
		errors.Is(err, payment.ErrNotConfigured):
		response.ServerError(c, "Pagamentos indisponíveis no momento")

	case errors.Is(err, context.DeadlineExceeded):
		response.UpstreamError(c, http.StatusGatewayTimeout, "")

	default:
		response.ServerError(c, "")
	}
}
