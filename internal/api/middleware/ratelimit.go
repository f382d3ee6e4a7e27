package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/qs3c/betfaro_server/internal/pkg/response"
)

// UserRateLimiter 每个用户一个令牌桶
type UserRateLimiter struct {
	limit    rate.Limit
	burst    int
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewUserRateLimiter perMinute <= 0 表示不限流
func NewUserRateLimiter(perMinute int) *UserRateLimiter {
	limit := rate.Inf
	burst := 1
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
		burst = perMinute
	}
	return &UserRateLimiter{
		limit:    limit,
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (l *UserRateLimiter) Allow(userID string) bool {
	l.mu.Lock()
	lim, ok := l.limiters[userID]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[userID] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

// Middleware when 为 nil 时对所有请求生效
func (l *UserRateLimiter) Middleware(when func(*gin.Context) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if when != nil && !when(c) {
			c.Next()
			return
		}

		userID, ok := GetUserID(c)
		if !ok {
			response.AuthError(c, "")
			c.Abort()
			return
		}

		if !l.Allow(userID) {
			response.RateLimitError(c, "")
			c.Abort()
			return
		}

		c.Next()
	}
}

// RefreshRequested 只对强制刷新上游数据的请求限流
func RefreshRequested(c *gin.Context) bool {
	return c.Query("refresh") == "true"
}
