package middleware

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestUserRateLimiter_Allow(t *testing.T) {
	l := NewUserRateLimiter(2)

	assert.True(t, l.Allow("u1"))
	assert.True(t, l.Allow("u1"))
	assert.False(t, l.Allow("u1"))

	assert.True(t, l.Allow("u2"), "buckets are per user")
}

func TestUserRateLimiter_Unlimited(t *testing.T) {
	l := NewUserRateLimiter(0)
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow("u1"))
	}
}

func TestUserRateLimiter_OnlyRefresh(t *testing.T) {
	l := NewUserRateLimiter(1)

	router := gin.New()
	router.Use(mockSession("u1"), l.Middleware(RefreshRequested))
	router.GET("/picks", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(router, "/picks?refresh=true").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(router, "/picks?refresh=true").Code)

	// 不带 refresh 的请求不消耗令牌
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, serve(router, "/picks").Code)
	}
}
