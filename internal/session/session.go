// Package session carries the authenticated caller through a request.
package session

import (
	"github.com/gin-gonic/gin"
)

const contextKey = "session"

// Session 每个请求只解析一次，由认证中间件写入
type Session struct {
	UserID string
	Email  string
	Token  string
}

func Set(c *gin.Context, s *Session) {
	c.Set(contextKey, s)
}

// FromContext 未认证时返回 false
func FromContext(c *gin.Context) (*Session, bool) {
	v, exists := c.Get(contextKey)
	if !exists {
		return nil, false
	}
	s, ok := v.(*Session)
	if !ok || s == nil || s.UserID == "" {
		return nil, false
	}
	return s, true
}
