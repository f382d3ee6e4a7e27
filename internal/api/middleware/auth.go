package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/betfaro_server/internal/pkg/jwt"
	"github.com/qs3c/betfaro_server/internal/pkg/response"
	"github.com/qs3c/betfaro_server/internal/session"
)

// TokenVerifier 校验身份服务签发的访问令牌
type TokenVerifier interface {
	Verify(token string) (*jwt.Claims, error)
}

// Auth 从会话 cookie 中解析访问令牌，成功后写入 session
func Auth(verifier TokenVerifier, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := resolve(c, verifier, cookieName)
		if err != nil {
			msg := "Sessão inválida"
			if errors.Is(err, jwt.ErrExpiredToken) {
				msg = "Sessão expirada"
			}
			if errors.Is(err, errNoCookie) {
				msg = ""
			}
			response.AuthError(c, msg)
			c.Abort()
			return
		}

		session.Set(c, s)
		c.Next()
	}
}

var errNoCookie = errors.New("no session cookie")

func resolve(c *gin.Context, verifier TokenVerifier, cookieName string) (*session.Session, error) {
	token, err := c.Cookie(cookieName)
	if err != nil || token == "" {
		return nil, errNoCookie
	}

	claims, err := verifier.Verify(token)
	if err != nil {
		return nil, err
	}

	return &session.Session{
		UserID: claims.UserID(),
		Email:  claims.Email,
		Token:  token,
	}, nil
}

// GetUserID 从上下文获取用户 ID
func GetUserID(c *gin.Context) (string, bool) {
	s, ok := session.FromContext(c)
	if !ok {
		return "", false
	}
	return s.UserID, true
}
