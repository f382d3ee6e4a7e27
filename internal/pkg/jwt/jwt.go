// Package jwt verifies the HS256 access tokens issued by the hosted identity provider.
package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const DefaultAudience = "authenticated"

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Claims 身份服务签发的令牌载荷，sub 为用户 ID
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) UserID() string {
	return c.Subject
}

// GenerateToken 签发令牌，仅用于本地开发与测试
func GenerateToken(userID, email, secret string, expireHours int) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: email,
		Role:  DefaultAudience,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Audience:  jwt.ClaimStrings{DefaultAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(expireHours) * time.Hour)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken 校验签名与有效期
func ParseToken(tokenString, secret string) (*Claims, error) {
	return parse(tokenString, secret)
}

// ParseTokenWithAudience 额外校验 aud
func ParseTokenWithAudience(tokenString, secret, audience string) (*Claims, error) {
	return parse(tokenString, secret, jwt.WithAudience(audience))
}

func parse(tokenString, secret string, opts ...jwt.ParserOption) (*Claims, error) {
	opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Verifier 绑定密钥与受众的校验器
type Verifier struct {
	secret   string
	audience string
}

func NewVerifier(secret, audience string) *Verifier {
	return &Verifier{secret: secret, audience: audience}
}

func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	if v.audience == "" {
		return ParseToken(tokenString, v.secret)
	}
	return ParseTokenWithAudience(tokenString, v.secret, v.audience)
}
