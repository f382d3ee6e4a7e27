package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 各类错误的默认消息
const (
	MsgParamError       = "Parâmetros inválidos"
	MsgAuthFailed       = "Não autenticado"
	MsgPermissionDenied = "Acesso negado"
	MsgNotFound         = "Recurso não encontrado"
	MsgQuotaExceeded    = "Limite diário atingido"
	MsgRateLimited      = "Muitas requisições, tente novamente em instantes"
	MsgUpstreamError    = "Erro ao comunicar com o serviço externo"
	MsgServerError      = "Erro interno do servidor"
)

// ErrorBody 统一错误结构，所有路由只使用 error 字段
type ErrorBody struct {
	Error string `json:"error"`
}

// Success 成功响应，直接输出数据
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Raw 原样输出上游返回的 JSON
func Raw(c *gin.Context, body []byte) {
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// Error 错误响应
func Error(c *gin.Context, status int, message string) {
	c.JSON(status, ErrorBody{Error: message})
}

func orDefault(message, fallback string) string {
	if message == "" {
		return fallback
	}
	return message
}

// ParamError 参数错误
func ParamError(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, orDefault(message, MsgParamError))
}

// AuthError 未认证
func AuthError(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, orDefault(message, MsgAuthFailed))
}

// PermissionError 权限不足（角色或套餐）
func PermissionError(c *gin.Context, message string) {
	Error(c, http.StatusForbidden, orDefault(message, MsgPermissionDenied))
}

// NotFoundError 资源不存在
func NotFoundError(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, orDefault(message, MsgNotFound))
}

// QuotaError 额度不足
func QuotaError(c *gin.Context, message string) {
	Error(c, http.StatusTooManyRequests, orDefault(message, MsgQuotaExceeded))
}

// RateLimitError 请求过于频繁
func RateLimitError(c *gin.Context, message string) {
	Error(c, http.StatusTooManyRequests, orDefault(message, MsgRateLimited))
}

// UpstreamError 外部服务错误，status 非 4xx/5xx 时按 502 处理
func UpstreamError(c *gin.Context, status int, message string) {
	if status < http.StatusBadRequest || status > 599 {
		status = http.StatusBadGateway
	}
	Error(c, status, orDefault(message, MsgUpstreamError))
}

// ServerError 服务器错误
func ServerError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, orDefault(message, MsgServerError))
}
