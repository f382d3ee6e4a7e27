package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/betfaro_server/internal/api/middleware"
	"github.com/qs3c/betfaro_server/internal/model/dto"
	"github.com/qs3c/betfaro_server/internal/pkg/response"
	"github.com/qs3c/betfaro_server/internal/service"
)

type ChatHandler struct {
	chatService *service.ChatService
}

func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// History 聊天记录，按时间升序
// GET /api/chat/history?limit=50
func (h *ChatHandler) History(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))

	items, err := h.chatService.History(c.Request.Context(), userID, limit)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, gin.H{"messages": items})
}

// Send 发送一条消息，消耗一次每日额度
// POST /api/chat
func (h *ChatHandler) Send(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.SendChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "Mensagem inválida")
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		response.ParamError(c, "Mensagem vazia")
		return
	}

	reply, err := h.chatService.Send(c.Request.Context(), userID, content)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, reply)
}
