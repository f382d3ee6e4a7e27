package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/qs3c/betfaro_server/config"
	"github.com/qs3c/betfaro_server/internal/api/middleware"
	"github.com/qs3c/betfaro_server/internal/pkg/response"
	"github.com/qs3c/betfaro_server/internal/pkg/ws"
	"github.com/qs3c/betfaro_server/internal/service"
)

type WebSocketHandler struct {
	hub            *ws.Hub
	accountService *service.SubscriptionService
	upgrader       websocket.Upgrader
	logger         *zap.Logger
}

func NewWebSocketHandler(hub *ws.Hub, accountService *service.SubscriptionService, cors config.CORSConfig, logger *zap.Logger) *WebSocketHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocketHandler{
		hub:            hub,
		accountService: accountService,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return middleware.OriginAllowed(cors, r.Header.Get("Origin"))
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger,
	}
}

// Handle 订阅变更推送，只发送脏标记，客户端收到后自行重新拉取
// GET /api/events
func (h *WebSocketHandler) Handle(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	isAdmin, err := h.accountService.IsAdmin(c.Request.Context(), userID)
	if err != nil {
		handleError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String("user_id", userID), zap.Error(err))
		return
	}

	client := &ws.Client{
		UserID:  userID,
		IsAdmin: isAdmin,
		Conn:    conn,
	}
	h.hub.Register(client)

	// 只读以检测断开
	go func() {
		defer func() {
			h.hub.Unregister(client)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
