package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type Hub struct {
	// 每个用户可以有多个连接（多标签页、重连等场景）
	clients    map[string]map[*Client]struct{}
	mu         sync.RWMutex
	logger     *zap.Logger
	adminCheck AdminCheck
}

// AdminCheck 查询用户当前是否仍是管理员
type AdminCheck func(ctx context.Context, userID string) (bool, error)

const adminCheckTimeout = 2 * time.Second

type Client struct {
	UserID  string
	IsAdmin bool
	Conn    *websocket.Conn
	mu      sync.Mutex // 写锁，防止并发写入
}

type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		logger:  logger,
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.UserID] == nil {
		h.clients[client.UserID] = make(map[*Client]struct{})
	}
	h.clients[client.UserID][client] = struct{}{}

	h.logger.Debug("ws client connected",
		zap.String("user_id", client.UserID),
		zap.Bool("admin", client.IsAdmin),
		zap.Int("user_conns", len(h.clients[client.UserID])),
	)
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.clients[client.UserID]; ok {
		delete(conns, client)
		if len(conns) == 0 {
			delete(h.clients, client.UserID)
		}
	}
	h.logger.Debug("ws client disconnected", zap.String("user_id", client.UserID))
}

// SendToUser 向指定用户的所有连接发送消息
func (h *Hub) SendToUser(userID string, msg *Message) error {
	return h.send(msg, func(c *Client) bool { return c.UserID == userID })
}

// SetAdminCheck 设置后，Notify 在推送给管理员连接前重新确认角色。
// 连接时记录的 IsAdmin 可能已过期（管理员被降级）。
func (h *Hub) SetAdminCheck(check AdminCheck) {
	h.mu.Lock()
	h.adminCheck = check
	h.mu.Unlock()
}

// Notify 通知目标用户及所有管理员连接，每个连接只发送一次
func (h *Hub) Notify(userID string, msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	targets := h.collect(func(c *Client) bool { return c.UserID == userID || c.IsAdmin })
	h.write(h.verifyAdmins(userID, targets), data)
	return nil
}

// verifyAdmins 过滤掉已不是管理员的连接，并撤销其 IsAdmin 标记。
// 查询失败时本次跳过该连接，但不撤销标记。
func (h *Hub) verifyAdmins(userID string, targets []*Client) []*Client {
	h.mu.RLock()
	check := h.adminCheck
	h.mu.RUnlock()
	if check == nil {
		return targets
	}

	roles := make(map[string]bool)
	kept := targets[:0]
	for _, c := range targets {
		if c.UserID == userID {
			kept = append(kept, c)
			continue
		}
		admin, seen := roles[c.UserID]
		if !seen {
			ctx, cancel := context.WithTimeout(context.Background(), adminCheckTimeout)
			ok, err := check(ctx, c.UserID)
			cancel()
			if err != nil {
				h.logger.Warn("ws admin check failed", zap.String("user_id", c.UserID), zap.Error(err))
				roles[c.UserID] = false
				continue
			}
			admin = ok
			roles[c.UserID] = admin
			if !admin {
				h.demote(c.UserID)
			}
		}
		if admin {
			kept = append(kept, c)
		}
	}
	return kept
}

// demote 撤销该用户所有连接的管理员标记
func (h *Hub) demote(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients[userID] {
		c.IsAdmin = false
	}
	h.logger.Info("ws admin demoted", zap.String("user_id", userID))
}

func (h *Hub) send(msg *Message, match func(*Client) bool) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	h.write(h.collect(match), data)
	return nil
}

// collect 复制一份引用，避免长时间持锁
func (h *Hub) collect(match func(*Client) bool) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var targets []*Client
	for _, conns := range h.clients {
		for c := range conns {
			if match(c) {
				targets = append(targets, c)
			}
		}
	}
	return targets
}

func (h *Hub) write(targets []*Client, data []byte) {
	for _, c := range targets {
		c.mu.Lock()
		err := c.Conn.WriteMessage(websocket.TextMessage, data)
		c.mu.Unlock()
		if err != nil {
			h.logger.Warn("ws write failed", zap.String("user_id", c.UserID), zap.Error(err))
		}
	}
}

// IsOnline 检查用户是否在线
func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conns, ok := h.clients[userID]
	return ok && len(conns) > 0
}

// ConnectionCount 获取在线连接数
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, conns := range h.clients {
		total += len(conns)
	}
	return total
}
