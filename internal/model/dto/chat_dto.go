package dto

import "time"

type SendChatRequest struct {
	Content string `json:"content" binding:"required,max=4000"`
}

type ChatReply struct {
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}

type ChatHistoryItem struct {
	ID        int64     `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
