package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const (
	ChannelSubscriptionChanges = "subscription_changes"

	TypeSubscriptionChanged = "subscription_changed"
)

// 变更来源
const (
	KindPlanUpdated = "plan_updated"
	KindRevoked     = "revoked"
	KindExpired     = "expired"
	KindCheckout    = "checkout"
	KindPayment     = "payment"
)

// ChangeMessage 只通知"某用户的订阅变了"，不携带行数据，接收方需重新读取
type ChangeMessage struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
	Kind   string `json:"kind,omitempty"`
}

// Publisher Redis 发布者
type Publisher struct {
	client *redis.Client
}

// NewPublisher 创建发布者
func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// PublishChange 发布订阅变更信号
func (p *Publisher) PublishChange(ctx context.Context, msg *ChangeMessage) error {
	msg.Type = TypeSubscriptionChanged

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal change message: %w", err)
	}

	return p.client.Publish(ctx, ChannelSubscriptionChanges, data).Err()
}

// Subscriber Redis 订阅者
type Subscriber struct {
	client *redis.Client
}

// NewSubscriber 创建订阅者
func NewSubscriber(client *redis.Client) *Subscriber {
	return &Subscriber{client: client}
}

// Subscribe 阻塞消费变更信号，直到 ctx 结束
func (s *Subscriber) Subscribe(ctx context.Context, handler func(*ChangeMessage)) error {
	ps := s.client.Subscribe(ctx, ChannelSubscriptionChanges)
	defer ps.Close()

	// 等待订阅确认，避免之后发布的消息丢失
	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	ch := ps.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var change ChangeMessage
			if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
				continue // 忽略解析错误
			}

			handler(&change)
		}
	}
}
