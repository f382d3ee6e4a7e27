package model

import (
	"time"
)

const (
	AuditPlanUpdated = "subscription_plan_updated"
	AuditRevoked     = "subscription_revoked"
	AuditExpired     = "subscription_expired"
)

type AuditLog struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"size:36;not null;index" json:"user_id"`
	ActorID   *string   `gorm:"size:36" json:"actor_id,omitempty"`
	Action    string    `gorm:"size:50;not null" json:"action"`
	Details   string    `gorm:"type:text" json:"details"` // JSON
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
