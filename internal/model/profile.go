package model

import (
	"time"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Profile 由托管身份服务维护，本服务只读（角色由管理员在外部修改）
type Profile struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Email     string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Name      *string   `gorm:"size:100" json:"name"`
	Role      Role      `gorm:"size:20;not null;default:user" json:"role"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (Profile) TableName() string {
	return "profiles"
}

func (p *Profile) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}
