package dto

import (
	"github.com/qs3c/betfaro_server/internal/model"
	"github.com/qs3c/betfaro_server/internal/plan"
)

// AccountState 当前会话的账户状态
// profile 与 subscription 缺失时为 null，不视为错误
type AccountState struct {
	Profile       *model.Profile      `json:"profile"`
	Subscription  *model.Subscription `json:"subscription"`
	EffectivePlan plan.Plan           `json:"effective_plan"`
	DailyLimit    int                 `json:"daily_limit"`
	Features      []string            `json:"features"`
}

// QuotaInfo 每日额度使用情况
type QuotaInfo struct {
	Plan        plan.Plan `json:"plan"`
	DailyLimit  int       `json:"daily_limit"`
	DailyUsed   int       `json:"daily_used"`
	DailyRemain int       `json:"daily_remain"`
	ResetAt     string    `json:"reset_at"`
}
