// Package plan holds the subscription tier table and the access rules derived from it.
package plan

type Plan string

const (
	Free  Plan = "free"
	Pro   Plan = "pro"
	Elite Plan = "elite"
)

type Status string

const (
	StatusActive     Status = "active"
	StatusTrialing   Status = "trialing"
	StatusPastDue    Status = "past_due"
	StatusCanceled   Status = "canceled"
	StatusIncomplete Status = "incomplete"
)

type Provider string

const (
	ProviderStripe Provider = "stripe"
	ProviderManual Provider = "manual"
)

// hierarchy 套餐等级，从低到高
var hierarchy = []Plan{Free, Pro, Elite}

// Policy 套餐策略
type Policy struct {
	DailyLimit int      `json:"daily_limit"`
	Features   []string `json:"features"`
	Price      float64  `json:"price"`
}

// PlanPolicy 带套餐标识的策略，用于列表展示
type PlanPolicy struct {
	Plan Plan `json:"plan"`
	Policy
}

var policies = map[Plan]Policy{
	Free: {
		DailyLimit: 5,
		Features: []string{
			"5 análises por dia",
			"Estatísticas básicas",
			"Ideal para testar",
		},
		Price: 0,
	},
	Pro: {
		DailyLimit: 25,
		Features: []string{
			"25 análises por dia",
			"Odds de valor",
			"Histórico de análises",
			"Estatísticas avançadas",
		},
		Price: 49,
	},
	Elite: {
		DailyLimit: 100,
		Features: []string{
			"100 análises por dia",
			"Picks diários automáticos",
			"Alertas de apostas de valor",
			"Dashboard premium",
		},
		Price: 99,
	},
}

// Snapshot 计算有效套餐所需的订阅字段
type Snapshot struct {
	Plan   Plan
	Status Status
}

// PolicyFor 查询套餐策略，未知套餐按 free 处理
func PolicyFor(p Plan) Policy {
	if policy, ok := policies[p]; ok {
		return policy
	}
	return policies[Free]
}

// Policies 按等级顺序返回全部套餐
func Policies() []PlanPolicy {
	out := make([]PlanPolicy, 0, len(hierarchy))
	for _, p := range hierarchy {
		out = append(out, PlanPolicy{Plan: p, Policy: policies[p]})
	}
	return out
}

// ParsePlan 只接受 free/pro/elite
func ParsePlan(s string) (Plan, bool) {
	p := Plan(s)
	if Rank(p) < 0 {
		return "", false
	}
	return p, true
}

// Rank 返回套餐等级下标，未知套餐返回 -1
func Rank(p Plan) int {
	for i, h := range hierarchy {
		if h == p {
			return i
		}
	}
	return -1
}

func IsActive(status Status) bool {
	return status == StatusActive || status == StatusTrialing
}

// ValidStatus 判断状态是否属于已知集合
func ValidStatus(status Status) bool {
	switch status {
	case StatusActive, StatusTrialing, StatusPastDue, StatusCanceled, StatusIncomplete:
		return true
	}
	return false
}

// Effective 计算有效套餐：无订阅、非激活状态或无法识别的套餐都降级为 free
func Effective(sub *Snapshot) Plan {
	if sub == nil || !IsActive(sub.Status) {
		return Free
	}
	if Rank(sub.Plan) < 0 {
		return Free
	}
	return sub.Plan
}

// HasAccess 有效套餐等级不低于 required 时放行
func HasAccess(sub *Snapshot, required Plan) bool {
	need := Rank(required)
	if need < 0 {
		return false
	}
	return Rank(Effective(sub)) >= need
}
