// Package betting 手动记录投注及其结果，数据只保存在本地
package betting

import "time"

type Status string

const (
	StatusPending Status = "pending"
	StatusWon     Status = "won"
	StatusLost    Status = "lost"
	StatusVoid    Status = "void"
	StatusManual  Status = "manual"
)

// Resolved 只有输赢计入胜率和连胜
func (s Status) Resolved() bool {
	return s == StatusWon || s == StatusLost
}

type Match struct {
	HomeTeam string `json:"homeTeam"`
	AwayTeam string `json:"awayTeam"`
}

type Bet struct {
	ID        string    `json:"id"`
	Match     Match     `json:"match"`
	Market    string    `json:"market"`
	Selection string    `json:"selection"`
	Odds      float64   `json:"odds"`
	Stake     *float64  `json:"stake,omitempty"`
	Note      string    `json:"note,omitempty"`
	Status    Status    `json:"status"`
	ValueBet  bool      `json:"valueBet"`
	CreatedAt time.Time `json:"createdAt"`
}

type Market struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

var markets = []Market{
	{Value: "over_2_5", Label: "Over 2.5 Gols"},
	{Value: "under_2_5", Label: "Under 2.5 Gols"},
	{Value: "over_1_5", Label: "Over 1.5 Gols"},
	{Value: "btts_yes", Label: "Ambos Marcam - Sim"},
	{Value: "btts_no", Label: "Ambos Marcam - Não"},
	{Value: "1x2_home", Label: "1X2 - Vitória Casa"},
	{Value: "1x2_draw", Label: "1X2 - Empate"},
	{Value: "1x2_away", Label: "1X2 - Vitória Fora"},
}

func Markets() []Market {
	out := make([]Market, len(markets))
	copy(out, markets)
	return out
}

// MarketLabel 未知市场原样返回
func MarketLabel(value string) string {
	for _, m := range markets {
		if m.Value == value {
			return m.Label
		}
	}
	return value
}

const (
	assumedFairProb = 0.5
	minEdge         = 0.05
)

// IsValueBet 假设公平概率 50%，优势不低于 5% 即标记（赔率 >= 2.10）
// 这是占位模型，没有真实的概率估计
func IsValueBet(odds float64) bool {
	fairOdds := 1 / assumedFairProb
	edge := (odds - fairOdds) / fairOdds
	return edge >= minEdge
}
