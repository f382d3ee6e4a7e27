package betting

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrBetNotFound = errors.New("aposta não encontrada")
	ErrInvalidBet  = errors.New("preencha times, mercado e odds")
)

// Store 账本的持久化
type Store interface {
	Load() ([]*Bet, error)
	Save(bets []*Bet) error
}

type NewBet struct {
	HomeTeam string
	AwayTeam string
	Market   string
	Odds     float64
	Stake    *float64
	Note     string
}

type Stats struct {
	Total     int `json:"total"`
	Won       int `json:"won"`
	Lost      int `json:"lost"`
	Pending   int `json:"pending"`
	ValueBets int `json:"valueBets"`
	WinRate   int `json:"winRate"`
	Streak    int `json:"streak"`
}

// Ledger 投注列表，最新的在前；每次修改后整体保存
type Ledger struct {
	mu    sync.RWMutex
	bets  []*Bet
	store Store
	now   func() time.Time
}

// NewLedger store 为 nil 时只保存在内存中
func NewLedger(store Store) (*Ledger, error) {
	l := &Ledger{store: store, now: time.Now}
	if store == nil {
		return l, nil
	}
	bets, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load bets: %w", err)
	}
	l.bets = bets
	return l, nil
}

func (l *Ledger) Add(in NewBet) (*Bet, error) {
	home := strings.TrimSpace(in.HomeTeam)
	away := strings.TrimSpace(in.AwayTeam)
	if home == "" || away == "" || in.Market == "" || in.Odds <= 0 {
		return nil, ErrInvalidBet
	}

	bet := &Bet{
		ID:        uuid.NewString(),
		Match:     Match{HomeTeam: home, AwayTeam: away},
		Market:    in.Market,
		Selection: MarketLabel(in.Market),
		Odds:      in.Odds,
		Stake:     in.Stake,
		Note:      strings.TrimSpace(in.Note),
		Status:    StatusPending,
		ValueBet:  IsValueBet(in.Odds),
		CreatedAt: l.now().UTC(),
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	next := append([]*Bet{bet}, l.bets...)
	if err := l.save(next); err != nil {
		return nil, err
	}
	l.bets = next
	return bet, nil
}

// Resolve 由用户声明结果，won/lost/void 以外的值记为 manual
func (l *Ledger) Resolve(id, outcome string) (*Bet, error) {
	status := Status(outcome)
	switch status {
	case StatusWon, StatusLost, StatusVoid:
	default:
		status = StatusManual
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	idx := -1
	for i, b := range l.bets {
		if b.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrBetNotFound
	}

	next := make([]*Bet, len(l.bets))
	copy(next, l.bets)
	updated := *next[idx]
	updated.Status = status
	next[idx] = &updated

	if err := l.save(next); err != nil {
		return nil, err
	}
	l.bets = next
	return &updated, nil
}

func (l *Ledger) Bets() []Bet {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Bet, len(l.bets))
	for i, b := range l.bets {
		out[i] = *b
	}
	return out
}

func (l *Ledger) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := Stats{Total: len(l.bets)}
	for _, b := range l.bets {
		switch b.Status {
		case StatusWon:
			s.Won++
		case StatusLost:
			s.Lost++
		case StatusPending:
			s.Pending++
		}
		if b.ValueBet {
			s.ValueBets++
		}
	}
	if resolved := s.Won + s.Lost; resolved > 0 {
		s.WinRate = int(math.Round(float64(s.Won) / float64(resolved) * 100))
	}
	s.Streak = Streak(l.bets)
	return s
}

func (l *Ledger) save(bets []*Bet) error {
	if l.store == nil {
		return nil
	}
	if err := l.store.Save(bets); err != nil {
		return fmt.Errorf("save bets: %w", err)
	}
	return nil
}

// Streak 已结算投注按时间倒序，连续赢的次数，遇到第一场输即停止
func Streak(bets []*Bet) int {
	resolved := make([]*Bet, 0, len(bets))
	for _, b := range bets {
		if b.Status.Resolved() {
			resolved = append(resolved, b)
		}
	}
	sort.SliceStable(resolved, func(i, j int) bool {
		return resolved[i].CreatedAt.After(resolved[j].CreatedAt)
	})

	streak := 0
	for _, b := range resolved {
		if b.Status != StatusWon {
			break
		}
		streak++
	}
	return streak
}
