package service

import (
	"context"
	"encoding/json"
	"errors"
)

var ErrInvalidRange = errors.New("intervalo inválido")

// picks 时间范围
const (
	RangeToday    = "today"
	RangeTomorrow = "tomorrow"
	RangeBoth     = "both"
)

// PicksFetcher 内部分析后端
type PicksFetcher interface {
	GetPicks(ctx context.Context, rangeParam string, refresh bool) (json.RawMessage, error)
}

// PicksService Elite 专属 picks 透传
type PicksService struct {
	backend PicksFetcher
}

func NewPicksService(backend PicksFetcher) *PicksService {
	return &PicksService{backend: backend}
}

// Fetch 空 range 按 both 处理，上游 JSON 原样返回
func (s *PicksService) Fetch(ctx context.Context, rangeParam string, refresh bool) (json.RawMessage, error) {
	switch rangeParam {
	case "":
		rangeParam = RangeBoth
	case RangeToday, RangeTomorrow, RangeBoth:
	default:
		return nil, ErrInvalidRange
	}
	return s.backend.GetPicks(ctx, rangeParam, refresh)
}
