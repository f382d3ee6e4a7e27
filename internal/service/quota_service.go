package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/qs3c/betfaro_server/internal/model/dto"
	"github.com/qs3c/betfaro_server/internal/plan"
)

var ErrQuotaExceeded = errors.New("limite diário atingido")

// useScript 原子地占用一次额度，超出上限时回滚并返回 -1
var useScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
	redis.call('EXPIREAT', KEYS[1], ARGV[2])
end
if n > tonumber(ARGV[1]) then
	redis.call('DECR', KEYS[1])
	return -1
end
return n
`)

// refundScript 退还一次额度，不会减到 0 以下
var refundScript = redis.NewScript(`
local v = tonumber(redis.call('GET', KEYS[1]) or '0')
if v > 0 then
	return redis.call('DECR', KEYS[1])
end
return 0
`)

// QuotaService 按 UTC 自然日计数，键在次日零点过期
type QuotaService struct {
	rdb *redis.Client
	now func() time.Time
}

func NewQuotaService(rdb *redis.Client) *QuotaService {
	return &QuotaService{
		rdb: rdb,
		now: time.Now,
	}
}

func (s *QuotaService) key(userID string, day time.Time) string {
	return fmt.Sprintf("quota:%s:%s", userID, day.Format("20060102"))
}

func nextMidnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, time.UTC)
}

// Used 今日已用次数
func (s *QuotaService) Used(ctx context.Context, userID string) (int, error) {
	val, err := s.rdb.Get(ctx, s.key(userID, s.now().UTC())).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(val)
}

// Check 是否仍有额度
func (s *QuotaService) Check(ctx context.Context, userID string, limit int) (bool, error) {
	used, err := s.Used(ctx, userID)
	if err != nil {
		return false, err
	}
	return used < limit, nil
}

// Use 占用一次额度，超出时返回 ErrQuotaExceeded
func (s *QuotaService) Use(ctx context.Context, userID string, limit int) error {
	now := s.now().UTC()
	n, err := useScript.Run(ctx, s.rdb,
		[]string{s.key(userID, now)},
		limit, nextMidnight(now).Unix(),
	).Int64()
	if err != nil {
		return err
	}
	if n < 0 {
		return ErrQuotaExceeded
	}
	return nil
}

// Refund 退还一次额度
func (s *QuotaService) Refund(ctx context.Context, userID string) error {
	return refundScript.Run(ctx, s.rdb, []string{s.key(userID, s.now().UTC())}).Err()
}

// Info 额度概览
func (s *QuotaService) Info(ctx context.Context, userID string, p plan.Plan) (*dto.QuotaInfo, error) {
	used, err := s.Used(ctx, userID)
	if err != nil {
		return nil, err
	}

	limit := plan.PolicyFor(p).DailyLimit
	remain := limit - used
	if remain < 0 {
		remain = 0
	}

	return &dto.QuotaInfo{
		Plan:        p,
		DailyLimit:  limit,
		DailyUsed:   used,
		DailyRemain: remain,
		ResetAt:     nextMidnight(s.now()).Format(time.RFC3339),
	}, nil
}
