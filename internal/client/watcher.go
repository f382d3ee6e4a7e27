package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/qs3c/betfaro_server/internal/model"
	"github.com/qs3c/betfaro_server/internal/plan"
)

// AuthEvent 身份服务发出的会话事件
type AuthEvent int

const (
	SignedIn AuthEvent = iota
	TokenRefreshed
	SignedOut
)

func (e AuthEvent) String() string {
	switch e {
	case SignedIn:
		return "signed_in"
	case TokenRefreshed:
		return "token_refreshed"
	case SignedOut:
		return "signed_out"
	}
	return "unknown"
}

// State 账户状态快照；缺少 profile 或 subscription 不是错误
type State struct {
	Profile       *model.Profile
	Subscription  *model.Subscription
	EffectivePlan plan.Plan
	DailyLimit    int
	Loading       bool
	Err           error
}

func emptyState() State {
	return State{EffectivePlan: plan.Free, DailyLimit: plan.PolicyFor(plan.Free).DailyLimit}
}

// SubscriptionWatcher 维护当前用户的订阅状态
// 所有刷新都走 Refetch，推送消息只作为脏标记
type SubscriptionWatcher struct {
	api            *Client
	logger         *zap.Logger
	reconnectDelay time.Duration
	onChange       func(State)

	mu        sync.RWMutex
	state     State
	issued    uint64
	applied   uint64
	signedOut bool
	conn      *websocket.Conn

	wake   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type WatcherOption func(*SubscriptionWatcher)

func WithReconnectDelay(d time.Duration) WatcherOption {
	return func(w *SubscriptionWatcher) { w.reconnectDelay = d }
}

// WithOnChange 每次状态变化后回调，回调中不要阻塞
func WithOnChange(fn func(State)) WatcherOption {
	return func(w *SubscriptionWatcher) { w.onChange = fn }
}

func WithWatcherLogger(logger *zap.Logger) WatcherOption {
	return func(w *SubscriptionWatcher) { w.logger = logger }
}

func NewSubscriptionWatcher(api *Client, opts ...WatcherOption) *SubscriptionWatcher {
	w := &SubscriptionWatcher{
		api:            api,
		logger:         zap.NewNop(),
		reconnectDelay: 3 * time.Second,
		state:          emptyState(),
		wake:           make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.signedOut = api.Token() == ""
	return w
}

// Start 首次拉取后开始监听推送；首次拉取的错误记录在 State.Err 中
func (w *SubscriptionWatcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	if !w.isSignedOut() {
		_ = w.Refetch(ctx)
	}

	w.wg.Add(1)
	go w.listen(ctx)
}

func (w *SubscriptionWatcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.closeConn()
	w.wg.Wait()
}

func (w *SubscriptionWatcher) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

// CanAccess 按有效套餐判断功能门槛
func (w *SubscriptionWatcher) CanAccess(required plan.Plan) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return plan.HasAccess(w.state.Subscription.Snapshot(), required)
}

// HandleAuthEvent 登录与刷新令牌时完整重拉，登出时清空状态并丢弃在途请求
func (w *SubscriptionWatcher) HandleAuthEvent(ctx context.Context, ev AuthEvent, token string) error {
	switch ev {
	case SignedIn, TokenRefreshed:
		w.api.SetToken(token)
		w.mu.Lock()
		reconnect := w.signedOut || ev == SignedIn
		w.signedOut = false
		w.mu.Unlock()
		if reconnect {
			// 旧连接带着旧会话，重新建立
			w.closeConn()
			w.signal()
		}
		return w.Refetch(ctx)

	case SignedOut:
		w.api.SetToken("")
		w.mu.Lock()
		w.signedOut = true
		w.applied = w.issued
		w.state = emptyState()
		state := w.state
		w.mu.Unlock()
		w.closeConn()
		w.notify(state)
		return nil
	}
	return nil
}

// Refetch 拉取完整账户状态；只有比已应用结果更新的响应才会生效
// 登出状态下不发请求，保持空状态
func (w *SubscriptionWatcher) Refetch(ctx context.Context) error {
	w.mu.Lock()
	if w.signedOut {
		w.mu.Unlock()
		return nil
	}
	w.issued++
	gen := w.issued
	w.state.Loading = true
	w.mu.Unlock()

	acct, err := w.api.Account(ctx)

	w.mu.Lock()
	if gen <= w.applied {
		w.mu.Unlock()
		return err
	}
	w.applied = gen
	next := w.state
	next.Loading = gen < w.issued
	if err != nil {
		next.Err = err
	} else {
		next = State{
			Profile:       acct.Profile,
			Subscription:  acct.Subscription,
			EffectivePlan: acct.EffectivePlan,
			DailyLimit:    acct.DailyLimit,
			Loading:       gen < w.issued,
		}
		if next.EffectivePlan == "" {
			next.EffectivePlan = acct.Subscription.EffectivePlan()
		}
	}
	w.state = next
	w.mu.Unlock()

	w.notify(next)
	return err
}

func (w *SubscriptionWatcher) listen(ctx context.Context) {
	defer w.wg.Done()

	for ctx.Err() == nil {
		if w.isSignedOut() {
			select {
			case <-ctx.Done():
				return
			case <-w.wake:
			}
			continue
		}

		conn, err := w.api.DialEvents(ctx)
		if err != nil {
			if errors.Is(err, ErrUnauthorized) {
				w.logger.Debug("events rejected, waiting for sign in")
			} else {
				w.logger.Warn("events dial failed", zap.Error(err))
			}
			if !w.sleep(ctx) {
				return
			}
			continue
		}

		w.setConn(conn)
		if ctx.Err() != nil {
			w.closeConn()
			return
		}
		// 拨号期间已登出，丢弃这条带旧会话的连接
		if w.isSignedOut() {
			w.closeConn()
			continue
		}
		// 重连期间可能错过推送
		_ = w.Refetch(ctx)
		w.read(ctx, conn)
		w.closeConn()

		if !w.sleep(ctx) {
			return
		}
	}
}

func (w *SubscriptionWatcher) read(ctx context.Context, conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		if err := w.Refetch(ctx); err != nil && ctx.Err() == nil {
			w.logger.Warn("refetch after push failed", zap.Error(err))
		}
	}
}

func (w *SubscriptionWatcher) sleep(ctx context.Context) bool {
	t := time.NewTimer(w.reconnectDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-w.wake:
		return true
	case <-t.C:
		return true
	}
}

func (w *SubscriptionWatcher) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *SubscriptionWatcher) isSignedOut() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.signedOut
}

func (w *SubscriptionWatcher) setConn(conn *websocket.Conn) {
	w.mu.Lock()
	w.conn = conn
	w.mu.Unlock()
}

func (w *SubscriptionWatcher) closeConn() {
	w.mu.Lock()
	conn := w.conn
	w.conn = nil
	w.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

func (w *SubscriptionWatcher) notify(s State) {
	if w.onChange != nil {
		w.onChange(s)
	}
}
