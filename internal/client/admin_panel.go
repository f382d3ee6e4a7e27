package client

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/qs3c/betfaro_server/internal/model/dto"
)

// AdminPanel 管理后台的用户列表视图
// 定时轮询与推送都只调用 Trigger，重叠的触发合并为一次刷新
type AdminPanel struct {
	api            *Client
	logger         *zap.Logger
	interval       time.Duration
	reconnectDelay time.Duration

	mu        sync.RWMutex
	users     []*dto.AdminUser
	total     int
	search    string
	selected  *dto.UserDetails
	err       error
	refreshes int

	trigger chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewAdminPanel(api *Client, interval time.Duration, logger *zap.Logger) *AdminPanel {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminPanel{
		api:            api,
		logger:         logger,
		interval:       interval,
		reconnectDelay: 3 * time.Second,
		trigger:        make(chan struct{}, 1),
	}
}

// Start 确认当前会话是管理员，否则返回 ErrForbidden
func (p *AdminPanel) Start(ctx context.Context) error {
	acct, err := p.api.Account(ctx)
	if err != nil {
		return err
	}
	if !acct.Profile.IsAdmin() {
		return ErrForbidden
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.Trigger()

	p.wg.Add(3)
	go p.loop(ctx)
	go p.poll(ctx)
	go p.listen(ctx)
	return nil
}

func (p *AdminPanel) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

// Trigger 请求一次刷新，不阻塞
func (p *AdminPanel) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// SetSearch 修改搜索词后刷新（在服务端按邮箱或名称过滤）
func (p *AdminPanel) SetSearch(term string) {
	p.mu.Lock()
	p.search = term
	p.mu.Unlock()
	p.Trigger()
}

func (p *AdminPanel) Users() []*dto.AdminUser {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*dto.AdminUser, len(p.users))
	copy(out, p.users)
	return out
}

func (p *AdminPanel) Total() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.total
}

// Err 最近一次刷新的错误，成功后清空
func (p *AdminPanel) Err() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.err
}

func (p *AdminPanel) Selected() *dto.UserDetails {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.selected
}

// Refreshes 已完成的列表拉取次数
func (p *AdminPanel) Refreshes() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.refreshes
}

// Select 加载用户详情
func (p *AdminPanel) Select(ctx context.Context, userID string) (*dto.UserDetails, error) {
	details, err := p.api.UserDetails(ctx, userID)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.selected = details
	p.mu.Unlock()
	return details, nil
}

// UpdatePlan 服务端确认之前不修改本地列表
func (p *AdminPanel) UpdatePlan(ctx context.Context, userID, planKey string, days *int) (*dto.AdminUser, error) {
	user, err := p.api.UpdatePlan(ctx, userID, planKey, days)
	if err != nil {
		return nil, err
	}
	p.applyAck(user)
	return user, nil
}

func (p *AdminPanel) Revoke(ctx context.Context, userID string) (*dto.AdminUser, error) {
	user, err := p.api.Revoke(ctx, userID)
	if err != nil {
		return nil, err
	}
	p.applyAck(user)
	return user, nil
}

func (p *AdminPanel) applyAck(user *dto.AdminUser) {
	if user == nil {
		p.Trigger()
		return
	}

	p.mu.Lock()
	for i, u := range p.users {
		if u.ID == user.ID {
			p.users[i] = user
		}
	}
	if p.selected != nil && p.selected.User != nil && p.selected.User.ID == user.ID {
		details := *p.selected
		details.User = user
		p.selected = &details
	}
	p.mu.Unlock()

	p.Trigger()
}

func (p *AdminPanel) refresh(ctx context.Context) {
	p.mu.RLock()
	search := p.search
	p.mu.RUnlock()

	list, err := p.api.ListUsers(ctx, search)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshes++
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Warn("admin user list refresh failed", zap.Error(err))
		}
		p.err = err
		return
	}
	// 搜索词在请求期间被修改，结果作废，等待下一次触发
	if search != p.search {
		return
	}
	p.err = nil
	p.users = list.Users
	p.total = list.Total
}

func (p *AdminPanel) loop(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.trigger:
			p.refresh(ctx)
		}
	}
}

func (p *AdminPanel) poll(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Trigger()
		}
	}
}

func (p *AdminPanel) listen(ctx context.Context) {
	defer p.wg.Done()
	for ctx.Err() == nil {
		conn, err := p.api.DialEvents(ctx)
		if err == nil {
			stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					break
				}
				p.Trigger()
			}
			stop()
			_ = conn.Close()
		} else if ctx.Err() == nil {
			p.logger.Warn("admin events dial failed", zap.Error(err))
		}

		t := time.NewTimer(p.reconnectDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}
