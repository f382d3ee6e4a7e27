// Package client is a Go consumer of the betfaro API. It carries the
// account watcher and the admin panel view model used by dashboards.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/qs3c/betfaro_server/internal/model/dto"
)

const (
	defaultCookieName = "sb-access-token"
	defaultTimeout    = 15 * time.Second
	maxBodyBytes      = 4 << 20
)

var (
	ErrUnauthorized = errors.New("não autenticado")
	ErrForbidden    = errors.New("acesso negado")
)

// APIError 服务端返回的非 2xx 响应
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Is 401/403 可以用 errors.Is 与哨兵错误比较
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrForbidden:
		return e.Status == http.StatusForbidden
	}
	return false
}

type Client struct {
	baseURL    string
	cookieName string
	httpClient *http.Client
	dialer     *websocket.Dialer

	mu    sync.RWMutex
	token string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithCookieName(name string) Option {
	return func(c *Client) { c.cookieName = name }
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		cookieName: defaultCookieName,
		httpClient: &http.Client{Timeout: defaultTimeout},
		dialer:     websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken 登录或刷新令牌后更新；空字符串表示已登出
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) cookie() *http.Cookie {
	token := c.Token()
	if token == "" {
		return nil
	}
	return &http.Cookie{Name: c.cookieName, Value: token}
}

// Account GET /api/account
func (c *Client) Account(ctx context.Context) (*dto.AccountState, error) {
	var out dto.AccountState
	if err := c.do(ctx, http.MethodGet, "/api/account", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Quota GET /api/account/quota
func (c *Client) Quota(ctx context.Context) (*dto.QuotaInfo, error) {
	var out dto.QuotaInfo
	if err := c.do(ctx, http.MethodGet, "/api/account/quota", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Checkout 返回 Stripe 结账地址
func (c *Client) Checkout(ctx context.Context, plan string) (string, error) {
	var out dto.CheckoutResponse
	if err := c.do(ctx, http.MethodPost, "/api/billing/checkout", dto.CheckoutRequest{Plan: plan}, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}

// Portal 返回 Stripe 客户自助页面地址
func (c *Client) Portal(ctx context.Context) (string, error) {
	var out dto.CheckoutResponse
	if err := c.do(ctx, http.MethodPost, "/api/billing/portal", nil, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}

func (c *Client) ListUsers(ctx context.Context, search string) (*dto.AdminUserList, error) {
	path := "/api/admin/users"
	if search != "" {
		path += "?" + url.Values{"search": {search}}.Encode()
	}
	var out dto.AdminUserList
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UserDetails(ctx context.Context, userID string) (*dto.UserDetails, error) {
	var out dto.UserDetails
	if err := c.do(ctx, http.MethodGet, "/api/admin/users/"+url.PathEscape(userID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type userEnvelope struct {
	User *dto.AdminUser `json:"user"`
}

func (c *Client) UpdatePlan(ctx context.Context, userID, plan string, days *int) (*dto.AdminUser, error) {
	var out userEnvelope
	req := dto.UpdatePlanRequest{Plan: plan, Days: days}
	if err := c.do(ctx, http.MethodPatch, "/api/admin/users/"+url.PathEscape(userID)+"/subscription", req, &out); err != nil {
		return nil, err
	}
	return out.User, nil
}

func (c *Client) Revoke(ctx context.Context, userID string) (*dto.AdminUser, error) {
	var out userEnvelope
	if err := c.do(ctx, http.MethodPost, "/api/admin/users/"+url.PathEscape(userID)+"/revoke", nil, &out); err != nil {
		return nil, err
	}
	return out.User, nil
}

// DialEvents 连接订阅变更推送
func (c *Client) DialEvents(ctx context.Context) (*websocket.Conn, error) {
	wsURL := "ws" + strings.TrimPrefix(c.baseURL, "http") + "/api/events"

	header := http.Header{}
	if ck := c.cookie(); ck != nil {
		header.Set("Cookie", ck.String())
	}

	conn, resp, err := c.dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil && resp.StatusCode >= http.StatusBadRequest {
			return nil, &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return nil, err
	}
	return conn, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if ck := c.cookie(); ck != nil {
		req.AddCookie(ck)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}
