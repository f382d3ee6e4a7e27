// Package backend talks to the internal analytics service (picks engine and chatbot).
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const internalKeyHeader = "X-Internal-Key"

// 上游响应体读取上限
const maxResponseBytes = 4 << 20

// Error 上游返回的错误，Detail 取自响应体的 detail 字段
type Error struct {
	Status int
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("backend returned status %d", e.Status)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.Status, e.Detail)
}

type Client struct {
	baseURL     string
	internalKey string
	httpClient  *http.Client
}

func NewClient(baseURL, internalKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		internalKey: internalKey,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// GetPicks 原样返回上游 JSON
func (c *Client) GetPicks(ctx context.Context, rangeParam string, refresh bool) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("range", rangeParam)
	q.Set("refresh", strconv.FormatBool(refresh))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/internal/picks?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

type ChatRequest struct {
	UserID  string `json:"user_id"`
	Plan    string `json:"plan"`
	Content string `json:"content"`
}

type ChatResponse struct {
	Response string `json:"response"`
}

func (c *Client) Chat(ctx context.Context, in *ChatRequest) (*ChatResponse, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/internal/chat", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	raw, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var out ChatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode chat response: %w", err)
	}
	return &out, nil
}

// do 网络错误按 502 包装为 *Error
func (c *Client) do(req *http.Request) (json.RawMessage, error) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(internalKeyHeader, c.internalKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &Error{Status: http.StatusBadGateway}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &Error{Status: http.StatusBadGateway}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var payload struct {
			Detail interface{} `json:"detail"`
		}
		_ = json.Unmarshal(body, &payload)

		detail, _ := payload.Detail.(string)
		return nil, &Error{Status: resp.StatusCode, Detail: detail}
	}

	if !json.Valid(body) {
		return nil, &Error{Status: http.StatusBadGateway}
	}
	return body, nil
}
