package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"sudooom.campus.chat/internal/config"
	apperr "sudooom.campus.chat/internal/errors"
	"sudooom.campus.chat/internal/model"
	"sudooom.campus.chat/internal/store"
)

// Client 后端 REST 客户端
// 聊天同步层只通过这几个窄接口与后端交互
type Client struct {
	baseURL      string
	httpClient   *http.Client
	sessionToken string
	logger       *slog.Logger
}

// NewClient 创建后端客户端
func NewClient(cfg config.BackendConfig, sessionToken string) *Client {
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		sessionToken: sessionToken,
		logger:       slog.Default(),
	}
}

// GetUser 查询用户资料 GET /users/{id}
func (c *Client) GetUser(ctx context.Context, id string) (model.User, error) {
	var raw map[string]any
	if err := c.doJSON(ctx, http.MethodGet, "/users/"+id, nil, &raw); err != nil {
		return model.User{}, err
	}
	return model.NormalizeUser(raw), nil
}

// ExchangeToken 用后端会话换取实时存储凭证 POST /auth/firebase-token
// 实现 store.TokenExchanger
func (c *Client) ExchangeToken(ctx context.Context, sessionToken string) (store.Credential, error) {
	body := map[string]string{"token": sessionToken}

	var cred store.Credential
	if err := c.doJSON(ctx, http.MethodPost, "/auth/firebase-token", body, &cred); err != nil {
		return store.Credential{}, err
	}
	return cred, nil
}

// UnreadNotifications 获取未读通知数 GET /notifications/unread-count
func (c *Client) UnreadNotifications(ctx context.Context) (int, error) {
	var resp struct {
		Count int `json:"count"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/notifications/unread-count", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// MarkNotificationRead 标记通知已读 POST /notifications/{id}/read
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodPost, "/notifications/"+id+"/read", nil, nil)
}

// doJSON 发送请求并解码 JSON 响应
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return apperr.ErrValidationError.Wrap(err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return apperr.ErrValidationError.Wrap(err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.sessionToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.sessionToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return apperr.ErrTimeout.Wrap(err)
		}
		return apperr.ErrConnectionUnavailable.Wrap(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return apperr.ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return apperr.ErrAuthFailed
	case resp.StatusCode >= 400:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return apperr.ErrServerError.Wrap(fmt.Errorf("status %d: %s", resp.StatusCode, msg))
	}

	if out == nil {
		return nil
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return apperr.ErrServerError.Wrap(err)
	}
	return nil
}

// isTimeout 判断传输层错误是否为超时
func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
