package push

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
)

// Category 推送类别
type Category string

const (
	CategoryDefault Category = "default"
	CategoryChat    Category = "chat"
	CategoryTickets Category = "tickets"
	CategoryNews    Category = "news"
)

// Categories 全部推送类别
func Categories() []Category {
	return []Category{CategoryDefault, CategoryChat, CategoryTickets, CategoryNews}
}

// Valid 判断类别是否合法
func (c Category) Valid() bool {
	switch c {
	case CategoryDefault, CategoryChat, CategoryTickets, CategoryNews:
		return true
	}
	return false
}

// ChannelID 类别对应的系统通知渠道 ID
// 未知类别落到默认渠道
func (c Category) ChannelID() string {
	switch c {
	case CategoryChat:
		return "campus_chat"
	case CategoryTickets:
		return "campus_tickets"
	case CategoryNews:
		return "campus_news"
	default:
		return "campus_default"
	}
}

// Registration 设备注册信息
type Registration struct {
	DeviceToken string   `json:"deviceToken"`
	UserID      string   `json:"userId"`
	Platform    string   `json:"platform"`
	Categories  []string `json:"categories,omitempty"`
}

// Client 推送服务客户端
// 负责把设备令牌登记到推送网关，注销是尽力而为的
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient 创建推送客户端
func NewClient(cfg config.PushConfig) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     slog.Default(),
	}
}

// Register 注册设备 POST /device/register
// 未指定类别时订阅全部类别
func (c *Client) Register(ctx context.Context, reg Registration) error {
	if reg.DeviceToken == "" || reg.UserID == "" {
		return apperr.ErrValidationError
	}

	if len(reg.Categories) == 0 {
		for _, cat := range Categories() {
			reg.Categories = append(reg.Categories, string(cat))
		}
	}
	for _, cat := range reg.Categories {
		if !Category(cat).Valid() {
			return apperr.NewError(apperr.CodeValidationError, "未知的推送类别: "+cat)
		}
	}

	return c.post(ctx, "/device/register", reg)
}

// Unregister 注销设备 POST /device/unregister
// 登出清理路径上的失败只告警不阻断
func (c *Client) Unregister(ctx context.Context, deviceToken string) error {
	if deviceToken == "" {
		return apperr.ErrValidationError
	}

	err := c.post(ctx, "/device/unregister", map[string]string{"deviceToken": deviceToken})
	if err != nil {
		c.logger.Warn("Device unregister failed", "error", err)
	}
	return err
}

func (c *Client) post(ctx context.Context, path string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return apperr.ErrValidationError.Wrap(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return apperr.ErrValidationError.Wrap(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return apperr.ErrTimeout.Wrap(err)
		}
		return apperr.ErrConnectionUnavailable.Wrap(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return apperr.ErrServerError.Wrap(fmt.Errorf("status %d: %s", resp.StatusCode, msg))
	}
	return nil
}

// isTimeout 判断传输层错误是否为超时
func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
