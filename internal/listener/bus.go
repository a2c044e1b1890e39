package listener

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"sudooom.campus.chat/internal/config"
)

// ChangeEvent 变更事件
type ChangeEvent struct {
	ConversationID string `json:"conversationId"`
	UpdateAt       int64  `json:"updateAt"`
}

// Bus NATS 变更通知总线
// 发送端把会话变更发布到会话与参与者目录的 Subject，
// 监听端订阅后收到推送即触发刷新
type Bus struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// NewBus 创建变更通知总线
func NewBus(cfg config.NATSConfig) (*Bus, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			slog.Warn("Disconnected from NATS", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("Reconnected to NATS", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			slog.Info("NATS connection closed")
		}),
		nats.Timeout(10 * time.Second),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, err
	}

	return &Bus{
		conn:   conn,
		logger: slog.Default(),
	}, nil
}

// Conn 返回底层 NATS 连接
func (b *Bus) Conn() *nats.Conn {
	return b.conn
}

// IsConnected 检查连接状态
func (b *Bus) IsConnected() bool {
	return b != nil && b.conn != nil && b.conn.IsConnected()
}

// Close 关闭连接
func (b *Bus) Close() {
	if b.conn != nil {
		b.conn.Close()
	}
}

// NotifyConversation 发布会话变更事件
func (b *Bus) NotifyConversation(conversationID string, updateAt int64) {
	b.publish(ConversationSubject(conversationID), ChangeEvent{
		ConversationID: conversationID,
		UpdateAt:       updateAt,
	})
}

// NotifyDirectory 发布参与者目录变更事件
func (b *Bus) NotifyDirectory(userIDs []string, conversationID string, updateAt int64) {
	event := ChangeEvent{ConversationID: conversationID, UpdateAt: updateAt}
	for _, userID := range userIDs {
		b.publish(DirectorySubject(userID), event)
	}
}

func (b *Bus) publish(subject string, event ChangeEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal change event", "subject", subject, "error", err)
		return
	}

	if err := b.conn.Publish(subject, data); err != nil {
		b.logger.Warn("Failed to publish change event", "subject", subject, "error", err)
		return
	}

	b.logger.Debug("Published change event", "subject", subject)
}

// SubscribeConversation 订阅会话变更事件
func (b *Bus) SubscribeConversation(conversationID string, fn func(ChangeEvent)) (*nats.Subscription, error) {
	return b.subscribe(ConversationSubject(conversationID), fn)
}

// SubscribeDirectory 订阅用户目录变更事件
func (b *Bus) SubscribeDirectory(userID string, fn func(ChangeEvent)) (*nats.Subscription, error) {
	return b.subscribe(DirectorySubject(userID), fn)
}

func (b *Bus) subscribe(subject string, fn func(ChangeEvent)) (*nats.Subscription, error) {
	return b.conn.Subscribe(subject, func(msg *nats.Msg) {
		var event ChangeEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			b.logger.Error("Failed to unmarshal change event", "subject", subject, "error", err)
			return
		}
		fn(event)
	})
}
