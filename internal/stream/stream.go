package stream

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"sudooom.campus.chat/internal/directory"
	apperr "sudooom.campus.chat/internal/errors"
	"sudooom.campus.chat/internal/model"
	"sudooom.campus.chat/internal/snowflake"
	"sudooom.campus.chat/internal/store"
)

// Source 消息流服务对连接适配器的依赖
// *store.Adapter 实现该接口
type Source interface {
	Store() store.Store
	Online() bool
	CanWrite() bool
	MarkUnavailable()
}

// Notifier 消息写入后的变更通知出口
// 实现方把事件推送到会话与参与者目录的变更频道，监听端据此触发刷新
type Notifier interface {
	NotifyConversation(conversationID string, updateAt int64)
	NotifyDirectory(userIDs []string, conversationID string, updateAt int64)
}

// Service 消息流读写服务
// 消息在存储中按会话分片：时间索引（消息 ID -> 毫秒时间戳）
// 加上每条消息一个哈希。读路径失败时降级为空列表，
// 调用方通过幂等合并把增量并入本地状态
type Service struct {
	source       Source
	directory    *directory.Service
	node         *snowflake.Node
	notifier     Notifier
	fetchTimeout time.Duration
	fetchLimit   int64
	logger       *slog.Logger
}

// NewService 创建消息流服务
func NewService(source Source, dir *directory.Service, node *snowflake.Node, fetchTimeout time.Duration, fetchLimit int64) *Service {
	if fetchTimeout <= 0 {
		fetchTimeout = 6 * time.Second
	}
	if fetchLimit <= 0 {
		fetchLimit = 200
	}
	return &Service{
		source:       source,
		directory:    dir,
		node:         node,
		fetchTimeout: fetchTimeout,
		fetchLimit:   fetchLimit,
		logger:       slog.Default(),
	}
}

// SetNotifier 注册变更通知出口（可选）
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// FetchAll 全量拉取会话消息（按时间升序，截断为最近 limit 条）
// limit <= 0 时使用服务默认上限。
// 失败时返回空列表，不报错；调用方保留本地已有状态
func (s *Service) FetchAll(ctx context.Context, conversationID string, limit int64) []model.Message {
	if limit <= 0 {
		limit = s.fetchLimit
	}

	ctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	entries, err := s.source.Store().IndexTail(ctx, store.MessagesKey(conversationID), limit)
	if err != nil {
		s.logger.Warn("Message fetch failed, keeping local state", "conversationId", conversationID, "error", err)
		s.source.MarkUnavailable()
		return nil
	}
	return s.loadMessages(ctx, conversationID, entries)
}

// FetchSince 增量拉取指定水位之后的消息（严格大于，按时间升序）
// 与全量拉取相同的降级语义
func (s *Service) FetchSince(ctx context.Context, conversationID string, watermark int64) []model.Message {
	ctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	entries, err := s.source.Store().IndexRangeByScore(ctx, store.MessagesKey(conversationID), float64(watermark), true)
	if err != nil {
		s.logger.Warn("Incremental fetch failed, keeping local state", "conversationId", conversationID, "error", err)
		s.source.MarkUnavailable()
		return nil
	}
	return s.loadMessages(ctx, conversationID, entries)
}

// loadMessages 根据索引条目批量加载消息体
func (s *Service) loadMessages(ctx context.Context, conversationID string, entries []store.Entry) []model.Message {
	if len(entries) == 0 {
		return nil
	}

	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = store.MessageKey(conversationID, e.Member)
	}

	hashes, err := s.source.Store().HashGetAllMulti(ctx, keys)
	if err != nil {
		s.logger.Warn("Message bodies fetch failed, keeping local state", "conversationId", conversationID, "error", err)
		s.source.MarkUnavailable()
		return nil
	}

	messages := make([]model.Message, 0, len(entries))
	for i, data := range hashes {
		if len(data) == 0 {
			// 索引里有但消息体缺失：部分写留下的悬空成员，跳过
			continue
		}
		messages = append(messages, DecodeMessage(conversationID, entries[i].Member, data))
	}

	sortMessages(messages)
	return messages
}

// SendMessage 发送消息
// 消息 ID 和服务端时间戳由雪花节点生成，写入消息体与时间索引后
// 刷新所有参与者的目录条目并发出变更通知
func (s *Service) SendMessage(ctx context.Context, userID any, conversationID, text string) (model.Message, error) {
	uid := model.NormalizeID(userID)
	text = strings.TrimSpace(text)
	if uid == "" || conversationID == "" || text == "" {
		return model.Message{}, apperr.ErrValidationError
	}
	if !s.source.CanWrite() {
		return model.Message{}, apperr.ErrConnectionUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	participants, err := s.directory.Participants(ctx, conversationID)
	if err != nil {
		return model.Message{}, err
	}
	if !containsID(participants, uid) {
		return model.Message{}, apperr.NewError(apperr.CodeValidationError, "发送者不在会话参与者中")
	}

	id := s.node.Generate()
	msg := model.Message{
		ID:             id.String(),
		ConversationID: conversationID,
		SenderID:       uid,
		Text:           text,
		Timestamp:      id.Time(),
		ReadBy:         map[string]bool{uid: true},
	}

	err = s.source.Store().ApplyBatch(ctx, store.Batch{
		Hashes: []store.HashWrite{
			{Key: store.MessageKey(conversationID, msg.ID), Fields: encodeMessage(msg)},
		},
		Indexes: []store.IndexWrite{
			{Key: store.MessagesKey(conversationID), Member: msg.ID, Score: float64(msg.Timestamp)},
		},
	})
	if err != nil {
		return model.Message{}, err
	}

	last := model.LastMessage{Text: msg.Text, SenderID: msg.SenderID, Timestamp: msg.Timestamp}
	if err := s.directory.Touch(ctx, conversationID, participants, last); err != nil {
		// 消息体已落盘，目录刷新失败只告警，下一条消息会修复
		s.logger.Warn("Directory refresh after send failed", "conversationId", conversationID, "error", err)
	}

	if s.notifier != nil {
		s.notifier.NotifyConversation(conversationID, msg.Timestamp)
		s.notifier.NotifyDirectory(participants, conversationID, msg.Timestamp)
	}
	return msg, nil
}

// Merge 把一批拉取到的消息并入已有列表
// 按消息 ID 去重（已存在的以新拉取的为准，已读标记可能更新），
// 重复合并同一批消息不改变结果，结果按时间升序
func Merge(existing, incoming []model.Message) []model.Message {
	if len(incoming) == 0 {
		return existing
	}

	byID := make(map[string]int, len(existing))
	merged := make([]model.Message, len(existing))
	copy(merged, existing)
	for i, m := range merged {
		byID[m.ID] = i
	}

	for _, m := range incoming {
		if i, ok := byID[m.ID]; ok {
			merged[i] = m
			continue
		}
		byID[m.ID] = len(merged)
		merged = append(merged, m)
	}

	sortMessages(merged)
	return merged
}

// Watermark 一批消息的最大时间戳（下次增量拉取的水位）
func Watermark(messages []model.Message) int64 {
	var max int64
	for _, m := range messages {
		if m.Timestamp > max {
			max = m.Timestamp
		}
	}
	return max
}

// sortMessages 按时间升序排序，时间相同按 ID 保证确定性
func sortMessages(messages []model.Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		if messages[i].Timestamp != messages[j].Timestamp {
			return messages[i].Timestamp < messages[j].Timestamp
		}
		return messages[i].ID < messages[j].ID
	})
}

func containsID(ids []string, userID string) bool {
	for _, id := range ids {
		if model.SameID(id, userID) {
			return true
		}
	}
	return false
}
