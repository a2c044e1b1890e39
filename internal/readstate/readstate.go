package readstate

import (
	"context"
	"log/slog"
	"time"

	"sudooom.campus.chat/internal/directory"
	apperr "sudooom.campus.chat/internal/errors"
	"sudooom.campus.chat/internal/model"
	"sudooom.campus.chat/internal/store"
	"sudooom.campus.chat/internal/stream"
)

// Source 已读状态服务对连接适配器的依赖
type Source interface {
	Store() store.Store
	CanWrite() bool
}

// Service 已读状态跟踪
// 已读标记按批量落盘（每条消息一个 read:{userID} 字段），
// 然后把目录里的未读计数清零。重复标记是幂等的
type Service struct {
	source       Source
	directory    *directory.Service
	batchSize    int
	fetchTimeout time.Duration
	logger       *slog.Logger
}

// NewService 创建已读状态服务
func NewService(source Source, dir *directory.Service, batchSize int, fetchTimeout time.Duration) *Service {
	if batchSize <= 0 {
		batchSize = 100
	}
	if fetchTimeout <= 0 {
		fetchTimeout = 6 * time.Second
	}
	return &Service{
		source:       source,
		directory:    dir,
		batchSize:    batchSize,
		fetchTimeout: fetchTimeout,
		logger:       slog.Default(),
	}
}

// MarkRead 把会话标记为指定用户已读
// 未读集合由服务端从已读水位开始扫描得出，不信任调用方本地
// 拉取到的截断列表：只处理别人发来且尚未读过的消息，按
// batchSize 分批写入；全部落盘后推进水位并清零目录里的未读
// 计数。写路径失败时显式报错
func (s *Service) MarkRead(ctx context.Context, userID any, conversationID string) error {
	uid := model.NormalizeID(userID)
	if uid == "" || conversationID == "" {
		return apperr.ErrValidationError
	}
	if !s.source.CanWrite() {
		return apperr.ErrConnectionUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	st := s.source.Store()

	watermark, err := s.directory.ReadWatermark(ctx, uid, conversationID)
	if err != nil {
		return err
	}

	// 含水位本身：同一毫秒可能落多条消息，重复标记是幂等的
	entries, err := st.IndexRangeByScore(ctx, store.MessagesKey(conversationID), float64(watermark), false)
	if err != nil {
		return err
	}

	lastReadTS := watermark
	var pending []store.HashWrite
	if len(entries) > 0 {
		keys := make([]string, len(entries))
		for i, e := range entries {
			keys[i] = store.MessageKey(conversationID, e.Member)
		}
		hashes, err := st.HashGetAllMulti(ctx, keys)
		if err != nil {
			return err
		}

		readField := stream.ReadField(uid)
		for i, data := range hashes {
			if len(data) == 0 {
				// 部分写留下的悬空索引成员，跳过
				continue
			}
			m := stream.DecodeMessage(conversationID, entries[i].Member, data)
			if m.Timestamp > lastReadTS {
				// 水位越过扫描到的所有消息，自己发的也算
				lastReadTS = m.Timestamp
			}
			if m.ReadByUser(uid) {
				continue
			}
			pending = append(pending, store.HashWrite{
				Key:    store.MessageKey(conversationID, m.ID),
				Fields: map[string]string{readField: "1"},
			})
		}
	}

	for start := 0; start < len(pending); start += s.batchSize {
		end := start + s.batchSize
		if end > len(pending) {
			end = len(pending)
		}
		if err := st.ApplyBatch(ctx, store.Batch{Hashes: pending[start:end]}); err != nil {
			return err
		}
	}

	// 已读标记落盘后目录计数才清零，失败时计数偏大但不为负，
	// 下一次标记会收敛
	if err := s.directory.ResetUnread(ctx, uid, conversationID, lastReadTS); err != nil {
		s.logger.Warn("Unread counter reset failed, will converge on next mark",
			"conversationId", conversationID, "userId", uid, "error", err)
		return err
	}
	return nil
}

// UnreadCount 统计一批消息中指定用户的未读数
// 自己发出的消息不计入，结果永远非负
func UnreadCount(userID any, messages []model.Message) int {
	uid := model.NormalizeID(userID)
	count := 0
	for _, m := range messages {
		if !m.ReadByUser(uid) {
			count++
		}
	}
	return count
}

// TotalUnread 汇总用户所有会话的未读数（目录计数求和）
func (s *Service) TotalUnread(ctx context.Context, userID any) int {
	uid := model.NormalizeID(userID)
	total := 0
	for _, entry := range s.directory.ListConversations(ctx, uid) {
		if entry.UnreadCount > 0 {
			total += entry.UnreadCount
		}
	}
	return total
}
