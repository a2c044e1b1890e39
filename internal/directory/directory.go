package directory

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	apperr "sudooom.campus.chat/internal/errors"
	"sudooom.campus.chat/internal/model"
	"sudooom.campus.chat/internal/store"
)

// Source 目录服务对连接适配器的依赖
// *store.Adapter 实现该接口
type Source interface {
	Store() store.Store
	Online() bool
	CanWrite() bool
	MarkUnavailable()
}

// Service 会话目录索引
// 维护每个用户的会话摘要列表（按更新时间倒序），
// 是目录条目的唯一写入方。聊天属于非关键功能，
// 读路径失败时回放最近一次成功的缓存列表而不是报错
type Service struct {
	source       Source
	fetchTimeout time.Duration
	logger       *slog.Logger

	mu        sync.RWMutex
	lastKnown map[string][]model.DirectoryEntry // userID -> 最近一次成功的列表
}

// NewService 创建会话目录服务
func NewService(source Source, fetchTimeout time.Duration) *Service {
	if fetchTimeout <= 0 {
		fetchTimeout = 6 * time.Second
	}
	return &Service{
		source:       source,
		fetchTimeout: fetchTimeout,
		logger:       slog.Default(),
		lastKnown:    make(map[string][]model.DirectoryEntry),
	}
}

// ListConversations 获取用户会话列表（按更新时间倒序）
// 失败或离线时返回最近缓存的列表，没有缓存则返回空列表，从不报错
func (s *Service) ListConversations(ctx context.Context, userID string) []model.DirectoryEntry {
	userID = model.NormalizeID(userID)
	if userID == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	st := s.source.Store()
	online := s.source.Online()
	idxKey := store.DirectoryIndexKey(userID)

	members, err := st.IndexRevRange(ctx, idxKey, 0, 0)
	if err != nil {
		s.logger.Warn("Directory listing failed, serving cached list", "userId", userID, "error", err)
		s.source.MarkUnavailable()
		return s.cached(userID)
	}

	if len(members) == 0 {
		if online {
			// 在线且目录为空：以存储为准，同时刷新缓存
			s.remember(userID, nil)
			return []model.DirectoryEntry{}
		}
		// 离线缓存没有数据时回放最近一次成功的列表
		return s.cached(userID)
	}

	keys := make([]string, len(members))
	for i, convID := range members {
		keys[i] = store.DirectoryEntryKey(userID, convID)
	}

	hashes, err := st.HashGetAllMulti(ctx, keys)
	if err != nil {
		s.logger.Warn("Directory entries fetch failed, serving cached list", "userId", userID, "error", err)
		s.source.MarkUnavailable()
		return s.cached(userID)
	}

	entries := make([]model.DirectoryEntry, 0, len(members))
	for i, data := range hashes {
		if len(data) == 0 {
			// 部分写失败留下的悬空索引成员，跳过，下次覆盖写修复
			continue
		}
		entries = append(entries, decodeEntry(members[i], data))
	}

	model.SortConversationsByUpdate(entries)
	if online {
		s.remember(userID, entries)
	}
	return entries
}

// CreatePersonalConversation 创建（或返回已存在的）私聊会话
// 会话 ID 由双方用户 ID 确定性推导，创建是幂等的。
// 写路径没有离线回退，连接不可用时显式失败
func (s *Service) CreatePersonalConversation(ctx context.Context, userID, peerID any) (string, error) {
	uid, pid := model.NormalizeID(userID), model.NormalizeID(peerID)
	if uid == "" || pid == "" || uid == pid {
		return "", apperr.ErrValidationError
	}
	if !s.source.CanWrite() {
		return "", apperr.ErrConnectionUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	st := s.source.Store()
	convID := model.PersonalConversationID(uid, pid)
	convKey := store.ConversationKey(convID)

	existing, err := st.HashGetAll(ctx, convKey)
	if err != nil {
		return "", err
	}
	if len(existing) > 0 {
		// 幂等创建：已存在则原样返回
		return convID, nil
	}

	now := time.Now().UnixMilli()

	if err := st.HashSet(ctx, convKey, map[string]string{
		fieldType:         string(model.ConversationPersonal),
		fieldParticipants: encodeParticipants([]string{uid, pid}),
		fieldCreatedAt:    strconv.FormatInt(now, 10),
	}); err != nil {
		return "", err
	}

	// 双方目录条目是两次独立写入，不保证原子性；
	// 对端写入失败只告警，下一条消息的覆盖写会修复
	if err := s.writeEntry(ctx, st, uid, convID, model.DirectoryEntry{
		ConversationID: convID,
		Type:           model.ConversationPersonal,
		PeerID:         pid,
		UpdateAt:       now,
	}); err != nil {
		return "", err
	}

	if err := s.writeEntry(ctx, st, pid, convID, model.DirectoryEntry{
		ConversationID: convID,
		Type:           model.ConversationPersonal,
		PeerID:         uid,
		UpdateAt:       now,
	}); err != nil {
		s.logger.Warn("Peer directory entry write failed, will repair on next update",
			"conversationId", convID, "peerId", pid, "error", err)
	}

	return convID, nil
}

// writeEntry 写入单个用户的目录条目及其索引
func (s *Service) writeEntry(ctx context.Context, st store.Store, userID, convID string, entry model.DirectoryEntry) error {
	return st.ApplyBatch(ctx, store.Batch{
		Hashes: []store.HashWrite{
			{Key: store.DirectoryEntryKey(userID, convID), Fields: encodeEntry(entry)},
		},
		Indexes: []store.IndexWrite{
			{Key: store.DirectoryIndexKey(userID), Member: convID, Score: float64(entry.UpdateAt)},
		},
	})
}

// RemoveConversation 从调用用户的目录中移除会话
// 只是按用户隐藏：不删除底层会话、消息和对方的目录条目
func (s *Service) RemoveConversation(ctx context.Context, userID any, conversationID string) error {
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
	if err := st.IndexRemove(ctx, store.DirectoryIndexKey(uid), conversationID); err != nil {
		return err
	}
	if err := st.Delete(ctx, store.DirectoryEntryKey(uid, conversationID)); err != nil {
		return err
	}

	// 同步本地缓存
	s.mu.Lock()
	kept := s.lastKnown[uid][:0:0]
	for _, e := range s.lastKnown[uid] {
		if e.ConversationID != conversationID {
			kept = append(kept, e)
		}
	}
	s.lastKnown[uid] = kept
	s.mu.Unlock()

	return nil
}

// Participants 获取会话参与者集合
func (s *Service) Participants(ctx context.Context, conversationID string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	data, err := s.source.Store().HashGetAll(ctx, store.ConversationKey(conversationID))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, apperr.ErrNotFound
	}
	return decodeParticipants(data[fieldParticipants]), nil
}

// Touch 新消息到达后刷新所有参与者的目录条目
// 每个参与者一次独立批量写（不跨用户原子），接收方未读数自增；
// 目录条目按时间戳最后写入生效
func (s *Service) Touch(ctx context.Context, conversationID string, participants []string, last model.LastMessage) error {
	ctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	st := s.source.Store()

	var firstErr error
	for _, userID := range participants {
		entry := model.DirectoryEntry{
			ConversationID: conversationID,
			Type:           model.ConversationPersonal,
			PeerID:         model.PersonalPeerID(conversationID, userID),
			LastMessage:    &last,
			UpdateAt:       last.Timestamp,
		}
		if entry.PeerID == "" {
			entry.Type = model.ConversationGroup
		}

		batch := store.Batch{
			Hashes: []store.HashWrite{
				{Key: store.DirectoryEntryKey(userID, conversationID), Fields: encodeEntry(entry)},
			},
			Indexes: []store.IndexWrite{
				{Key: store.DirectoryIndexKey(userID), Member: conversationID, Score: float64(entry.UpdateAt)},
			},
		}
		if !model.SameID(userID, last.SenderID) {
			batch.Incrs = []store.IncrWrite{
				{Key: store.DirectoryEntryKey(userID, conversationID), Field: fieldUnreadCount, Delta: 1},
			}
		}

		if err := st.ApplyBatch(ctx, batch); err != nil {
			if model.SameID(userID, last.SenderID) && firstErr == nil {
				firstErr = err
			} else {
				s.logger.Warn("Directory touch failed for participant, will repair on next update",
					"conversationId", conversationID, "userId", userID, "error", err)
			}
		}
	}

	return firstErr
}

// ResetUnread 清零用户某会话的未读计数（已读标记流程调用）
// lastReadTS <= 0 时不写水位字段，空会话不会把水位拉回去
func (s *Service) ResetUnread(ctx context.Context, userID, conversationID string, lastReadTS int64) error {
	fields := map[string]string{fieldUnreadCount: "0"}
	if lastReadTS > 0 {
		fields[fieldLastReadTS] = strconv.FormatInt(lastReadTS, 10)
	}
	return s.source.Store().HashSet(ctx, store.DirectoryEntryKey(userID, conversationID), fields)
}

// ReadWatermark 用户在某会话的已读水位（毫秒时间戳，没有记录时为 0）
func (s *Service) ReadWatermark(ctx context.Context, userID, conversationID string) (int64, error) {
	data, err := s.source.Store().HashGetAll(ctx, store.DirectoryEntryKey(userID, conversationID))
	if err != nil {
		return 0, err
	}
	return parseInt64(data[fieldLastReadTS]), nil
}

func (s *Service) cached(userID string) []model.DirectoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cached := s.lastKnown[userID]
	out := make([]model.DirectoryEntry, len(cached))
	copy(out, cached)
	return out
}

func (s *Service) remember(userID string, entries []model.DirectoryEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]model.DirectoryEntry, len(entries))
	copy(kept, entries)
	s.lastKnown[userID] = kept
}
