package model

import (
	"sort"
	"strings"
)

// ConversationType 会话类型
type ConversationType string

const (
	ConversationPersonal ConversationType = "personal" // 私聊
	ConversationGroup    ConversationType = "group"    // 群聊
)

// PersonalConversationPrefix 私聊会话 ID 前缀
const PersonalConversationPrefix = "personal"

// conversationIDSeparator 会话 ID 分隔符
const conversationIDSeparator = "_"

// Conversation 会话信息
type Conversation struct {
	ID           string           `json:"id"`
	Type         ConversationType `json:"type"`
	Participants []string         `json:"participants"`
	LastMessage  *LastMessage     `json:"lastMessage,omitempty"`
	UpdateAt     int64            `json:"updateAt"` // 毫秒时间戳
}

// LastMessage 会话最后一条消息摘要
type LastMessage struct {
	Text      string `json:"text"`
	SenderID  string `json:"senderId"`
	Timestamp int64  `json:"timestamp"` // 毫秒时间戳
}

// DirectoryEntry 用户会话目录条目
// 冗余存储在用户自己的命名空间下，用于快速列表展示
type DirectoryEntry struct {
	ConversationID string           `json:"conversationId"`
	Type           ConversationType `json:"type"`
	PeerID         string           `json:"peerId,omitempty"`  // 私聊对方 ID
	Title          string           `json:"title,omitempty"`   // 群聊标题
	LastMessage    *LastMessage     `json:"lastMessage,omitempty"`
	UnreadCount    int              `json:"unreadCount"`
	UpdateAt       int64            `json:"updateAt"` // 毫秒时间戳
}

// PersonalConversationID 计算私聊会话的确定性 ID
// 两个用户 ID 按字典序排序后用分隔符拼接，带类型前缀
// 保证 (A,B) 与 (B,A) 得到同一个 ID
func PersonalConversationID(userA, userB any) string {
	a, b := NormalizeID(userA), NormalizeID(userB)
	if a > b {
		a, b = b, a
	}
	return strings.Join([]string{PersonalConversationPrefix, a, b}, conversationIDSeparator)
}

// PersonalPeerID 从私聊会话 ID 中解析出对方用户 ID
// 不是私聊 ID 或不包含该用户时返回空串
func PersonalPeerID(conversationID string, userID string) string {
	parts := strings.Split(conversationID, conversationIDSeparator)
	if len(parts) != 3 || parts[0] != PersonalConversationPrefix {
		return ""
	}
	switch userID {
	case parts[1]:
		return parts[2]
	case parts[2]:
		return parts[1]
	}
	return ""
}

// SortConversationsByUpdate 按更新时间倒序排序（最近会话在前）
func SortConversationsByUpdate(entries []DirectoryEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].UpdateAt > entries[j].UpdateAt
	})
}
