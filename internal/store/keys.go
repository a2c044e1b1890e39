package store

import "fmt"

// 实时存储按路径寻址，所有键集中在这里构建。
// 层级与外部契约一致：messages/{conversationId}、userChats/{userId}/{conversationId}
const (
	keyPrefix = "campus:chat:"
)

// MessagesKey 会话消息索引（ZSET，member: 消息ID，score: 毫秒时间戳）
func MessagesKey(conversationID string) string {
	return fmt.Sprintf("%smessages:%s", keyPrefix, conversationID)
}

// MessageKey 单条消息（HASH）
func MessageKey(conversationID, messageID string) string {
	return fmt.Sprintf("%smessage:%s:%s", keyPrefix, conversationID, messageID)
}

// ConversationKey 会话元数据（HASH）
func ConversationKey(conversationID string) string {
	return fmt.Sprintf("%sconv:%s", keyPrefix, conversationID)
}

// DirectoryIndexKey 用户会话目录索引（ZSET，member: 会话ID，score: 更新时间）
func DirectoryIndexKey(userID string) string {
	return fmt.Sprintf("%suserChats:%s", keyPrefix, userID)
}

// DirectoryEntryKey 用户会话目录条目（HASH）
func DirectoryEntryKey(userID, conversationID string) string {
	return fmt.Sprintf("%suserChat:%s:%s", keyPrefix, userID, conversationID)
}
