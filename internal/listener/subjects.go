package listener

// NATS Subject 常量定义
const (
	// SubjectConversationPrefix 会话变更事件前缀
	// 完整格式: campus.chat.conv.{conversation_id}
	SubjectConversationPrefix = "campus.chat.conv."

	// SubjectDirectoryPrefix 用户目录变更事件前缀
	// 完整格式: campus.chat.user.{user_id}.directory
	SubjectDirectoryPrefix = "campus.chat.user."
	SubjectDirectorySuffix = ".directory"
)

// ConversationSubject 构建会话变更 Subject
func ConversationSubject(conversationID string) string {
	return SubjectConversationPrefix + conversationID
}

// DirectorySubject 构建用户目录变更 Subject
func DirectorySubject(userID string) string {
	return SubjectDirectoryPrefix + userID + SubjectDirectorySuffix
}
