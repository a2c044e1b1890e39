package model

// Message 聊天消息
// 创建后 Text 和 SenderID 不可变，只有 ReadBy 会更新
type Message struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversationId"`
	SenderID       string          `json:"senderId"`
	Text           string          `json:"text"`
	Timestamp      int64           `json:"timestamp"` // 毫秒时间戳，优先使用服务端时间
	ReadBy         map[string]bool `json:"readBy,omitempty"`
}

// FromUser 判断消息是否由指定用户发出
// 发送方 ID 与用户 ID 可能来自不同编码的来源，必须规范化后比较
func (m *Message) FromUser(userID any) bool {
	return SameID(m.SenderID, userID)
}

// ReadByUser 判断消息是否已被指定用户读过
// 自己发出的消息视为已读
func (m *Message) ReadByUser(userID string) bool {
	if m.FromUser(userID) {
		return true
	}
	return m.ReadBy[userID]
}
