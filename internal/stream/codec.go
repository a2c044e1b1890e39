package stream

import (
	"strconv"
	"strings"

	"sudooom.campus.chat/internal/model"
)

// 消息在实时存储中的哈希字段
const (
	fieldSenderID  = "sender_id"
	fieldText      = "text"
	fieldTimestamp = "timestamp"

	// 每个已读用户一个标记字段，如 read:42
	readFieldPrefix = "read:"
)

// encodeMessage 消息编码为哈希字段
func encodeMessage(m model.Message) map[string]string {
	fields := map[string]string{
		fieldSenderID:  m.SenderID,
		fieldText:      m.Text,
		fieldTimestamp: strconv.FormatInt(m.Timestamp, 10),
	}
	for userID, read := range m.ReadBy {
		if read {
			fields[readFieldPrefix+userID] = "1"
		}
	}
	return fields
}

// DecodeMessage 哈希字段还原消息
// 已读状态服务扫描会话时复用同一编码
func DecodeMessage(conversationID, messageID string, data map[string]string) model.Message {
	m := model.Message{
		ID:             messageID,
		ConversationID: conversationID,
		SenderID:       data[fieldSenderID],
		Text:           data[fieldText],
		ReadBy:         make(map[string]bool),
	}
	m.Timestamp, _ = strconv.ParseInt(data[fieldTimestamp], 10, 64)

	for field, v := range data {
		if userID, ok := strings.CutPrefix(field, readFieldPrefix); ok && v == "1" {
			m.ReadBy[userID] = true
		}
	}
	return m
}

// ReadField 某用户的已读标记字段名
func ReadField(userID string) string {
	return readFieldPrefix + userID
}
