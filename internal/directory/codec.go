package directory

import (
	"encoding/json"
	"strconv"

	"sudooom.campus.chat/internal/model"
)

// 目录条目在实时存储中的哈希字段
const (
	fieldType         = "type"
	fieldPeerID       = "peer_id"
	fieldTitle        = "title"
	fieldLastText     = "last_text"
	fieldLastSender   = "last_sender_id"
	fieldLastTS       = "last_ts"
	fieldUnreadCount  = "unread_count"
	fieldLastReadTS   = "last_read_ts"
	fieldUpdateAt     = "update_at"
	fieldParticipants = "participants"
	fieldCreatedAt    = "created_at"
)

// encodeEntry 目录条目编码为哈希字段
// 不包含 unread_count：计数器只通过自增/重置修改，覆盖写会丢更新
func encodeEntry(e model.DirectoryEntry) map[string]string {
	fields := map[string]string{
		fieldType:     string(e.Type),
		fieldUpdateAt: strconv.FormatInt(e.UpdateAt, 10),
	}
	if e.PeerID != "" {
		fields[fieldPeerID] = e.PeerID
	}
	if e.Title != "" {
		fields[fieldTitle] = e.Title
	}
	if e.LastMessage != nil {
		fields[fieldLastText] = e.LastMessage.Text
		fields[fieldLastSender] = e.LastMessage.SenderID
		fields[fieldLastTS] = strconv.FormatInt(e.LastMessage.Timestamp, 10)
	}
	return fields
}

// decodeEntry 哈希字段还原目录条目
func decodeEntry(conversationID string, data map[string]string) model.DirectoryEntry {
	e := model.DirectoryEntry{
		ConversationID: conversationID,
		Type:           model.ConversationType(data[fieldType]),
		PeerID:         data[fieldPeerID],
		Title:          data[fieldTitle],
	}
	e.UnreadCount = int(parseInt64(data[fieldUnreadCount]))
	if e.UnreadCount < 0 {
		e.UnreadCount = 0
	}
	e.UpdateAt = parseInt64(data[fieldUpdateAt])

	if text, ok := data[fieldLastText]; ok {
		e.LastMessage = &model.LastMessage{
			Text:      text,
			SenderID:  data[fieldLastSender],
			Timestamp: parseInt64(data[fieldLastTS]),
		}
	}
	return e
}

// encodeParticipants 参与者集合编码为 JSON 字符串
func encodeParticipants(ids []string) string {
	data, _ := json.Marshal(ids)
	return string(data)
}

// decodeParticipants 解析参与者集合
func decodeParticipants(raw string) []string {
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil
	}
	return ids
}

func parseInt64(str string) int64 {
	v, _ := strconv.ParseInt(str, 10, 64)
	return v
}
