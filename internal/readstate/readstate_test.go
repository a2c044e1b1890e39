package readstate

import (
	"context"
	"testing"
	"time"

	"sudooom.campus.chat/internal/directory"
	apperr "sudooom.campus.chat/internal/errors"
	"sudooom.campus.chat/internal/model"
	"sudooom.campus.chat/internal/snowflake"
	"sudooom.campus.chat/internal/store"
	"sudooom.campus.chat/internal/stream"
)

type fakeSource struct {
	st       store.Store
	online   bool
	canWrite bool
}

func (f *fakeSource) Store() store.Store { return f.st }
func (f *fakeSource) Online() bool       { return f.online }
func (f *fakeSource) CanWrite() bool     { return f.canWrite }
func (f *fakeSource) MarkUnavailable()   { f.online = false; f.canWrite = false }

func newTestServices(t *testing.T) (*Service, *stream.Service, *fakeSource, string) {
	t.Helper()

	src := &fakeSource{st: store.NewOfflineStore(), online: true, canWrite: true}
	dir := directory.NewService(src, time.Second)

	node, err := snowflake.NewNode(2)
	if err != nil {
		t.Fatalf("NewNode failed: %v", err)
	}
	messages := stream.NewService(src, dir, node, time.Second, 200)
	reads := NewService(src, dir, 2, time.Second)

	convID, err := dir.CreatePersonalConversation(context.Background(), "1", "2")
	if err != nil {
		t.Fatalf("CreatePersonalConversation failed: %v", err)
	}
	return reads, messages, src, convID
}

func TestMarkRead_Converges(t *testing.T) {
	reads, messages, _, convID := newTestServices(t)
	ctx := context.Background()

	// 对方发来 3 条消息，batchSize=2 强制分批写入
	for _, text := range []string{"a", "b", "c"} {
		if _, err := messages.SendMessage(ctx, "2", convID, text); err != nil {
			t.Fatalf("SendMessage failed: %v", err)
		}
	}

	if got := UnreadCount("1", messages.FetchAll(ctx, convID, 0)); got != 3 {
		t.Fatalf("Expected 3 unread, got %d", got)
	}
	if got := reads.TotalUnread(ctx, "1"); got != 3 {
		t.Fatalf("Expected total unread 3, got %d", got)
	}

	if err := reads.MarkRead(ctx, "1", convID); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}

	if got := UnreadCount("1", messages.FetchAll(ctx, convID, 0)); got != 0 {
		t.Errorf("Expected 0 unread after mark, got %d", got)
	}
	if got := reads.TotalUnread(ctx, "1"); got != 0 {
		t.Errorf("Expected total unread 0 after mark, got %d", got)
	}

	// 重复标记是幂等的，计数不会变负
	if err := reads.MarkRead(ctx, "1", convID); err != nil {
		t.Fatalf("Repeated MarkRead failed: %v", err)
	}
	if got := reads.TotalUnread(ctx, "1"); got != 0 {
		t.Errorf("Expected total unread to stay 0, got %d", got)
	}
}

func TestMarkRead_CoversUnfetchedMessages(t *testing.T) {
	reads, messages, _, convID := newTestServices(t)
	ctx := context.Background()

	for _, text := range []string{"a", "b", "c"} {
		if _, err := messages.SendMessage(ctx, "2", convID, text); err != nil {
			t.Fatalf("SendMessage failed: %v", err)
		}
	}

	// 本地只拉取到最新一条（截断列表）
	truncated := messages.FetchAll(ctx, convID, 1)
	if len(truncated) != 1 {
		t.Fatalf("Expected truncated fetch of 1 message, got %d", len(truncated))
	}

	// 标记已读不依赖本地列表，必须覆盖整个会话：
	// 计数清零之后不允许还留着未标记的消息
	if err := reads.MarkRead(ctx, "1", convID); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}

	all := messages.FetchAll(ctx, convID, 0)
	if got := UnreadCount("1", all); got != 0 {
		t.Errorf("Expected 0 unread messages after mark, got %d", got)
	}
	if got := reads.TotalUnread(ctx, "1"); got != 0 {
		t.Errorf("Expected total unread 0 after mark, got %d", got)
	}
}

func TestMarkRead_WatermarkAdvances(t *testing.T) {
	reads, messages, _, convID := newTestServices(t)
	ctx := context.Background()

	if _, err := messages.SendMessage(ctx, "2", convID, "first"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if err := reads.MarkRead(ctx, "1", convID); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}

	// 标记之后到达的新消息在下一次标记中被处理
	if _, err := messages.SendMessage(ctx, "2", convID, "second"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if got := reads.TotalUnread(ctx, "1"); got != 1 {
		t.Fatalf("Expected total unread 1 after new message, got %d", got)
	}

	if err := reads.MarkRead(ctx, "1", convID); err != nil {
		t.Fatalf("Second MarkRead failed: %v", err)
	}
	if got := UnreadCount("1", messages.FetchAll(ctx, convID, 0)); got != 0 {
		t.Errorf("Expected 0 unread messages, got %d", got)
	}
	if got := reads.TotalUnread(ctx, "1"); got != 0 {
		t.Errorf("Expected total unread 0, got %d", got)
	}
}

func TestMarkRead_EmptyConversation(t *testing.T) {
	reads, _, _, convID := newTestServices(t)

	// 空会话标记已读不报错也不产生计数
	if err := reads.MarkRead(context.Background(), "1", convID); err != nil {
		t.Fatalf("MarkRead on empty conversation failed: %v", err)
	}
	if got := reads.TotalUnread(context.Background(), "1"); got != 0 {
		t.Errorf("Expected total unread 0, got %d", got)
	}
}

func TestUnreadCount_OwnMessagesExcluded(t *testing.T) {
	batch := []model.Message{
		{ID: "1", SenderID: "1", Timestamp: 100},
		{ID: "2", SenderID: "2", Timestamp: 200},
		{ID: "3", SenderID: "2", Timestamp: 300, ReadBy: map[string]bool{"1": true}},
	}

	// 自己发的和已读的都不计入
	if got := UnreadCount("1", batch); got != 1 {
		t.Errorf("Expected 1 unread, got %d", got)
	}

	// 数字编码的用户 ID 得到同样的结果
	if got := UnreadCount(1, batch); got != 1 {
		t.Errorf("Expected 1 unread for numeric id, got %d", got)
	}
}

func TestMarkRead_Offline(t *testing.T) {
	reads, _, src, convID := newTestServices(t)
	src.canWrite = false

	err := reads.MarkRead(context.Background(), "1", convID)
	if !apperr.Is(err, apperr.ErrConnectionUnavailable) {
		t.Errorf("Expected ErrConnectionUnavailable, got %v", err)
	}
}

func TestMarkRead_Validation(t *testing.T) {
	reads, _, _, _ := newTestServices(t)

	if err := reads.MarkRead(context.Background(), "", "conv"); !apperr.Is(err, apperr.ErrValidationError) {
		t.Errorf("Expected ErrValidationError, got %v", err)
	}
	if err := reads.MarkRead(context.Background(), "1", ""); !apperr.Is(err, apperr.ErrValidationError) {
		t.Errorf("Expected ErrValidationError, got %v", err)
	}
}
