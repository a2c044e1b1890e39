package listener

import (
	"sync/atomic"
	"testing"
	"time"

	"sudooom.campus.chat/internal/poll"
)

func newTestRegistry(t *testing.T) (*Registry, *poll.Scheduler) {
	t.Helper()

	s := poll.NewScheduler(2)
	if err := s.Start(); err != nil {
		t.Fatalf("Scheduler start failed: %v", err)
	}
	t.Cleanup(s.Stop)

	// bus 为 nil：没有推送通道，全部走轮询兜底
	return NewRegistry(nil, s, time.Second, time.Second), s
}

func TestAttachPollingFallback(t *testing.T) {
	r, _ := newTestRegistry(t)

	var fires atomic.Int64
	if err := r.AttachConversation("personal_1_2", func() { fires.Add(1) }); err != nil {
		t.Fatalf("AttachConversation failed: %v", err)
	}

	if got := r.ConversationState("personal_1_2"); got != StateAttached {
		t.Fatalf("Expected attached state, got %s", got)
	}

	// 1 秒间隔的轮询在 2.5 秒内至少触发一次
	time.Sleep(2500 * time.Millisecond)
	if fires.Load() == 0 {
		t.Error("Expected polling fallback to fire the callback")
	}
}

func TestDetachIdempotent(t *testing.T) {
	r, _ := newTestRegistry(t)

	var fires atomic.Int64
	if err := r.AttachConversation("personal_1_2", func() { fires.Add(1) }); err != nil {
		t.Fatalf("AttachConversation failed: %v", err)
	}

	r.DetachConversation("personal_1_2")
	if got := r.ConversationState("personal_1_2"); got != StateDetached {
		t.Errorf("Expected detached state, got %s", got)
	}

	// 重复摘除和摘除不存在的监听都不报错
	r.DetachConversation("personal_1_2")
	r.DetachConversation("personal_9_9")

	before := fires.Load()
	time.Sleep(2500 * time.Millisecond)
	if fires.Load() != before {
		t.Error("Expected no callbacks after detach")
	}
}

func TestAttachReplaces(t *testing.T) {
	r, _ := newTestRegistry(t)

	var first, second atomic.Int64
	if err := r.AttachConversation("personal_1_2", func() { first.Add(1) }); err != nil {
		t.Fatalf("AttachConversation failed: %v", err)
	}
	// 重复挂载替换旧回调，不叠加
	if err := r.AttachConversation("personal_1_2", func() { second.Add(1) }); err != nil {
		t.Fatalf("AttachConversation failed: %v", err)
	}

	if got := r.Count(); got != 1 {
		t.Fatalf("Expected 1 watch, got %d", got)
	}

	time.Sleep(2500 * time.Millisecond)
	if first.Load() != 0 {
		t.Errorf("Expected replaced callback to stop firing, got %d", first.Load())
	}
	if second.Load() == 0 {
		t.Error("Expected replacement callback to fire")
	}
}

func TestBackgroundForeground(t *testing.T) {
	r, _ := newTestRegistry(t)

	var fires atomic.Int64
	if err := r.AttachConversation("personal_1_2", func() { fires.Add(1) }); err != nil {
		t.Fatalf("AttachConversation failed: %v", err)
	}
	if err := r.AttachDirectory("1", func() { fires.Add(1) }); err != nil {
		t.Fatalf("AttachDirectory failed: %v", err)
	}

	// 退后台：监听项保留但传输通道拆除
	r.OnBackground()
	if got := r.ConversationState("personal_1_2"); got != StateDetached {
		t.Errorf("Expected detached state in background, got %s", got)
	}
	if got := r.Count(); got != 2 {
		t.Errorf("Expected watches to survive background, got %d", got)
	}

	before := fires.Load()
	time.Sleep(2500 * time.Millisecond)
	if fires.Load() != before {
		t.Error("Expected no callbacks while in background")
	}

	// 回前台：原样恢复
	r.OnForeground()
	if got := r.ConversationState("personal_1_2"); got != StateAttached {
		t.Errorf("Expected attached state in foreground, got %s", got)
	}
	if got := r.DirectoryState("1"); got != StateAttached {
		t.Errorf("Expected directory attached in foreground, got %s", got)
	}

	time.Sleep(2500 * time.Millisecond)
	if fires.Load() == before {
		t.Error("Expected callbacks to resume in foreground")
	}
}

func TestAttachWhileBackground(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.OnBackground()

	// 后台期间挂载只登记，不开传输通道
	if err := r.AttachConversation("personal_1_2", func() {}); err != nil {
		t.Fatalf("AttachConversation failed: %v", err)
	}
	if got := r.ConversationState("personal_1_2"); got != StateDetached {
		t.Errorf("Expected detached state, got %s", got)
	}

	r.OnForeground()
	if got := r.ConversationState("personal_1_2"); got != StateAttached {
		t.Errorf("Expected attached state after foreground, got %s", got)
	}
}

func TestStateString(t *testing.T) {
	if StateDetached.String() != "detached" ||
		StateAttaching.String() != "attaching" ||
		StateAttached.String() != "attached" {
		t.Error("Unexpected state names")
	}
}

func TestSubjects(t *testing.T) {
	if got := ConversationSubject("personal_1_2"); got != "campus.chat.conv.personal_1_2" {
		t.Errorf("Unexpected conversation subject: %s", got)
	}
	if got := DirectorySubject("42"); got != "campus.chat.user.42.directory" {
		t.Errorf("Unexpected directory subject: %s", got)
	}
}
