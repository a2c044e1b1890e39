package poll

import (
	"context"
	"sync/atomic"
	"time"
)

// TaskFunc 轮询执行函数类型
type TaskFunc func(ctx context.Context, target string) error

// Task 轮询任务
// Recurring 任务执行后按同样的间隔自动重排，
// 取消标记保证已移除的任务不会被重排复活
type Task struct {
	ID        string    // 任务唯一ID
	Target    string    // 操作对象标识（会话或用户）
	Delay     int       // 间隔秒数 (1-60)
	Recurring bool      // 是否周期任务
	Fn        TaskFunc  // 执行函数
	CreatedAt time.Time // 创建时间

	cancelled atomic.Bool
}

// NewTask 创建新任务
func NewTask(id, target string, delay int, recurring bool, fn TaskFunc) *Task {
	return &Task{
		ID:        id,
		Target:    target,
		Delay:     delay,
		Recurring: recurring,
		Fn:        fn,
		CreatedAt: time.Now(),
	}
}

// Cancel 标记任务取消
func (t *Task) Cancel() {
	t.cancelled.Store(true)
}

// Cancelled 判断任务是否已取消
func (t *Task) Cancelled() bool {
	return t.cancelled.Load()
}

// Execute 执行任务
func (t *Task) Execute(ctx context.Context) error {
	if t.Fn == nil || t.Cancelled() {
		return nil
	}
	return t.Fn(ctx, t.Target)
}
