package poll

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

// TestNewTask 测试创建任务
func TestNewTask(t *testing.T) {
	fn := func(ctx context.Context, target string) error {
		return nil
	}

	task := NewTask("task-1", "personal_1_2", 5, true, fn)

	if task.ID != "task-1" {
		t.Errorf("期望 ID = task-1, 实际 = %s", task.ID)
	}

	if task.Target != "personal_1_2" {
		t.Errorf("期望 Target = personal_1_2, 实际 = %s", task.Target)
	}

	if task.Delay != 5 {
		t.Errorf("期望 Delay = 5, 实际 = %d", task.Delay)
	}

	if !task.Recurring {
		t.Error("期望周期任务")
	}

	if task.Cancelled() {
		t.Error("新任务不应处于取消状态")
	}
}

// TestSlotAddAndRemove 测试槽位添加和删除
func TestSlotAddAndRemove(t *testing.T) {
	slot := NewSlot()

	task1 := NewTask("task-1", "conv-1", 5, false, nil)
	task2 := NewTask("task-2", "conv-2", 5, false, nil)

	slot.AddTask(task1)
	slot.AddTask(task2)

	if slot.Count() != 2 {
		t.Errorf("期望任务数 = 2, 实际 = %d", slot.Count())
	}

	removed := slot.RemoveTask("task-1")
	if !removed {
		t.Error("期望删除成功")
	}

	if slot.Count() != 1 {
		t.Errorf("期望任务数 = 1, 实际 = %d", slot.Count())
	}

	removed = slot.RemoveTask("task-not-exist")
	if removed {
		t.Error("期望删除失败")
	}
}

// TestWheelRemoveScansAllSlots 测试跨槽位删除
func TestWheelRemoveScansAllSlots(t *testing.T) {
	tw := NewTimeWheel()
	defer tw.Stop()

	task := NewTask("task-1", "conv-1", 30, true, nil)
	tw.AddTask(task)

	if !tw.RemoveTask("task-1") {
		t.Error("期望删除成功")
	}

	if tw.GetTotalTaskCount() != 0 {
		t.Errorf("期望任务总数 = 0, 实际 = %d", tw.GetTotalTaskCount())
	}
}

// TestSchedulerRecurringTask 测试周期任务自动重排
func TestSchedulerRecurringTask(t *testing.T) {
	s := NewScheduler(2)
	if err := s.Start(); err != nil {
		t.Fatalf("启动调度器失败: %v", err)
	}
	defer s.Stop()

	var runs atomic.Int64
	task := NewTask("poll-1", "conv-1", 1, true, func(ctx context.Context, target string) error {
		runs.Add(1)
		return nil
	})

	if err := s.AddTask(task); err != nil {
		t.Fatalf("添加任务失败: %v", err)
	}

	// 1 秒间隔的周期任务在 3.5 秒内至少执行 2 次
	time.Sleep(3500 * time.Millisecond)

	if got := runs.Load(); got < 2 {
		t.Errorf("期望至少执行 2 次, 实际 = %d", got)
	}
}

// TestSchedulerRemoveCancels 测试删除后任务不再执行
func TestSchedulerRemoveCancels(t *testing.T) {
	s := NewScheduler(2)
	if err := s.Start(); err != nil {
		t.Fatalf("启动调度器失败: %v", err)
	}
	defer s.Stop()

	var runs atomic.Int64
	task := NewTask("poll-2", "conv-2", 1, true, func(ctx context.Context, target string) error {
		runs.Add(1)
		return nil
	})

	if err := s.AddTask(task); err != nil {
		t.Fatalf("添加任务失败: %v", err)
	}

	s.RemoveTask(task)

	time.Sleep(2500 * time.Millisecond)

	if got := runs.Load(); got != 0 {
		t.Errorf("期望执行 0 次, 实际 = %d", got)
	}
}

// TestSchedulerNotRunning 测试未启动时添加任务
func TestSchedulerNotRunning(t *testing.T) {
	s := NewScheduler(1)

	task := NewTask("poll-3", "conv-3", 1, false, nil)
	if err := s.AddTask(task); err == nil {
		t.Error("期望未运行时添加任务失败")
	}
}
