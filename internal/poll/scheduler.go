package poll

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Scheduler 轮询调度器
// 推送通道不可用时的兜底：周期任务执行后按原间隔自动重排
type Scheduler struct {
	wheel      *TimeWheel
	workerPool *WorkerPool
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	logger     *slog.Logger
	running    bool
	runningMu  sync.RWMutex
}

// NewScheduler 创建轮询调度器
func NewScheduler(workerCount int) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		wheel:      NewTimeWheel(),
		workerPool: NewWorkerPool(workerCount),
		ctx:        ctx,
		cancel:     cancel,
		logger:     slog.Default(),
		running:    false,
	}
}

// Start 启动调度器
func (s *Scheduler) Start() error {
	s.runningMu.Lock()
	if s.running {
		s.runningMu.Unlock()
		return fmt.Errorf("调度器已经在运行中")
	}
	s.running = true
	s.runningMu.Unlock()

	s.workerPool.Start()

	s.wg.Add(1)
	go s.tickLoop()

	s.logger.Info("Poll scheduler started")

	return nil
}

// tickLoop 时钟循环协程
func (s *Scheduler) tickLoop() {
	defer s.wg.Done()

	ticker := s.wheel.GetTicker()

	for {
		select {
		case <-s.ctx.Done():
			return

		case <-ticker.C:
			s.onTick()
		}
	}
}

// onTick 时钟触发处理
// 周期任务先重排再执行，保证稳定的轮询节奏
func (s *Scheduler) onTick() {
	tasks := s.wheel.Tick()

	if len(tasks) == 0 {
		return
	}

	due := make([]*Task, 0, len(tasks))
	for _, task := range tasks {
		if task.Cancelled() {
			continue
		}
		if task.Recurring {
			s.wheel.AddTask(task)
		}
		due = append(due, task)
	}

	s.workerPool.SubmitBatch(due)
}

// Stop 停止调度器
func (s *Scheduler) Stop() {
	s.runningMu.Lock()
	if !s.running {
		s.runningMu.Unlock()
		return
	}
	s.running = false
	s.runningMu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.wheel.Stop()
	s.workerPool.Stop()

	s.logger.Info("Poll scheduler stopped")
}

// AddTask 添加任务
func (s *Scheduler) AddTask(task *Task) error {
	s.runningMu.RLock()
	defer s.runningMu.RUnlock()

	if !s.running {
		return fmt.Errorf("调度器未运行")
	}

	if task == nil {
		return fmt.Errorf("任务不能为空")
	}

	if task.ID == "" {
		return fmt.Errorf("任务ID不能为空")
	}

	return s.wheel.AddTask(task)
}

// RemoveTask 删除任务
// 先打取消标记，正在执行或重排中的副本不会复活
func (s *Scheduler) RemoveTask(task *Task) {
	if task == nil {
		return
	}
	task.Cancel()
	s.wheel.RemoveTask(task.ID)
}

// IsRunning 检查调度器是否运行中
func (s *Scheduler) IsRunning() bool {
	s.runningMu.RLock()
	defer s.runningMu.RUnlock()

	return s.running
}

// GetStats 获取调度器统计信息
func (s *Scheduler) GetStats() map[string]any {
	return map[string]any{
		"running":        s.IsRunning(),
		"currentSlot":    s.wheel.GetCurrentSlot(),
		"totalTaskCount": s.wheel.GetTotalTaskCount(),
		"workerCount":    s.workerPool.workerCount,
	}
}
