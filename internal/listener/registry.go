package listener

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"sudooom.campus.chat/internal/poll"
)

// State 监听状态
type State int32

const (
	StateDetached State = iota
	StateAttaching
	StateAttached
)

// String 状态名称
func (s State) String() string {
	switch s {
	case StateAttaching:
		return "attaching"
	case StateAttached:
		return "attached"
	default:
		return "detached"
	}
}

// ChangeFunc 变更回调
// 只表示"有变化，去刷新"，增量内容由调用方按水位拉取
type ChangeFunc func()

// watch 单个监听项
type watch struct {
	key    string
	target string
	fn     ChangeFunc
	delay  int // 轮询间隔秒数
	state  State

	directory bool
	sub       *nats.Subscription
	task      *poll.Task
}

// Registry 变更监听注册表
// 每个监听项经历 Detached -> Attaching -> Attached；
// 推送通道可用时走 NATS 订阅，否则退回时间轮轮询。
// 同一目标重复挂载时替换旧回调，摘除是幂等的。
// 应用退后台时拆除所有传输通道但保留监听项，回前台后原样恢复
type Registry struct {
	bus       *Bus
	scheduler *poll.Scheduler
	convDelay int
	dirDelay  int
	logger    *slog.Logger
	taskSeq   atomic.Int64

	mu         sync.Mutex
	watches    map[string]*watch
	foreground bool
}

// NewRegistry 创建监听注册表
// bus 可以为 nil（实时连接不可用时只剩轮询兜底）
func NewRegistry(bus *Bus, scheduler *poll.Scheduler, convPoll, dirPoll time.Duration) *Registry {
	return &Registry{
		bus:        bus,
		scheduler:  scheduler,
		convDelay:  delaySeconds(convPoll, 5),
		dirDelay:   delaySeconds(dirPoll, 30),
		logger:     slog.Default(),
		watches:    make(map[string]*watch),
		foreground: true,
	}
}

func delaySeconds(d time.Duration, fallback int) int {
	secs := int(d / time.Second)
	if secs < 1 || secs > poll.SlotCount {
		return fallback
	}
	return secs
}

// AttachConversation 挂载会话变更监听
// 同一会话重复挂载时替换旧回调
func (r *Registry) AttachConversation(conversationID string, fn ChangeFunc) error {
	return r.attach(&watch{
		key:    "conv:" + conversationID,
		target: conversationID,
		fn:     fn,
		delay:  r.convDelay,
	})
}

// AttachDirectory 挂载用户目录变更监听
func (r *Registry) AttachDirectory(userID string, fn ChangeFunc) error {
	return r.attach(&watch{
		key:       "dir:" + userID,
		target:    userID,
		fn:        fn,
		delay:     r.dirDelay,
		directory: true,
	})
}

func (r *Registry) attach(w *watch) error {
	if w.target == "" || w.fn == nil {
		return fmt.Errorf("监听目标和回调不能为空")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.watches[w.key]; ok {
		r.teardownLocked(old)
	}
	r.watches[w.key] = w

	if !r.foreground {
		// 后台期间只登记，回前台时统一挂载
		w.state = StateDetached
		return nil
	}
	return r.attachTransportLocked(w)
}

// attachTransportLocked 为监听项打开传输通道
// 优先 NATS 推送，失败或不可用时退回轮询
func (r *Registry) attachTransportLocked(w *watch) error {
	w.state = StateAttaching

	if r.bus.IsConnected() {
		sub, err := r.subscribe(w)
		if err == nil {
			w.sub = sub
			w.state = StateAttached
			r.logger.Debug("Listener attached via push", "target", w.target)
			return nil
		}
		r.logger.Warn("Push subscribe failed, falling back to polling", "target", w.target, "error", err)
	}

	task := poll.NewTask(
		fmt.Sprintf("%s#%d", w.key, r.taskSeq.Add(1)),
		w.target,
		w.delay,
		true,
		func(_ context.Context, _ string) error {
			w.fn()
			return nil
		},
	)
	if err := r.scheduler.AddTask(task); err != nil {
		w.state = StateDetached
		delete(r.watches, w.key)
		return err
	}

	w.task = task
	w.state = StateAttached
	r.logger.Debug("Listener attached via polling", "target", w.target, "delay", w.delay)
	return nil
}

func (r *Registry) subscribe(w *watch) (*nats.Subscription, error) {
	handler := func(ChangeEvent) { w.fn() }
	if w.directory {
		return r.bus.SubscribeDirectory(w.target, handler)
	}
	return r.bus.SubscribeConversation(w.target, handler)
}

// DetachConversation 摘除会话监听（幂等）
func (r *Registry) DetachConversation(conversationID string) {
	r.detach("conv:" + conversationID)
}

// DetachDirectory 摘除目录监听（幂等）
func (r *Registry) DetachDirectory(userID string) {
	r.detach("dir:" + userID)
}

func (r *Registry) detach(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.watches[key]
	if !ok {
		return
	}
	r.teardownLocked(w)
	delete(r.watches, key)
}

// teardownLocked 拆除传输通道，监听项本身由调用方处置
func (r *Registry) teardownLocked(w *watch) {
	if w.sub != nil {
		if err := w.sub.Unsubscribe(); err != nil {
			r.logger.Warn("Unsubscribe failed", "target", w.target, "error", err)
		}
		w.sub = nil
	}
	if w.task != nil {
		r.scheduler.RemoveTask(w.task)
		w.task = nil
	}
	w.state = StateDetached
}

// ConversationState 查询会话监听状态
func (r *Registry) ConversationState(conversationID string) State {
	return r.stateOf("conv:" + conversationID)
}

// DirectoryState 查询目录监听状态
func (r *Registry) DirectoryState(userID string) State {
	return r.stateOf("dir:" + userID)
}

func (r *Registry) stateOf(key string) State {
	r.mu.Lock()
	defer r.mu.Unlock()

	if w, ok := r.watches[key]; ok {
		return w.state
	}
	return StateDetached
}

// OnBackground 应用退后台：拆除所有传输通道，保留监听项
func (r *Registry) OnBackground() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.foreground {
		return
	}
	r.foreground = false

	for _, w := range r.watches {
		r.teardownLocked(w)
	}
	r.logger.Info("Listeners suspended", "count", len(r.watches))
}

// OnForeground 应用回前台：恢复所有监听项的传输通道
func (r *Registry) OnForeground() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.foreground {
		return
	}
	r.foreground = true

	for _, w := range r.watches {
		if err := r.attachTransportLocked(w); err != nil {
			r.logger.Warn("Listener resume failed", "target", w.target, "error", err)
		}
	}
	r.logger.Info("Listeners resumed", "count", len(r.watches))
}

// Close 摘除所有监听
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, w := range r.watches {
		r.teardownLocked(w)
		delete(r.watches, key)
	}
}

// Count 当前登记的监听项数量
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.watches)
}
