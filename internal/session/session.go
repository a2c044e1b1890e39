package session

import (
	"context"
	"log/slog"
	"time"

	"sudooom.campus.chat/internal/backend"
	"sudooom.campus.chat/internal/config"
	"sudooom.campus.chat/internal/directory"
	apperr "sudooom.campus.chat/internal/errors"
	"sudooom.campus.chat/internal/identity"
	"sudooom.campus.chat/internal/listener"
	"sudooom.campus.chat/internal/model"
	"sudooom.campus.chat/internal/poll"
	"sudooom.campus.chat/internal/push"
	"sudooom.campus.chat/internal/readstate"
	"sudooom.campus.chat/internal/snowflake"
	"sudooom.campus.chat/internal/store"
	"sudooom.campus.chat/internal/stream"
	"sudooom.campus.chat/internal/token"
)

// Session 单次登录的聊天同步会话
// 把连接适配器、目录、消息流、已读状态和监听注册表装配到一起；
// Reset 拆除全部并回到未初始化状态，下次登录重新装配
type Session struct {
	cfg *config.Config

	Identity  *identity.Cache
	Backend   *backend.Client
	Push      *push.Client
	Adapter   *store.Adapter
	Directory *directory.Service
	Stream    *stream.Service
	Reads     *readstate.Service
	Listeners *listener.Registry

	bus       *listener.Bus
	scheduler *poll.Scheduler
	logger    *slog.Logger
}

// New 装配一次登录的同步会话
// sessionToken 为后端签发的会话 Token；建连失败不阻断装配，
// 读路径自动降级到缓存，后续 EnsureSession 可以重试
func New(ctx context.Context, cfg *config.Config, sessionToken string) (*Session, error) {
	logger := slog.Default()

	s := &Session{
		cfg:      cfg,
		Identity: identity.NewCache(cfg.App.IdentityPath),
		Backend:  backend.NewClient(cfg.Backend, sessionToken),
		Push:     push.NewClient(cfg.Push),
		logger:   logger,
	}

	if err := s.Identity.Load(); err != nil {
		logger.Warn("Identity snapshot load failed", "error", err)
	}

	// 会话 Token 过期时不再尝试主认证，直接走降级路径
	if sessionToken != "" {
		if info, err := token.Parse(sessionToken); err != nil {
			logger.Warn("Session token unparseable, degrading", "error", err)
			sessionToken = ""
		} else if info.Expired(time.Now()) {
			logger.Warn("Session token expired, degrading", "userId", info.UserID)
			sessionToken = ""
		}
	}

	s.Adapter = store.NewAdapter(cfg.Redis, s.Backend)
	if err := s.Adapter.EnsureSession(ctx, sessionToken); err != nil {
		// 离线启动：读路径回放缓存，写路径显式失败
		logger.Warn("Starting without realtime session", "error", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, err
	}

	s.Directory = directory.NewService(s.Adapter, cfg.Sync.FetchTimeout)
	s.Stream = stream.NewService(s.Adapter, s.Directory, node, cfg.Sync.FetchTimeout, 200)
	s.Reads = readstate.NewService(s.Adapter, s.Directory, cfg.Sync.MarkReadBatchSize, cfg.Sync.FetchTimeout)

	if bus, err := listener.NewBus(cfg.NATS); err != nil {
		logger.Warn("Change bus unavailable, listeners will poll", "error", err)
	} else {
		s.bus = bus
		s.Stream.SetNotifier(bus)
	}

	s.scheduler = poll.NewScheduler(4)
	if err := s.scheduler.Start(); err != nil {
		return nil, err
	}
	s.Listeners = listener.NewRegistry(s.bus, s.scheduler,
		cfg.Sync.ConversationPollInterval, cfg.Sync.DirectoryPollInterval)

	return s, nil
}

// Login 用后端资料刷新本地身份缓存
// 后端不可达时保留已缓存的身份，离线也能继续使用
func (s *Session) Login(ctx context.Context, userID string) (model.User, error) {
	user, err := s.Backend.GetUser(ctx, userID)
	if err != nil {
		if cached, ok := s.Identity.Current(); ok && apperr.IsTransient(err) {
			s.logger.Warn("Backend unreachable, using cached identity", "userId", cached.ID)
			return cached, nil
		}
		return model.User{}, err
	}

	if err := s.Identity.Store(user); err != nil {
		s.logger.Warn("Identity snapshot write failed", "error", err)
	}
	return user, nil
}

// EnsureSession 重建实时存储会话（重连入口）
func (s *Session) EnsureSession(ctx context.Context, sessionToken string) error {
	return s.Adapter.EnsureSession(ctx, sessionToken)
}

// Online 是否有存活的实时会话
func (s *Session) Online() bool {
	return s.Adapter.Online()
}

// Bus 变更通知总线（不可用时为 nil）
func (s *Session) Bus() *listener.Bus {
	return s.bus
}

// OnForeground 应用回前台：恢复监听
func (s *Session) OnForeground() {
	s.Listeners.OnForeground()
}

// OnBackground 应用退后台：挂起监听
func (s *Session) OnBackground() {
	s.Listeners.OnBackground()
}

// Close 停机拆除
// 摘除监听、停掉调度器、断开连接，身份缓存保留供下次启动恢复，幂等
func (s *Session) Close() {
	if s.Listeners != nil {
		s.Listeners.Close()
	}
	if s.scheduler != nil {
		s.scheduler.Stop()
		s.scheduler = nil
	}
	if s.bus != nil {
		s.bus.Close()
		s.bus = nil
	}
	if s.Adapter != nil {
		s.Adapter.Close()
	}
}

// Reset 登出拆除
// 在停机拆除的基础上清空身份缓存，下次登录重新装配，幂等
func (s *Session) Reset() {
	s.Close()

	if err := s.Identity.Clear(); err != nil {
		s.logger.Warn("Identity snapshot clear failed", "error", err)
	}

	s.logger.Info("Chat session reset")
}
