package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"sudooom.campus.chat/internal/config"
	apperr "sudooom.campus.chat/internal/errors"
)

// Credential 实时存储访问凭证
// 由后端用会话 Token 换取
type Credential struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenExchanger 会话 Token 换取实时存储凭证
type TokenExchanger interface {
	ExchangeToken(ctx context.Context, sessionToken string) (Credential, error)
}

// sessionMode 当前会话模式
type sessionMode int

const (
	modeOffline   sessionMode = iota // 无连接，读缓存
	modeAnonymous                    // 匿名降级会话，只读
	modePrimary                      // 凭证会话，可读写
)

// Adapter 实时连接适配器
// 负责建立会话并在三种模式间切换：
// 凭证会话 → 匿名降级会话 → 离线。
// 依赖方通过 Store() 拿到当前可用的存储实现，离线时拿到缓存存储
type Adapter struct {
	cfg       config.RedisConfig
	exchanger TokenExchanger
	logger    *slog.Logger

	mu      sync.RWMutex
	mode    sessionMode
	live    *RedisStore
	offline *OfflineStore
}

// NewAdapter 创建连接适配器（初始为离线模式）
func NewAdapter(cfg config.RedisConfig, exchanger TokenExchanger) *Adapter {
	return &Adapter{
		cfg:       cfg,
		exchanger: exchanger,
		logger:    slog.Default(),
		mode:      modeOffline,
		offline:   NewOfflineStore(),
	}
}

// EnsureSession 建立实时存储会话
// 先尝试用会话 Token 换取凭证做主认证；
// 失败后尝试匿名降级会话，保证只读功能可用；
// 全部失败保持离线模式并返回 ErrConnectionUnavailable，调用方不崩溃
func (a *Adapter) EnsureSession(ctx context.Context, sessionToken string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	// 已有存活会话则复用
	if a.mode != modeOffline && a.live != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := a.live.Ping(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		a.dropLiveLocked()
	}

	// 主认证：会话 Token 换取凭证
	if sessionToken != "" && a.exchanger != nil {
		cred, err := a.exchanger.ExchangeToken(ctx, sessionToken)
		if err == nil {
			if store, err := a.connect(ctx, cred); err == nil {
				a.live = store
				a.mode = modePrimary
				a.logger.Info("Realtime session established", "mode", "primary")
				return nil
			} else {
				a.logger.Warn("Primary realtime auth failed", "error", err)
			}
		} else {
			a.logger.Warn("Credential exchange failed", "error", err)
		}
	}

	// 降级：匿名会话，只读功能继续可用
	if store, err := a.connect(ctx, Credential{}); err == nil {
		a.live = store
		a.mode = modeAnonymous
		a.logger.Warn("Realtime session degraded to anonymous (read-only)")
		return nil
	}

	a.mode = modeOffline
	a.logger.Warn("Realtime store unreachable, staying offline")
	return apperr.ErrConnectionUnavailable
}

// connect 按凭证建立 Redis 连接并验证连通性
func (a *Adapter) connect(ctx context.Context, cred Credential) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", a.cfg.Host, a.cfg.Port),
		Username: cred.Username,
		Password: cred.Password,
		DB:       a.cfg.DB,
		PoolSize: a.cfg.PoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, mapErr(err)
	}

	return NewRedisStore(client), nil
}

// Store 获取当前可用的存储实现
func (a *Adapter) Store() Store {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.mode == modeOffline || a.live == nil {
		return a.offline
	}
	return a.live
}

// OfflineCache 获取离线缓存存储（读路径降级时回放）
func (a *Adapter) OfflineCache() *OfflineStore {
	return a.offline
}

// Online 是否有存活的实时会话
func (a *Adapter) Online() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.mode != modeOffline
}

// CanWrite 写路径是否可用（匿名降级会话只读）
func (a *Adapter) CanWrite() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.mode == modePrimary
}

// MarkUnavailable 操作方检测到连接失败后通知适配器回到离线模式
func (a *Adapter) MarkUnavailable() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dropLiveLocked()
}

func (a *Adapter) dropLiveLocked() {
	if a.live != nil {
		a.live.Client().Close()
		a.live = nil
	}
	a.mode = modeOffline
}

// Close 关闭连接并回到未初始化状态
func (a *Adapter) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dropLiveLocked()
}
