package store

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"sudooom.campus.chat/internal/config"
	apperr "sudooom.campus.chat/internal/errors"
)

// 注意：部分测试需要一个运行中的 Redis 实例
// 如果没有 Redis，这些测试将被跳过

func requireTestRedis(t *testing.T) {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // 使用测试专用数据库
	})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("跳过测试：无法连接 Redis: %v", err)
	}
	client.FlushDB(ctx)
}

func testRedisConfig() config.RedisConfig {
	return config.RedisConfig{Host: "localhost", Port: 6379, DB: 15}
}

type fakeExchanger struct {
	cred  Credential
	err   error
	calls int
}

func (f *fakeExchanger) ExchangeToken(_ context.Context, _ string) (Credential, error) {
	f.calls++
	return f.cred, f.err
}

func TestEnsureSession_Primary(t *testing.T) {
	requireTestRedis(t)

	// 本地测试实例无需凭证，空凭证即为有效主认证
	ex := &fakeExchanger{}
	a := NewAdapter(testRedisConfig(), ex)
	defer a.Close()

	if err := a.EnsureSession(context.Background(), "session-token"); err != nil {
		t.Fatalf("EnsureSession failed: %v", err)
	}
	if !a.Online() {
		t.Error("Expected primary session to be online")
	}
	if !a.CanWrite() {
		t.Error("Expected primary session to be writable")
	}
	if ex.calls != 1 {
		t.Errorf("Expected 1 credential exchange, got %d", ex.calls)
	}

	// 会话存活时重复调用复用连接，不再换取凭证
	if err := a.EnsureSession(context.Background(), "session-token"); err != nil {
		t.Fatalf("Repeated EnsureSession failed: %v", err)
	}
	if ex.calls != 1 {
		t.Errorf("Expected credential exchange to be skipped on reuse, got %d calls", ex.calls)
	}
}

func TestEnsureSession_AnonymousFallback(t *testing.T) {
	requireTestRedis(t)

	// 凭证换取失败：降级为匿名只读会话，不报错
	ex := &fakeExchanger{err: apperr.ErrAuthFailed}
	a := NewAdapter(testRedisConfig(), ex)
	defer a.Close()

	if err := a.EnsureSession(context.Background(), "session-token"); err != nil {
		t.Fatalf("Expected anonymous fallback without error, got %v", err)
	}
	if !a.Online() {
		t.Error("Expected anonymous session to be online")
	}
	if a.CanWrite() {
		t.Error("Expected anonymous session to be read-only")
	}

	if _, ok := a.Store().(*RedisStore); !ok {
		t.Errorf("Expected live store in anonymous mode, got %T", a.Store())
	}
}

func TestEnsureSession_TotalFailure(t *testing.T) {
	// 端口不可达，不依赖 Redis 实例
	a := NewAdapter(config.RedisConfig{Host: "127.0.0.1", Port: 1}, nil)
	defer a.Close()

	err := a.EnsureSession(context.Background(), "")
	if !apperr.Is(err, apperr.ErrConnectionUnavailable) {
		t.Fatalf("Expected ErrConnectionUnavailable, got %v", err)
	}
	if a.Online() {
		t.Error("Expected offline mode after total failure")
	}
	if a.CanWrite() {
		t.Error("Expected offline mode to be read-only")
	}
	if a.Store() != Store(a.OfflineCache()) {
		t.Errorf("Expected offline cache store, got %T", a.Store())
	}
}

func TestMarkUnavailable_DropsToOffline(t *testing.T) {
	requireTestRedis(t)

	a := NewAdapter(testRedisConfig(), &fakeExchanger{})
	defer a.Close()

	if err := a.EnsureSession(context.Background(), "session-token"); err != nil {
		t.Fatalf("EnsureSession failed: %v", err)
	}

	a.MarkUnavailable()
	if a.Online() {
		t.Error("Expected offline mode after MarkUnavailable")
	}
	if a.CanWrite() {
		t.Error("Expected read-only after MarkUnavailable")
	}
	if a.Store() != Store(a.OfflineCache()) {
		t.Errorf("Expected offline cache store, got %T", a.Store())
	}
}
