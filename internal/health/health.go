package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"sudooom.campus.chat/internal/listener"
	"sudooom.campus.chat/internal/store"
)

// Status 健康状态
type Status struct {
	Service   string `json:"service"`
	Realtime  string `json:"realtime"`
	Bus       string `json:"bus"`
	Backend   string `json:"backend"`
	Writable  bool   `json:"writable"`
	Listeners int    `json:"listeners"`
}

// Checker 健康检查器
// 实时存储离线属于降级而非故障，读路径仍然可用：
// /health 始终返回 200，降级状态写在响应体里；
// IsHealthy 是严格的实时连通性探测，供运维告警使用
type Checker struct {
	service    string
	adapter    *store.Adapter
	bus        *listener.Bus
	registry   *listener.Registry
	backendURL string
	httpClient *http.Client
}

// NewChecker 创建健康检查器
func NewChecker(service string, adapter *store.Adapter, bus *listener.Bus, registry *listener.Registry, backendURL string) *Checker {
	return &Checker{
		service:    service,
		adapter:    adapter,
		bus:        bus,
		registry:   registry,
		backendURL: backendURL,
		httpClient: &http.Client{Timeout: 2 * time.Second},
	}
}

// Check 执行健康检查
func (h *Checker) Check(ctx context.Context) *Status {
	status := &Status{
		Service: h.service,
	}

	// 检查实时存储
	if h.adapter != nil && h.adapter.Online() {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := h.adapter.Store().Ping(pingCtx); err == nil {
			status.Realtime = "connected"
		} else {
			status.Realtime = "disconnected"
		}
		cancel()
		status.Writable = h.adapter.CanWrite()
	} else {
		status.Realtime = "offline"
	}

	// 检查变更总线
	if h.bus.IsConnected() {
		status.Bus = "connected"
	} else {
		status.Bus = "disconnected"
	}

	// 检查后端可达性
	status.Backend = h.checkBackend(ctx)

	if h.registry != nil {
		status.Listeners = h.registry.Count()
	}

	return status
}

// checkBackend 探测后端是否可达
func (h *Checker) checkBackend(ctx context.Context) string {
	if h.backendURL == "" {
		return "not configured"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.backendURL, nil)
	if err != nil {
		return "unreachable"
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return "unreachable"
	}
	resp.Body.Close()
	return "reachable"
}

// IsHealthy 实时存储是否连通
// 离线降级时为 false，但服务仍然就绪（读路径回放缓存）
func (h *Checker) IsHealthy(ctx context.Context) bool {
	return h.Check(ctx).Realtime == "connected"
}

// ServeHTTP HTTP 健康检查端点
// 离线是设计内的降级模式，不算故障：始终返回 200，
// 降级与否由响应体的各项状态体现
func (h *Checker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := h.Check(r.Context())

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(status)
}
