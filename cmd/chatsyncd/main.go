package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"sudooom.campus.chat/internal/config"
	"sudooom.campus.chat/internal/health"
	"sudooom.campus.chat/internal/session"
)

func main() {
	// 初始化日志
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	// 加载配置
	configPath := "configs/config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 装配同步会话
	// 建连失败不致命：读路径降级到缓存，后续自动重试
	sess, err := session.New(ctx, cfg, os.Getenv("CHAT_SESSION_TOKEN"))
	if err != nil {
		logger.Error("Failed to assemble chat session", "error", err)
		os.Exit(1)
	}
	defer sess.Close()

	if sess.Online() {
		logger.Info("Realtime session established", "host", cfg.Redis.Host)
	} else {
		logger.Warn("Starting in offline mode, reads served from cache")
	}

	// 启动健康检查 HTTP 服务
	checker := health.NewChecker(cfg.App.Name, sess.Adapter, sess.Bus(), sess.Listeners, cfg.Backend.BaseURL)
	go startHealthServer(checker, logger)

	logger.Info("Chat sync service started", "name", cfg.App.Name)

	// 优雅退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")
	cancel()
	sess.Close()
	logger.Info("Chat sync service stopped")
}

// startHealthServer 启动健康检查 HTTP 服务
func startHealthServer(checker *health.Checker, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/health", checker)
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		// 离线是设计内的降级模式：装配完成即就绪，
		// 读路径回放缓存也算可服务
		if checker.IsHealthy(r.Context()) {
			w.Write([]byte("OK"))
		} else {
			w.Write([]byte("OK (degraded)"))
		}
	})

	server := &http.Server{
		Addr:    ":8081",
		Handler: mux,
	}

	logger.Info("Health check server started", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Health check server failed", "error", err)
	}
}
