package identity

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"sudooom.campus.chat/internal/model"
)

// Cache 本地身份缓存
// 保存当前登录用户的规范化资料，认证流程是唯一写入方，
// 其余组件只读。快照落盘到 JSON 文件，离线启动时也能恢复
type Cache struct {
	mu     sync.RWMutex
	path   string
	user   *model.User
	logger *slog.Logger
}

// NewCache 创建身份缓存
func NewCache(path string) *Cache {
	return &Cache{
		path:   path,
		logger: slog.Default(),
	}
}

// Load 从快照文件恢复身份
// 文件不存在不算错误，表示尚未登录
func (c *Cache) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	var user model.User
	if err := json.Unmarshal(data, &user); err != nil {
		// 损坏的快照当作未登录处理，下次登录会覆盖
		c.logger.Warn("Identity snapshot is corrupted, ignoring", "path", c.path, "error", err)
		return nil
	}

	c.user = &user
	return nil
}

// Store 写入当前用户并落盘
func (c *Cache) Store(user model.User) error {
	user.ID = model.NormalizeID(user.ID)

	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.Marshal(&user)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	// 先写临时文件再改名，避免写一半的快照
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return err
	}

	c.user = &user
	return nil
}

// Current 获取当前用户，未登录时返回 false
func (c *Cache) Current() (model.User, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.user == nil {
		return model.User{}, false
	}
	return *c.user, true
}

// CurrentID 获取当前用户 ID，未登录时返回空串
func (c *Cache) CurrentID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.user == nil {
		return ""
	}
	return c.user.ID
}

// Clear 登出时清空身份并删除快照
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.user = nil

	if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
