package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Redis   RedisConfig   `mapstructure:"redis"`
	NATS    NATSConfig    `mapstructure:"nats"`
	Backend BackendConfig `mapstructure:"backend"`
	Push    PushConfig    `mapstructure:"push"`
	Sync    SyncConfig    `mapstructure:"sync"`
}

type AppConfig struct {
	Name         string `mapstructure:"name"`
	LogLevel     string `mapstructure:"log_level"`
	IdentityPath string `mapstructure:"identity_path"` // 本地身份缓存文件
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

type BackendConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type PushConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SyncConfig 同步调度参数
type SyncConfig struct {
	ConversationPollInterval time.Duration `mapstructure:"conversation_poll_interval"` // 打开会话页的轮询间隔
	DirectoryPollInterval    time.Duration `mapstructure:"directory_poll_interval"`    // 会话列表页的轮询间隔
	FetchTimeout             time.Duration `mapstructure:"fetch_timeout"`              // 单次读取超时上限
	MarkReadBatchSize        int           `mapstructure:"mark_read_batch_size"`       // 批量已读标记大小
}

// Load 从指定路径加载配置
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults 填充未配置项的默认值
func (c *Config) applyDefaults() {
	if c.Sync.ConversationPollInterval <= 0 {
		c.Sync.ConversationPollInterval = 5 * time.Second
	}
	if c.Sync.DirectoryPollInterval <= 0 {
		c.Sync.DirectoryPollInterval = 30 * time.Second
	}
	if c.Sync.FetchTimeout <= 0 {
		c.Sync.FetchTimeout = 6 * time.Second
	}
	if c.Sync.MarkReadBatchSize <= 0 {
		c.Sync.MarkReadBatchSize = 100
	}
	if c.Backend.Timeout <= 0 {
		c.Backend.Timeout = 8 * time.Second
	}
	if c.Push.Timeout <= 0 {
		c.Push.Timeout = 8 * time.Second
	}
	if c.App.IdentityPath == "" {
		c.App.IdentityPath = "identity.json"
	}
}
