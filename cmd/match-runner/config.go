package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"botarena/internal/common/db"
	"botarena/internal/common/queue"
	"botarena/pkg/utils/logger"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8092"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultPollTimeout     = 5 * time.Second
	defaultBuildTimeout    = 2 * time.Minute
	defaultMatchTimeout    = 10 * time.Minute
	defaultSystemUsername  = "system"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// WorkerConfig holds loop and supervision settings.
type WorkerConfig struct {
	PollTimeout      time.Duration `yaml:"pollTimeout"`
	BuildTimeout     time.Duration `yaml:"buildTimeout"`
	MatchTimeout     time.Duration `yaml:"matchTimeout"`
	MaxRestarts      int           `yaml:"maxRestarts"`
	RestartBaseDelay time.Duration `yaml:"restartBaseDelay"`
	RestartMaxDelay  time.Duration `yaml:"restartMaxDelay"`
}

// ArenaConfig holds the filesystem work area and system account settings.
type ArenaConfig struct {
	WorkRoot string `yaml:"workRoot"`
	// SystemUsername names the account owning contest-created matches.
	// Resolved to its user id once at startup.
	SystemUsername string `yaml:"systemUsername"`
}

// AppConfig holds match-runner config.
type AppConfig struct {
	Server   ServerConfig      `yaml:"server"`
	Logger   logger.Config     `yaml:"logger"`
	Database db.MySQLConfig    `yaml:"database"`
	Redis    queue.RedisConfig `yaml:"redis"`
	Worker   WorkerConfig      `yaml:"worker"`
	Arena    ArenaConfig       `yaml:"arena"`
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	if cfg.Arena.WorkRoot == "" {
		return nil, fmt.Errorf("arena workRoot is required")
	}
	applyRedisDefaults(&cfg.Redis)
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}
	if cfg.Worker.PollTimeout == 0 {
		cfg.Worker.PollTimeout = defaultPollTimeout
	}
	if cfg.Worker.BuildTimeout == 0 {
		cfg.Worker.BuildTimeout = defaultBuildTimeout
	}
	if cfg.Worker.MatchTimeout == 0 {
		cfg.Worker.MatchTimeout = defaultMatchTimeout
	}
	if cfg.Arena.SystemUsername == "" {
		cfg.Arena.SystemUsername = defaultSystemUsername
	}
	return &cfg, nil
}

func applyRedisDefaults(cfg *queue.RedisConfig) {
	if cfg == nil {
		return
	}
	defaults := queue.DefaultRedisConfig()
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	if cfg.MinRetryBackoff == 0 {
		cfg.MinRetryBackoff = defaults.MinRetryBackoff
	}
	if cfg.MaxRetryBackoff == 0 {
		cfg.MaxRetryBackoff = defaults.MaxRetryBackoff
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaults.DialTimeout
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = defaults.PoolSize
	}
	if cfg.MinIdleConns == 0 {
		cfg.MinIdleConns = defaults.MinIdleConns
	}
}
