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
	defaultBuildTimeout   = 2 * time.Minute
	defaultMatchTimeout   = 10 * time.Minute
	defaultSystemUsername = "system"
)

// RunConfig holds synchronous execution settings.
type RunConfig struct {
	BuildTimeout time.Duration `yaml:"buildTimeout"`
	MatchTimeout time.Duration `yaml:"matchTimeout"`
}

// ArenaConfig holds the filesystem work area and system account settings.
type ArenaConfig struct {
	WorkRoot       string `yaml:"workRoot"`
	SystemUsername string `yaml:"systemUsername"`
}

// AppConfig holds arena-cli config.
type AppConfig struct {
	Logger   logger.Config     `yaml:"logger"`
	Database db.MySQLConfig    `yaml:"database"`
	Redis    queue.RedisConfig `yaml:"redis"`
	Run      RunConfig         `yaml:"run"`
	Arena    ArenaConfig       `yaml:"arena"`
}

func loadAppConfig(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file failed: %w", err)
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file failed: %w", err)
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
	if cfg.Run.BuildTimeout == 0 {
		cfg.Run.BuildTimeout = defaultBuildTimeout
	}
	if cfg.Run.MatchTimeout == 0 {
		cfg.Run.MatchTimeout = defaultMatchTimeout
	}
	if cfg.Arena.SystemUsername == "" {
		cfg.Arena.SystemUsername = defaultSystemUsername
	}
	return &cfg, nil
}
