package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 是 rsslib 的顶层配置结构。
type Config struct {
	Fetch   FetchConfig `yaml:"fetch"`
	Sources []string    `yaml:"sources"`
	Store   StoreConfig `yaml:"store"`
	Log     LogConfig   `yaml:"log"`
}

// FetchConfig 抓取配置。
type FetchConfig struct {
	// BudgetSeconds 所有订阅源共享的总等待时间（秒）。
	BudgetSeconds int `yaml:"budget_seconds"`
	// MaxItemsPerURL 每个订阅源最多保留的条目数，0 表示不限制。
	MaxItemsPerURL int `yaml:"max_items_per_url"`
	// TimeoutSeconds 单次 HTTP 请求超时（秒）。
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	UserAgent      string `yaml:"user_agent"`
	// Suffixes 站点根地址不是订阅源时依次尝试的路径后缀，为空则使用内置列表。
	Suffixes []string `yaml:"suffixes"`
}

// Budget 返回总时间预算。
func (f FetchConfig) Budget() time.Duration {
	return time.Duration(f.BudgetSeconds) * time.Second
}

// Timeout 返回单次请求超时。
func (f FetchConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSeconds) * time.Second
}

// StoreConfig 本地数据配置。
type StoreConfig struct {
	// DataDir 订阅列表和历史数据库所在目录。
	DataDir string `yaml:"data_dir"`
	// History 为 true 时把每次加载的结果写入 SQLite。
	History bool `yaml:"history"`
}

// LogConfig 日志配置。
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
}

// Load 读取 YAML 配置文件并返回 Config。
// 支持 ${VAR_NAME} 形式的环境变量展开。
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件 %s 失败: %w", path, err)
	}

	expanded := os.Expand(string(data), func(key string) string {
		return os.Getenv(key)
	})

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件 %s 失败: %w", path, err)
	}

	setDefaults(cfg)
	return cfg, nil
}

// Default 返回全部使用默认值的配置，配置文件不存在时使用。
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

// setDefaults 为未设置的配置项填充默认值。
func setDefaults(cfg *Config) {
	if cfg.Fetch.BudgetSeconds <= 0 {
		cfg.Fetch.BudgetSeconds = 60
	}
	if cfg.Fetch.MaxItemsPerURL < 0 {
		cfg.Fetch.MaxItemsPerURL = 0
	}
	if cfg.Fetch.TimeoutSeconds <= 0 {
		cfg.Fetch.TimeoutSeconds = 20
	}
	if cfg.Fetch.UserAgent == "" {
		cfg.Fetch.UserAgent = "rsslib/1.0 RSS Reader"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	if cfg.Store.DataDir == "" {
		home, _ := os.UserHomeDir()
		if home != "" {
			cfg.Store.DataDir = home + "/.rsslib"
		} else {
			cfg.Store.DataDir = "./.rsslib-data"
		}
	} else if strings.HasPrefix(cfg.Store.DataDir, "~/") {
		// Go 不会自动展开 ~，需要手动替换为用户主目录
		home, _ := os.UserHomeDir()
		if home != "" {
			cfg.Store.DataDir = home + cfg.Store.DataDir[1:]
		}
	}

	// 去除空白订阅源，环境变量展开为空时常见
	sources := cfg.Sources[:0]
	for _, s := range cfg.Sources {
		if s = strings.TrimSpace(s); s != "" {
			sources = append(sources, s)
		}
	}
	cfg.Sources = sources
}
