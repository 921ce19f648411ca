package conf

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// 配置加载（数据库、日志、行情源等）

type Db struct {
	DbName   string `yaml:"dbname"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	FileName   string `yaml:"file-name"`
	TimeFormat string `yaml:"time-format"`
	MaxSize    int    `yaml:"max-size"`
	MaxBackups int    `yaml:"max-backups"`
	MaxAge     int    `yaml:"max-age"`
	Compress   bool   `yaml:"compress"`
	LocalTime  bool   `yaml:"local-time"`
	Console    bool   `yaml:"console"`
}

// RedisConfig is used to configure redis
type RedisConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Addr         string `yaml:"address"`
	Password     string `yaml:"password"`
	Db           int    `yaml:"db"`
	PoolSize     int    `yaml:"pool-size"`
	MinIdleConns int    `yaml:"min-idle-conns"`
	IdleTimeout  int    `yaml:"idle-timeout"`
}

type FeedConfig struct {
	WsURL       string        `yaml:"ws-url"`       // 行情websocket地址
	DialTimeout time.Duration `yaml:"dial-timeout"` // 连接超时
	BufferSize  int           `yaml:"buffer-size"`  // K线缓冲区容量
}

type EngineConfig struct {
	ErrorThreshold    int           `yaml:"error-threshold"`    // 连续错误次数阈值，超过进入FAILED
	ReconcileInterval time.Duration `yaml:"reconcile-interval"` // 订单对账轮询间隔
	RetryMax          int           `yaml:"retry-max"`          // 瞬时错误最大重试次数
	RetryBackoff      time.Duration `yaml:"retry-backoff"`      // 重试退避基础时长
	WarmupBars        int           `yaml:"warmup-bars"`        // 指标预热需要的K线数量
	StopDrainTimeout  time.Duration `yaml:"stop-drain-timeout"` // 停止时等待在途订单的最长时间
	SeedBalance       float64       `yaml:"seed-balance"`       // 模拟账户初始资金
}

type Config struct {
	AppName      string `yaml:"app_name"`
	Listen       string `yaml:"listen"`
	Mode         string `yaml:"mode"`
	MaxPingCount int    `yaml:"max-ping-count"`

	Db     `yaml:"database"`
	Log    LogConfig    `yaml:"log"`
	Redis  RedisConfig  `yaml:"redis"`
	Feed   FeedConfig   `yaml:"feed"`
	Engine EngineConfig `yaml:"engine"`
}

var AppConfig Config

func LoadConfig(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("Read config file error %w", err)
	}
	if err := yaml.Unmarshal(data, &AppConfig); err != nil {
		return fmt.Errorf("Unmarshal config yaml error: %w", err)
	}
	AppConfig.applyDefaults()
	return nil
}

func (c *Config) applyDefaults() {
	if c.Engine.ErrorThreshold <= 0 {
		c.Engine.ErrorThreshold = 5
	}
	if c.Engine.ReconcileInterval <= 0 {
		c.Engine.ReconcileInterval = 2 * time.Second
	}
	if c.Engine.RetryMax <= 0 {
		c.Engine.RetryMax = 3
	}
	if c.Engine.RetryBackoff <= 0 {
		c.Engine.RetryBackoff = time.Second
	}
	if c.Engine.WarmupBars <= 0 {
		c.Engine.WarmupBars = 200
	}
	if c.Engine.StopDrainTimeout <= 0 {
		c.Engine.StopDrainTimeout = 30 * time.Second
	}
	if c.Engine.SeedBalance <= 0 {
		c.Engine.SeedBalance = 1000000
	}
	if c.Feed.BufferSize <= 0 {
		c.Feed.BufferSize = 500
	}
	if c.Feed.DialTimeout <= 0 {
		c.Feed.DialTimeout = 10 * time.Second
	}
}
