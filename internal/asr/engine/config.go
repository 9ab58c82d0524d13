package engine

import (
	"errors"
	"time"
)

// Config ASR 引擎配置
type Config struct {
	// BaseURL 引擎服务地址
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// APIKey 引擎密钥，可为空（本地部署）
	APIKey string `mapstructure:"api_key" yaml:"api_key"`

	// Timeout 单次请求超时
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`

	// PollInterval 任务结果轮询间隔
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`

	// PollTimeout 单个任务等待上限
	PollTimeout time.Duration `mapstructure:"poll_timeout" yaml:"poll_timeout"`

	// DefaultLanguage 默认识别语言
	DefaultLanguage string `mapstructure:"default_language" yaml:"default_language"`
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("engine: base_url is required")
	}

	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}

	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}

	if c.PollTimeout <= 0 {
		c.PollTimeout = 30 * time.Minute
	}

	if c.DefaultLanguage == "" {
		c.DefaultLanguage = "auto"
	}

	return nil
}
