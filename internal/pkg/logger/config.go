package logger

import (
	"fmt"
	"strings"
)

// validLevels 允许的日志级别
var validLevels = map[string]struct{}{
	"debug": {}, "info": {}, "warn": {}, "error": {},
	"dpanic": {}, "panic": {}, "fatal": {},
}

// Config 日志配置
type Config struct {
	Level            string     `mapstructure:"level"`  // debug, info, warn, error
	Format           string     `mapstructure:"format"` // json, console
	Output           string     `mapstructure:"output"` // console, file, both
	File             FileConfig `mapstructure:"file"`
	EnableCaller     bool       `mapstructure:"enablecaller"`
	EnableStacktrace bool       `mapstructure:"enablestacktrace"` // error 级别附带调用栈
}

// FileConfig 文件输出与滚动配置（lumberjack）
type FileConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"maxsize"` // MB
	MaxAge     int    `mapstructure:"maxage"`  // 天
	MaxBackups int    `mapstructure:"maxbackups"`
	Compress   bool   `mapstructure:"compress"`
}

// DefaultConfig 默认日志配置
func DefaultConfig() *Config {
	return &Config{
		Level:            "info",
		Format:           "json",
		Output:           "console",
		EnableCaller:     true,
		EnableStacktrace: false,
		File: FileConfig{
			Filename:   "logs/asr-studio.log",
			MaxSize:    100,
			MaxAge:     30,
			MaxBackups: 10,
			Compress:   true,
		},
	}
}

// Validate 校验日志配置
func (c *Config) Validate() error {
	if _, ok := validLevels[strings.ToLower(c.Level)]; !ok {
		return fmt.Errorf("invalid log level %q", c.Level)
	}
	if c.Format != "json" && c.Format != "console" {
		return fmt.Errorf("invalid log format %q, must be json or console", c.Format)
	}

	switch c.Output {
	case "console":
		return nil
	case "file", "both":
	default:
		return fmt.Errorf("invalid log output %q, must be console, file or both", c.Output)
	}

	if c.File.Filename == "" {
		return fmt.Errorf("log file filename is required when output is %q", c.Output)
	}
	if c.File.MaxSize <= 0 {
		return fmt.Errorf("log file maxsize must be positive")
	}
	if c.File.MaxAge <= 0 {
		return fmt.Errorf("log file maxage must be positive")
	}
	if c.File.MaxBackups < 0 {
		return fmt.Errorf("log file maxbackups must not be negative")
	}
	return nil
}
