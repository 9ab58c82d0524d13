package minio

import (
	"errors"
)

// Config MinIO 客户端配置
type Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"accesskey"`
	SecretKey string `mapstructure:"secretkey"`
	UseSSL    bool   `mapstructure:"usessl"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Endpoint: "localhost:9000",
		Bucket:   "asr-studio",
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("minio endpoint is required")
	}
	if c.AccessKey == "" || c.SecretKey == "" {
		return errors.New("minio credentials are required")
	}
	if c.Bucket == "" {
		return errors.New("minio bucket is required")
	}
	return nil
}
