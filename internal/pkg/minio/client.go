package minio

import (
	"context"
	"fmt"
	"time"

	"github.com/lk2023060901/asr-studio-backend/internal/pkg/logger"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// Client wraps the MinIO client with additional functionality
type Client struct {
	client *minio.Client
	config *Config
	logger *logger.Logger
}

// New creates a new MinIO client and ensures the configured bucket exists
func New(cfg *Config, log *logger.Logger) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("minio config is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid minio configuration: %w", err)
	}

	opts := &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	}
	if cfg.Region != "" {
		opts.Region = cfg.Region
	}

	minioClient, err := minio.New(cfg.Endpoint, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	client := &Client{
		client: minioClient,
		config: cfg,
		logger: log,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.ensureBucket(ctx, cfg.Bucket); err != nil {
		return nil, err
	}

	log.Info("minio client initialized successfully",
		zap.String("endpoint", cfg.Endpoint),
		zap.String("bucket", cfg.Bucket),
	)

	return client, nil
}

// ensureBucket creates the bucket if it does not exist
func (c *Client) ensureBucket(ctx context.Context, bucket string) error {
	exists, err := c.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %q: %w", bucket, err)
	}
	if exists {
		return nil
	}

	if err := c.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: c.config.Region}); err != nil {
		return fmt.Errorf("failed to create bucket %q: %w", bucket, err)
	}

	c.logger.Info("bucket created", zap.String("bucket", bucket))
	return nil
}

// Bucket returns the configured default bucket
func (c *Client) Bucket() string {
	return c.config.Bucket
}
