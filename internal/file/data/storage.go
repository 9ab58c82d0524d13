package data

import (
	"context"
	"fmt"
	"io"

	"github.com/lk2023060901/asr-studio-backend/internal/file/biz"
	"github.com/lk2023060901/asr-studio-backend/internal/pkg/logger"
	"github.com/lk2023060901/asr-studio-backend/internal/pkg/minio"
)

// blobStorage 基于 MinIO 的音频对象存储
type blobStorage struct {
	client *minio.Client
	logger *logger.Logger
}

// NewBlobStorage 创建对象存储
func NewBlobStorage(client *minio.Client, log *logger.Logger) biz.BlobStorage {
	return &blobStorage{client: client, logger: log}
}

func (s *blobStorage) Put(ctx context.Context, objectKey string, r io.Reader, size int64, contentType string) error {
	if _, err := s.client.PutObject(ctx, s.client.Bucket(), objectKey, r, size, contentType); err != nil {
		return fmt.Errorf("failed to put object %s: %w", objectKey, err)
	}
	return nil
}

func (s *blobStorage) Get(ctx context.Context, objectKey string) (io.ReadSeekCloser, error) {
	obj, err := s.client.GetObject(ctx, s.client.Bucket(), objectKey)
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", objectKey, err)
	}
	return obj, nil
}

func (s *blobStorage) Remove(ctx context.Context, objectKey string) error {
	if err := s.client.RemoveObject(ctx, s.client.Bucket(), objectKey); err != nil {
		return fmt.Errorf("failed to remove object %s: %w", objectKey, err)
	}
	return nil
}

// Rename 对象存储无原生改名，复制后删除源对象
func (s *blobStorage) Rename(ctx context.Context, oldKey, newKey string) error {
	if err := s.client.CopyObject(ctx, s.client.Bucket(), oldKey, newKey); err != nil {
		return fmt.Errorf("failed to copy object %s: %w", oldKey, err)
	}
	if err := s.client.RemoveObject(ctx, s.client.Bucket(), oldKey); err != nil {
		return fmt.Errorf("failed to remove old object %s: %w", oldKey, err)
	}
	return nil
}
