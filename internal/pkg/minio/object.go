package minio

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// PutObject uploads an object from a reader
func (c *Client) PutObject(ctx context.Context, bucket, objectName string, reader io.Reader, size int64, contentType string) (minio.UploadInfo, error) {
	info, err := c.client.PutObject(ctx, bucket, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return minio.UploadInfo{}, fmt.Errorf("failed to put object %q: %w", objectName, err)
	}

	c.logger.Debug("object uploaded",
		zap.String("bucket", bucket),
		zap.String("object", objectName),
		zap.Int64("size", info.Size),
	)

	return info, nil
}

// GetObject retrieves an object as a stream; the caller must close it
func (c *Client) GetObject(ctx context.Context, bucket, objectName string) (*minio.Object, error) {
	obj, err := c.client.GetObject(ctx, bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %q: %w", objectName, err)
	}
	return obj, nil
}

// StatObject returns object metadata
func (c *Client) StatObject(ctx context.Context, bucket, objectName string) (minio.ObjectInfo, error) {
	info, err := c.client.StatObject(ctx, bucket, objectName, minio.StatObjectOptions{})
	if err != nil {
		return minio.ObjectInfo{}, fmt.Errorf("failed to stat object %q: %w", objectName, err)
	}
	return info, nil
}

// RemoveObject deletes an object
func (c *Client) RemoveObject(ctx context.Context, bucket, objectName string) error {
	if err := c.client.RemoveObject(ctx, bucket, objectName, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove object %q: %w", objectName, err)
	}

	c.logger.Debug("object removed",
		zap.String("bucket", bucket),
		zap.String("object", objectName),
	)

	return nil
}

// CopyObject performs a server-side copy (used for renames)
func (c *Client) CopyObject(ctx context.Context, bucket, srcName, dstName string) error {
	src := minio.CopySrcOptions{Bucket: bucket, Object: srcName}
	dst := minio.CopyDestOptions{Bucket: bucket, Object: dstName}

	if _, err := c.client.CopyObject(ctx, dst, src); err != nil {
		return fmt.Errorf("failed to copy object %q to %q: %w", srcName, dstName, err)
	}

	return nil
}
