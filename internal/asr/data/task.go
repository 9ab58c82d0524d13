package data

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lk2023060901/asr-studio-backend/internal/asr/biz"
	apperrors "github.com/lk2023060901/asr-studio-backend/internal/pkg/errors"
	"github.com/lk2023060901/asr-studio-backend/internal/pkg/logger"
	"github.com/lk2023060901/asr-studio-backend/internal/pkg/redis"
)

const (
	taskKeyPrefix = "asr:task:"
	// taskTTL 终态任务保留时长，过期后由文件状态兜底
	taskTTL = 24 * time.Hour
)

// taskStore 任务存储的 Redis 实现
type taskStore struct {
	client *redis.Client
	logger *logger.Logger
}

// NewTaskStore 创建任务存储
func NewTaskStore(client *redis.Client, log *logger.Logger) biz.TaskStore {
	return &taskStore{client: client, logger: log}
}

func taskKey(fileID string) string {
	return taskKeyPrefix + fileID
}

func (s *taskStore) Save(ctx context.Context, task *biz.Task) error {
	b, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}
	if err := s.client.Set(ctx, taskKey(task.FileID), string(b), taskTTL); err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}
	return nil
}

func (s *taskStore) Get(ctx context.Context, fileID string) (*biz.Task, error) {
	raw, err := s.client.Get(ctx, taskKey(fileID))
	if err != nil {
		if redis.IsNil(err) {
			return nil, apperrors.New(apperrors.ErrTaskNotFound, fileID)
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	var task biz.Task
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task: %w", err)
	}
	return &task, nil
}

func (s *taskStore) Exists(ctx context.Context, fileID string) (bool, error) {
	n, err := s.client.Exists(ctx, taskKey(fileID))
	if err != nil {
		return false, fmt.Errorf("failed to check task: %w", err)
	}
	return n > 0, nil
}

func (s *taskStore) Delete(ctx context.Context, fileID string) error {
	if _, err := s.client.Del(ctx, taskKey(fileID)); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}
