package data

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lk2023060901/asr-studio-backend/internal/asr/biz"
	"github.com/lk2023060901/asr-studio-backend/internal/pkg/logger"
	"github.com/lk2023060901/asr-studio-backend/internal/pkg/redis"
)

const queueKey = "asr:queue"

// taskQueue 任务队列的 Redis 列表实现
type taskQueue struct {
	client *redis.Client
	logger *logger.Logger
}

// NewTaskQueue 创建任务队列
func NewTaskQueue(client *redis.Client, log *logger.Logger) biz.TaskQueue {
	return &taskQueue{client: client, logger: log}
}

func (q *taskQueue) Push(ctx context.Context, item *biz.QueueItem) error {
	b, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal queue item: %w", err)
	}
	if _, err := q.client.LPush(ctx, queueKey, string(b)); err != nil {
		return fmt.Errorf("failed to push queue item: %w", err)
	}
	return nil
}

func (q *taskQueue) Pop(ctx context.Context, timeout time.Duration) (*biz.QueueItem, error) {
	result, err := q.client.BRPop(ctx, timeout, queueKey)
	if err != nil {
		if redis.IsNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to pop queue item: %w", err)
	}
	if len(result) < 2 {
		return nil, nil
	}
	var item biz.QueueItem
	if err := json.Unmarshal([]byte(result[1]), &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal queue item: %w", err)
	}
	return &item, nil
}

func (q *taskQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, queueKey)
}
