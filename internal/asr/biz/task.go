package biz

import (
	"context"
	"time"
)

// TaskState 识别任务状态
type TaskState string

const (
	TaskQueued    TaskState = "queued"    // 已入队
	TaskRunning   TaskState = "running"   // 识别中
	TaskCompleted TaskState = "completed" // 已完成
	TaskFailed    TaskState = "failed"    // 已失败，可原地重试
)

// Terminal 是否为终态
func (s TaskState) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// Task 识别任务，按 file_id 唯一
type Task struct {
	FileID    string    `json:"file_id"`
	Language  string    `json:"language"`
	State     TaskState `json:"state"`
	Progress  int       `json:"progress"` // 0-100
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TaskStore 任务存储接口（Redis 哈希）
type TaskStore interface {
	Save(ctx context.Context, task *Task) error
	Get(ctx context.Context, fileID string) (*Task, error)
	Exists(ctx context.Context, fileID string) (bool, error)
	Delete(ctx context.Context, fileID string) error
}

// QueueItem 识别队列消息
type QueueItem struct {
	FileID   string `json:"file_id"`
	Language string `json:"language"`
}

// TaskQueue 任务队列接口（Redis 列表）
type TaskQueue interface {
	Push(ctx context.Context, item *QueueItem) error
	// Pop 阻塞弹出，超时返回 (nil, nil)
	Pop(ctx context.Context, timeout time.Duration) (*QueueItem, error)
	Len(ctx context.Context) (int64, error)
}

// ProgressEvent 进度事件
type ProgressEvent struct {
	FileID   string    `json:"file_id"`
	State    TaskState `json:"state"`
	Progress int       `json:"progress"`
	Message  string    `json:"message,omitempty"`
	Error    string    `json:"error,omitempty"`
	// Lost 为真表示进度来源失联，任务实际状态未知
	Lost bool `json:"lost,omitempty"`
}

// ProgressSource 进度事件来源；Subscribe 返回事件通道与取消函数
type ProgressSource interface {
	Subscribe(ctx context.Context, fileID string) (<-chan ProgressEvent, func(), error)
}
