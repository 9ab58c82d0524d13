package biz

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	filebiz "github.com/lk2023060901/asr-studio-backend/internal/file/biz"
	apperrors "github.com/lk2023060901/asr-studio-backend/internal/pkg/errors"
	"github.com/lk2023060901/asr-studio-backend/internal/pkg/logger"
	"github.com/lk2023060901/asr-studio-backend/internal/pkg/ws"
	"go.uber.org/zap"
)

// PollingConfig 轮询进度来源配置
type PollingConfig struct {
	Interval    time.Duration `mapstructure:"interval"`     // 正常轮询间隔
	MaxInterval time.Duration `mapstructure:"max_interval"` // 失败退避上限
	MaxRetries  int           `mapstructure:"max_retries"`  // 连续失败上限，超出判定失联
}

// DefaultPollingConfig 默认轮询配置
func DefaultPollingConfig() *PollingConfig {
	return &PollingConfig{
		Interval:    time.Second,
		MaxInterval: 30 * time.Second,
		MaxRetries:  5,
	}
}

// PollingSource 基于任务存储轮询的进度来源。
// 查询失败按指数退避重试，连续超限后发出失联事件并结束；
// 任务记录已过期时改由文件状态回答。
type PollingSource struct {
	store  TaskStore
	files  filebiz.FileRepo
	config *PollingConfig
	logger *logger.Logger
}

// NewPollingSource 创建轮询进度来源；files 可为空
func NewPollingSource(store TaskStore, files filebiz.FileRepo, config *PollingConfig, log *logger.Logger) *PollingSource {
	if config == nil {
		config = DefaultPollingConfig()
	}
	return &PollingSource{store: store, files: files, config: config, logger: log}
}

// Subscribe 实现 ProgressSource
func (s *PollingSource) Subscribe(ctx context.Context, fileID string) (<-chan ProgressEvent, func(), error) {
	subCtx, cancel := context.WithCancel(ctx)
	events := make(chan ProgressEvent, 16)

	go func() {
		defer close(events)

		interval := s.config.Interval
		failures := 0
		lastProgress := -1
		var lastState TaskState

		for {
			task, err := s.store.Get(subCtx, fileID)
			if err != nil && apperrors.Is(err, apperrors.ErrTaskNotFound) {
				task, err = s.fromFileStatus(subCtx, fileID)
			}
			if err != nil {
				if subCtx.Err() != nil {
					return
				}
				failures++
				if failures > s.config.MaxRetries {
					s.logger.Warn("progress source lost",
						zap.String("file_id", fileID),
						zap.Int("failures", failures),
					)
					s.emit(subCtx, events, ProgressEvent{FileID: fileID, Lost: true})
					return
				}
				interval *= 2
				if interval > s.config.MaxInterval {
					interval = s.config.MaxInterval
				}
			} else {
				failures = 0
				interval = s.config.Interval

				if task.Progress != lastProgress || task.State != lastState {
					lastProgress = task.Progress
					lastState = task.State
					if !s.emit(subCtx, events, ProgressEvent{
						FileID:   fileID,
						State:    task.State,
						Progress: task.Progress,
						Message:  task.Message,
						Error:    task.Error,
					}) {
						return
					}
				}
				if task.State.Terminal() {
					return
				}
			}

			select {
			case <-subCtx.Done():
				return
			case <-time.After(interval):
			}
		}
	}()

	return events, cancel, nil
}

// fromFileStatus 任务记录过期后由文件状态合成快照
func (s *PollingSource) fromFileStatus(ctx context.Context, fileID string) (*Task, error) {
	if s.files == nil {
		return nil, apperrors.New(apperrors.ErrTaskNotFound, fileID)
	}
	f, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if f.IsDeleted() {
		return nil, apperrors.New(apperrors.ErrFileNotFound, fileID)
	}
	if task := TaskFromFileStatus(f); task != nil {
		return task, nil
	}
	return nil, apperrors.New(apperrors.ErrTaskNotFound, fileID)
}

func (s *PollingSource) emit(ctx context.Context, ch chan<- ProgressEvent, ev ProgressEvent) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// PushSource 基于进程内事件中心的推送进度来源，事件由识别 worker 广播
type PushSource struct {
	hub    *ws.Hub
	logger *logger.Logger
}

// NewPushSource 创建推送进度来源
func NewPushSource(hub *ws.Hub, log *logger.Logger) *PushSource {
	return &PushSource{hub: hub, logger: log}
}

// Subscribe 实现 ProgressSource
func (s *PushSource) Subscribe(ctx context.Context, fileID string) (<-chan ProgressEvent, func(), error) {
	sub := &ws.Subscriber{
		ID:       uuid.New().String(),
		Channel:  make(chan ws.Event, 16),
		Resource: fileID,
	}
	s.hub.Subscribe(sub)
	events := make(chan ProgressEvent, 16)

	subCtx, cancelCtx := context.WithCancel(ctx)
	cancel := func() {
		cancelCtx()
		s.hub.Unsubscribe(sub)
	}

	go func() {
		defer close(events)
		for {
			select {
			case <-subCtx.Done():
				return
			case raw, ok := <-sub.Channel:
				if !ok {
					return
				}
				var ev ProgressEvent
				if err := decodeEvent(raw.Data, &ev); err != nil {
					s.logger.Warn("failed to decode progress event", zap.Error(err))
					continue
				}
				select {
				case events <- ev:
				case <-subCtx.Done():
					return
				}
				if ev.Lost || ev.State.Terminal() {
					return
				}
			}
		}
	}()

	return events, cancel, nil
}

func decodeEvent(data interface{}, ev *ProgressEvent) error {
	if direct, ok := data.(ProgressEvent); ok {
		*ev = direct
		return nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, ev)
}

// BroadcastProgress 向事件中心广播一条进度事件（worker 侧调用）
func BroadcastProgress(hub *ws.Hub, ev ProgressEvent) {
	if hub == nil {
		return
	}
	hub.Broadcast(ev.FileID, ws.Event{Type: "progress", Data: ev})
}
