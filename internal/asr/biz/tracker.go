package biz

import (
	"context"
	"time"

	filebiz "github.com/lk2023060901/asr-studio-backend/internal/file/biz"
	apperrors "github.com/lk2023060901/asr-studio-backend/internal/pkg/errors"
	"github.com/lk2023060901/asr-studio-backend/internal/pkg/logger"
	"go.uber.org/zap"
)

// Tracker 识别任务编排：发起、查询进度、订阅进度流
type Tracker struct {
	files  filebiz.FileRepo
	cache  *filebiz.ListCache
	store  TaskStore
	queue  TaskQueue
	source ProgressSource
	logger *logger.Logger
	now    func() time.Time
}

// NewTracker 创建任务编排
func NewTracker(files filebiz.FileRepo, cache *filebiz.ListCache, store TaskStore, queue TaskQueue, source ProgressSource, log *logger.Logger) *Tracker {
	return &Tracker{
		files:  files,
		cache:  cache,
		store:  store,
		queue:  queue,
		source: source,
		logger: log,
		now:    time.Now,
	}
}

// Enqueue 实现上传侧的入队接口
func (t *Tracker) Enqueue(ctx context.Context, fileID, language string) error {
	_, err := t.Start(ctx, fileID, language)
	return err
}

// Start 发起识别：同一文件的非终态任务存在时拒绝；失败任务可原地重启
func (t *Tracker) Start(ctx context.Context, fileID, language string) (*Task, error) {
	f, err := t.files.GetByID(ctx, fileID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrFileNotFound, fileID)
	}
	if f.IsDeleted() {
		return nil, apperrors.New(apperrors.ErrFileNotFound, fileID)
	}

	if language == "" {
		language = f.Options.Language
	}
	if language == "" {
		language = "auto"
	}
	if !filebiz.LanguageSupported(language) {
		return nil, apperrors.New(apperrors.ErrUnsupportedLang, language)
	}

	if existing, err := t.store.Get(ctx, fileID); err == nil && existing != nil {
		if !existing.State.Terminal() {
			return nil, apperrors.New(apperrors.ErrTaskAlreadyRunning, fileID)
		}
	}

	now := t.now()
	task := &Task{
		FileID:    fileID,
		Language:  language,
		State:     TaskQueued,
		Progress:  0,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := t.store.Save(ctx, task); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternalServer, "save task")
	}

	if err := t.queue.Push(ctx, &QueueItem{FileID: fileID, Language: language}); err != nil {
		_ = t.store.Delete(ctx, fileID)
		return nil, apperrors.Wrap(err, apperrors.ErrServiceUnavail, "enqueue task")
	}

	f.Status = filebiz.StatusQueued
	f.UpdatedAt = now
	if err := t.files.Update(ctx, f); err != nil {
		t.logger.Warn("failed to mark file queued", zap.String("file_id", fileID), zap.Error(err))
	}
	t.cache.Invalidate()

	t.logger.Info("recognition task queued",
		zap.String("file_id", fileID),
		zap.String("language", language),
	)

	return task, nil
}

// Progress 查询当前进度快照；任务不存在时由文件状态推断
func (t *Tracker) Progress(ctx context.Context, fileID string) (*Task, error) {
	task, err := t.store.Get(ctx, fileID)
	if err == nil && task != nil {
		return task, nil
	}

	f, ferr := t.files.GetByID(ctx, fileID)
	if ferr != nil {
		return nil, apperrors.Wrap(ferr, apperrors.ErrFileNotFound, fileID)
	}
	if f.IsDeleted() {
		return nil, apperrors.New(apperrors.ErrFileNotFound, fileID)
	}

	// 任务记录已过期但文件状态仍可回答
	if task := TaskFromFileStatus(f); task != nil {
		return task, nil
	}
	return nil, apperrors.New(apperrors.ErrTaskNotFound, fileID)
}

// TaskFromFileStatus 任务记录缺失时由文件状态推断进度快照；无对应状态返回 nil
func TaskFromFileStatus(f *filebiz.File) *Task {
	switch f.Status {
	case filebiz.StatusRecognized:
		return &Task{FileID: f.ID, State: TaskCompleted, Progress: 100, UpdatedAt: f.UpdatedAt}
	case filebiz.StatusError:
		return &Task{FileID: f.ID, State: TaskFailed, Error: "recognition failed", UpdatedAt: f.UpdatedAt}
	case filebiz.StatusQueued:
		return &Task{FileID: f.ID, State: TaskQueued, UpdatedAt: f.UpdatedAt}
	case filebiz.StatusProcessing:
		return &Task{FileID: f.ID, State: TaskRunning, UpdatedAt: f.UpdatedAt}
	}
	return nil
}

// Track 订阅进度事件流；通道在任务终态或来源失联后关闭。
// 返回的 cancel 幂等，调用后资源确定性释放。
func (t *Tracker) Track(ctx context.Context, fileID string) (<-chan ProgressEvent, func(), error) {
	if _, err := t.Progress(ctx, fileID); err != nil {
		return nil, nil, err
	}

	events, cancel, err := t.source.Subscribe(ctx, fileID)
	if err != nil {
		return nil, nil, err
	}

	out := make(chan ProgressEvent, 16)
	go func() {
		defer close(out)
		defer cancel()
		// 进度单调不减，乱序到达的低值事件被钳制
		maxProgress := 0
		for ev := range events {
			if ev.Progress < maxProgress {
				ev.Progress = maxProgress
			} else {
				maxProgress = ev.Progress
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
			if ev.Lost || ev.State.Terminal() {
				return
			}
		}
	}()

	return out, cancel, nil
}
