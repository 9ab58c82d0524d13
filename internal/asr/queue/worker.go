package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	asrbiz "github.com/lk2023060901/asr-studio-backend/internal/asr/biz"
	"github.com/lk2023060901/asr-studio-backend/internal/asr/engine"
	filebiz "github.com/lk2023060901/asr-studio-backend/internal/file/biz"
	"github.com/lk2023060901/asr-studio-backend/internal/pkg/ws"
	"go.uber.org/zap"
)

// popTimeout 队列阻塞弹出超时，到期后重新检查停止信号
const popTimeout = 5 * time.Second

// Worker 识别任务处理 Worker
type Worker struct {
	queue       asrbiz.TaskQueue
	store       asrbiz.TaskStore
	files       filebiz.FileRepo
	versions    filebiz.VersionRepo
	cache       *filebiz.ListCache
	engine      *engine.Client
	hub         *ws.Hub
	logger      *zap.Logger
	workerCount int
	wg          sync.WaitGroup
	stopCh      chan struct{}
	mu          sync.Mutex
	running     bool

	// AudioURL 由对象键生成引擎可访问的音频地址
	AudioURL func(objectKey string) string
}

// NewWorker 创建 Worker
func NewWorker(
	queue asrbiz.TaskQueue,
	store asrbiz.TaskStore,
	files filebiz.FileRepo,
	versions filebiz.VersionRepo,
	cache *filebiz.ListCache,
	eng *engine.Client,
	hub *ws.Hub,
	logger *zap.Logger,
	workerCount int,
) *Worker {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Worker{
		queue:       queue,
		store:       store,
		files:       files,
		versions:    versions,
		cache:       cache,
		engine:      eng,
		hub:         hub,
		logger:      logger,
		workerCount: workerCount,
		stopCh:      make(chan struct{}),
	}
}

// Start 启动 Worker
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("worker already running")
	}

	w.running = true
	w.logger.Info("starting recognition workers", zap.Int("worker_count", w.workerCount))

	for i := 0; i < w.workerCount; i++ {
		w.wg.Add(1)
		go w.processLoop(ctx, i)
	}

	return nil
}

// Stop 停止 Worker，等待在途任务结束
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}

	w.logger.Info("stopping recognition workers")
	close(w.stopCh)
	w.wg.Wait()
	w.running = false
	w.logger.Info("all workers stopped")
}

func (w *Worker) processLoop(ctx context.Context, workerID int) {
	defer w.wg.Done()

	w.logger.Info("recognition worker started", zap.Int("worker_id", workerID))

	for {
		select {
		case <-w.stopCh:
			w.logger.Info("recognition worker stopped", zap.Int("worker_id", workerID))
			return
		case <-ctx.Done():
			return
		default:
		}

		item, err := w.queue.Pop(ctx, popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("failed to pop queue item", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if item == nil {
			continue
		}

		w.process(ctx, item, workerID)
	}
}

func (w *Worker) process(ctx context.Context, item *asrbiz.QueueItem, workerID int) {
	w.logger.Info("processing recognition task",
		zap.Int("worker_id", workerID),
		zap.String("file_id", item.FileID),
	)

	f, err := w.files.GetByID(ctx, item.FileID)
	if err != nil {
		w.logger.Warn("file gone before recognition", zap.String("file_id", item.FileID), zap.Error(err))
		_ = w.store.Delete(ctx, item.FileID)
		return
	}
	// 入队后被移入回收站的文件直接丢弃任务
	if f.IsDeleted() {
		w.logger.Info("file trashed before recognition, dropping task", zap.String("file_id", item.FileID))
		_ = w.store.Delete(ctx, item.FileID)
		return
	}

	w.setRunning(ctx, f, item)

	result, err := w.engine.Recognize(ctx, &engine.CreateTaskRequest{
		AudioURL: w.audioURL(f.ObjectKey),
		Language: item.Language,
	}, &engine.PollOptions{
		OnProgress: func(progress int) {
			w.reportProgress(ctx, item.FileID, progress)
		},
	})
	if err != nil {
		w.setFailed(ctx, f, item, err)
		return
	}

	w.setCompleted(ctx, f, item, result)
}

func (w *Worker) audioURL(objectKey string) string {
	if w.AudioURL != nil {
		return w.AudioURL(objectKey)
	}
	return objectKey
}

func (w *Worker) setRunning(ctx context.Context, f *filebiz.File, item *asrbiz.QueueItem) {
	now := time.Now()
	task := &asrbiz.Task{
		FileID:    item.FileID,
		Language:  item.Language,
		State:     asrbiz.TaskRunning,
		Progress:  0,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if existing, err := w.store.Get(ctx, item.FileID); err == nil && existing != nil {
		task.CreatedAt = existing.CreatedAt
	}
	if err := w.store.Save(ctx, task); err != nil {
		w.logger.Warn("failed to mark task running", zap.String("file_id", item.FileID), zap.Error(err))
	}

	f.Status = filebiz.StatusProcessing
	f.UpdatedAt = now
	if err := w.files.Update(ctx, f); err != nil {
		w.logger.Warn("failed to mark file processing", zap.String("file_id", item.FileID), zap.Error(err))
	}
	w.cache.Invalidate()

	asrbiz.BroadcastProgress(w.hub, asrbiz.ProgressEvent{
		FileID: item.FileID,
		State:  asrbiz.TaskRunning,
	})
}

func (w *Worker) reportProgress(ctx context.Context, fileID string, progress int) {
	if progress < 0 {
		progress = 0
	}
	if progress > 99 {
		// 100 只在结果落库后给出
		progress = 99
	}

	task, err := w.store.Get(ctx, fileID)
	if err != nil || task == nil {
		return
	}
	if progress <= task.Progress {
		return
	}

	task.Progress = progress
	task.State = asrbiz.TaskRunning
	task.UpdatedAt = time.Now()
	if err := w.store.Save(ctx, task); err != nil {
		w.logger.Warn("failed to update task progress", zap.String("file_id", fileID), zap.Error(err))
		return
	}

	asrbiz.BroadcastProgress(w.hub, asrbiz.ProgressEvent{
		FileID:   fileID,
		State:    asrbiz.TaskRunning,
		Progress: progress,
	})
}

func (w *Worker) setCompleted(ctx context.Context, f *filebiz.File, item *asrbiz.QueueItem, result *engine.TaskResult) {
	content := buildContent(result)

	// 识别结果作为 auto 版本追加，Save 在事务内回写文件内容与版本计数
	v, err := w.versions.Save(ctx, f, content, filebiz.VersionTypeAuto, "recognition result")
	if err != nil {
		w.setFailed(ctx, f, item, err)
		return
	}

	// Update 整行覆盖，先把事务写入的内容同步进内存快照再落状态
	f.Segments = content.Segments
	f.Speakers = content.Speakers
	f.FullText = content.FullText
	f.VersionCount = v.Number
	f.Status = filebiz.StatusRecognized
	if result.Duration > 0 {
		f.Duration = result.Duration
	}
	f.UpdatedAt = time.Now()
	if err := w.files.Update(ctx, f); err != nil {
		w.logger.Error("failed to mark file recognized", zap.String("file_id", item.FileID), zap.Error(err))
	}
	w.cache.Invalidate()

	now := time.Now()
	task := &asrbiz.Task{
		FileID:    item.FileID,
		Language:  item.Language,
		State:     asrbiz.TaskCompleted,
		Progress:  100,
		UpdatedAt: now,
	}
	if existing, err := w.store.Get(ctx, item.FileID); err == nil && existing != nil {
		task.CreatedAt = existing.CreatedAt
	}
	if err := w.store.Save(ctx, task); err != nil {
		w.logger.Warn("failed to mark task completed", zap.String("file_id", item.FileID), zap.Error(err))
	}

	asrbiz.BroadcastProgress(w.hub, asrbiz.ProgressEvent{
		FileID:   item.FileID,
		State:    asrbiz.TaskCompleted,
		Progress: 100,
	})

	w.logger.Info("recognition completed",
		zap.String("file_id", item.FileID),
		zap.Int("segments", len(content.Segments)),
	)
}

func (w *Worker) setFailed(ctx context.Context, f *filebiz.File, item *asrbiz.QueueItem, cause error) {
	w.logger.Error("recognition failed",
		zap.String("file_id", item.FileID),
		zap.Error(cause),
	)

	now := time.Now()
	f.Status = filebiz.StatusError
	f.UpdatedAt = now
	if err := w.files.Update(ctx, f); err != nil {
		w.logger.Warn("failed to mark file errored", zap.String("file_id", item.FileID), zap.Error(err))
	}
	w.cache.Invalidate()

	task := &asrbiz.Task{
		FileID:    item.FileID,
		Language:  item.Language,
		State:     asrbiz.TaskFailed,
		Error:     cause.Error(),
		UpdatedAt: now,
	}
	if existing, err := w.store.Get(ctx, item.FileID); err == nil && existing != nil {
		task.CreatedAt = existing.CreatedAt
		task.Progress = existing.Progress
	}
	if err := w.store.Save(ctx, task); err != nil {
		w.logger.Warn("failed to mark task failed", zap.String("file_id", item.FileID), zap.Error(err))
	}

	asrbiz.BroadcastProgress(w.hub, asrbiz.ProgressEvent{
		FileID: item.FileID,
		State:  asrbiz.TaskFailed,
		Error:  cause.Error(),
	})
}

// buildContent 将引擎结果规整为转写内容
func buildContent(result *engine.TaskResult) filebiz.TranscriptContent {
	segments := make([]filebiz.Segment, 0, len(result.Segments))
	speakerNames := make(map[string]string, len(result.Speakers))

	speakers := make([]filebiz.Speaker, 0, len(result.Speakers))
	for _, sp := range result.Speakers {
		name := sp.Name
		if name == "" {
			name = "说话人" + sp.ID
		}
		speakerNames[sp.ID] = name
		speakers = append(speakers, filebiz.Speaker{ID: sp.ID, Name: name})
	}

	for _, seg := range result.Segments {
		segments = append(segments, filebiz.Segment{
			SpeakerID:   seg.SpeakerID,
			SpeakerName: speakerNames[seg.SpeakerID],
			StartTime:   seg.StartTime,
			EndTime:     seg.EndTime,
			Text:        seg.Text,
			Emotion:     seg.Emotion,
		})
	}

	fullText := result.FullText
	if fullText == "" {
		fullText = filebiz.JoinSegments(segments)
	}

	return filebiz.TranscriptContent{
		Segments: segments,
		Speakers: speakers,
		FullText: fullText,
	}
}
