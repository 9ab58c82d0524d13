package biz

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/lk2023060901/asr-studio-backend/internal/pkg/errors"
	"github.com/lk2023060901/asr-studio-backend/internal/pkg/logger"
	"go.uber.org/zap"
)

// TaskSweeper 清理文件关联的识别任务记录
type TaskSweeper interface {
	Delete(ctx context.Context, fileID string) error
}

// TrashUseCase 回收站用例
type TrashUseCase struct {
	repo     FileRepo
	versions VersionRepo
	storage  BlobStorage
	tasks    TaskSweeper
	cache    *ListCache
	logger   *logger.Logger
}

// NewTrashUseCase 创建回收站用例；tasks 可为空
func NewTrashUseCase(repo FileRepo, versions VersionRepo, storage BlobStorage, tasks TaskSweeper, cache *ListCache, log *logger.Logger) *TrashUseCase {
	return &TrashUseCase{repo: repo, versions: versions, storage: storage, tasks: tasks, cache: cache, logger: log}
}

// List 列出回收站内文件
func (uc *TrashUseCase) List(ctx context.Context, page, pageSize int) ([]*File, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	items, total, err := uc.repo.ListTrashed(ctx, page, pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list trash: %w", err)
	}
	return items, total, nil
}

// Restore 从回收站恢复，回到删除前的状态
func (uc *TrashUseCase) Restore(ctx context.Context, id string) (*File, error) {
	f, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrFileNotFound, id)
	}
	if !f.IsDeleted() {
		return nil, apperrors.New(apperrors.ErrFileNotDeleted, id)
	}

	prev := f.PrevStatus
	if !prev.Valid() || prev == StatusDeleted {
		prev = StatusUploaded
	}
	// 删除期间无法继续识别，中断的任务恢复后需重新发起
	if prev == StatusProcessing || prev == StatusQueued {
		prev = StatusUploaded
	}

	f.Status = prev
	f.PrevStatus = ""
	f.DeletedAt = nil
	f.UpdatedAt = time.Now()

	if err := uc.repo.Update(ctx, f); err != nil {
		return nil, fmt.Errorf("failed to restore file: %w", err)
	}

	uc.cache.Invalidate()

	uc.logger.Info("file restored from trash",
		zap.String("file_id", id),
		zap.String("status", string(f.Status)),
	)

	return f, nil
}

// Purge 彻底删除：移除对象、版本与文件行，不可恢复
func (uc *TrashUseCase) Purge(ctx context.Context, id string) error {
	f, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrFileNotFound, id)
	}
	if !f.IsDeleted() {
		return apperrors.New(apperrors.ErrFileNotDeleted, id)
	}

	if err := uc.storage.Remove(ctx, f.ObjectKey); err != nil {
		// 对象删除失败不阻断，元数据删除后对象成为孤儿由巡检清理
		uc.logger.Warn("failed to remove object during purge",
			zap.String("file_id", id), zap.Error(err))
	}
	// 识别任务记录随文件一并销毁，进度查询不能再命中已清除的文件
	if uc.tasks != nil {
		if err := uc.tasks.Delete(ctx, id); err != nil {
			uc.logger.Warn("failed to remove task record during purge",
				zap.String("file_id", id), zap.Error(err))
		}
	}
	if err := uc.versions.DeleteByFileID(ctx, id); err != nil {
		return fmt.Errorf("failed to delete versions: %w", err)
	}
	if err := uc.repo.HardDelete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete file record: %w", err)
	}

	uc.logger.Info("file purged", zap.String("file_id", id))
	return nil
}

// BatchRestore 批量恢复，逐条返回结果
func (uc *TrashUseCase) BatchRestore(ctx context.Context, ids []string) []BatchResult {
	results := make([]BatchResult, 0, len(ids))
	for _, id := range ids {
		if _, err := uc.Restore(ctx, id); err != nil {
			results = append(results, batchFailure(id, err))
			continue
		}
		results = append(results, BatchResult{ID: id, Success: true})
	}
	return results
}

// BatchPurge 批量彻底删除，逐条返回结果
func (uc *TrashUseCase) BatchPurge(ctx context.Context, ids []string) []BatchResult {
	results := make([]BatchResult, 0, len(ids))
	for _, id := range ids {
		if err := uc.Purge(ctx, id); err != nil {
			results = append(results, batchFailure(id, err))
			continue
		}
		results = append(results, BatchResult{ID: id, Success: true})
	}
	return results
}

// Clear 清空回收站，与批量删除相同的逐条结果聚合
func (uc *TrashUseCase) Clear(ctx context.Context) ([]BatchResult, error) {
	const pageSize = 100
	results := make([]BatchResult, 0)
	attempted := make(map[string]bool)

	page := 1
	for {
		items, _, err := uc.repo.ListTrashed(ctx, page, pageSize)
		if err != nil {
			return results, fmt.Errorf("failed to list trash: %w", err)
		}
		if len(items) == 0 {
			return results, nil
		}

		progressed := false
		for _, f := range items {
			// 清除失败的条目留在回收站里，翻页时跳过避免死循环
			if attempted[f.ID] {
				continue
			}
			attempted[f.ID] = true
			progressed = true

			if err := uc.Purge(ctx, f.ID); err != nil {
				uc.logger.Warn("failed to purge file during clear",
					zap.String("file_id", f.ID), zap.Error(err))
				results = append(results, batchFailure(f.ID, err))
				continue
			}
			results = append(results, BatchResult{ID: f.ID, Success: true})
		}

		if progressed {
			page = 1
			continue
		}
		if len(items) < pageSize {
			return results, nil
		}
		page++
	}
}
