package biz

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/lk2023060901/asr-studio-backend/internal/pkg/errors"
	"github.com/lk2023060901/asr-studio-backend/internal/pkg/logger"
	"go.uber.org/zap"
)

// VersionType 版本来源
type VersionType string

const (
	VersionTypeAuto   VersionType = "auto"   // 识别完成自动保存
	VersionTypeManual VersionType = "manual" // 用户手动保存
)

// Version 转写内容的一个历史快照，只追加不修改
type Version struct {
	ID        string
	FileID    string
	Number    int // 从 1 开始递增
	Type      VersionType
	Note      string
	Content   TranscriptContent
	CreatedAt time.Time
}

// VersionRepo 版本仓储接口
type VersionRepo interface {
	// Save 追加版本并同步文件当前内容与版本计数，需在单事务内完成
	Save(ctx context.Context, f *File, content TranscriptContent, vtype VersionType, note string) (*Version, error)
	List(ctx context.Context, fileID string) ([]*Version, error)
	GetByID(ctx context.Context, fileID, versionID string) (*Version, error)
	// DeleteByFileID 物理删除文件的全部版本（仅清空回收站时使用）
	DeleteByFileID(ctx context.Context, fileID string) error
}

// ValidateSegments 校验片段时间戳：非负且 start <= end
func ValidateSegments(segments []Segment) error {
	for i, seg := range segments {
		if seg.StartTime < 0 || seg.EndTime < 0 {
			return apperrors.Newf(apperrors.ErrVersionInvalidSegments, "segment %d has negative timestamp", i)
		}
		if seg.StartTime > seg.EndTime {
			return apperrors.Newf(apperrors.ErrVersionInvalidSegments, "segment %d start %.3f after end %.3f", i, seg.StartTime, seg.EndTime)
		}
	}
	return nil
}

// VersionUseCase 版本日志用例
type VersionUseCase struct {
	files    FileRepo
	versions VersionRepo
	cache    *ListCache
	logger   *logger.Logger
}

// NewVersionUseCase 创建版本用例
func NewVersionUseCase(files FileRepo, versions VersionRepo, cache *ListCache, log *logger.Logger) *VersionUseCase {
	return &VersionUseCase{files: files, versions: versions, cache: cache, logger: log}
}

// Save 手动保存一个版本；重复内容同样入账，不做去重
func (uc *VersionUseCase) Save(ctx context.Context, fileID string, content TranscriptContent, note string) (*Version, error) {
	if err := ValidateSegments(content.Segments); err != nil {
		return nil, err
	}

	f, err := uc.files.GetByID(ctx, fileID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrFileNotFound, fileID)
	}
	if f.IsDeleted() {
		return nil, apperrors.New(apperrors.ErrFileNotFound, fileID)
	}

	if content.FullText == "" && len(content.Segments) > 0 {
		content.FullText = JoinSegments(content.Segments)
	}

	v, err := uc.versions.Save(ctx, f, content, VersionTypeManual, note)
	if err != nil {
		return nil, fmt.Errorf("failed to save version: %w", err)
	}

	uc.cache.Invalidate()

	uc.logger.Info("version saved",
		zap.String("file_id", fileID),
		zap.Int("version", v.Number),
	)

	return v, nil
}

// List 按版本号倒序返回全部版本
func (uc *VersionUseCase) List(ctx context.Context, fileID string) ([]*Version, error) {
	if _, err := uc.files.GetByID(ctx, fileID); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrFileNotFound, fileID)
	}
	versions, err := uc.versions.List(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	return versions, nil
}

// Get 获取指定版本的完整内容
func (uc *VersionUseCase) Get(ctx context.Context, fileID, versionID string) (*Version, error) {
	v, err := uc.versions.GetByID(ctx, fileID, versionID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrVersionNotFound, versionID)
	}
	return v, nil
}

// Restore 将指定版本回写为当前内容（作为一个新的 manual 版本追加）
func (uc *VersionUseCase) Restore(ctx context.Context, fileID, versionID string) (*Version, error) {
	src, err := uc.Get(ctx, fileID, versionID)
	if err != nil {
		return nil, err
	}
	note := fmt.Sprintf("restored from version %d", src.Number)
	return uc.Save(ctx, fileID, src.Content, note)
}
