package data

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lk2023060901/asr-studio-backend/internal/file/biz"
	"github.com/lk2023060901/asr-studio-backend/internal/pkg/database"
	"github.com/lk2023060901/asr-studio-backend/internal/pkg/logger"
)

// versionRepo 版本仓储的 gorm 实现
type versionRepo struct {
	db     *database.DB
	logger *logger.Logger
}

// NewVersionRepo 创建版本仓储
func NewVersionRepo(db *database.DB, log *logger.Logger) biz.VersionRepo {
	return &versionRepo{db: db, logger: log}
}

// Save 单事务内：锁文件行、取下一个版本号、写版本、回写文件当前内容
func (r *versionRepo) Save(ctx context.Context, f *biz.File, content biz.TranscriptContent, vtype biz.VersionType, note string) (*biz.Version, error) {
	var saved *VersionPO

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var filePO FilePO
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", f.ID).First(&filePO).Error; err != nil {
			if database.IsRecordNotFoundError(err) {
				return fmt.Errorf("file not found: %s", f.ID)
			}
			return fmt.Errorf("failed to lock file: %w", err)
		}

		number := filePO.VersionCount + 1
		po := &VersionPO{
			ID:        uuid.New().String(),
			FileID:    f.ID,
			Number:    number,
			Type:      string(vtype),
			Note:      note,
			Segments:  SegmentsColumn(content.Segments),
			Speakers:  SpeakersColumn(content.Speakers),
			FullText:  content.FullText,
			CreatedAt: touch(filePO.UpdatedAt),
		}
		if err := tx.Create(po).Error; err != nil {
			return fmt.Errorf("failed to create version: %w", err)
		}

		updates := map[string]interface{}{
			"segments":      SegmentsColumn(content.Segments),
			"speakers":      SpeakersColumn(content.Speakers),
			"full_text":     content.FullText,
			"display_name":  f.DisplayName,
			"version_count": number,
			"updated_at":    po.CreatedAt,
		}
		if err := tx.Model(&FilePO{}).Where("id = ?", f.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update file content: %w", err)
		}

		saved = po
		return nil
	})
	if err != nil {
		return nil, err
	}

	return saved.toDomain(), nil
}

func (r *versionRepo) List(ctx context.Context, fileID string) ([]*biz.Version, error) {
	var pos []VersionPO
	if err := r.db.WithContext(ctx).Where("file_id = ?", fileID).
		Order("number DESC").Find(&pos).Error; err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	versions := make([]*biz.Version, len(pos))
	for i := range pos {
		versions[i] = pos[i].toDomain()
	}
	return versions, nil
}

func (r *versionRepo) GetByID(ctx context.Context, fileID, versionID string) (*biz.Version, error) {
	var po VersionPO
	if err := r.db.WithContext(ctx).Where("id = ? AND file_id = ?", versionID, fileID).
		First(&po).Error; err != nil {
		if database.IsRecordNotFoundError(err) {
			return nil, fmt.Errorf("version not found: %s", versionID)
		}
		return nil, fmt.Errorf("failed to get version: %w", err)
	}
	return po.toDomain(), nil
}

func (r *versionRepo) DeleteByFileID(ctx context.Context, fileID string) error {
	if err := r.db.WithContext(ctx).Where("file_id = ?", fileID).
		Delete(&VersionPO{}).Error; err != nil {
		return fmt.Errorf("failed to delete versions: %w", err)
	}
	return nil
}
