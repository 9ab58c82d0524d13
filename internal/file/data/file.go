package data

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lk2023060901/asr-studio-backend/internal/file/biz"
	"github.com/lk2023060901/asr-studio-backend/internal/pkg/database"
	"github.com/lk2023060901/asr-studio-backend/internal/pkg/logger"
)

// fileRepo 文件仓储的 gorm 实现
type fileRepo struct {
	db     *database.DB
	logger *logger.Logger
}

// NewFileRepo 创建文件仓储
func NewFileRepo(db *database.DB, log *logger.Logger) biz.FileRepo {
	return &fileRepo{db: db, logger: log}
}

func (r *fileRepo) Create(ctx context.Context, f *biz.File) error {
	po := fromDomain(f)
	if err := r.db.WithContext(ctx).Create(po).Error; err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	return nil
}

func (r *fileRepo) GetByID(ctx context.Context, id string) (*biz.File, error) {
	var po FilePO
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&po).Error; err != nil {
		if database.IsRecordNotFoundError(err) {
			return nil, fmt.Errorf("file not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	return po.toDomain(), nil
}

// sortColumns 列表排序字段白名单
var sortColumns = map[string]string{
	"date":   "created_at",
	"name":   "display_name",
	"size":   "size",
	"status": "status",
}

func (r *fileRepo) List(ctx context.Context, req *biz.ListFilesRequest) ([]*biz.File, int64, error) {
	query := r.db.WithContext(ctx).Model(&FilePO{}).Where("status <> ?", string(biz.StatusDeleted))

	if q := strings.TrimSpace(req.Query); q != "" {
		query = query.Where("display_name ILIKE ?", "%"+q+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count files: %w", err)
	}

	column := sortColumns[req.SortBy]
	if column == "" {
		column = "created_at"
	}
	order := column + " DESC"
	if req.SortOrder == "asc" {
		order = column + " ASC"
	}

	var pos []FilePO
	offset := (req.Page - 1) * req.PageSize
	if err := query.Order(order).Offset(offset).Limit(req.PageSize).Find(&pos).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list files: %w", err)
	}

	files := make([]*biz.File, len(pos))
	for i := range pos {
		files[i] = pos[i].toDomain()
	}
	return files, total, nil
}

func (r *fileRepo) ListTrashed(ctx context.Context, page, pageSize int) ([]*biz.File, int64, error) {
	query := r.db.WithContext(ctx).Model(&FilePO{}).Where("status = ?", string(biz.StatusDeleted))

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count trash: %w", err)
	}

	var pos []FilePO
	offset := (page - 1) * pageSize
	if err := query.Order("deleted_at DESC").Offset(offset).Limit(pageSize).Find(&pos).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list trash: %w", err)
	}

	files := make([]*biz.File, len(pos))
	for i := range pos {
		files[i] = pos[i].toDomain()
	}
	return files, total, nil
}

func (r *fileRepo) Update(ctx context.Context, f *biz.File) error {
	po := fromDomain(f)
	result := r.db.WithContext(ctx).Model(&FilePO{}).Where("id = ?", f.ID).
		Select("*").Omit("id", "created_at").Updates(po)
	if result.Error != nil {
		return fmt.Errorf("failed to update file: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("file not found: %s", f.ID)
	}
	return nil
}

func (r *fileRepo) StorageNameExists(ctx context.Context, storageName, excludeID string) (bool, error) {
	query := r.db.WithContext(ctx).Model(&FilePO{}).Where("storage_name = ?", storageName)
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check storage name: %w", err)
	}
	return count > 0, nil
}

func (r *fileRepo) HardDelete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&FilePO{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete file: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("file not found: %s", id)
	}
	return nil
}

// touch 保证 updated_at 前移，用作乐观并发令牌
func touch(t time.Time) time.Time {
	now := time.Now()
	if !now.After(t) {
		return t.Add(time.Microsecond)
	}
	return now
}
