package biz

import (
	"context"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	apperrors "github.com/lk2023060901/asr-studio-backend/internal/pkg/errors"
	"github.com/lk2023060901/asr-studio-backend/internal/pkg/logger"
	"go.uber.org/zap"
)

// FileStatus 文件状态
type FileStatus string

const (
	StatusUploaded   FileStatus = "uploaded"   // 已上传
	StatusQueued     FileStatus = "queued"     // 已排队待识别
	StatusProcessing FileStatus = "processing" // 识别中
	StatusRecognized FileStatus = "recognized" // 已识别
	StatusError      FileStatus = "error"      // 识别失败
	StatusDeleted    FileStatus = "deleted"    // 在回收站
)

// Valid 检查状态是否合法
func (s FileStatus) Valid() bool {
	switch s {
	case StatusUploaded, StatusQueued, StatusProcessing, StatusRecognized, StatusError, StatusDeleted:
		return true
	}
	return false
}

func (s FileStatus) String() string {
	return string(s)
}

// UploadAction 上传后动作
type UploadAction string

const (
	ActionUpload    UploadAction = "upload"    // 仅上传
	ActionRecognize UploadAction = "recognize" // 上传后立即识别
)

// UploadOptions 上传选项
type UploadOptions struct {
	Language string       `json:"language"` // auto, zh, en, ja, ko
	Action   UploadAction `json:"action"`
}

// Segment 带时间戳的转写片段
type Segment struct {
	SpeakerID   string  `json:"speaker_id"`
	SpeakerName string  `json:"speaker_name"`
	StartTime   float64 `json:"start_time"`
	EndTime     float64 `json:"end_time"`
	Text        string  `json:"text"`
	Emotion     string  `json:"emotion,omitempty"`
}

// Speaker 说话人
type Speaker struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TranscriptContent 一次完整的转写内容快照
type TranscriptContent struct {
	Segments []Segment `json:"segments"`
	Speakers []Speaker `json:"speakers"`
	FullText string    `json:"full_text"`
}

// File 文件模型
type File struct {
	ID           string
	OriginalName string // 用户上传时的文件名
	DisplayName  string // 可编辑的显示名（不含扩展名）
	StorageName  string // {入库时间戳}_{清理后的原始文件名}
	Extension    string
	Size         int64
	Duration     float64 // 秒

	Status     FileStatus
	PrevStatus FileStatus // 软删除前的状态，恢复时使用
	Options    UploadOptions

	Bucket    string
	ObjectKey string

	Segments     []Segment
	Speakers     []Speaker
	FullText     string
	VersionCount int

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// DurationStr 格式化时长为 m:ss
func (f *File) DurationStr() string {
	if f.Duration <= 0 {
		return "0:00"
	}
	total := int(f.Duration)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// IsDeleted 是否在回收站
func (f *File) IsDeleted() bool {
	return f.Status == StatusDeleted
}

// Content 返回当前转写内容快照
func (f *File) Content() TranscriptContent {
	return TranscriptContent{
		Segments: f.Segments,
		Speakers: f.Speakers,
		FullText: f.FullText,
	}
}

// storageTimestampLayout 入库时间戳格式，与 storage_name 前缀一致
const storageTimestampLayout = "20060102_150405"

var unsafeNameChars = regexp.MustCompile(`[\\/:*?"<>|[:cntrl:]]+`)

// SanitizeFileName 清理文件名中的路径分隔符与不安全字符
func SanitizeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = unsafeNameChars.ReplaceAllString(name, "_")
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		name = "unnamed"
	}
	return name
}

// BuildStorageName 生成存储名：{时间戳前缀}_{清理后的原始文件名}
func BuildStorageName(ts time.Time, originalName string) string {
	return ts.Format(storageTimestampLayout) + "_" + SanitizeFileName(originalName)
}

// StoragePrefix 提取 storage_name 的时间戳前缀（重命名时保留）
func StoragePrefix(storageName string) string {
	if len(storageName) >= len(storageTimestampLayout) {
		return storageName[:len(storageTimestampLayout)]
	}
	return storageName
}

// RenamedStorageName 保留入库时间戳前缀，替换主体名
func RenamedStorageName(storageName, newBase, extension string) string {
	name := StoragePrefix(storageName) + "_" + SanitizeFileName(newBase)
	if extension != "" {
		name += "." + strings.TrimPrefix(extension, ".")
	}
	return name
}

// SplitExtension 拆分文件名为主体与扩展名（扩展名不含点）
func SplitExtension(name string) (base, ext string) {
	ext = strings.TrimPrefix(path.Ext(name), ".")
	base = strings.TrimSuffix(name, path.Ext(name))
	return base, ext
}

// ListFilesRequest 列表请求
type ListFilesRequest struct {
	Page      int
	PageSize  int
	Query     string // 对 display_name 大小写不敏感匹配
	SortBy    string // date, name, size, status
	SortOrder string // asc, desc
}

// Normalize 填充默认值
func (r *ListFilesRequest) Normalize() {
	if r.Page < 1 {
		r.Page = 1
	}
	if r.PageSize < 1 || r.PageSize > 100 {
		r.PageSize = 20
	}
	switch r.SortBy {
	case "date", "name", "size", "status":
	default:
		r.SortBy = "date"
	}
	switch r.SortOrder {
	case "asc", "desc":
	default:
		r.SortOrder = "desc"
	}
}

// BatchResult 批量操作中单个条目的结果
type BatchResult struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Code    int    `json:"code,omitempty"`
	Error   string `json:"error,omitempty"`
}

// batchFailure 将错误折叠为带业务码的批量条目
func batchFailure(id string, err error) BatchResult {
	code := apperrors.ExtractCode(err)
	return BatchResult{
		ID:      id,
		Success: false,
		Code:    code,
		Error:   apperrors.FormatError(code, apperrors.GetDetails(err)),
	}
}

// UpdateTranscriptRequest 转写内容更新请求
type UpdateTranscriptRequest struct {
	DisplayName *string
	Segments    []Segment
	Speakers    []Speaker
	FullText    *string
	Note        string
	// LastModified 乐观并发令牌；非空时与存储的 updated_at 比对，不一致则拒绝
	LastModified *time.Time
}

// FileRepo 文件仓储接口
type FileRepo interface {
	Create(ctx context.Context, f *File) error
	GetByID(ctx context.Context, id string) (*File, error)
	List(ctx context.Context, req *ListFilesRequest) ([]*File, int64, error)
	ListTrashed(ctx context.Context, page, pageSize int) ([]*File, int64, error)
	Update(ctx context.Context, f *File) error
	StorageNameExists(ctx context.Context, storageName, excludeID string) (bool, error)
	// HardDelete 物理删除文件行（仅清空回收站时使用）
	HardDelete(ctx context.Context, id string) error
}

// BlobStorage 音频对象存储接口（MinIO）
type BlobStorage interface {
	Put(ctx context.Context, objectKey string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, objectKey string) (io.ReadSeekCloser, error)
	Remove(ctx context.Context, objectKey string) error
	Rename(ctx context.Context, oldKey, newKey string) error
}

// FileUseCase 文件目录（活跃文件的增删改查编排）
type FileUseCase struct {
	repo     FileRepo
	versions VersionRepo
	storage  BlobStorage
	cache    *ListCache
	logger   *logger.Logger
}

// NewFileUseCase 创建文件用例
func NewFileUseCase(repo FileRepo, versions VersionRepo, storage BlobStorage, log *logger.Logger) *FileUseCase {
	return &FileUseCase{
		repo:     repo,
		versions: versions,
		storage:  storage,
		cache:    NewListCache(),
		logger:   log,
	}
}

// Cache 返回列表缓存（由所有变更方共享失效）
func (uc *FileUseCase) Cache() *ListCache {
	return uc.cache
}

// List 列出活跃文件（不含回收站）
func (uc *FileUseCase) List(ctx context.Context, req *ListFilesRequest) ([]*File, int64, error) {
	req.Normalize()

	if items, total, ok := uc.cache.Lookup(req); ok {
		return items, total, nil
	}

	items, total, err := uc.repo.List(ctx, req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list files: %w", err)
	}

	uc.cache.Store(req, items, total)
	return items, total, nil
}

// Get 获取文件详情；回收站中的文件按不存在处理
func (uc *FileUseCase) Get(ctx context.Context, id string) (*File, error) {
	f, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrFileNotFound, id)
	}
	if f.IsDeleted() {
		return nil, apperrors.New(apperrors.ErrFileNotFound, id)
	}
	return f, nil
}

// Rename 重命名文件，保留 storage_name 的入库时间戳前缀
func (uc *FileUseCase) Rename(ctx context.Context, id, newBase string) (*File, error) {
	newBase = strings.TrimSpace(newBase)
	if newBase == "" {
		return nil, apperrors.NewValidationError("new_name")
	}

	f, err := uc.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	newStorageName := RenamedStorageName(f.StorageName, newBase, f.Extension)
	if newStorageName == f.StorageName {
		return f, nil
	}

	exists, err := uc.repo.StorageNameExists(ctx, newStorageName, f.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check storage name: %w", err)
	}
	if exists {
		return nil, apperrors.New(apperrors.ErrFileNameExists, newStorageName)
	}

	oldKey := f.ObjectKey
	newKey := "audio/" + newStorageName
	if err := uc.storage.Rename(ctx, oldKey, newKey); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrStorageFailed, "rename object")
	}

	f.StorageName = newStorageName
	f.DisplayName = SanitizeFileName(newBase)
	f.ObjectKey = newKey
	f.UpdatedAt = time.Now()

	if err := uc.repo.Update(ctx, f); err != nil {
		// 对象已移动但元数据失败，尝试回滚对象名
		_ = uc.storage.Rename(ctx, newKey, oldKey)
		return nil, fmt.Errorf("failed to update file: %w", err)
	}

	uc.cache.Invalidate()

	uc.logger.Info("file renamed",
		zap.String("file_id", f.ID),
		zap.String("storage_name", newStorageName),
	)

	return f, nil
}

// Delete 软删除：状态置为 deleted 并记录删除时间，可从回收站恢复
func (uc *FileUseCase) Delete(ctx context.Context, id string) error {
	f, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrFileNotFound, id)
	}
	if f.IsDeleted() {
		return apperrors.New(apperrors.ErrFileAlreadyDeleted, id)
	}

	now := time.Now()
	f.PrevStatus = f.Status
	f.Status = StatusDeleted
	f.DeletedAt = &now
	f.UpdatedAt = now

	if err := uc.repo.Update(ctx, f); err != nil {
		return fmt.Errorf("failed to move file to trash: %w", err)
	}

	uc.cache.Invalidate()

	uc.logger.Info("file moved to trash", zap.String("file_id", id))
	return nil
}

// BatchDelete 批量软删除；单个失败不中断，逐条返回结果
func (uc *FileUseCase) BatchDelete(ctx context.Context, ids []string) []BatchResult {
	results := make([]BatchResult, 0, len(ids))
	for _, id := range ids {
		if err := uc.Delete(ctx, id); err != nil {
			results = append(results, batchFailure(id, err))
			continue
		}
		results = append(results, BatchResult{ID: id, Success: true})
	}
	return results
}

// UpdateTranscript 更新转写内容：校验乐观并发令牌后追加一个 manual 版本
func (uc *FileUseCase) UpdateTranscript(ctx context.Context, id string, req *UpdateTranscriptRequest) (*File, error) {
	f, err := uc.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.LastModified != nil && !req.LastModified.Equal(f.UpdatedAt) {
		return nil, apperrors.Newf(apperrors.ErrFileModified,
			"expected last_modified %s, stored %s",
			req.LastModified.Format(time.RFC3339Nano), f.UpdatedAt.Format(time.RFC3339Nano))
	}

	if req.DisplayName != nil {
		name := strings.TrimSpace(*req.DisplayName)
		if name == "" {
			return nil, apperrors.NewValidationError("display_name")
		}
		f.DisplayName = name
	}

	content := f.Content()
	if req.Segments != nil {
		content.Segments = req.Segments
	}
	if req.Speakers != nil {
		content.Speakers = req.Speakers
	}
	if req.FullText != nil {
		content.FullText = *req.FullText
	} else if req.Segments != nil {
		content.FullText = JoinSegments(req.Segments)
	}

	note := req.Note
	if note == "" {
		note = "manual edit"
	}

	if _, err := uc.versions.Save(ctx, f, content, VersionTypeManual, note); err != nil {
		return nil, err
	}

	uc.cache.Invalidate()

	return uc.Get(ctx, id)
}

// JoinSegments 由片段拼接全文
func JoinSegments(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if t := strings.TrimSpace(seg.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}
