package biz

import (
	"context"
	"fmt"
	"io"
	"mime"
	"strings"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/lk2023060901/asr-studio-backend/internal/pkg/errors"
	"github.com/lk2023060901/asr-studio-backend/internal/pkg/logger"
	"github.com/lk2023060901/asr-studio-backend/internal/pkg/ws"
	"go.uber.org/zap"
)

// UploadConfig 上传限制
type UploadConfig struct {
	MaxSize       int64         `mapstructure:"max_size"`       // 字节
	BaseTimeout   time.Duration `mapstructure:"base_timeout"`   // 基础超时
	MaxTimeout    time.Duration `mapstructure:"max_timeout"`    // 超时上限
	MinThroughput int64         `mapstructure:"min_throughput"` // 字节/秒，用于按体积放大超时
}

// DefaultUploadConfig 默认上传限制
func DefaultUploadConfig() *UploadConfig {
	return &UploadConfig{
		MaxSize:       500 * 1024 * 1024,
		BaseTimeout:   30 * time.Second,
		MaxTimeout:    10 * time.Minute,
		MinThroughput: 512 * 1024,
	}
}

// Deadline 按文件体积计算上传超时：基础值加体积比例，封顶
func (c *UploadConfig) Deadline(size int64) time.Duration {
	d := c.BaseTimeout
	if c.MinThroughput > 0 {
		d += time.Duration(size/c.MinThroughput) * time.Second
	}
	if c.MaxTimeout > 0 && d > c.MaxTimeout {
		d = c.MaxTimeout
	}
	return d
}

// supportedExtensions 支持的音频格式
var supportedExtensions = map[string]string{
	"mp3":  "audio/mpeg",
	"wav":  "audio/wav",
	"m4a":  "audio/mp4",
	"flac": "audio/flac",
	"ogg":  "audio/ogg",
	"aac":  "audio/aac",
	"wma":  "audio/x-ms-wma",
}

// SupportedLanguages 识别语言
var SupportedLanguages = []string{"auto", "zh", "en", "ja", "ko"}

// LanguageSupported 检查识别语言
func LanguageSupported(lang string) bool {
	for _, l := range SupportedLanguages {
		if l == lang {
			return true
		}
	}
	return false
}

// UploadRequest 上传请求
type UploadRequest struct {
	Reader       io.Reader
	Size         int64
	OriginalName string
	Options      UploadOptions
	// OnProgress 写入进度回调（已写字节数），可为空
	OnProgress func(written int64)
}

// RecognitionEnqueuer 识别任务入队接口
type RecognitionEnqueuer interface {
	Enqueue(ctx context.Context, fileID, language string) error
}

// Uploader 上传用例
type Uploader struct {
	repo     FileRepo
	versions VersionRepo
	storage  BlobStorage
	enqueue  RecognitionEnqueuer
	hub      *ws.Hub
	cache    *ListCache
	config   *UploadConfig
	logger   *logger.Logger
	now      func() time.Time
	newID    func() string
}

// NewUploader 创建上传用例；hub 可为空
func NewUploader(repo FileRepo, versions VersionRepo, storage BlobStorage, enqueue RecognitionEnqueuer, hub *ws.Hub, cache *ListCache, config *UploadConfig, log *logger.Logger) *Uploader {
	if config == nil {
		config = DefaultUploadConfig()
	}
	return &Uploader{
		repo:     repo,
		versions: versions,
		storage:  storage,
		enqueue:  enqueue,
		hub:      hub,
		cache:    cache,
		config:   config,
		logger:   log,
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
}

// UploadProgress 上传字节进度事件，按 upload:{file_id} 资源广播
type UploadProgress struct {
	FileID string `json:"file_id"`
	Loaded int64  `json:"loaded"`
	Total  int64  `json:"total"`
}

// progressReader 包装上传流，按读取字节数上报进度
type progressReader struct {
	r          io.Reader
	written    int64
	onProgress func(int64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.written += int64(n)
		if p.onProgress != nil {
			p.onProgress(p.written)
		}
	}
	return n, err
}

// Validate 上传前置校验
func (u *Uploader) Validate(req *UploadRequest) error {
	if req.Size <= 0 {
		return apperrors.New(apperrors.ErrUploadEmpty, req.OriginalName)
	}
	if req.Size > u.config.MaxSize {
		return apperrors.Newf(apperrors.ErrUploadTooLarge, "%d bytes exceeds limit %d", req.Size, u.config.MaxSize)
	}
	_, ext := SplitExtension(req.OriginalName)
	if _, ok := supportedExtensions[strings.ToLower(ext)]; !ok {
		return apperrors.New(apperrors.ErrUploadInvalidType, ext)
	}
	if req.Options.Language != "" && !LanguageSupported(req.Options.Language) {
		return apperrors.New(apperrors.ErrUnsupportedLang, req.Options.Language)
	}
	return nil
}

// Upload 上传音频并登记文件；action 为 recognize 时入队识别任务
func (u *Uploader) Upload(ctx context.Context, req *UploadRequest) (*File, error) {
	if err := u.Validate(req); err != nil {
		return nil, err
	}

	if req.Options.Language == "" {
		req.Options.Language = "auto"
	}
	if req.Options.Action == "" {
		req.Options.Action = ActionUpload
	}

	now := u.now()
	base, ext := SplitExtension(req.OriginalName)
	storageName := BuildStorageName(now, req.OriginalName)
	objectKey := "audio/" + storageName
	contentType := supportedExtensions[strings.ToLower(ext)]
	if contentType == "" {
		contentType = mime.TypeByExtension("." + ext)
	}

	// 存储名冲突（同秒内同名上传）通过附加短随机段解决
	if exists, err := u.repo.StorageNameExists(ctx, storageName, ""); err != nil {
		return nil, fmt.Errorf("failed to check storage name: %w", err)
	} else if exists {
		storageName = BuildStorageName(now, uuid.New().String()[:8]+"_"+req.OriginalName)
		objectKey = "audio/" + storageName
	}

	uploadCtx, cancel := context.WithTimeout(ctx, u.config.Deadline(req.Size))
	defer cancel()

	// 文件 ID 在写入前生成，进度按 upload:{file_id} 资源广播
	fileID := u.newID()
	reader := &progressReader{r: req.Reader, onProgress: func(written int64) {
		if req.OnProgress != nil {
			req.OnProgress(written)
		}
		if u.hub != nil {
			u.hub.Broadcast("upload:"+fileID, ws.Event{
				Type: "upload",
				Data: UploadProgress{FileID: fileID, Loaded: written, Total: req.Size},
			})
		}
	}}
	if err := u.storage.Put(uploadCtx, objectKey, reader, req.Size, contentType); err != nil {
		if uploadCtx.Err() == context.DeadlineExceeded {
			return nil, apperrors.New(apperrors.ErrUploadTimeout, req.OriginalName)
		}
		return nil, apperrors.Wrap(err, apperrors.ErrStorageFailed, "put object")
	}

	f := &File{
		ID:           fileID,
		OriginalName: req.OriginalName,
		DisplayName:  SanitizeFileName(base),
		StorageName:  storageName,
		Extension:    strings.ToLower(ext),
		Size:         req.Size,
		Status:       StatusUploaded,
		Options:      req.Options,
		ObjectKey:    objectKey,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := u.repo.Create(ctx, f); err != nil {
		_ = u.storage.Remove(ctx, objectKey)
		return nil, fmt.Errorf("failed to create file record: %w", err)
	}

	u.cache.Invalidate()

	if req.Options.Action == ActionRecognize && u.enqueue != nil {
		if err := u.enqueue.Enqueue(ctx, f.ID, req.Options.Language); err != nil {
			// 入队失败不回滚上传，文件保持 uploaded 可手动重试
			u.logger.Warn("failed to enqueue recognition after upload",
				zap.String("file_id", f.ID), zap.Error(err))
		} else {
			f.Status = StatusQueued
			f.UpdatedAt = u.now()
			if err := u.repo.Update(ctx, f); err != nil {
				u.logger.Warn("failed to mark file queued", zap.String("file_id", f.ID), zap.Error(err))
			}
		}
	}

	u.logger.Info("file uploaded",
		zap.String("file_id", f.ID),
		zap.String("storage_name", storageName),
		zap.Int64("size", req.Size),
	)

	return f, nil
}

// ContentTypeFor 返回扩展名对应的音频 MIME 类型
func ContentTypeFor(ext string) string {
	if ct, ok := supportedExtensions[strings.ToLower(ext)]; ok {
		return ct
	}
	return "application/octet-stream"
}
