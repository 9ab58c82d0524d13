package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/asr-studio-backend/internal/file/biz"
	apperrors "github.com/lk2023060901/asr-studio-backend/internal/pkg/errors"
	"github.com/lk2023060901/asr-studio-backend/internal/pkg/response"
	"go.uber.org/zap"
)

// FileService 文件接口
type FileService struct {
	fileUseCase *biz.FileUseCase
	uploader    *biz.Uploader
	storage     biz.BlobStorage
	logger      *zap.Logger
}

// NewFileService 创建文件接口
func NewFileService(fileUseCase *biz.FileUseCase, uploader *biz.Uploader, storage biz.BlobStorage, logger *zap.Logger) *FileService {
	return &FileService{
		fileUseCase: fileUseCase,
		uploader:    uploader,
		storage:     storage,
		logger:      logger,
	}
}

// ListFiles 文件列表
// GET /api/v1/files
func (s *FileService) ListFiles(c *gin.Context) {
	req := &biz.ListFilesRequest{
		Query:     c.Query("query"),
		SortBy:    c.DefaultQuery("sort_by", "date"),
		SortOrder: c.DefaultQuery("sort_order", "desc"),
	}
	req.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	req.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	files, total, err := s.fileUseCase.List(c.Request.Context(), req)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	items := make([]FileResponse, len(files))
	for i, f := range files {
		items[i] = toFileListItem(f)
	}

	response.Success(c, gin.H{
		"items":     items,
		"total":     total,
		"page":      req.Page,
		"page_size": req.PageSize,
	})
}

// GetFile 文件详情
// GET /api/v1/files/:id
func (s *FileService) GetFile(c *gin.Context) {
	f, err := s.fileUseCase.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, toFileResponse(f))
}

// UploadFile 上传音频文件
// POST /api/v1/files/upload
func (s *FileService) UploadFile(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		response.BadRequest(c, "invalid file or field name is not 'file'")
		return
	}
	defer file.Close()

	options := biz.UploadOptions{
		Language: c.DefaultPostForm("language", "auto"),
		Action:   biz.UploadAction(c.DefaultPostForm("action", "upload")),
	}

	s.logger.Info("file upload",
		zap.String("filename", header.Filename),
		zap.Int64("size", header.Size),
		zap.String("language", options.Language),
	)

	f, err := s.uploader.Upload(c.Request.Context(), &biz.UploadRequest{
		Reader:       file,
		Size:         header.Size,
		OriginalName: header.Filename,
		Options:      options,
	})
	if err != nil {
		response.HandleError(c, err)
		return
	}

	response.Success(c, toFileResponse(f))
}

// RenameFile 重命名文件
// PUT /api/v1/files/:id/rename
func (s *FileService) RenameFile(c *gin.Context) {
	var req struct {
		NewName string `json:"new_name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "new_name is required")
		return
	}

	f, err := s.fileUseCase.Rename(c.Request.Context(), c.Param("id"), req.NewName)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, toFileResponse(f))
}

// UpdateFile 更新转写内容（追加 manual 版本）
// PUT /api/v1/files/:id
func (s *FileService) UpdateFile(c *gin.Context) {
	var req struct {
		Name         *string       `json:"name"`
		Segments     []biz.Segment `json:"segments"`
		Speakers     []biz.Speaker `json:"speakers"`
		FullText     *string       `json:"full_text"`
		Note         string        `json:"note"`
		LastModified string        `json:"last_modified"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	if req.Segments != nil {
		if err := biz.ValidateSegments(req.Segments); err != nil {
			response.HandleError(c, err)
			return
		}
	}

	update := &biz.UpdateTranscriptRequest{
		DisplayName: req.Name,
		Segments:    req.Segments,
		Speakers:    req.Speakers,
		FullText:    req.FullText,
		Note:        req.Note,
	}
	if req.LastModified != "" {
		t, err := time.Parse(time.RFC3339Nano, req.LastModified)
		if err != nil {
			response.BadRequest(c, "invalid last_modified")
			return
		}
		update.LastModified = &t
	}

	f, err := s.fileUseCase.UpdateTranscript(c.Request.Context(), c.Param("id"), update)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, toFileResponse(f))
}

// DeleteFile 移入回收站
// DELETE /api/v1/files/:id
func (s *FileService) DeleteFile(c *gin.Context) {
	if err := s.fileUseCase.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.HandleError(c, err)
		return
	}
	response.SuccessWithMessage(c, "file moved to trash", nil)
}

// BatchDeleteFiles 批量移入回收站
// POST /api/v1/files/batch-delete
func (s *FileService) BatchDeleteFiles(c *gin.Context) {
	var req struct {
		FileIDs []string `json:"file_ids" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "file_ids is required")
		return
	}

	results := s.fileUseCase.BatchDelete(c.Request.Context(), req.FileIDs)
	response.Success(c, gin.H{"results": results})
}

// DownloadAudio 下载/流式播放音频，支持 Range
// GET /api/v1/files/:id/audio
func (s *FileService) DownloadAudio(c *gin.Context) {
	f, err := s.fileUseCase.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.HandleError(c, err)
		return
	}

	obj, err := s.storage.Get(c.Request.Context(), f.ObjectKey)
	if err != nil {
		response.HandleError(c, apperrors.Wrap(err, apperrors.ErrStorageFailed, f.ObjectKey))
		return
	}
	defer obj.Close()

	c.Header("Content-Type", biz.ContentTypeFor(f.Extension))
	c.Header("Content-Disposition", `inline; filename="`+f.StorageName+`"`)
	http.ServeContent(c.Writer, c.Request, f.StorageName, f.UpdatedAt, obj)
}
