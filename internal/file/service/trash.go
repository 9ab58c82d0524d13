package service

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/asr-studio-backend/internal/file/biz"
	"github.com/lk2023060901/asr-studio-backend/internal/pkg/response"
	"go.uber.org/zap"
)

// TrashService 回收站接口
type TrashService struct {
	trashUseCase *biz.TrashUseCase
	logger       *zap.Logger
}

// NewTrashService 创建回收站接口
func NewTrashService(trashUseCase *biz.TrashUseCase, logger *zap.Logger) *TrashService {
	return &TrashService{trashUseCase: trashUseCase, logger: logger}
}

// ListTrash 回收站列表
// GET /api/v1/trash
func (s *TrashService) ListTrash(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	files, total, err := s.trashUseCase.List(c.Request.Context(), page, pageSize)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	items := make([]TrashItemResponse, len(files))
	for i, f := range files {
		items[i] = toTrashItemResponse(f)
	}

	response.Success(c, gin.H{
		"items":     items,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// RestoreFile 恢复文件
// POST /api/v1/trash/:id/restore
func (s *TrashService) RestoreFile(c *gin.Context) {
	f, err := s.trashUseCase.Restore(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, toFileResponse(f))
}

// PurgeFile 彻底删除文件
// DELETE /api/v1/trash/:id
func (s *TrashService) PurgeFile(c *gin.Context) {
	if err := s.trashUseCase.Purge(c.Request.Context(), c.Param("id")); err != nil {
		response.HandleError(c, err)
		return
	}
	response.SuccessWithMessage(c, "file permanently deleted", nil)
}

// BatchRestore 批量恢复
// POST /api/v1/trash/batch-restore
func (s *TrashService) BatchRestore(c *gin.Context) {
	var req struct {
		FileIDs []string `json:"file_ids" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "file_ids is required")
		return
	}
	results := s.trashUseCase.BatchRestore(c.Request.Context(), req.FileIDs)
	response.Success(c, gin.H{"results": results})
}

// BatchPurge 批量彻底删除
// POST /api/v1/trash/batch-delete
func (s *TrashService) BatchPurge(c *gin.Context) {
	var req struct {
		FileIDs []string `json:"file_ids" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "file_ids is required")
		return
	}
	results := s.trashUseCase.BatchPurge(c.Request.Context(), req.FileIDs)
	response.Success(c, gin.H{"results": results})
}

// ClearTrash 清空回收站
// DELETE /api/v1/trash
func (s *TrashService) ClearTrash(c *gin.Context) {
	results, err := s.trashUseCase.Clear(c.Request.Context())
	if err != nil {
		response.HandleError(c, err)
		return
	}

	cleared := 0
	for _, r := range results {
		if r.Success {
			cleared++
		}
	}
	response.Success(c, gin.H{"results": results, "cleared": cleared})
}
