package service

import (
	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/asr-studio-backend/internal/file/biz"
	"github.com/lk2023060901/asr-studio-backend/internal/pkg/response"
	"go.uber.org/zap"
)

// VersionService 版本接口
type VersionService struct {
	versionUseCase *biz.VersionUseCase
	logger         *zap.Logger
}

// NewVersionService 创建版本接口
func NewVersionService(versionUseCase *biz.VersionUseCase, logger *zap.Logger) *VersionService {
	return &VersionService{versionUseCase: versionUseCase, logger: logger}
}

// SaveVersion 手动保存版本
// POST /api/v1/files/:id/versions
func (s *VersionService) SaveVersion(c *gin.Context) {
	var req struct {
		Segments []biz.Segment `json:"segments" binding:"required"`
		Speakers []biz.Speaker `json:"speakers"`
		FullText string        `json:"full_text"`
		Note     string        `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "segments is required")
		return
	}

	v, err := s.versionUseCase.Save(c.Request.Context(), c.Param("id"), biz.TranscriptContent{
		Segments: req.Segments,
		Speakers: req.Speakers,
		FullText: req.FullText,
	}, req.Note)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	response.Success(c, toVersionResponse(v))
}

// ListVersions 版本列表，按版本号倒序
// GET /api/v1/files/:id/versions
func (s *VersionService) ListVersions(c *gin.Context) {
	versions, err := s.versionUseCase.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.HandleError(c, err)
		return
	}

	items := make([]VersionResponse, len(versions))
	for i, v := range versions {
		items[i] = toVersionResponse(v)
	}

	response.Success(c, gin.H{
		"items": items,
		"total": len(items),
	})
}

// GetVersion 版本详情
// GET /api/v1/files/:id/versions/:versionId
func (s *VersionService) GetVersion(c *gin.Context) {
	v, err := s.versionUseCase.Get(c.Request.Context(), c.Param("id"), c.Param("versionId"))
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, toVersionDetailResponse(v))
}

// RestoreVersion 回滚到指定版本（追加新版本实现）
// POST /api/v1/files/:id/versions/:versionId/restore
func (s *VersionService) RestoreVersion(c *gin.Context) {
	v, err := s.versionUseCase.Restore(c.Request.Context(), c.Param("id"), c.Param("versionId"))
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, toVersionResponse(v))
}
