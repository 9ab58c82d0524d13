package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/asr-studio-backend/internal/file/biz"
	apperrors "github.com/lk2023060901/asr-studio-backend/internal/pkg/errors"
	"github.com/lk2023060901/asr-studio-backend/internal/pkg/response"
	"github.com/unidoc/unioffice/common/license"
	"github.com/unidoc/unioffice/document"
	"github.com/unidoc/unioffice/measurement"
	"github.com/unidoc/unioffice/schema/soo/wml"
	"go.uber.org/zap"
)

func init() {
	// 设置 UniOffice 许可证密钥
	err := license.SetMeteredKey("c1609bf36881094add1da9ca73148904a289319d80e190b55c99687c84143e1c")
	if err != nil {
		panic(fmt.Sprintf("failed to set unioffice license: %v", err))
	}
}

// ExportService 转写导出接口
type ExportService struct {
	fileUseCase *biz.FileUseCase
	logger      *zap.Logger
}

// NewExportService 创建导出接口
func NewExportService(fileUseCase *biz.FileUseCase, logger *zap.Logger) *ExportService {
	return &ExportService{fileUseCase: fileUseCase, logger: logger}
}

// ExportFile 导出转写内容
// GET /api/v1/files/:id/transcript?format=txt|md|srt|json|word
func (s *ExportService) ExportFile(c *gin.Context) {
	format, err := biz.ParseExportFormat(c.DefaultQuery("format", "txt"))
	if err != nil {
		response.HandleError(c, err)
		return
	}

	f, err := s.fileUseCase.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.HandleError(c, err)
		return
	}

	var body []byte
	switch format {
	case biz.FormatTxt:
		body = []byte(biz.ExportTxt(f))
	case biz.FormatMd:
		body = []byte(biz.ExportMarkdown(f))
	case biz.FormatSrt:
		body = []byte(biz.ExportSrt(f))
	case biz.FormatJSON:
		body, err = json.MarshalIndent(f.Content(), "", "  ")
	case biz.FormatWord:
		body, err = exportDocx(f)
	}
	if err != nil {
		s.logger.Error("export failed",
			zap.String("file_id", f.ID),
			zap.String("format", string(format)),
			zap.Error(err),
		)
		response.HandleError(c, apperrors.Wrap(err, apperrors.ErrExportFailed, string(format)))
		return
	}

	filename := biz.ExportFileName(f, format)
	c.Header("Content-Disposition",
		`attachment; filename*=UTF-8''`+url.PathEscape(filename))
	c.Data(200, biz.ExportContentTypes[format], body)
}

// exportDocx 生成 Word 文档：标题、元信息表、分段正文
func exportDocx(f *biz.File) ([]byte, error) {
	doc := document.New()
	defer doc.Close()

	title := doc.AddParagraph()
	title.Properties().SetAlignment(wml.ST_JcCenter)
	run := title.AddRun()
	run.Properties().SetBold(true)
	run.Properties().SetSize(16 * measurement.Point)
	run.AddText(f.DisplayName)

	meta := doc.AddParagraph()
	metaRun := meta.AddRun()
	metaRun.Properties().SetSize(9 * measurement.Point)
	metaRun.AddText(fmt.Sprintf("时长 %s  语言 %s", f.DurationStr(), f.Options.Language))

	doc.AddParagraph()

	for _, seg := range f.Segments {
		p := doc.AddParagraph()
		speaker := p.AddRun()
		speaker.Properties().SetBold(true)
		if seg.SpeakerName != "" {
			speaker.AddText(seg.SpeakerName + "  ")
		}
		text := p.AddRun()
		text.AddText(seg.Text)
	}

	if len(f.Segments) == 0 && f.FullText != "" {
		p := doc.AddParagraph()
		p.AddRun().AddText(f.FullText)
	}

	var buf bytes.Buffer
	if err := doc.Save(&buf); err != nil {
		return nil, fmt.Errorf("failed to save docx: %w", err)
	}
	return buf.Bytes(), nil
}
