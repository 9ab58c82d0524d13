package biz

import (
	"fmt"
	"strings"

	apperrors "github.com/lk2023060901/asr-studio-backend/internal/pkg/errors"
)

// ExportFormat 导出格式
type ExportFormat string

const (
	FormatTxt  ExportFormat = "txt"
	FormatMd   ExportFormat = "md"
	FormatSrt  ExportFormat = "srt"
	FormatJSON ExportFormat = "json"
	FormatWord ExportFormat = "word"
)

// ExportContentTypes 各格式的响应类型
var ExportContentTypes = map[ExportFormat]string{
	FormatTxt:  "text/plain; charset=utf-8",
	FormatMd:   "text/markdown; charset=utf-8",
	FormatSrt:  "application/x-subrip",
	FormatJSON: "application/json; charset=utf-8",
	FormatWord: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// ParseExportFormat 解析导出格式
func ParseExportFormat(s string) (ExportFormat, error) {
	f := ExportFormat(strings.ToLower(s))
	if _, ok := ExportContentTypes[f]; !ok {
		return "", apperrors.New(apperrors.ErrExportBadFormat, s)
	}
	return f, nil
}

// ExportFileName 导出文件名
func ExportFileName(f *File, format ExportFormat) string {
	ext := string(format)
	if format == FormatWord {
		ext = "docx"
	}
	return f.DisplayName + "." + ext
}

// srtTimestamp 格式化 SRT 时间戳 HH:MM:SS,mmm
func srtTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	ms := int(seconds*1000 + 0.5)
	h := ms / 3600000
	ms -= h * 3600000
	m := ms / 60000
	ms -= m * 60000
	s := ms / 1000
	ms -= s * 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// ExportTxt 纯文本导出：每段一行，带说话人前缀
func ExportTxt(f *File) string {
	var b strings.Builder
	for _, seg := range f.Segments {
		if seg.SpeakerName != "" {
			b.WriteString(seg.SpeakerName)
			b.WriteString(": ")
		}
		b.WriteString(seg.Text)
		b.WriteString("\n")
	}
	if b.Len() == 0 {
		return f.FullText
	}
	return b.String()
}

// ExportMarkdown Markdown 导出：标题、元信息与分段引文
func ExportMarkdown(f *File) string {
	var b strings.Builder
	b.WriteString("# ")
	b.WriteString(f.DisplayName)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "- 时长: %s\n", f.DurationStr())
	fmt.Fprintf(&b, "- 识别语言: %s\n\n", f.Options.Language)

	for _, seg := range f.Segments {
		fmt.Fprintf(&b, "**%s** `%s - %s`\n\n",
			speakerLabel(seg), srtTimestamp(seg.StartTime), srtTimestamp(seg.EndTime))
		b.WriteString(seg.Text)
		b.WriteString("\n\n")
	}
	return b.String()
}

// ExportSrt SRT 字幕导出
func ExportSrt(f *File) string {
	var b strings.Builder
	for i, seg := range f.Segments {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n",
			i+1, srtTimestamp(seg.StartTime), srtTimestamp(seg.EndTime), seg.Text)
	}
	return b.String()
}

func speakerLabel(seg Segment) string {
	if seg.SpeakerName != "" {
		return seg.SpeakerName
	}
	if seg.SpeakerID != "" {
		return "说话人" + seg.SpeakerID
	}
	return "未知说话人"
}
