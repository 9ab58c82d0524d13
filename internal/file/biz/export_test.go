package biz

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/lk2023060901/asr-studio-backend/internal/pkg/errors"
)

func exportFixture() *File {
	return &File{
		DisplayName: "周会录音",
		Duration:    125,
		Options:     UploadOptions{Language: "zh"},
		Segments: []Segment{
			{SpeakerID: "1", SpeakerName: "张三", StartTime: 0, EndTime: 3.5, Text: "大家好"},
			{SpeakerID: "2", SpeakerName: "李四", StartTime: 3.5, EndTime: 65.25, Text: "开始吧"},
		},
		Speakers: []Speaker{{ID: "1", Name: "张三"}, {ID: "2", Name: "李四"}},
		FullText: "大家好\n开始吧",
	}
}

func TestSrtTimestamp(t *testing.T) {
	assert.Equal(t, "00:00:00,000", srtTimestamp(0))
	assert.Equal(t, "00:00:03,500", srtTimestamp(3.5))
	assert.Equal(t, "00:01:05,250", srtTimestamp(65.25))
	assert.Equal(t, "01:01:01,001", srtTimestamp(3661.001))
	assert.Equal(t, "00:00:00,000", srtTimestamp(-5))
}

func TestExportSrt(t *testing.T) {
	out := ExportSrt(exportFixture())

	want := "1\n00:00:00,000 --> 00:00:03,500\n大家好\n\n" +
		"2\n00:00:03,500 --> 00:01:05,250\n开始吧\n\n"
	assert.Equal(t, want, out)
}

func TestExportTxt(t *testing.T) {
	out := ExportTxt(exportFixture())
	assert.Equal(t, "张三: 大家好\n李四: 开始吧\n", out)

	// 无片段时退回全文
	f := &File{FullText: "只有全文"}
	assert.Equal(t, "只有全文", ExportTxt(f))
}

func TestExportMarkdown(t *testing.T) {
	out := ExportMarkdown(exportFixture())

	assert.True(t, strings.HasPrefix(out, "# 周会录音\n"))
	assert.Contains(t, out, "**张三** `00:00:00,000 - 00:00:03,500`")
	assert.Contains(t, out, "开始吧")
}

func TestParseExportFormat(t *testing.T) {
	f, err := ParseExportFormat("SRT")
	require.NoError(t, err)
	assert.Equal(t, FormatSrt, f)

	_, err = ParseExportFormat("xlsx")
	assert.Equal(t, apperrors.ErrExportBadFormat, apperrors.ExtractCode(err))
}

func TestExportFileName(t *testing.T) {
	f := exportFixture()
	assert.Equal(t, "周会录音.srt", ExportFileName(f, FormatSrt))
	assert.Equal(t, "周会录音.docx", ExportFileName(f, FormatWord))
}
