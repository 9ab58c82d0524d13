package service

import (
	"time"

	"github.com/lk2023060901/asr-studio-backend/internal/file/biz"
)

// FileResponse 文件响应
type FileResponse struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	OriginalName string        `json:"original_name"`
	StorageName  string        `json:"storage_name"`
	Extension    string        `json:"extension"`
	Size         int64         `json:"size"`
	Duration     float64       `json:"duration"`
	DurationStr  string        `json:"duration_str"`
	Status       string        `json:"status"`
	Language     string        `json:"language"`
	Segments     []biz.Segment `json:"segments,omitempty"`
	Speakers     []biz.Speaker `json:"speakers,omitempty"`
	FullText     string        `json:"full_text,omitempty"`
	VersionCount int           `json:"version_count"`
	CreatedAt    string        `json:"created_at"`
	UpdatedAt    string        `json:"updated_at"`
	// LastModified 更新接口的乐观并发令牌
	LastModified string `json:"last_modified"`
}

// TrashItemResponse 回收站条目响应
type TrashItemResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	StorageName string `json:"storage_name"`
	Size        int64  `json:"size"`
	Duration    string `json:"duration_str"`
	PrevStatus  string `json:"prev_status"`
	DeleteDate  string `json:"delete_date"`
}

// VersionResponse 版本响应（列表中不含完整内容）
type VersionResponse struct {
	ID           string `json:"id"`
	FileID       string `json:"file_id"`
	Number       int    `json:"number"`
	Type         string `json:"type"`
	Note         string `json:"note,omitempty"`
	SegmentCount int    `json:"segment_count"`
	CreatedAt    string `json:"created_at"`
}

// VersionDetailResponse 版本详情响应
type VersionDetailResponse struct {
	VersionResponse
	Segments []biz.Segment `json:"segments"`
	Speakers []biz.Speaker `json:"speakers"`
	FullText string        `json:"full_text"`
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}

func toFileResponse(f *biz.File) FileResponse {
	return FileResponse{
		ID:           f.ID,
		Name:         f.DisplayName,
		OriginalName: f.OriginalName,
		StorageName:  f.StorageName,
		Extension:    f.Extension,
		Size:         f.Size,
		Duration:     f.Duration,
		DurationStr:  f.DurationStr(),
		Status:       string(f.Status),
		Language:     f.Options.Language,
		Segments:     f.Segments,
		Speakers:     f.Speakers,
		FullText:     f.FullText,
		VersionCount: f.VersionCount,
		CreatedAt:    formatTime(f.CreatedAt),
		UpdatedAt:    formatTime(f.UpdatedAt),
		LastModified: f.UpdatedAt.Format(time.RFC3339Nano),
	}
}

// toFileListItem 列表响应省略转写内容，降低分页体积
func toFileListItem(f *biz.File) FileResponse {
	resp := toFileResponse(f)
	resp.Segments = nil
	resp.Speakers = nil
	resp.FullText = ""
	return resp
}

func toTrashItemResponse(f *biz.File) TrashItemResponse {
	deleteDate := ""
	if f.DeletedAt != nil {
		deleteDate = formatTime(*f.DeletedAt)
	}
	return TrashItemResponse{
		ID:          f.ID,
		Name:        f.DisplayName,
		StorageName: f.StorageName,
		Size:        f.Size,
		Duration:    f.DurationStr(),
		PrevStatus:  string(f.PrevStatus),
		DeleteDate:  deleteDate,
	}
}

func toVersionResponse(v *biz.Version) VersionResponse {
	return VersionResponse{
		ID:           v.ID,
		FileID:       v.FileID,
		Number:       v.Number,
		Type:         string(v.Type),
		Note:         v.Note,
		SegmentCount: len(v.Content.Segments),
		CreatedAt:    formatTime(v.CreatedAt),
	}
}

func toVersionDetailResponse(v *biz.Version) VersionDetailResponse {
	return VersionDetailResponse{
		VersionResponse: toVersionResponse(v),
		Segments:        v.Content.Segments,
		Speakers:        v.Content.Speakers,
		FullText:        v.Content.FullText,
	}
}
