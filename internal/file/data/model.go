package data

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lk2023060901/asr-studio-backend/internal/file/biz"
)

// SegmentsColumn 片段列表的 jsonb 列
type SegmentsColumn []biz.Segment

// Value 实现 driver.Valuer
func (s SegmentsColumn) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan 实现 sql.Scanner
func (s *SegmentsColumn) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported segments column type %T", value)
	}
	return json.Unmarshal(b, s)
}

// SpeakersColumn 说话人列表的 jsonb 列
type SpeakersColumn []biz.Speaker

// Value 实现 driver.Valuer
func (s SpeakersColumn) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan 实现 sql.Scanner
func (s *SpeakersColumn) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported speakers column type %T", value)
	}
	return json.Unmarshal(b, s)
}

// FilePO 文件持久化对象
type FilePO struct {
	ID           string         `gorm:"type:uuid;primaryKey"`
	OriginalName string         `gorm:"type:varchar(512);not null"`
	DisplayName  string         `gorm:"type:varchar(512);not null;index"`
	StorageName  string         `gorm:"type:varchar(512);not null;uniqueIndex"`
	Extension    string         `gorm:"type:varchar(16);not null"`
	Size         int64          `gorm:"not null"`
	Duration     float64        `gorm:"not null;default:0"`
	Status       string         `gorm:"type:varchar(32);not null;index"`
	PrevStatus   string         `gorm:"type:varchar(32)"`
	Language     string         `gorm:"type:varchar(16);not null;default:'auto'"`
	Action       string         `gorm:"type:varchar(16);not null;default:'upload'"`
	Bucket       string         `gorm:"type:varchar(128)"`
	ObjectKey    string         `gorm:"type:varchar(600);not null"`
	Segments     SegmentsColumn `gorm:"type:jsonb"`
	Speakers     SpeakersColumn `gorm:"type:jsonb"`
	FullText     string         `gorm:"type:text"`
	VersionCount int            `gorm:"not null;default:0"`
	CreatedAt    time.Time      `gorm:"not null;index"`
	UpdatedAt    time.Time      `gorm:"not null"`
	DeletedAt    *time.Time     `gorm:"index"`
}

// TableName 指定表名
func (FilePO) TableName() string {
	return "files"
}

func (po *FilePO) toDomain() *biz.File {
	return &biz.File{
		ID:           po.ID,
		OriginalName: po.OriginalName,
		DisplayName:  po.DisplayName,
		StorageName:  po.StorageName,
		Extension:    po.Extension,
		Size:         po.Size,
		Duration:     po.Duration,
		Status:       biz.FileStatus(po.Status),
		PrevStatus:   biz.FileStatus(po.PrevStatus),
		Options: biz.UploadOptions{
			Language: po.Language,
			Action:   biz.UploadAction(po.Action),
		},
		Bucket:       po.Bucket,
		ObjectKey:    po.ObjectKey,
		Segments:     po.Segments,
		Speakers:     po.Speakers,
		FullText:     po.FullText,
		VersionCount: po.VersionCount,
		CreatedAt:    po.CreatedAt,
		UpdatedAt:    po.UpdatedAt,
		DeletedAt:    po.DeletedAt,
	}
}

func fromDomain(f *biz.File) *FilePO {
	return &FilePO{
		ID:           f.ID,
		OriginalName: f.OriginalName,
		DisplayName:  f.DisplayName,
		StorageName:  f.StorageName,
		Extension:    f.Extension,
		Size:         f.Size,
		Duration:     f.Duration,
		Status:       string(f.Status),
		PrevStatus:   string(f.PrevStatus),
		Language:     f.Options.Language,
		Action:       string(f.Options.Action),
		Bucket:       f.Bucket,
		ObjectKey:    f.ObjectKey,
		Segments:     SegmentsColumn(f.Segments),
		Speakers:     SpeakersColumn(f.Speakers),
		FullText:     f.FullText,
		VersionCount: f.VersionCount,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
		DeletedAt:    f.DeletedAt,
	}
}

// VersionPO 版本持久化对象
type VersionPO struct {
	ID        string         `gorm:"type:uuid;primaryKey"`
	FileID    string         `gorm:"type:uuid;not null;index:idx_versions_file_number,priority:1"`
	Number    int            `gorm:"not null;index:idx_versions_file_number,priority:2"`
	Type      string         `gorm:"type:varchar(16);not null"`
	Note      string         `gorm:"type:varchar(512)"`
	Segments  SegmentsColumn `gorm:"type:jsonb"`
	Speakers  SpeakersColumn `gorm:"type:jsonb"`
	FullText  string         `gorm:"type:text"`
	CreatedAt time.Time      `gorm:"not null"`
}

// TableName 指定表名
func (VersionPO) TableName() string {
	return "file_versions"
}

func (po *VersionPO) toDomain() *biz.Version {
	return &biz.Version{
		ID:     po.ID,
		FileID: po.FileID,
		Number: po.Number,
		Type:   biz.VersionType(po.Type),
		Note:   po.Note,
		Content: biz.TranscriptContent{
			Segments: po.Segments,
			Speakers: po.Speakers,
			FullText: po.FullText,
		},
		CreatedAt: po.CreatedAt,
	}
}
