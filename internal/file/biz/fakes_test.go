package biz

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// fakeFileRepo 内存文件仓储
type fakeFileRepo struct {
	mu    sync.Mutex
	files map[string]*File
}

func newFakeFileRepo() *fakeFileRepo {
	return &fakeFileRepo{files: make(map[string]*File)}
}

func (r *fakeFileRepo) clone(f *File) *File {
	c := *f
	return &c
}

func (r *fakeFileRepo) Create(ctx context.Context, f *File) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files[f.ID] = r.clone(f)
	return nil
}

func (r *fakeFileRepo) GetByID(ctx context.Context, id string) (*File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[id]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", id)
	}
	return r.clone(f), nil
}

func (r *fakeFileRepo) List(ctx context.Context, req *ListFilesRequest) ([]*File, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*File
	for _, f := range r.files {
		if f.Status == StatusDeleted {
			continue
		}
		if req.Query != "" && !strings.Contains(strings.ToLower(f.DisplayName), strings.ToLower(req.Query)) {
			continue
		}
		out = append(out, r.clone(f))
	}
	sort.Slice(out, func(i, j int) bool {
		var less bool
		switch req.SortBy {
		case "name":
			less = out[i].DisplayName < out[j].DisplayName
		case "size":
			less = out[i].Size < out[j].Size
		case "status":
			less = out[i].Status < out[j].Status
		default:
			less = out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		if req.SortOrder == "desc" {
			return !less
		}
		return less
	})
	return out, int64(len(out)), nil
}

func (r *fakeFileRepo) ListTrashed(ctx context.Context, page, pageSize int) ([]*File, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*File
	for _, f := range r.files {
		if f.Status == StatusDeleted {
			out = append(out, r.clone(f))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (r *fakeFileRepo) Update(ctx context.Context, f *File) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.files[f.ID]; !ok {
		return fmt.Errorf("file not found: %s", f.ID)
	}
	r.files[f.ID] = r.clone(f)
	return nil
}

func (r *fakeFileRepo) StorageNameExists(ctx context.Context, storageName, excludeID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.files {
		if f.StorageName == storageName && f.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeFileRepo) HardDelete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.files[id]; !ok {
		return fmt.Errorf("file not found: %s", id)
	}
	delete(r.files, id)
	return nil
}

// fakeVersionRepo 内存版本仓储
type fakeVersionRepo struct {
	mu       sync.Mutex
	files    *fakeFileRepo
	versions map[string][]*Version
}

func newFakeVersionRepo(files *fakeFileRepo) *fakeVersionRepo {
	return &fakeVersionRepo{files: files, versions: make(map[string][]*Version)}
}

func (r *fakeVersionRepo) Save(ctx context.Context, f *File, content TranscriptContent, vtype VersionType, note string) (*Version, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, err := r.files.GetByID(ctx, f.ID)
	if err != nil {
		return nil, err
	}

	v := &Version{
		ID:        uuid.New().String(),
		FileID:    f.ID,
		Number:    stored.VersionCount + 1,
		Type:      vtype,
		Note:      note,
		Content:   content,
		CreatedAt: time.Now(),
	}
	r.versions[f.ID] = append(r.versions[f.ID], v)

	stored.Segments = content.Segments
	stored.Speakers = content.Speakers
	stored.FullText = content.FullText
	stored.DisplayName = f.DisplayName
	stored.VersionCount = v.Number
	stored.UpdatedAt = v.CreatedAt
	if err := r.files.Update(ctx, stored); err != nil {
		return nil, err
	}
	return v, nil
}

func (r *fakeVersionRepo) List(ctx context.Context, fileID string) ([]*Version, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	vs := append([]*Version(nil), r.versions[fileID]...)
	sort.Slice(vs, func(i, j int) bool { return vs[i].Number > vs[j].Number })
	return vs, nil
}

func (r *fakeVersionRepo) GetByID(ctx context.Context, fileID, versionID string) (*Version, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.versions[fileID] {
		if v.ID == versionID {
			return v, nil
		}
	}
	return nil, fmt.Errorf("version not found: %s", versionID)
}

func (r *fakeVersionRepo) DeleteByFileID(ctx context.Context, fileID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.versions, fileID)
	return nil
}

// fakeBlobStorage 内存对象存储
type fakeBlobStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	// putDelay 模拟慢速写入
	putDelay time.Duration
}

func newFakeBlobStorage() *fakeBlobStorage {
	return &fakeBlobStorage{objects: make(map[string][]byte)}
}

func (s *fakeBlobStorage) Put(ctx context.Context, objectKey string, r io.Reader, size int64, contentType string) error {
	if s.putErr != nil {
		return s.putErr
	}
	if s.putDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.putDelay):
		}
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[objectKey] = data
	return nil
}

func (s *fakeBlobStorage) Get(ctx context.Context, objectKey string) (io.ReadSeekCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[objectKey]
	if !ok {
		return nil, fmt.Errorf("object not found: %s", objectKey)
	}
	return nopReadSeekCloser{strings.NewReader(string(data))}, nil
}

func (s *fakeBlobStorage) Remove(ctx context.Context, objectKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, objectKey)
	return nil
}

func (s *fakeBlobStorage) Rename(ctx context.Context, oldKey, newKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[oldKey]
	if !ok {
		return fmt.Errorf("object not found: %s", oldKey)
	}
	s.objects[newKey] = data
	delete(s.objects, oldKey)
	return nil
}

type nopReadSeekCloser struct {
	*strings.Reader
}

func (nopReadSeekCloser) Close() error { return nil }

// fakeEnqueuer 记录入队调用
type fakeEnqueuer struct {
	mu      sync.Mutex
	entries []string
	err     error
}

func (e *fakeEnqueuer) Enqueue(ctx context.Context, fileID, language string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.entries = append(e.entries, fileID+":"+language)
	return nil
}

func seedFile(repo *fakeFileRepo, id, name string, status FileStatus) *File {
	now := time.Now().Add(-time.Hour)
	f := &File{
		ID:           id,
		OriginalName: name,
		DisplayName:  strings.TrimSuffix(name, ".mp3"),
		StorageName:  BuildStorageName(now, name),
		Extension:    "mp3",
		Size:         1024,
		Status:       status,
		Options:      UploadOptions{Language: "auto", Action: ActionUpload},
		ObjectKey:    "audio/" + BuildStorageName(now, name),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	_ = repo.Create(context.Background(), f)
	return f
}

// fakeTaskSweeper 记录被清理的任务记录
type fakeTaskSweeper struct {
	mu      sync.Mutex
	deleted []string
}

func (s *fakeTaskSweeper) Delete(ctx context.Context, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, fileID)
	return nil
}
