package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	asrbiz "github.com/lk2023060901/asr-studio-backend/internal/asr/biz"
	"github.com/lk2023060901/asr-studio-backend/internal/asr/engine"
	filebiz "github.com/lk2023060901/asr-studio-backend/internal/file/biz"
	"github.com/lk2023060901/asr-studio-backend/internal/pkg/logger"
	"github.com/lk2023060901/asr-studio-backend/internal/pkg/ws"
)

// fakeFileRepo 内存文件仓储；Update 与真实实现一致，整行覆盖
type fakeFileRepo struct {
	mu    sync.Mutex
	files map[string]*filebiz.File
}

func newFakeFileRepo() *fakeFileRepo {
	return &fakeFileRepo{files: make(map[string]*filebiz.File)}
}

func (r *fakeFileRepo) Create(ctx context.Context, f *filebiz.File) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *f
	r.files[f.ID] = &c
	return nil
}

func (r *fakeFileRepo) GetByID(ctx context.Context, id string) (*filebiz.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[id]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", id)
	}
	c := *f
	return &c, nil
}

func (r *fakeFileRepo) List(ctx context.Context, req *filebiz.ListFilesRequest) ([]*filebiz.File, int64, error) {
	return nil, 0, nil
}

func (r *fakeFileRepo) ListTrashed(ctx context.Context, page, pageSize int) ([]*filebiz.File, int64, error) {
	return nil, 0, nil
}

func (r *fakeFileRepo) Update(ctx context.Context, f *filebiz.File) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.files[f.ID]; !ok {
		return fmt.Errorf("file not found: %s", f.ID)
	}
	c := *f
	r.files[f.ID] = &c
	return nil
}

func (r *fakeFileRepo) StorageNameExists(ctx context.Context, storageName, excludeID string) (bool, error) {
	return false, nil
}

func (r *fakeFileRepo) HardDelete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.files, id)
	return nil
}

// fakeVersionRepo 与真实实现的列写入保持一致：
// 事务内回写仓储中的文件内容与版本计数，不触碰调用方传入的快照。
type fakeVersionRepo struct {
	mu       sync.Mutex
	files    *fakeFileRepo
	versions map[string][]*filebiz.Version
}

func newFakeVersionRepo(files *fakeFileRepo) *fakeVersionRepo {
	return &fakeVersionRepo{files: files, versions: make(map[string][]*filebiz.Version)}
}

func (r *fakeVersionRepo) Save(ctx context.Context, f *filebiz.File, content filebiz.TranscriptContent, vtype filebiz.VersionType, note string) (*filebiz.Version, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, err := r.files.GetByID(ctx, f.ID)
	if err != nil {
		return nil, err
	}

	v := &filebiz.Version{
		ID:        fmt.Sprintf("v%d", stored.VersionCount+1),
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
	stored.VersionCount = v.Number
	stored.UpdatedAt = v.CreatedAt
	if err := r.files.Update(ctx, stored); err != nil {
		return nil, err
	}
	return v, nil
}

func (r *fakeVersionRepo) List(ctx context.Context, fileID string) ([]*filebiz.Version, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*filebiz.Version(nil), r.versions[fileID]...), nil
}

func (r *fakeVersionRepo) GetByID(ctx context.Context, fileID, versionID string) (*filebiz.Version, error) {
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

// fakeTaskStore 内存任务存储
type fakeTaskStore struct {
	mu    sync.Mutex
	tasks map[string]*asrbiz.Task
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{tasks: make(map[string]*asrbiz.Task)}
}

func (s *fakeTaskStore) Save(ctx context.Context, task *asrbiz.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *task
	s.tasks[task.FileID] = &c
	return nil
}

func (s *fakeTaskStore) Get(ctx context.Context, fileID string) (*asrbiz.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[fileID]
	if !ok {
		return nil, fmt.Errorf("task not found: %s", fileID)
	}
	c := *task
	return &c, nil
}

func (s *fakeTaskStore) Exists(ctx context.Context, fileID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[fileID]
	return ok, nil
}

func (s *fakeTaskStore) Delete(ctx context.Context, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, fileID)
	return nil
}

func testEngine(t *testing.T, handler http.HandlerFunc) *engine.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := engine.New(&engine.Config{
		BaseURL:      srv.URL,
		Timeout:      5 * time.Second,
		PollInterval: 5 * time.Millisecond,
		PollTimeout:  2 * time.Second,
	}, logger.NewNop())
	require.NoError(t, err)
	return client
}

func doneEngine(t *testing.T, result engine.TaskResult) *engine.Client {
	t.Helper()
	return testEngine(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"code": 200,
				"data": map[string]string{"task_id": "t1"},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"code": 200, "data": result})
	})
}

func testWorker(files *fakeFileRepo, versions *fakeVersionRepo, store *fakeTaskStore, eng *engine.Client) *Worker {
	return NewWorker(nil, store, files, versions, filebiz.NewListCache(), eng, ws.NewHub(), zap.NewNop(), 1)
}

func seedFile(files *fakeFileRepo, id string) {
	_ = files.Create(context.Background(), &filebiz.File{
		ID:        id,
		Status:    filebiz.StatusQueued,
		ObjectKey: "audio/" + id + ".mp3",
		Options:   filebiz.UploadOptions{Language: "auto"},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	})
}

// 识别完成后文件行要同时带有状态、内容与版本计数
func TestProcessCompletionKeepsVersionState(t *testing.T) {
	files := newFakeFileRepo()
	versions := newFakeVersionRepo(files)
	store := newFakeTaskStore()
	seedFile(files, "f1")

	eng := doneEngine(t, engine.TaskResult{
		TaskID:   "t1",
		State:    "done",
		Progress: 100,
		Duration: 12.5,
		Segments: []engine.ResultSegment{{SpeakerID: "1", StartTime: 0, EndTime: 2, Text: "你好"}},
		Speakers: []engine.ResultSpeaker{{ID: "1", Name: "张三"}},
		FullText: "你好",
	})

	w := testWorker(files, versions, store, eng)
	w.process(context.Background(), &asrbiz.QueueItem{FileID: "f1", Language: "auto"}, 0)

	f, err := files.GetByID(context.Background(), "f1")
	require.NoError(t, err)
	assert.Equal(t, filebiz.StatusRecognized, f.Status)
	assert.Equal(t, 1, f.VersionCount)
	assert.Len(t, f.Segments, 1)
	assert.Equal(t, "你好", f.FullText)
	assert.Equal(t, 12.5, f.Duration)

	vs, err := versions.List(context.Background(), "f1")
	require.NoError(t, err)
	require.Len(t, vs, 1)
	assert.Equal(t, filebiz.VersionTypeAuto, vs[0].Type)

	task, err := store.Get(context.Background(), "f1")
	require.NoError(t, err)
	assert.Equal(t, asrbiz.TaskCompleted, task.State)
	assert.Equal(t, 100, task.Progress)
}

func TestProcessFailureMarksFileErrored(t *testing.T) {
	files := newFakeFileRepo()
	versions := newFakeVersionRepo(files)
	store := newFakeTaskStore()
	seedFile(files, "f1")

	eng := doneEngine(t, engine.TaskResult{TaskID: "t1", State: "failed", ErrMsg: "audio unreadable"})

	w := testWorker(files, versions, store, eng)
	w.process(context.Background(), &asrbiz.QueueItem{FileID: "f1", Language: "auto"}, 0)

	f, err := files.GetByID(context.Background(), "f1")
	require.NoError(t, err)
	assert.Equal(t, filebiz.StatusError, f.Status)
	assert.Equal(t, 0, f.VersionCount)

	task, err := store.Get(context.Background(), "f1")
	require.NoError(t, err)
	assert.Equal(t, asrbiz.TaskFailed, task.State)
	assert.Contains(t, task.Error, "audio unreadable")
}

// 入队后被移入回收站的文件直接丢弃任务
func TestProcessDropsTrashedFile(t *testing.T) {
	files := newFakeFileRepo()
	versions := newFakeVersionRepo(files)
	store := newFakeTaskStore()

	now := time.Now()
	_ = files.Create(context.Background(), &filebiz.File{
		ID:         "f1",
		Status:     filebiz.StatusDeleted,
		PrevStatus: filebiz.StatusQueued,
		DeletedAt:  &now,
	})
	_ = store.Save(context.Background(), &asrbiz.Task{FileID: "f1", State: asrbiz.TaskQueued})

	eng := doneEngine(t, engine.TaskResult{TaskID: "t1", State: "done", Progress: 100})

	w := testWorker(files, versions, store, eng)
	w.process(context.Background(), &asrbiz.QueueItem{FileID: "f1", Language: "auto"}, 0)

	_, err := store.Get(context.Background(), "f1")
	assert.Error(t, err)

	f, err := files.GetByID(context.Background(), "f1")
	require.NoError(t, err)
	assert.Equal(t, filebiz.StatusDeleted, f.Status)
}
