package biz

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/lk2023060901/asr-studio-backend/internal/pkg/errors"
	"github.com/lk2023060901/asr-studio-backend/internal/pkg/logger"
)

func newTestTrashUseCase(t *testing.T) (*TrashUseCase, *fakeFileRepo, *fakeVersionRepo, *fakeBlobStorage, *fakeTaskSweeper) {
	t.Helper()
	repo := newFakeFileRepo()
	versions := newFakeVersionRepo(repo)
	storage := newFakeBlobStorage()
	tasks := &fakeTaskSweeper{}
	uc := NewTrashUseCase(repo, versions, storage, tasks, NewListCache(), logger.NewNop())
	return uc, repo, versions, storage, tasks
}

func trashFile(t *testing.T, repo *fakeFileRepo, id string, prev FileStatus) *File {
	t.Helper()
	f := seedFile(repo, id, id+".mp3", prev)
	f.PrevStatus = prev
	f.Status = StatusDeleted
	now := f.UpdatedAt
	f.DeletedAt = &now
	require.NoError(t, repo.Update(context.Background(), f))
	return f
}

func TestRestoreReturnsToPreviousStatus(t *testing.T) {
	uc, repo, _, _, _ := newTestTrashUseCase(t)
	trashFile(t, repo, "f1", StatusRecognized)

	f, err := uc.Restore(context.Background(), "f1")
	require.NoError(t, err)

	assert.Equal(t, StatusRecognized, f.Status)
	assert.Nil(t, f.DeletedAt)
	assert.Equal(t, FileStatus(""), f.PrevStatus)
}

// 删除时在识别中的文件恢复后不回到 processing
func TestRestoreInterruptedRecognition(t *testing.T) {
	uc, repo, _, _, _ := newTestTrashUseCase(t)
	trashFile(t, repo, "f1", StatusProcessing)
	trashFile(t, repo, "f2", StatusQueued)

	f, err := uc.Restore(context.Background(), "f1")
	require.NoError(t, err)
	assert.Equal(t, StatusUploaded, f.Status)

	f, err = uc.Restore(context.Background(), "f2")
	require.NoError(t, err)
	assert.Equal(t, StatusUploaded, f.Status)
}

func TestRestoreActiveFileFails(t *testing.T) {
	uc, repo, _, _, _ := newTestTrashUseCase(t)
	seedFile(repo, "f1", "a.mp3", StatusUploaded)

	_, err := uc.Restore(context.Background(), "f1")
	assert.Equal(t, apperrors.ErrFileNotDeleted, apperrors.ExtractCode(err))
}

func TestPurgeRemovesEverything(t *testing.T) {
	uc, repo, versions, storage, tasks := newTestTrashUseCase(t)
	f := trashFile(t, repo, "f1", StatusRecognized)
	storage.objects[f.ObjectKey] = []byte("audio")
	_, err := versions.Save(context.Background(), f, TranscriptContent{FullText: "x"}, VersionTypeManual, "")
	require.NoError(t, err)

	// Save 会把文件内容回写，需要保持回收站状态
	stored, err := repo.GetByID(context.Background(), "f1")
	require.NoError(t, err)
	stored.Status = StatusDeleted
	require.NoError(t, repo.Update(context.Background(), stored))

	require.NoError(t, uc.Purge(context.Background(), "f1"))

	_, err = repo.GetByID(context.Background(), "f1")
	assert.Error(t, err)
	vs, err := versions.List(context.Background(), "f1")
	require.NoError(t, err)
	assert.Empty(t, vs)
	_, err = storage.Get(context.Background(), f.ObjectKey)
	assert.Error(t, err)
	// 识别任务记录同步销毁，进度查询不再命中
	assert.Contains(t, tasks.deleted, "f1")
}

func TestPurgeActiveFileFails(t *testing.T) {
	uc, repo, _, _, _ := newTestTrashUseCase(t)
	seedFile(repo, "f1", "a.mp3", StatusRecognized)

	err := uc.Purge(context.Background(), "f1")
	assert.Equal(t, apperrors.ErrFileNotDeleted, apperrors.ExtractCode(err))
}

func TestBatchRestoreAggregatesResults(t *testing.T) {
	uc, repo, _, _, _ := newTestTrashUseCase(t)
	trashFile(t, repo, "f1", StatusUploaded)
	seedFile(repo, "f2", "active.mp3", StatusUploaded)

	results := uc.BatchRestore(context.Background(), []string{"f1", "f2", "missing"})
	require.Len(t, results, 3)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.Equal(t, apperrors.ErrFileNotDeleted, results[1].Code)
	assert.False(t, results[2].Success)
	assert.Equal(t, apperrors.ErrFileNotFound, results[2].Code)
}

func TestClearPurgesAllTrashed(t *testing.T) {
	uc, repo, _, _, _ := newTestTrashUseCase(t)
	trashFile(t, repo, "f1", StatusUploaded)
	trashFile(t, repo, "f2", StatusRecognized)
	seedFile(repo, "f3", "keep.mp3", StatusUploaded)

	results, err := uc.Clear(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.True(t, r.Success)
	}

	_, total, err := repo.ListTrashed(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)

	// 活跃文件不受影响
	_, err = repo.GetByID(context.Background(), "f3")
	assert.NoError(t, err)
}

// 单个条目清除失败时照常聚合，不中断也不死循环
func TestClearReportsPerFileFailures(t *testing.T) {
	repo := newFakeFileRepo()
	versions := newFakeVersionRepo(repo)
	storage := newFakeBlobStorage()
	uc := NewTrashUseCase(repo, &failingVersionRepo{fakeVersionRepo: versions, failFileID: "f1"},
		storage, &fakeTaskSweeper{}, NewListCache(), logger.NewNop())

	trashFile(t, repo, "f1", StatusUploaded)
	trashFile(t, repo, "f2", StatusRecognized)

	results, err := uc.Clear(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)

	byID := make(map[string]BatchResult, len(results))
	for _, r := range results {
		byID[r.ID] = r
	}
	assert.False(t, byID["f1"].Success)
	assert.NotEmpty(t, byID["f1"].Error)
	assert.True(t, byID["f2"].Success)

	// 失败条目留在回收站
	_, total, err := repo.ListTrashed(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

// failingVersionRepo 对指定文件的版本删除持续失败
type failingVersionRepo struct {
	*fakeVersionRepo
	failFileID string
}

func (r *failingVersionRepo) DeleteByFileID(ctx context.Context, fileID string) error {
	if fileID == r.failFileID {
		return fmt.Errorf("versions table unavailable")
	}
	return r.fakeVersionRepo.DeleteByFileID(ctx, fileID)
}
