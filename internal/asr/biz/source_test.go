package biz

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	filebiz "github.com/lk2023060901/asr-studio-backend/internal/file/biz"
	"github.com/lk2023060901/asr-studio-backend/internal/pkg/logger"
	"github.com/lk2023060901/asr-studio-backend/internal/pkg/ws"
)

func fastPollingConfig() *PollingConfig {
	return &PollingConfig{
		Interval:    5 * time.Millisecond,
		MaxInterval: 20 * time.Millisecond,
		MaxRetries:  3,
	}
}

func collect(t *testing.T, events <-chan ProgressEvent, deadline time.Duration) []ProgressEvent {
	t.Helper()
	var out []ProgressEvent
	timeout := time.After(deadline)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("timed out waiting for events")
		}
	}
}

func TestPollingSourceEmitsOnChange(t *testing.T) {
	store := newFakeTaskStore()
	require.NoError(t, store.Save(context.Background(), &Task{FileID: "f1", State: TaskRunning, Progress: 30}))

	source := NewPollingSource(store, nil, fastPollingConfig(), logger.NewNop())
	events, cancel, err := source.Subscribe(context.Background(), "f1")
	require.NoError(t, err)
	defer cancel()

	// 第一个快照
	ev := <-events
	assert.Equal(t, 30, ev.Progress)

	// 进度推进后出现第二个事件，然后终态关闭
	require.NoError(t, store.Save(context.Background(), &Task{FileID: "f1", State: TaskCompleted, Progress: 100}))

	rest := collect(t, events, time.Second)
	require.NotEmpty(t, rest)
	last := rest[len(rest)-1]
	assert.Equal(t, TaskCompleted, last.State)
	assert.Equal(t, 100, last.Progress)
}

func TestPollingSourceSuppressesDuplicates(t *testing.T) {
	store := newFakeTaskStore()
	require.NoError(t, store.Save(context.Background(), &Task{FileID: "f1", State: TaskCompleted, Progress: 100}))

	source := NewPollingSource(store, nil, fastPollingConfig(), logger.NewNop())
	events, cancel, err := source.Subscribe(context.Background(), "f1")
	require.NoError(t, err)
	defer cancel()

	got := collect(t, events, time.Second)
	// 终态快照只发一次即关闭
	require.Len(t, got, 1)
	assert.Equal(t, TaskCompleted, got[0].State)
}

// 连续查询失败超限后发出失联事件
func TestPollingSourceReportsLost(t *testing.T) {
	store := newFakeTaskStore()
	store.getErr = assert.AnError

	source := NewPollingSource(store, nil, fastPollingConfig(), logger.NewNop())
	events, cancel, err := source.Subscribe(context.Background(), "f1")
	require.NoError(t, err)
	defer cancel()

	got := collect(t, events, 2*time.Second)
	require.Len(t, got, 1)
	assert.True(t, got[0].Lost)
}

func TestPollingSourceCancelStops(t *testing.T) {
	store := newFakeTaskStore()
	require.NoError(t, store.Save(context.Background(), &Task{FileID: "f1", State: TaskRunning, Progress: 1}))

	source := NewPollingSource(store, nil, fastPollingConfig(), logger.NewNop())
	events, cancel, err := source.Subscribe(context.Background(), "f1")
	require.NoError(t, err)

	<-events
	cancel()

	// 取消后通道在有限时间内关闭
	select {
	case _, ok := <-events:
		if ok {
			// 允许残留一条在途事件，随后必须关闭
			_, ok = <-events
			assert.False(t, ok)
		}
	case <-time.After(time.Second):
		t.Fatal("events channel not closed after cancel")
	}
}

func TestPushSourceForwardsHubEvents(t *testing.T) {
	hub := ws.NewHub()
	source := NewPushSource(hub, logger.NewNop())

	events, cancel, err := source.Subscribe(context.Background(), "f1")
	require.NoError(t, err)
	defer cancel()

	BroadcastProgress(hub, ProgressEvent{FileID: "f1", State: TaskRunning, Progress: 42})
	BroadcastProgress(hub, ProgressEvent{FileID: "f1", State: TaskCompleted, Progress: 100})

	got := collect(t, events, time.Second)
	require.Len(t, got, 2)
	assert.Equal(t, 42, got[0].Progress)
	assert.Equal(t, TaskCompleted, got[1].State)
}

func TestPushSourceIgnoresOtherResources(t *testing.T) {
	hub := ws.NewHub()
	source := NewPushSource(hub, logger.NewNop())

	events, cancel, err := source.Subscribe(context.Background(), "f1")
	require.NoError(t, err)
	defer cancel()

	BroadcastProgress(hub, ProgressEvent{FileID: "other", State: TaskRunning, Progress: 10})
	BroadcastProgress(hub, ProgressEvent{FileID: "f1", State: TaskCompleted, Progress: 100})

	got := collect(t, events, time.Second)
	require.Len(t, got, 1)
	assert.Equal(t, "f1", got[0].FileID)
}

// 任务记录已过期时轮询改由文件状态合成终态，而不是判定失联
func TestPollingSourceFallsBackToFileStatus(t *testing.T) {
	store := newFakeTaskStore()
	files := newFakeFileRepo()
	files.seed("f1", filebiz.StatusRecognized)

	source := NewPollingSource(store, files, fastPollingConfig(), logger.NewNop())
	events, cancel, err := source.Subscribe(context.Background(), "f1")
	require.NoError(t, err)
	defer cancel()

	got := collect(t, events, time.Second)
	require.Len(t, got, 1)
	assert.False(t, got[0].Lost)
	assert.Equal(t, TaskCompleted, got[0].State)
	assert.Equal(t, 100, got[0].Progress)
}
