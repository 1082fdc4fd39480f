package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/access-portal/internal/application/port"
)

type recordingWorker struct {
	name     string
	startErr error
	stopErr  error
	log      *[]string
	mu       *sync.Mutex
}

func (w *recordingWorker) record(s string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	*w.log = append(*w.log, s)
}

func (w *recordingWorker) Start(ctx context.Context) error {
	w.record("start " + w.name)
	return w.startErr
}

func (w *recordingWorker) Stop() error {
	w.record("stop " + w.name)
	return w.stopErr
}

func (w *recordingWorker) Name() string { return w.name }

func TestWorkerManager_Lifecycle(t *testing.T) {
	var (
		log []string
		mu  sync.Mutex
	)
	m := NewWorkerManager(zap.NewNop())
	m.Register(&recordingWorker{name: "a", log: &log, mu: &mu})
	m.Register(&recordingWorker{name: "b", log: &log, mu: &mu})
	m.Register(&recordingWorker{name: "c", log: &log, mu: &mu})

	require.NoError(t, m.StartAll(context.Background()))
	assert.True(t, m.IsRunning())
	assert.Error(t, m.StartAll(context.Background()))

	require.NoError(t, m.StopAll())
	assert.False(t, m.IsRunning())
	assert.Equal(t, []string{"start a", "start b", "start c", "stop c", "stop b", "stop a"}, log)

	assert.NoError(t, m.StopAll(), "stopping twice is a no-op")
	assert.Equal(t, 3, m.GetWorkerCount())
}

func TestWorkerManager_FailedStartIsNotStopped(t *testing.T) {
	var (
		log []string
		mu  sync.Mutex
	)
	boom := errors.New("boom")
	m := NewWorkerManager(zap.NewNop())
	m.Register(&recordingWorker{name: "a", log: &log, mu: &mu})
	m.Register(&recordingWorker{name: "b", startErr: boom, log: &log, mu: &mu})

	err := m.StartAll(context.Background())
	assert.ErrorIs(t, err, boom)

	require.NoError(t, m.StopAll())
	assert.Equal(t, []string{"start a", "start b", "stop a"}, log)
}

func TestWorkerManager_StopErrorsJoined(t *testing.T) {
	var (
		log []string
		mu  sync.Mutex
	)
	errA, errB := errors.New("a failed"), errors.New("b failed")
	m := NewWorkerManager(zap.NewNop())
	m.Register(&recordingWorker{name: "a", stopErr: errA, log: &log, mu: &mu})
	m.Register(&recordingWorker{name: "b", stopErr: errB, log: &log, mu: &mu})

	require.NoError(t, m.StartAll(context.Background()))
	err := m.StopAll()
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
}

type purgeCache struct {
	port.ApplicationCache
	calls   atomic.Int32
	removed int
	err     error
}

func (c *purgeCache) Purge(ctx context.Context) (int, error) {
	c.calls.Add(1)
	return c.removed, c.err
}

func TestCacheJanitor_RunOnce(t *testing.T) {
	c := &purgeCache{removed: 3}
	j := NewCacheJanitor(c, "", zap.NewNop())

	n, err := j.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "cache-janitor", j.Name())

	c.err = errors.New("redis down")
	_, err = j.RunOnce(context.Background())
	assert.Error(t, err)
}

func TestCacheJanitor_Schedule(t *testing.T) {
	c := &purgeCache{}
	j := NewCacheJanitor(c, "@every 1s", zap.NewNop())

	require.NoError(t, j.Start(context.Background()))
	assert.Error(t, j.Start(context.Background()))

	assert.Eventually(t, func() bool { return c.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)

	require.NoError(t, j.Stop())
	require.NoError(t, j.Stop())
}

func TestCacheJanitor_InvalidSchedule(t *testing.T) {
	j := NewCacheJanitor(&purgeCache{}, "not a schedule", zap.NewNop())
	assert.Error(t, j.Start(context.Background()))
	assert.NoError(t, j.Stop())
}
