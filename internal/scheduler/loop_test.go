package scheduler

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testLogger implements Logger for testing
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) Debug(msg string, keysAndValues ...any) {
	l.log("DEBUG", msg, keysAndValues)
}

func (l *testLogger) Info(msg string, keysAndValues ...any) {
	l.log("INFO", msg, keysAndValues)
}

func (l *testLogger) Error(msg string, keysAndValues ...any) {
	l.log("ERROR", msg, keysAndValues)
}

func (l *testLogger) log(level, msg string, kv []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("%s: %s %v", level, msg, kv))
}

func (l *testLogger) contains(s string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.messages {
		if strings.Contains(m, s) {
			return true
		}
	}
	return false
}

func newTestLoop(t *testing.T) (*Loop, *testLogger) {
	t.Helper()
	logger := &testLogger{}
	l := NewLoop(logger)
	t.Cleanup(l.Close)
	return l, logger
}

func TestLoop_RunsTasksInOrder(t *testing.T) {
	l, _ := newTestLoop(t)

	var got []int
	for i := 0; i < 10; i++ {
		l.Post(func() { got = append(got, i) })
	}
	require.NoError(t, l.Do(func() {}))

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
}

func TestLoop_DoWaitsForResult(t *testing.T) {
	l, _ := newTestLoop(t)

	var v int
	require.NoError(t, l.Do(func() { v = 42 }))

	assert.Equal(t, 42, v)
}

func TestLoop_After(t *testing.T) {
	l, _ := newTestLoop(t)

	var ran atomic.Bool
	l.After(10*time.Millisecond, func() { ran.Store(true) })

	assert.Eventually(t, ran.Load, time.Second, 5*time.Millisecond)
}

func TestLoop_PanicDoesNotStopLoop(t *testing.T) {
	l, logger := newTestLoop(t)

	l.Post(func() { panic("boom") })
	var v int
	require.NoError(t, l.Do(func() { v = 1 }))

	assert.Equal(t, 1, v)
	assert.True(t, logger.contains("task panicked"))
}

func TestLoop_CloseRunsQueuedAndRejectsNew(t *testing.T) {
	l := NewLoop(&testLogger{})

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		l.Post(func() { ran.Add(1) })
	}
	l.Close()

	assert.Equal(t, int32(5), ran.Load())
	assert.False(t, l.Post(func() {}))
	assert.ErrorIs(t, l.Do(func() {}), ErrClosed)
	l.Close()
}

func TestDebouncer_CoalescesBurst(t *testing.T) {
	l, logger := newTestLoop(t)

	var runs atomic.Int32
	d := l.NewDebouncer("from_scene", 30*time.Millisecond, func() { runs.Add(1) })

	for i := 0; i < 5; i++ {
		d.Trigger()
		time.Sleep(2 * time.Millisecond)
	}

	assert.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())
	assert.False(t, d.Pending())
	assert.True(t, logger.contains("triggers 5"))
}

func TestDebouncer_RearmsAfterRun(t *testing.T) {
	l, _ := newTestLoop(t)

	var runs atomic.Int32
	d := l.NewDebouncer("from_ui", 5*time.Millisecond, func() { runs.Add(1) })

	d.Trigger()
	assert.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, time.Millisecond)
	d.Trigger()
	assert.Eventually(t, func() bool { return runs.Load() == 2 }, time.Second, time.Millisecond)
}

func TestDebouncer_FlushRunsPendingNow(t *testing.T) {
	l, _ := newTestLoop(t)

	var runs atomic.Int32
	d := l.NewDebouncer("from_scene", time.Hour, func() { runs.Add(1) })

	require.NoError(t, d.Flush())
	assert.Zero(t, runs.Load())

	d.Trigger()
	require.True(t, d.Pending())
	require.NoError(t, d.Flush())

	assert.Equal(t, int32(1), runs.Load())
	assert.False(t, d.Pending())
}

func TestDebouncer_StopCancels(t *testing.T) {
	l, _ := newTestLoop(t)

	var runs atomic.Int32
	d := l.NewDebouncer("from_scene", 5*time.Millisecond, func() { runs.Add(1) })

	d.Trigger()
	d.Stop()
	d.Trigger()
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, l.Do(func() {}))

	assert.Zero(t, runs.Load())
	assert.False(t, d.Pending())
}
