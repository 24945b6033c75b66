package termination

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTerminator_RegisterAndStatus(t *testing.T) {
	tr := NewTerminator(nil, nil)

	require.NoError(t, tr.Register("t1", map[string]any{"kind": "research"}, nil))

	rec, ok := tr.Status("t1")
	require.True(t, ok)
	assert.Equal(t, "t1", rec.TaskID)
	assert.Zero(t, rec.Progress)
	assert.False(t, rec.CanTerminate)
	assert.False(t, rec.TerminationRequested)
	assert.Equal(t, "research", rec.Context["kind"])

	assert.ErrorIs(t, tr.Register("t1", nil, nil), ErrTaskExists)
}

func TestTerminator_CooperativeStop(t *testing.T) {
	tr := NewTerminator(nil, nil)
	require.NoError(t, tr.Register("t1", nil, nil))

	// before any checkpoint, a request alone must not stop the task
	require.NoError(t, tr.UpdateProgress("t1", "step1", 0.5, "draft", true))
	assert.False(t, tr.ShouldTerminate("t1"))

	require.NoError(t, tr.RequestTermination("t1", "user stop"))
	assert.True(t, tr.ShouldTerminate("t1"))

	view, err := tr.PartialResults("t1")
	require.NoError(t, err)
	assert.Equal(t, 0.5, view.Progress)
	assert.Equal(t, "step1", view.CurrentStep)
	assert.Equal(t, "user stop", view.TerminationReason)
	require.Len(t, view.PartialResults, 1)
	assert.Equal(t, "draft", view.PartialResults[0].Result)
	assert.Equal(t, "step1", view.PartialResults[0].Step)
}

func TestTerminator_RequestBeforeSafeCheckpoint(t *testing.T) {
	tr := NewTerminator(nil, nil)
	require.NoError(t, tr.Register("t1", nil, nil))
	require.NoError(t, tr.UpdateProgress("t1", "critical", 0.3, nil, false))

	require.NoError(t, tr.RequestTermination("t1", "impatient user"))

	// the request is recorded but not actionable yet
	assert.False(t, tr.ShouldTerminate("t1"))
	rec, _ := tr.Status("t1")
	assert.True(t, rec.TerminationRequested)

	// next safe checkpoint makes it actionable
	require.NoError(t, tr.UpdateProgress("t1", "safe", 0.4, nil, true))
	assert.True(t, tr.ShouldTerminate("t1"))
}

func TestTerminator_ProgressClamped(t *testing.T) {
	tr := NewTerminator(nil, nil)
	require.NoError(t, tr.Register("t1", nil, nil))

	require.NoError(t, tr.UpdateProgress("t1", "s", 1.7, nil, false))
	rec, _ := tr.Status("t1")
	assert.Equal(t, 1.0, rec.Progress)

	require.NoError(t, tr.UpdateProgress("t1", "s", -0.2, nil, false))
	rec, _ = tr.Status("t1")
	assert.Equal(t, 0.0, rec.Progress)
}

func TestTerminator_UnknownTask(t *testing.T) {
	tr := NewTerminator(nil, nil)

	assert.ErrorIs(t, tr.UpdateProgress("ghost", "s", 0.1, nil, false), ErrTaskNotFound)
	assert.ErrorIs(t, tr.RequestTermination("ghost", "r"), ErrTaskNotFound)
	assert.False(t, tr.ShouldTerminate("ghost"))
	_, err := tr.PartialResults("ghost")
	assert.ErrorIs(t, err, ErrTaskNotFound)
	assert.ErrorIs(t, tr.Complete("ghost", nil), ErrTaskNotFound)
}

func TestTerminator_CallbackFiresAtSafeCheckpoint(t *testing.T) {
	tr := NewTerminator(nil, nil)

	var mu sync.Mutex
	var received []PartialResult
	callback := func(partial []PartialResult) {
		mu.Lock()
		defer mu.Unlock()
		received = partial
	}

	require.NoError(t, tr.Register("t1", nil, callback))
	require.NoError(t, tr.UpdateProgress("t1", "step1", 0.5, "draft", true))
	require.NoError(t, tr.RequestTermination("t1", "stop"))

	tr.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, "draft", received[0].Result)
}

func TestTerminator_CallbackSkippedWhenNotSafe(t *testing.T) {
	tr := NewTerminator(nil, nil)

	fired := false
	require.NoError(t, tr.Register("t1", nil, func([]PartialResult) { fired = true }))
	require.NoError(t, tr.UpdateProgress("t1", "critical", 0.5, nil, false))
	require.NoError(t, tr.RequestTermination("t1", "stop"))

	tr.Wait()
	assert.False(t, fired)
}

func TestTerminator_CallbackPanicIsContained(t *testing.T) {
	tr := NewTerminator(nil, nil)
	require.NoError(t, tr.Register("t1", nil, func([]PartialResult) { panic("boom") }))
	require.NoError(t, tr.UpdateProgress("t1", "s", 0.5, nil, true))
	require.NoError(t, tr.RequestTermination("t1", "stop"))

	tr.Wait() // must not crash the process
}

func TestTerminator_CompleteRemovesTask(t *testing.T) {
	tr := NewTerminator(nil, nil)
	require.NoError(t, tr.Register("t1", nil, nil))

	require.NoError(t, tr.Complete("t1", "done"))

	_, ok := tr.Status("t1")
	assert.False(t, ok)
	assert.Empty(t, tr.ListActive())
}

func TestTerminator_ListActiveOrdered(t *testing.T) {
	tr := NewTerminator(nil, nil)
	require.NoError(t, tr.Register("first", nil, nil))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, tr.Register("second", nil, nil))

	active := tr.ListActive()
	require.Len(t, active, 2)
	assert.Equal(t, "first", active[0].TaskID)
	assert.Equal(t, "second", active[1].TaskID)
}

// --- RunTerminable ---

func TestRunTerminable_CompletesAndCleansUp(t *testing.T) {
	tr := NewTerminator(nil, nil)

	result, err := tr.RunTerminable("summarize", func(tc *TaskContext) (any, error) {
		if tc.Checkpoint("working", 0.5, "half") {
			return "partial", nil
		}
		return "full", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "full", result)
	assert.Empty(t, tr.ListActive())
}

func TestRunTerminable_StopsAtCheckpoint(t *testing.T) {
	tr := NewTerminator(nil, nil)

	started := make(chan string, 1)
	release := make(chan struct{})

	done := make(chan struct{})
	var result any
	go func() {
		defer close(done)
		result, _ = tr.RunTerminable("research", func(tc *TaskContext) (any, error) {
			started <- tc.TaskID
			<-release
			if tc.Checkpoint("step1", 0.4, "notes so far") {
				return "aborted early", nil
			}
			return "finished", nil
		})
	}()

	taskID := <-started
	require.NoError(t, tr.RequestTermination(taskID, "user stop"))
	close(release)
	<-done

	assert.Equal(t, "aborted early", result)
	assert.Empty(t, tr.ListActive())
}

func TestRunTerminable_ErrorPathCleansUp(t *testing.T) {
	tr := NewTerminator(nil, nil)
	boom := errors.New("fetch failed")

	result, err := tr.RunTerminable("fetch", func(tc *TaskContext) (any, error) {
		tc.Progress("fetching", 0.2)
		return nil, boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Nil(t, result)
	assert.Empty(t, tr.ListActive())
}
