package termination

import (
	"fmt"
	"time"
)

// TaskContext is handed to a terminable function so it can report
// checkpoints and poll for termination without holding the registry.
type TaskContext struct {
	TaskID     string
	terminator *Terminator
}

// Checkpoint reports progress at a safe cancellation point and returns true
// when the work should stop. The caller is expected to return its partial
// results instead of continuing when this reports true.
func (tc *TaskContext) Checkpoint(step string, progress float64, partialResult any) bool {
	_ = tc.terminator.UpdateProgress(tc.TaskID, step, progress, partialResult, true)
	return tc.terminator.ShouldTerminate(tc.TaskID)
}

// Progress reports progress at a point where cancellation is not safe.
func (tc *TaskContext) Progress(step string, progress float64) {
	_ = tc.terminator.UpdateProgress(tc.TaskID, step, progress, nil, false)
}

// PartialResults returns what the task has reported so far.
func (tc *TaskContext) PartialResults() (*ResultsView, error) {
	return tc.terminator.PartialResults(tc.TaskID)
}

// RunTerminable wraps fn with registration and guaranteed cleanup: the task
// id derives from name plus a timestamp, "starting" is reported before fn
// runs, "completed" or "error" after, and the registry entry is removed on
// every exit path.
func (t *Terminator) RunTerminable(name string, fn func(tc *TaskContext) (any, error)) (result any, err error) {
	taskID := fmt.Sprintf("%s_%d", name, time.Now().UnixNano())
	if regErr := t.Register(taskID, map[string]any{"function": name}, nil); regErr != nil {
		return nil, regErr
	}
	defer func() {
		if err != nil {
			_ = t.UpdateProgress(taskID, "error", 1.0, err.Error(), false)
			_ = t.Complete(taskID, nil)
			return
		}
		_ = t.UpdateProgress(taskID, "completed", 1.0, nil, false)
		_ = t.Complete(taskID, result)
	}()

	_ = t.UpdateProgress(taskID, "starting", 0, nil, false)
	return fn(&TaskContext{TaskID: taskID, terminator: t})
}
