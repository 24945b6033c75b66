// Package termination replaces hard timeouts with cooperative, checkpointed
// cancellation. A unit of work registers itself, reports progress at safe
// checkpoints, and polls ShouldTerminate; termination requests never kill
// the work, they set a flag and preserve partial results for the caller.
package termination

import (
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/crewevolve/crewevolve/internal/metrics"
)

// Common errors.
var (
	ErrTaskNotFound = errors.New("task not found")
	ErrTaskExists   = errors.New("task already registered")
)

// PartialResult is one checkpointed intermediate result.
type PartialResult struct {
	Step      string    `json:"step"`
	Result    any       `json:"result"`
	Timestamp time.Time `json:"timestamp"`
}

// Record tracks one long-running unit of work.
type Record struct {
	TaskID               string          `json:"task_id"`
	Context              map[string]any  `json:"context,omitempty"`
	StartTime            time.Time       `json:"start_time"`
	CurrentStep          string          `json:"current_step"`
	Progress             float64         `json:"progress"`
	CanTerminate         bool            `json:"can_terminate"`
	TerminationRequested bool            `json:"termination_requested"`
	TerminationReason    string          `json:"termination_reason,omitempty"`
	PartialResults       []PartialResult `json:"partial_results"`
}

// ResultsView is the caller-facing snapshot of a task's partial progress.
type ResultsView struct {
	TaskID            string          `json:"task_id"`
	Progress          float64         `json:"progress"`
	CurrentStep       string          `json:"current_step"`
	PartialResults    []PartialResult `json:"partial_results"`
	ExecutionTime     time.Duration   `json:"execution_time"`
	TerminationReason string          `json:"termination_reason,omitempty"`
}

// CompletionCallback receives the partial results collected so far when a
// termination request lands on a task at a safe checkpoint. Best-effort
// notification, invoked off the caller's goroutine.
type CompletionCallback func(partial []PartialResult)

// Terminator is the cooperative-cancellation registry.
type Terminator struct {
	mu        sync.Mutex
	tasks     map[string]*Record
	callbacks map[string]CompletionCallback
	wg        sync.WaitGroup

	collector *metrics.Collector
	logger    *zap.Logger
}

// NewTerminator creates an empty registry. The collector may be nil.
func NewTerminator(collector *metrics.Collector, logger *zap.Logger) *Terminator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Terminator{
		tasks:     make(map[string]*Record),
		callbacks: make(map[string]CompletionCallback),
		collector: collector,
		logger:    logger.With(zap.String("component", "terminator")),
	}
}

// Register creates a record for a new unit of work. The record starts with
// zero progress and is not terminable until the first checkpoint says so.
func (t *Terminator) Register(taskID string, context map[string]any, callback CompletionCallback) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.tasks[taskID]; exists {
		return ErrTaskExists
	}
	t.tasks[taskID] = &Record{
		TaskID:    taskID,
		Context:   context,
		StartTime: time.Now(),
	}
	if callback != nil {
		t.callbacks[taskID] = callback
	}
	t.collector.TaskStarted()
	t.logger.Debug("task registered", zap.String("task_id", taskID))
	return nil
}

// UpdateProgress advances the task's step, progress, and terminability flag.
// A non-nil partialResult is appended to the partial-results list. This is
// the only way progress moves forward.
func (t *Terminator) UpdateProgress(taskID, step string, progress float64, partialResult any, canTerminate bool) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.tasks[taskID]
	if !ok {
		return ErrTaskNotFound
	}
	rec.CurrentStep = step
	rec.Progress = progress
	rec.CanTerminate = canTerminate
	if partialResult != nil {
		rec.PartialResults = append(rec.PartialResults, PartialResult{
			Step:      step,
			Result:    partialResult,
			Timestamp: time.Now(),
		})
	}
	return nil
}

// RequestTermination records a termination request. If the task is currently
// at a safe checkpoint and a completion callback was registered, the
// callback fires asynchronously with the partial results collected so far.
func (t *Terminator) RequestTermination(taskID, reason string) error {
	t.mu.Lock()
	rec, ok := t.tasks[taskID]
	if !ok {
		t.mu.Unlock()
		return ErrTaskNotFound
	}
	rec.TerminationRequested = true
	rec.TerminationReason = reason
	callback := t.callbacks[taskID]
	fire := rec.CanTerminate && callback != nil
	var partial []PartialResult
	if fire {
		partial = append(partial, rec.PartialResults...)
	}
	t.mu.Unlock()

	t.logger.Info("termination requested",
		zap.String("task_id", taskID),
		zap.String("reason", reason),
		zap.Bool("at_safe_checkpoint", fire))

	if fire {
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					t.logger.Error("completion callback panicked",
						zap.String("task_id", taskID),
						zap.Any("panic", r))
				}
			}()
			callback(partial)
		}()
	}
	return nil
}

// ShouldTerminate reports true only when termination has been requested and
// the task is at a safe checkpoint. Unknown task ids report false.
func (t *Terminator) ShouldTerminate(taskID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.tasks[taskID]
	return ok && rec.TerminationRequested && rec.CanTerminate
}

// PartialResults returns the task's current partial progress.
func (t *Terminator) PartialResults(taskID string) (*ResultsView, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}
	partial := make([]PartialResult, len(rec.PartialResults))
	copy(partial, rec.PartialResults)
	return &ResultsView{
		TaskID:            rec.TaskID,
		Progress:          rec.Progress,
		CurrentStep:       rec.CurrentStep,
		PartialResults:    partial,
		ExecutionTime:     time.Since(rec.StartTime),
		TerminationReason: rec.TerminationReason,
	}, nil
}

// Complete appends an optional final result and removes the task from the
// live registry. Tasks are not retained after completion.
func (t *Terminator) Complete(taskID string, finalResult any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.tasks[taskID]
	if !ok {
		return ErrTaskNotFound
	}
	if finalResult != nil {
		rec.PartialResults = append(rec.PartialResults, PartialResult{
			Step:      "final",
			Result:    finalResult,
			Timestamp: time.Now(),
		})
	}
	delete(t.tasks, taskID)
	delete(t.callbacks, taskID)
	t.collector.TaskFinished()
	t.logger.Debug("task completed", zap.String("task_id", taskID))
	return nil
}

// Status returns a copy of the task record for monitoring.
func (t *Terminator) Status(taskID string) (*Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.tasks[taskID]
	if !ok {
		return nil, false
	}
	out := *rec
	out.PartialResults = make([]PartialResult, len(rec.PartialResults))
	copy(out.PartialResults, rec.PartialResults)
	return &out, true
}

// ListActive returns copies of all live task records, ordered by start time.
func (t *Terminator) ListActive() []*Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Record, 0, len(t.tasks))
	for _, rec := range t.tasks {
		cp := *rec
		cp.PartialResults = make([]PartialResult, len(rec.PartialResults))
		copy(cp.PartialResults, rec.PartialResults)
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

// Wait blocks until all in-flight completion callbacks have returned.
func (t *Terminator) Wait() {
	t.wg.Wait()
}
