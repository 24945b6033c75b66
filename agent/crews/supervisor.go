package crews

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/crewevolve/crewevolve/agent/termination"
)

// ErrEmergencyStopped signals that a crew execution was aborted because the
// crew's emergency-stop flag was raised while work was in flight.
var ErrEmergencyStopped = errors.New("crew emergency stop")

// errTerminationRequested is the watcher-side signal for a cooperative
// termination request landing mid-execution.
var errTerminationRequested = errors.New("termination requested")

// RunFunc is a blocking crew execution (typically the framework's kickoff
// call). It must honor ctx cancellation.
type RunFunc func(ctx context.Context) (string, error)

// ExecutionResult is the structured outcome of one supervised execution.
type ExecutionResult struct {
	TaskID         string                      `json:"task_id"`
	Output         string                      `json:"output,omitempty"`
	Aborted        bool                        `json:"aborted"`
	AbortReason    string                      `json:"abort_reason,omitempty"`
	PartialResults []termination.PartialResult `json:"partial_results,omitempty"`
	Duration       time.Duration               `json:"duration"`
}

// Supervisor runs blocking crew work off the caller's flow. It registers
// every execution with the task terminator and watches the crew's
// emergency-stop flag: emergency stop is the one signal that actually
// interrupts in-flight work by cancelling the execution context.
type Supervisor struct {
	terminator   *termination.Terminator
	pollInterval time.Duration
	logger       *zap.Logger
	tracer       trace.Tracer
}

// NewSupervisor creates a supervisor polling the stop flag every 100ms.
func NewSupervisor(terminator *termination.Terminator, logger *zap.Logger) *Supervisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Supervisor{
		terminator:   terminator,
		pollInterval: 100 * time.Millisecond,
		logger:       logger.With(zap.String("component", "supervisor")),
		tracer:       otel.Tracer("crewevolve/crews"),
	}
}

// Execute runs one unit of crew work to completion, abort, or failure.
// An already-stopped crew never starts: the result reports the abort
// without invoking run. Abort by emergency stop or cooperative termination
// is a structured result, not an error.
func (s *Supervisor) Execute(ctx context.Context, crew *Crew, name string, run RunFunc) (*ExecutionResult, error) {
	taskID := fmt.Sprintf("%s_%d", name, time.Now().UnixNano())
	result := &ExecutionResult{TaskID: taskID}
	start := time.Now()

	if stopped, reason, _ := crew.EmergencyStopInfo(); stopped {
		result.Aborted = true
		result.AbortReason = fmt.Sprintf("emergency stop active: %s", reason)
		return result, nil
	}

	ctx, span := s.tracer.Start(ctx, "crew.execute",
		trace.WithAttributes(
			attribute.String("crew.id", crew.ID),
			attribute.String("task.id", taskID),
		))
	defer span.End()

	if err := s.terminator.Register(taskID, map[string]any{"crew_id": crew.ID}, nil); err != nil {
		return nil, fmt.Errorf("register execution: %w", err)
	}
	defer func() {
		if view, err := s.terminator.PartialResults(taskID); err == nil {
			result.PartialResults = view.PartialResults
		}
		_ = s.terminator.Complete(taskID, nil)
		result.Duration = time.Since(start)
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	var output string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(done)
		out, err := run(runCtx)
		output = out
		return err
	})
	g.Go(func() error {
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return nil
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if crew.EmergencyStopped() {
					cancel()
					return ErrEmergencyStopped
				}
				if s.terminator.ShouldTerminate(taskID) {
					cancel()
					return errTerminationRequested
				}
			}
		}
	})

	err := g.Wait()
	result.Output = output

	switch {
	case err == nil:
		return result, nil
	case errors.Is(err, ErrEmergencyStopped) || (errors.Is(err, context.Canceled) && crew.EmergencyStopped()):
		_, reason, _ := crew.EmergencyStopInfo()
		result.Aborted = true
		result.AbortReason = fmt.Sprintf("emergency stop: %s", reason)
		result.Output = ""
		s.logger.Warn("execution aborted by emergency stop",
			zap.String("crew_id", crew.ID),
			zap.String("task_id", taskID),
			zap.String("reason", reason))
		return result, nil
	case errors.Is(err, errTerminationRequested) || errors.Is(err, context.Canceled):
		result.Aborted = true
		result.AbortReason = "termination requested"
		result.Output = ""
		s.logger.Info("execution stopped cooperatively",
			zap.String("crew_id", crew.ID),
			zap.String("task_id", taskID))
		return result, nil
	default:
		return result, fmt.Errorf("crew execution: %w", err)
	}
}
