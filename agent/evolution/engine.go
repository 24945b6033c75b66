// Package evolution implements the autonomous evolution engine: readiness
// analysis, strategy selection, trait mutation, and an append-only audit
// trail of evolution events.
package evolution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/crewevolve/crewevolve/agent"
	"github.com/crewevolve/crewevolve/internal/metrics"
	"github.com/crewevolve/crewevolve/persistence"
)

// EngineConfig configures the evolution engine.
type EngineConfig struct {
	// EvolutionsPerMinute rate-limits autonomous evolution executions.
	EvolutionsPerMinute float64 `json:"evolutions_per_minute" yaml:"evolutions_per_minute"`
	// Burst is the rate limiter burst size.
	Burst int `json:"burst" yaml:"burst"`
}

// DefaultEngineConfig returns sensible defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		EvolutionsPerMinute: 6,
		Burst:               2,
	}
}

// Engine decides whether agents should evolve, executes strategy mutations,
// and persists the audit trail. Safe for concurrent use across different
// agents; callers serialize operations touching the same agent.
type Engine struct {
	config    EngineConfig
	store     persistence.Store
	collector *metrics.Collector
	logger    *zap.Logger
	tracer    trace.Tracer
	limiter   *rate.Limiter

	mu      sync.RWMutex
	history []*persistence.EvolutionEvent
}

// NewEngine creates an evolution engine. The collector may be nil.
func NewEngine(config EngineConfig, store persistence.Store, collector *metrics.Collector, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.EvolutionsPerMinute <= 0 {
		config.EvolutionsPerMinute = DefaultEngineConfig().EvolutionsPerMinute
	}
	if config.Burst <= 0 {
		config.Burst = DefaultEngineConfig().Burst
	}
	return &Engine{
		config:    config,
		store:     store,
		collector: collector,
		logger:    logger.With(zap.String("component", "evolution_engine")),
		tracer:    otel.Tracer("crewevolve/evolution"),
		limiter:   rate.NewLimiter(rate.Limit(config.EvolutionsPerMinute/60), config.Burst),
	}
}

// AllowEvolution consumes one rate-limiter token; the monitor calls this
// before executing an autonomous evolution.
func (e *Engine) AllowEvolution() bool {
	return e.limiter.Allow()
}

// ExecuteEvolution applies the strategy to the agent and records an
// EvolutionEvent. Mutation failures are converted into a failed event and do
// not propagate; storage failures do, alongside the event, since audit
// durability is a correctness property.
func (e *Engine) ExecuteEvolution(ctx context.Context, ag *agent.EvolvingAgent, strategy Strategy, params map[string]any) (*persistence.EvolutionEvent, error) {
	if ag == nil {
		return nil, fmt.Errorf("execute evolution: %w: nil agent", persistence.ErrInvalidInput)
	}
	if !KnownStrategy(strategy) {
		return nil, fmt.Errorf("execute evolution: unknown strategy %q", strategy)
	}

	ctx, span := e.tracer.Start(ctx, "evolution.execute",
		trace.WithAttributes(
			attribute.String("agent.id", ag.ID),
			attribute.String("evolution.strategy", string(strategy)),
		))
	defer span.End()

	start := time.Now()
	before := snapshotMetrics(ag)

	changes, mutErr := e.applySafely(ag, strategy, params)

	event := &persistence.EvolutionEvent{
		AgentID:           ag.ID,
		Timestamp:         time.Now(),
		EvolutionType:     string(strategy),
		PerformanceBefore: before,
		PerformanceAfter:  snapshotMetrics(ag),
		Success:           mutErr == nil,
		Changes:           changes,
	}

	if mutErr != nil {
		event.Changes = map[string]any{"error": mutErr.Error()}
		e.logger.Error("evolution strategy failed",
			zap.String("agent_id", ag.ID),
			zap.String("strategy", string(strategy)),
			zap.Error(mutErr))
	} else {
		cycle := ag.MarkEvolved()
		if role, ok := changes["role"].(string); ok && role != "" {
			ag.Role = role
		}
		ag.Memory.Record("evolution", map[string]any{
			"cycle":    cycle,
			"strategy": string(strategy),
		})
		e.logger.Info("evolution executed",
			zap.String("agent_id", ag.ID),
			zap.String("strategy", string(strategy)),
			zap.Int("cycle", cycle))
	}

	e.collector.RecordEvolution(string(strategy), event.Success, time.Since(start).Seconds())

	// In-memory history first so the running process keeps continuity even
	// when durable storage is unavailable.
	e.mu.Lock()
	e.history = append(e.history, event)
	e.mu.Unlock()

	if err := e.store.AppendEvent(ctx, event); err != nil {
		return event, fmt.Errorf("persist evolution event: %w", err)
	}

	if mutErr == nil {
		e.snapshotMemory(ctx, ag)
	}
	return event, nil
}

// applySafely runs the strategy mutation, converting panics into errors.
func (e *Engine) applySafely(ag *agent.EvolvingAgent, strategy Strategy, params map[string]any) (changes map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy mutation panicked: %v", r)
		}
	}()
	changes, err = applyStrategy(ag, strategy)
	if err != nil {
		return nil, err
	}
	for k, v := range params {
		changes["param_"+k] = v
	}
	return changes, nil
}

// snapshotMemory writes the latest-wins memory snapshot. Snapshot failures
// are logged, not fatal; the event append is the durability-critical write.
func (e *Engine) snapshotMemory(ctx context.Context, ag *agent.EvolvingAgent) {
	snap := &persistence.MemorySnapshot{
		AgentID: ag.ID,
		TakenAt: time.Now(),
		Data:    ag.Memory.Snapshot(),
	}
	if err := e.store.SaveMemorySnapshot(ctx, snap); err != nil {
		e.logger.Warn("memory snapshot failed", zap.String("agent_id", ag.ID), zap.Error(err))
	}
}

// History returns the in-process events for one agent, insertion-ordered.
func (e *Engine) History(agentID string) []*persistence.EvolutionEvent {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []*persistence.EvolutionEvent
	for _, ev := range e.history {
		if ev.AgentID == agentID {
			out = append(out, ev)
		}
	}
	return out
}

// AllHistory returns every in-process event, insertion-ordered.
func (e *Engine) AllHistory() []*persistence.EvolutionEvent {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*persistence.EvolutionEvent, len(e.history))
	copy(out, e.history)
	return out
}

// Stats returns aggregate statistics from durable storage.
func (e *Engine) Stats(ctx context.Context) (*persistence.Stats, error) {
	return e.store.Stats(ctx)
}

func snapshotMetrics(ag *agent.EvolvingAgent) persistence.PerformanceSnapshot {
	m := ag.Metrics()
	return persistence.PerformanceSnapshot{
		SuccessRate:        m.SuccessRate,
		TaskCompletionTime: m.TaskCompletionTime,
		CollaborationScore: m.CollaborationScore,
	}
}
