package evolution

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/crewevolve/crewevolve/agent"
)

// AgentSource supplies the agents the monitor watches. Called once per
// cycle so crews can change membership between cycles.
type AgentSource func() []*agent.EvolvingAgent

// Monitor periodically analyzes evolution readiness for a set of agents and
// executes recommended evolutions, subject to the engine's rate limit.
type Monitor struct {
	engine   *Engine
	source   AgentSource
	interval time.Duration
	logger   *zap.Logger
}

// NewMonitor creates a monitor. A non-positive interval defaults to one
// minute.
func NewMonitor(engine *Engine, source AgentSource, interval time.Duration, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Monitor{
		engine:   engine,
		source:   source,
		interval: interval,
		logger:   logger.With(zap.String("component", "evolution_monitor")),
	}
}

// Run blocks until ctx is done, running one readiness sweep per interval.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("evolution monitor stopped")
			return
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

func (m *Monitor) sweep(ctx context.Context) {
	for _, ag := range m.source() {
		readiness := m.engine.AnalyzeReadiness(ag)
		if !readiness.ShouldEvolve {
			continue
		}
		if !m.engine.AllowEvolution() {
			m.logger.Debug("evolution rate limit reached, deferring",
				zap.String("agent_id", ag.ID))
			return
		}
		event, err := m.engine.ExecuteEvolution(ctx, ag, readiness.RecommendedStrategy, nil)
		if err != nil {
			m.logger.Error("evolution persisted with error",
				zap.String("agent_id", ag.ID),
				zap.Error(err))
			continue
		}
		m.logger.Info("autonomous evolution completed",
			zap.String("agent_id", ag.ID),
			zap.String("strategy", event.EvolutionType),
			zap.Bool("success", event.Success),
			zap.Float64("confidence", readiness.Confidence))
	}
}
