// Package crews holds the crew-level aggregate state the dynamic-instruction
// handlers and the capability assessor operate on, plus the execution
// supervisor that runs blocking crew work under cooperative cancellation.
package crews

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/crewevolve/crewevolve/agent"
)

// GuidanceNote is one entry in the crew's guidance log.
type GuidanceNote struct {
	Content   string    `json:"content"`
	Priority  int       `json:"priority"`
	Timestamp time.Time `json:"timestamp"`
}

// Constraint is one active constraint on the crew.
type Constraint struct {
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Resource is one dynamically provided resource.
type Resource struct {
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// PivotRecord captures one strategy pivot.
type PivotRecord struct {
	OldStrategy  string    `json:"old_strategy"`
	NewDirection string    `json:"new_direction"`
	PivotTime    time.Time `json:"pivot_time"`
}

// FeedbackNote is one entry in the crew's user-feedback log.
type FeedbackNote struct {
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Crew coordinates a set of evolving agents and carries the aggregate state
// instruction effects accumulate into. Every field exists from construction
// with a defined empty default; there is no create-on-first-write.
type Crew struct {
	ID   string
	Name string

	logger *zap.Logger

	mu              sync.RWMutex
	agents          []*agent.EvolvingAgent
	autonomyLevel   float64
	currentStrategy string
	guidance        []GuidanceNote
	constraints     []Constraint
	resources       []Resource
	pivots          []PivotRecord
	feedback        []FeedbackNote

	emergencyStop bool
	stopReason    string
	stoppedAt     time.Time
}

// NewCrew creates an empty crew.
func NewCrew(name string, logger *zap.Logger) *Crew {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crew{
		ID:     fmt.Sprintf("crew_%d", time.Now().UnixNano()),
		Name:   name,
		logger: logger.With(zap.String("component", "crew"), zap.String("crew", name)),
	}
}

// AddAgent appends an agent reference. The crew coordinates over shared
// references; it does not own agent identity.
func (c *Crew) AddAgent(ag *agent.EvolvingAgent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.agents = append(c.agents, ag)
	c.logger.Info("agent added", zap.String("agent_id", ag.ID), zap.String("name", ag.Name))
}

// Agents returns a copy of the agent reference list.
func (c *Crew) Agents() []*agent.EvolvingAgent {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*agent.EvolvingAgent, len(c.agents))
	copy(out, c.agents)
	return out
}

// AgentByID finds an agent by id.
func (c *Crew) AgentByID(id string) (*agent.EvolvingAgent, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, ag := range c.agents {
		if ag.ID == id {
			return ag, true
		}
	}
	return nil, false
}

// AutonomyLevel returns how readily the crew acts on its own assessment.
func (c *Crew) AutonomyLevel() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.autonomyLevel
}

// SetAutonomyLevel sets the autonomy level, clamped into [0,1].
func (c *Crew) SetAutonomyLevel(level float64) {
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autonomyLevel = level
}

// CurrentStrategy returns the crew's current strategy label.
func (c *Crew) CurrentStrategy() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentStrategy
}

// AddGuidance appends to the guidance log and returns the new length.
func (c *Crew) AddGuidance(content string, priority int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.guidance = append(c.guidance, GuidanceNote{
		Content:   content,
		Priority:  priority,
		Timestamp: time.Now(),
	})
	return len(c.guidance)
}

// Guidance returns a copy of the guidance log.
func (c *Crew) Guidance() []GuidanceNote {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]GuidanceNote, len(c.guidance))
	copy(out, c.guidance)
	return out
}

// AddConstraint appends an active constraint and returns the total count.
func (c *Crew) AddConstraint(content string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.constraints = append(c.constraints, Constraint{Content: content, Timestamp: time.Now()})
	return len(c.constraints)
}

// Constraints returns a copy of the active constraints.
func (c *Crew) Constraints() []Constraint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Constraint, len(c.constraints))
	copy(out, c.constraints)
	return out
}

// AddResource appends a dynamic resource and returns the total count.
func (c *Crew) AddResource(content string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resources = append(c.resources, Resource{Content: content, Timestamp: time.Now()})
	return len(c.resources)
}

// Resources returns a copy of the dynamic resources.
func (c *Crew) Resources() []Resource {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Resource, len(c.resources))
	copy(out, c.resources)
	return out
}

// RecordPivot appends a pivot record and overwrites the current strategy
// with the new direction.
func (c *Crew) RecordPivot(newDirection string) PivotRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	record := PivotRecord{
		OldStrategy:  c.currentStrategy,
		NewDirection: newDirection,
		PivotTime:    time.Now(),
	}
	c.pivots = append(c.pivots, record)
	c.currentStrategy = newDirection
	c.logger.Info("strategy pivot",
		zap.String("old", record.OldStrategy),
		zap.String("new", newDirection))
	return record
}

// Pivots returns a copy of the pivot history.
func (c *Crew) Pivots() []PivotRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]PivotRecord, len(c.pivots))
	copy(out, c.pivots)
	return out
}

// AddFeedback appends to the user-feedback log and returns the new length.
func (c *Crew) AddFeedback(content string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.feedback = append(c.feedback, FeedbackNote{Content: content, Timestamp: time.Now()})
	return len(c.feedback)
}

// Feedback returns a copy of the user-feedback log.
func (c *Crew) Feedback() []FeedbackNote {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]FeedbackNote, len(c.feedback))
	copy(out, c.feedback)
	return out
}

// TriggerEmergencyStop raises the emergency-stop flag. The execution
// supervisor observes the flag and aborts in-flight work.
func (c *Crew) TriggerEmergencyStop(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emergencyStop = true
	c.stopReason = reason
	c.stoppedAt = time.Now()
	c.logger.Warn("emergency stop triggered", zap.String("reason", reason))
}

// EmergencyStopped reports whether the emergency-stop flag is set.
func (c *Crew) EmergencyStopped() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.emergencyStop
}

// EmergencyStopInfo returns the stop flag, reason, and timestamp.
func (c *Crew) EmergencyStopInfo() (bool, string, time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.emergencyStop, c.stopReason, c.stoppedAt
}

// Snapshot returns a read-only JSON-serializable view for monitoring.
func (c *Crew) Snapshot() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	agents := make([]map[string]any, 0, len(c.agents))
	for _, ag := range c.agents {
		agents = append(agents, map[string]any{
			"agent_id":         ag.ID,
			"name":             ag.Name,
			"role":             ag.Role,
			"traits":           ag.Traits.Values(),
			"evolution_cycles": ag.EvolutionCycles(),
			"tasks_completed":  ag.TasksCompleted(),
		})
	}
	return map[string]any{
		"crew_id":          c.ID,
		"name":             c.Name,
		"agents":           agents,
		"autonomy_level":   c.autonomyLevel,
		"current_strategy": c.currentStrategy,
		"guidance_count":   len(c.guidance),
		"constraints":      len(c.constraints),
		"resources":        len(c.resources),
		"pivots":           len(c.pivots),
		"feedback_count":   len(c.feedback),
		"emergency_stop":   c.emergencyStop,
		"stop_reason":      c.stopReason,
	}
}
