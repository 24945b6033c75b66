package agent

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EvolvingAgent wraps an opaque framework agent handle with the identity,
// traits, memory, and metrics the evolution subsystem manages. The handle is
// never mutated here; everything this package owns lives in explicit fields.
type EvolvingAgent struct {
	ID        string
	Name      string
	Role      string
	BirthDate time.Time

	// Handle is the underlying framework agent, opaque to this core.
	Handle any
	// Tools lists the tool names available to the underlying agent.
	Tools []string

	Traits *TraitSet
	Memory *Memory

	mu              sync.RWMutex
	metrics         EvolutionMetrics
	tasksCompleted  int
	evolutionCycles int
	lastEvolution   time.Time
}

// New creates an agent with default traits and an empty memory.
func New(name string) *EvolvingAgent {
	id := uuid.NewString()
	return &EvolvingAgent{
		ID:        id,
		Name:      name,
		BirthDate: time.Now(),
		Traits:    NewDefaultTraits(),
		Memory:    NewMemory(id),
	}
}

// WeeksActive returns the agent's age in whole weeks.
func (a *EvolvingAgent) WeeksActive() int {
	return int(time.Since(a.BirthDate).Hours() / (24 * 7))
}

// Metrics returns a copy of the current performance metrics.
func (a *EvolvingAgent) Metrics() EvolutionMetrics {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.metrics
}

// SetMetrics replaces the performance metrics. Called by the task-execution
// collaborator after a unit of work completes.
func (a *EvolvingAgent) SetMetrics(m EvolutionMetrics) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.metrics = m
}

// TasksCompleted returns the completed-task counter.
func (a *EvolvingAgent) TasksCompleted() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.tasksCompleted
}

// RecordTaskCompleted bumps the completed-task counter.
func (a *EvolvingAgent) RecordTaskCompleted() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tasksCompleted++
}

// EvolutionCycles returns how many evolutions the agent has gone through.
func (a *EvolvingAgent) EvolutionCycles() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.evolutionCycles
}

// LastEvolution returns the timestamp of the most recent evolution, zero if
// the agent has never evolved.
func (a *EvolvingAgent) LastEvolution() time.Time {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastEvolution
}

// MarkEvolved increments the evolution cycle counter, advances the
// last-evolution timestamp, and returns the new cycle number. The counter
// only increases and the timestamp only moves forward.
func (a *EvolvingAgent) MarkEvolved() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.evolutionCycles++
	now := time.Now()
	if now.After(a.lastEvolution) {
		a.lastEvolution = now
	}
	return a.evolutionCycles
}

// HasTools reports whether the agent has at least one tool attached.
func (a *EvolvingAgent) HasTools() bool {
	return len(a.Tools) > 0
}
