package agent

import (
	"sync"
	"time"
)

// Experience is a single append-only memory entry.
type Experience struct {
	Event     string         `json:"event"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Memory is an agent's experience log plus derived strategy lists and
// learned pattern scores. Experiences are append-only; the derived lists
// only grow. Each Memory is owned by exactly one agent.
type Memory struct {
	mu sync.RWMutex

	agentID              string
	experiences          []Experience
	learnedPatterns      map[string]float64
	successfulStrategies []string
	failedApproaches     []string
	createdAt            time.Time
	lastAccessed         time.Time
}

// NewMemory creates an empty memory for the given agent.
func NewMemory(agentID string) *Memory {
	now := time.Now()
	return &Memory{
		agentID:         agentID,
		learnedPatterns: make(map[string]float64),
		createdAt:       now,
		lastAccessed:    now,
	}
}

// AgentID returns the owning agent's id.
func (m *Memory) AgentID() string { return m.agentID }

// Record appends an experience entry.
func (m *Memory) Record(event string, details map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.experiences = append(m.experiences, Experience{
		Event:     event,
		Details:   details,
		Timestamp: time.Now(),
	})
	m.lastAccessed = time.Now()
}

// AddSuccessfulStrategy appends a strategy label to the success list.
func (m *Memory) AddSuccessfulStrategy(label string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.successfulStrategies = append(m.successfulStrategies, label)
	m.lastAccessed = time.Now()
}

// AddFailedApproach appends a strategy label to the failure list.
func (m *Memory) AddFailedApproach(label string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failedApproaches = append(m.failedApproaches, label)
	m.lastAccessed = time.Now()
}

// LearnPattern records or overwrites a context score.
func (m *Memory) LearnPattern(context string, score float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.learnedPatterns[context] = score
	m.lastAccessed = time.Now()
}

// Experiences returns a copy of the experience log in insertion order.
func (m *Memory) Experiences() []Experience {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Experience, len(m.experiences))
	copy(out, m.experiences)
	return out
}

// SuccessfulStrategies returns a copy of the success list.
func (m *Memory) SuccessfulStrategies() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.successfulStrategies))
	copy(out, m.successfulStrategies)
	return out
}

// FailedApproaches returns a copy of the failure list.
func (m *Memory) FailedApproaches() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.failedApproaches))
	copy(out, m.failedApproaches)
	return out
}

// FailedApproachCount reports how many failed approaches are recorded.
func (m *Memory) FailedApproachCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.failedApproaches)
}

// LearnedPatterns returns a copy of the pattern score map.
func (m *Memory) LearnedPatterns() map[string]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]float64, len(m.learnedPatterns))
	for k, v := range m.learnedPatterns {
		out[k] = v
	}
	return out
}

// RecentSuccesses returns up to n of the most recent successful strategies,
// oldest first.
func (m *Memory) RecentSuccesses(n int) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return tail(m.successfulStrategies, n)
}

// RecentFailures returns up to n of the most recent failed approaches,
// oldest first.
func (m *Memory) RecentFailures(n int) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return tail(m.failedApproaches, n)
}

// Snapshot returns a JSON-serializable view of the whole memory, used for
// durable latest-wins snapshots.
func (m *Memory) Snapshot() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	experiences := make([]Experience, len(m.experiences))
	copy(experiences, m.experiences)
	patterns := make(map[string]float64, len(m.learnedPatterns))
	for k, v := range m.learnedPatterns {
		patterns[k] = v
	}
	return map[string]any{
		"agent_id":              m.agentID,
		"experiences":           experiences,
		"learned_patterns":      patterns,
		"successful_strategies": append([]string(nil), m.successfulStrategies...),
		"failed_approaches":     append([]string(nil), m.failedApproaches...),
		"created_at":            m.createdAt,
		"last_accessed":         m.lastAccessed,
	}
}

func tail(s []string, n int) []string {
	if n <= 0 || len(s) == 0 {
		return nil
	}
	if len(s) < n {
		n = len(s)
	}
	out := make([]string, n)
	copy(out, s[len(s)-n:])
	return out
}
