// Package persistence provides durable storage for evolution audit events
// and per-agent memory snapshots.
//
// The evolution-events table is append-only and insertion-ordered per agent;
// memory snapshots are latest-wins per agent. Supported backends:
//   - Memory: development and testing (default)
//   - Gorm: relational storage (sqlite for single-node, postgres for production)
//   - Redis: distributed deployments
package persistence

import (
	"context"
	"errors"
	"time"
)

// Common errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrStoreClosed  = errors.New("store is closed")
	ErrInvalidInput = errors.New("invalid input")
)

// PerformanceSnapshot captures the headline metrics around an evolution.
type PerformanceSnapshot struct {
	SuccessRate        float64 `json:"success_rate"`
	TaskCompletionTime float64 `json:"task_completion_time"`
	CollaborationScore float64 `json:"collaboration_score"`
}

// EvolutionEvent is the immutable audit record of one executed evolution.
type EvolutionEvent struct {
	ID                string              `json:"id" gorm:"primaryKey;size:64"`
	AgentID           string              `json:"agent_id" gorm:"index;size:64"`
	Timestamp         time.Time           `json:"timestamp" gorm:"index"`
	EvolutionType     string              `json:"evolution_type" gorm:"size:64"`
	Changes           map[string]any      `json:"changes" gorm:"serializer:json"`
	PerformanceBefore PerformanceSnapshot `json:"performance_before" gorm:"serializer:json"`
	PerformanceAfter  PerformanceSnapshot `json:"performance_after" gorm:"serializer:json"`
	Success           bool                `json:"success"`
}

// TableName sets the gorm table name.
func (EvolutionEvent) TableName() string { return "evolution_events" }

// MemorySnapshot is the latest-wins durable view of one agent's memory.
type MemorySnapshot struct {
	AgentID string         `json:"agent_id" gorm:"primaryKey;size:64"`
	TakenAt time.Time      `json:"taken_at"`
	Data    map[string]any `json:"data" gorm:"serializer:json"`
}

// TableName sets the gorm table name.
func (MemorySnapshot) TableName() string { return "agent_memory_snapshots" }

// StrategyStats aggregates event counts for one strategy.
type StrategyStats struct {
	Total       int     `json:"total"`
	Successful  int     `json:"successful"`
	SuccessRate float64 `json:"success_rate"`
}

// Stats aggregates the whole event log.
type Stats struct {
	TotalEvents      int                      `json:"total_events"`
	SuccessfulEvents int                      `json:"successful_events"`
	ByStrategy       map[string]StrategyStats `json:"by_strategy"`
	DistinctAgents   int                      `json:"distinct_agents"`
}

// Store is the persistence contract the evolution engine writes through.
// AppendEvent failures must surface to the caller: audit durability is a
// correctness property, not best-effort.
type Store interface {
	// AppendEvent persists one evolution event. The event id is assigned if
	// empty. Events are insertion-ordered per agent.
	AppendEvent(ctx context.Context, event *EvolutionEvent) error

	// EventsByAgent returns all events for one agent in insertion order.
	EventsByAgent(ctx context.Context, agentID string) ([]*EvolutionEvent, error)

	// AllEvents returns every event ordered by timestamp.
	AllEvents(ctx context.Context) ([]*EvolutionEvent, error)

	// Stats derives aggregate counts over the full event log.
	Stats(ctx context.Context) (*Stats, error)

	// SaveMemorySnapshot upserts an agent's memory snapshot (latest wins).
	SaveMemorySnapshot(ctx context.Context, snap *MemorySnapshot) error

	// LoadMemorySnapshot returns the latest snapshot for an agent, or
	// ErrNotFound.
	LoadMemorySnapshot(ctx context.Context, agentID string) (*MemorySnapshot, error)

	// Ping checks backend health.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// statsFromEvents derives Stats from a full event listing. Shared by the
// backends that have no native aggregation.
func statsFromEvents(events []*EvolutionEvent) *Stats {
	stats := &Stats{ByStrategy: make(map[string]StrategyStats)}
	agents := make(map[string]struct{})
	for _, e := range events {
		stats.TotalEvents++
		if e.Success {
			stats.SuccessfulEvents++
		}
		s := stats.ByStrategy[e.EvolutionType]
		s.Total++
		if e.Success {
			s.Successful++
		}
		stats.ByStrategy[e.EvolutionType] = s
		agents[e.AgentID] = struct{}{}
	}
	for name, s := range stats.ByStrategy {
		if s.Total > 0 {
			s.SuccessRate = float64(s.Successful) / float64(s.Total)
		}
		stats.ByStrategy[name] = s
	}
	stats.DistinctAgents = len(agents)
	return stats
}
