package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store implementation for development and
// testing.
type MemoryStore struct {
	mu        sync.RWMutex
	byAgent   map[string][]*EvolutionEvent
	all       []*EvolutionEvent
	snapshots map[string]*MemorySnapshot
	closed    bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byAgent:   make(map[string][]*EvolutionEvent),
		snapshots: make(map[string]*MemorySnapshot),
	}
}

// AppendEvent implements Store.
func (s *MemoryStore) AppendEvent(_ context.Context, event *EvolutionEvent) error {
	if event == nil || event.AgentID == "" {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	stored := *event
	s.byAgent[event.AgentID] = append(s.byAgent[event.AgentID], &stored)
	s.all = append(s.all, &stored)
	return nil
}

// EventsByAgent implements Store.
func (s *MemoryStore) EventsByAgent(_ context.Context, agentID string) ([]*EvolutionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	return copyEvents(s.byAgent[agentID]), nil
}

// AllEvents implements Store.
func (s *MemoryStore) AllEvents(_ context.Context) ([]*EvolutionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	return copyEvents(s.all), nil
}

// Stats implements Store.
func (s *MemoryStore) Stats(_ context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	return statsFromEvents(s.all), nil
}

// SaveMemorySnapshot implements Store.
func (s *MemoryStore) SaveMemorySnapshot(_ context.Context, snap *MemorySnapshot) error {
	if snap == nil || snap.AgentID == "" {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	stored := *snap
	if stored.TakenAt.IsZero() {
		stored.TakenAt = time.Now()
	}
	s.snapshots[snap.AgentID] = &stored
	return nil
}

// LoadMemorySnapshot implements Store.
func (s *MemoryStore) LoadMemorySnapshot(_ context.Context, agentID string) (*MemorySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	snap, ok := s.snapshots[agentID]
	if !ok {
		return nil, ErrNotFound
	}
	out := *snap
	return &out, nil
}

// Ping implements Store.
func (s *MemoryStore) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func copyEvents(events []*EvolutionEvent) []*EvolutionEvent {
	out := make([]*EvolutionEvent, len(events))
	for i, e := range events {
		stored := *e
		out[i] = &stored
	}
	return out
}
