package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// GormStore is a relational Store implementation on top of gorm. It works
// with any dialector; the factory wires sqlite (single-node) and postgres
// (production).
type GormStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewGormStore wraps an open gorm handle and migrates the event and
// snapshot tables.
func NewGormStore(db *gorm.DB, logger *zap.Logger) (*GormStore, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm store: %w: nil db", ErrInvalidInput)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := db.AutoMigrate(&EvolutionEvent{}, &MemorySnapshot{}); err != nil {
		return nil, fmt.Errorf("migrate evolution tables: %w", err)
	}
	return &GormStore{
		db:     db,
		logger: logger.With(zap.String("component", "gorm_store")),
	}, nil
}

// AppendEvent implements Store.
func (s *GormStore) AppendEvent(ctx context.Context, event *EvolutionEvent) error {
	if event == nil || event.AgentID == "" {
		return ErrInvalidInput
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("append evolution event: %w", err)
	}
	return nil
}

// EventsByAgent implements Store.
func (s *GormStore) EventsByAgent(ctx context.Context, agentID string) ([]*EvolutionEvent, error) {
	var events []*EvolutionEvent
	err := s.db.WithContext(ctx).
		Where("agent_id = ?", agentID).
		Order("timestamp asc").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("query events by agent: %w", err)
	}
	return events, nil
}

// AllEvents implements Store.
func (s *GormStore) AllEvents(ctx context.Context) ([]*EvolutionEvent, error) {
	var events []*EvolutionEvent
	err := s.db.WithContext(ctx).Order("timestamp asc").Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("query all events: %w", err)
	}
	return events, nil
}

// Stats implements Store. Aggregation runs in SQL rather than loading the
// full log.
func (s *GormStore) Stats(ctx context.Context) (*Stats, error) {
	type row struct {
		EvolutionType string
		Success       bool
		Count         int
	}
	var rows []row
	err := s.db.WithContext(ctx).
		Model(&EvolutionEvent{}).
		Select("evolution_type, success, count(*) as count").
		Group("evolution_type, success").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("aggregate events: %w", err)
	}

	stats := &Stats{ByStrategy: make(map[string]StrategyStats)}
	for _, r := range rows {
		stats.TotalEvents += r.Count
		strat := stats.ByStrategy[r.EvolutionType]
		strat.Total += r.Count
		if r.Success {
			stats.SuccessfulEvents += r.Count
			strat.Successful += r.Count
		}
		stats.ByStrategy[r.EvolutionType] = strat
	}
	for name, strat := range stats.ByStrategy {
		if strat.Total > 0 {
			strat.SuccessRate = float64(strat.Successful) / float64(strat.Total)
		}
		stats.ByStrategy[name] = strat
	}

	var distinct int64
	err = s.db.WithContext(ctx).
		Model(&EvolutionEvent{}).
		Distinct("agent_id").
		Count(&distinct).Error
	if err != nil {
		return nil, fmt.Errorf("count distinct agents: %w", err)
	}
	stats.DistinctAgents = int(distinct)
	return stats, nil
}

// SaveMemorySnapshot implements Store (upsert, latest wins).
func (s *GormStore) SaveMemorySnapshot(ctx context.Context, snap *MemorySnapshot) error {
	if snap == nil || snap.AgentID == "" {
		return ErrInvalidInput
	}
	stored := *snap
	if stored.TakenAt.IsZero() {
		stored.TakenAt = time.Now()
	}
	err := s.db.WithContext(ctx).Save(&stored).Error
	if err != nil {
		return fmt.Errorf("save memory snapshot: %w", err)
	}
	return nil
}

// LoadMemorySnapshot implements Store.
func (s *GormStore) LoadMemorySnapshot(ctx context.Context, agentID string) (*MemorySnapshot, error) {
	var snap MemorySnapshot
	err := s.db.WithContext(ctx).First(&snap, "agent_id = ?", agentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load memory snapshot: %w", err)
	}
	return &snap, nil
}

// Ping implements Store.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close implements Store.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
