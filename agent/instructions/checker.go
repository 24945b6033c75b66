package instructions

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/crewevolve/crewevolve/agent/crews"
)

// Checker is the background consumer loop: it drains the queue for every
// registered crew on a fixed interval and applies instruction effects.
type Checker struct {
	handler  *Handler
	interval time.Duration
	logger   *zap.Logger

	mu    sync.RWMutex
	crews map[string]*crews.Crew
}

// NewChecker creates a checker. A non-positive interval defaults to 3s.
func NewChecker(handler *Handler, interval time.Duration, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &Checker{
		handler:  handler,
		interval: interval,
		logger:   logger.With(zap.String("component", "instruction_checker")),
		crews:    make(map[string]*crews.Crew),
	}
}

// RegisterCrew starts draining instructions for the crew.
func (c *Checker) RegisterCrew(crew *crews.Crew) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.crews[crew.ID] = crew
	c.logger.Info("crew registered", zap.String("crew_id", crew.ID))
}

// UnregisterCrew stops draining for the crew and removes its instruction
// records from the id index.
func (c *Checker) UnregisterCrew(crewID string) int {
	c.mu.Lock()
	delete(c.crews, crewID)
	c.mu.Unlock()
	removed := c.handler.Queue().CleanupCrew(crewID)
	c.logger.Info("crew unregistered",
		zap.String("crew_id", crewID),
		zap.Int("instructions_removed", removed))
	return removed
}

// Run blocks until ctx is done, processing one batch per crew per interval.
func (c *Checker) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("instruction checker stopped")
			return
		case <-ticker.C:
			c.drainAll()
		}
	}
}

func (c *Checker) drainAll() {
	c.mu.RLock()
	targets := make([]*crews.Crew, 0, len(c.crews))
	for _, crew := range c.crews {
		targets = append(targets, crew)
	}
	c.mu.RUnlock()

	for _, crew := range targets {
		batch := c.handler.ProcessForCrew(crew)
		if len(batch.Processed) > 0 {
			c.logger.Debug("instruction batch processed",
				zap.String("crew_id", crew.ID),
				zap.Int("count", len(batch.Processed)))
		}
	}
}
