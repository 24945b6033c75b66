package instructions

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crewevolve/crewevolve/internal/metrics"
)

// Queue is a thread-safe priority queue of dynamic instructions plus an
// id-indexed status table. One mutex guards both as a single critical
// section per operation, so concurrent producers never lose an instruction
// while the consumer loop drains.
type Queue struct {
	mu      sync.Mutex
	pending []*Instruction
	index   map[string]*Instruction

	collector *metrics.Collector
	logger    *zap.Logger
}

// NewQueue creates an empty queue. The collector may be nil.
func NewQueue(collector *metrics.Collector, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		index:     make(map[string]*Instruction),
		collector: collector,
		logger:    logger.With(zap.String("component", "instruction_queue")),
	}
}

// Add validates, enqueues, and registers a new instruction, returning its
// id. Enqueue and index registration happen under one lock.
func (q *Queue) Add(content string, instructionType Type, target string, priority int) (string, error) {
	if !ValidType(instructionType) {
		return "", ErrUnknownType
	}
	if priority < MinPriority || priority > MaxPriority {
		return "", ErrInvalidPriority
	}

	instr := &Instruction{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Type:      instructionType,
		Content:   content,
		Target:    target,
		Priority:  priority,
	}

	q.mu.Lock()
	q.pending = append(q.pending, instr)
	q.index[instr.ID] = instr
	depth := len(q.pending)
	q.mu.Unlock()

	q.collector.RecordInstructionEnqueued(string(instructionType))
	q.collector.SetQueueDepth(depth)
	q.logger.Debug("instruction enqueued",
		zap.String("id", instr.ID),
		zap.String("type", string(instructionType)),
		zap.String("target", target),
		zap.Int("priority", priority))
	return instr.ID, nil
}

// Pending drains every queued instruction, keeps those matching the target
// filter (exact match, TargetAll, or an empty target meaning everything),
// and returns them sorted by priority descending with stable ties.
//
// The drain is destructive regardless of filter: instructions fetched but
// not matching are dropped from the queue, though the id index still holds
// them. Callers are expected to drain once per target per polling cycle.
func (q *Queue) Pending(target string) []*Instruction {
	q.mu.Lock()
	drained := q.pending
	q.pending = nil
	q.mu.Unlock()

	q.collector.SetQueueDepth(0)

	var matched []*Instruction
	for _, instr := range drained {
		if target == "" || instr.Target == target || instr.Target == TargetAll {
			matched = append(matched, instr)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Priority > matched[j].Priority
	})
	return matched
}

// MarkProcessed transitions an instruction to processed with a fixed
// response. Processing is one-way: a second call reports ErrNotFound only
// for unknown ids and otherwise leaves the first response in place.
func (q *Queue) MarkProcessed(id, response string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	instr, ok := q.index[id]
	if !ok {
		return ErrNotFound
	}
	if instr.Processed {
		return nil
	}
	instr.Processed = true
	instr.Response = response
	return nil
}

// Status returns a copy of the instruction with the given id.
func (q *Queue) Status(id string) (*Instruction, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	instr, ok := q.index[id]
	if !ok {
		return nil, false
	}
	out := *instr
	return &out, true
}

// All returns copies of every known instruction sorted by timestamp
// descending. When crewID is non-empty, only instructions targeting that
// crew or "all" are included.
func (q *Queue) All(crewID string) []*Instruction {
	q.mu.Lock()
	out := make([]*Instruction, 0, len(q.index))
	for _, instr := range q.index {
		if crewID != "" && instr.Target != crewID && instr.Target != TargetAll {
			continue
		}
		cp := *instr
		out = append(out, &cp)
	}
	q.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// CleanupCrew removes every id-indexed record targeting the crew; used when
// a crew is torn down. Returns how many records were removed.
func (q *Queue) CleanupCrew(crewID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	removed := 0
	for id, instr := range q.index {
		if instr.Target == crewID {
			delete(q.index, id)
			removed++
		}
	}
	kept := q.pending[:0]
	for _, instr := range q.pending {
		if instr.Target != crewID {
			kept = append(kept, instr)
		}
	}
	q.pending = kept
	return removed
}

// Depth reports how many instructions are currently queued.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
