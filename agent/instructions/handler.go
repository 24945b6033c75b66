package instructions

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/crewevolve/crewevolve/agent"
	"github.com/crewevolve/crewevolve/agent/crews"
	"github.com/crewevolve/crewevolve/internal/metrics"
)

// ProcessedInstruction reports the outcome of dispatching one instruction.
type ProcessedInstruction struct {
	InstructionID string         `json:"instruction_id"`
	Type          Type           `json:"instruction_type"`
	Result        map[string]any `json:"result,omitempty"`
	Error         string         `json:"error,omitempty"`
}

// BatchResult reports one processing batch for a crew.
type BatchResult struct {
	CrewID    string                 `json:"crew_id"`
	Processed []ProcessedInstruction `json:"processed_instructions"`
}

// Handler dispatches drained instructions to their type-specific effects.
type Handler struct {
	queue     *Queue
	collector *metrics.Collector
	logger    *zap.Logger
}

// NewHandler creates a handler over the queue. The collector may be nil.
func NewHandler(queue *Queue, collector *metrics.Collector, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		queue:     queue,
		collector: collector,
		logger:    logger.With(zap.String("component", "instruction_handler")),
	}
}

// Queue returns the handler's underlying queue.
func (h *Handler) Queue() *Queue { return h.queue }

// ProcessForCrew drains the crew's pending instructions and applies each
// effect. Emergency stops are handled out-of-band ahead of the
// priority-ordered remainder, so the stop flag is set before any other
// instruction in the batch runs. Per-instruction errors are recorded in the
// batch result and do not abort the batch.
func (h *Handler) ProcessForCrew(crew *crews.Crew) *BatchResult {
	batch := h.queue.Pending(crew.ID)
	result := &BatchResult{CrewID: crew.ID}

	ordered := make([]*Instruction, 0, len(batch))
	for _, instr := range batch {
		if instr.Type == TypeEmergencyStop {
			ordered = append(ordered, instr)
		}
	}
	for _, instr := range batch {
		if instr.Type != TypeEmergencyStop {
			ordered = append(ordered, instr)
		}
	}

	for _, instr := range ordered {
		effect, err := h.dispatch(instr, crew)
		h.collector.RecordInstructionProcessed(string(instr.Type), err)

		processed := ProcessedInstruction{InstructionID: instr.ID, Type: instr.Type}
		response := ""
		if err != nil {
			processed.Error = err.Error()
			response = fmt.Sprintf(`{"error":%q}`, err.Error())
			h.logger.Error("instruction handler failed",
				zap.String("id", instr.ID),
				zap.String("type", string(instr.Type)),
				zap.Error(err))
		} else {
			processed.Result = effect
			if data, marshalErr := json.Marshal(effect); marshalErr == nil {
				response = string(data)
			}
		}
		_ = h.queue.MarkProcessed(instr.ID, response)
		result.Processed = append(result.Processed, processed)
	}
	return result
}

func (h *Handler) dispatch(instr *Instruction, crew *crews.Crew) (map[string]any, error) {
	switch instr.Type {
	case TypeGuidance:
		return h.applyGuidance(instr, crew), nil
	case TypeConstraint:
		return h.applyConstraint(instr, crew), nil
	case TypeResource:
		return h.applyResource(instr, crew), nil
	case TypePivot:
		return h.applyPivot(instr, crew), nil
	case TypeFeedback:
		return h.applyFeedback(instr, crew), nil
	case TypeEmergencyStop:
		return h.applyEmergencyStop(instr, crew), nil
	case TypeSkillBoost:
		return h.applySkillBoost(instr, crew), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, instr.Type)
	}
}

func (h *Handler) applyGuidance(instr *Instruction, crew *crews.Crew) map[string]any {
	count := crew.AddGuidance(instr.Content, instr.Priority)
	agents := crew.Agents()
	for _, ag := range agents {
		ag.Memory.Record("user_guidance", map[string]any{"content": instr.Content})
	}
	return map[string]any{
		"guidance_count":  count,
		"agents_notified": len(agents),
	}
}

func (h *Handler) applyConstraint(instr *Instruction, crew *crews.Crew) map[string]any {
	total := crew.AddConstraint(instr.Content)
	return map[string]any{"constraint_count": total}
}

func (h *Handler) applyResource(instr *Instruction, crew *crews.Crew) map[string]any {
	total := crew.AddResource(instr.Content)
	for _, ag := range crew.Agents() {
		ag.Memory.Record("resource_provided", map[string]any{"resource": instr.Content})
	}
	return map[string]any{"resource_count": total}
}

func (h *Handler) applyPivot(instr *Instruction, crew *crews.Crew) map[string]any {
	record := crew.RecordPivot(instr.Content)
	for _, ag := range crew.Agents() {
		ag.Memory.Record("strategy_pivot", map[string]any{"new_direction": instr.Content})
	}
	return map[string]any{
		"old_strategy":  record.OldStrategy,
		"new_direction": record.NewDirection,
		"pivot_time":    record.PivotTime,
	}
}

var positiveKeywords = []string{"good", "great", "excellent", "perfect", "right"}

func (h *Handler) applyFeedback(instr *Instruction, crew *crews.Crew) map[string]any {
	crew.AddFeedback(instr.Content)
	positive := containsAny(strings.ToLower(instr.Content), positiveKeywords)
	for _, ag := range crew.Agents() {
		ag.Memory.Record("user_feedback", map[string]any{"content": instr.Content})
		if positive {
			ag.Memory.AddSuccessfulStrategy("approach_at_" + instr.Timestamp.Format("15:04"))
		}
	}
	return map[string]any{
		"acknowledged": true,
		"positive":     positive,
	}
}

func (h *Handler) applyEmergencyStop(instr *Instruction, crew *crews.Crew) map[string]any {
	crew.TriggerEmergencyStop(instr.Content)
	h.collector.RecordEmergencyStop()
	_, reason, stoppedAt := crew.EmergencyStopInfo()
	return map[string]any{
		"emergency_stop": true,
		"reason":         reason,
		"stopped_at":     stoppedAt,
	}
}

var firstInteger = regexp.MustCompile(`\d+`)

func (h *Handler) applySkillBoost(instr *Instruction, crew *crews.Crew) map[string]any {
	trait, duration, magnitude := parseSkillBoost(instr.Content)

	var affected []string
	for _, ag := range crew.Agents() {
		original, ok := ag.Traits.Get(trait)
		if !ok {
			continue
		}
		boosted := original + magnitude
		if boosted > 1.0 {
			boosted = 1.0
		}
		ag.Traits.Set(trait, boosted)
		ag.Memory.Record("skill_boost", map[string]any{
			"trait":          trait,
			"original":       original,
			"boosted":        boosted,
			"duration_tasks": duration,
		})
		affected = append(affected, ag.ID)
	}
	return map[string]any{
		"trait":           trait,
		"magnitude":       magnitude,
		"duration_tasks":  duration,
		"affected_agents": affected,
	}
}

// parseSkillBoost extracts the target trait, duration in tasks, and boost
// magnitude from free text.
func parseSkillBoost(content string) (trait string, duration int, magnitude float64) {
	lower := strings.ToLower(content)

	trait = agent.TraitAdaptable
	for _, name := range agent.TraitNames {
		if strings.Contains(lower, name) || strings.Contains(lower, strings.ReplaceAll(name, "_", " ")) {
			trait = name
			break
		}
	}

	duration = 1
	if match := firstInteger.FindString(lower); match != "" {
		if n, err := strconv.Atoi(match); err == nil {
			duration = n
		}
	}

	magnitude = 0.2
	switch {
	case strings.Contains(lower, "strong") || strings.Contains(lower, "major"):
		magnitude = 0.3
	case strings.Contains(lower, "slight") || strings.Contains(lower, "minor"):
		magnitude = 0.1
	}
	return trait, duration, magnitude
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
