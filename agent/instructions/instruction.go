// Package instructions implements the dynamic-instruction subsystem: a
// thread-safe priority queue of user-submitted instructions targeting a
// crew or agent, typed effect handlers, and a background checker loop.
package instructions

import (
	"errors"
	"time"
)

// Type enumerates the seven known instruction kinds.
type Type string

const (
	TypeGuidance      Type = "guidance"
	TypeConstraint    Type = "constraint"
	TypeResource      Type = "resource"
	TypePivot         Type = "pivot"
	TypeFeedback      Type = "feedback"
	TypeEmergencyStop Type = "emergency_stop"
	TypeSkillBoost    Type = "skill_boost"
)

var knownTypes = map[Type]struct{}{
	TypeGuidance:      {},
	TypeConstraint:    {},
	TypeResource:      {},
	TypePivot:         {},
	TypeFeedback:      {},
	TypeEmergencyStop: {},
	TypeSkillBoost:    {},
}

// ValidType reports whether t names a known instruction type.
func ValidType(t Type) bool {
	_, ok := knownTypes[t]
	return ok
}

// TargetAll addresses an instruction to every crew and agent.
const TargetAll = "all"

// Priority bounds; 5 is critical.
const (
	MinPriority = 1
	MaxPriority = 5
)

// Validation errors.
var (
	ErrUnknownType     = errors.New("unknown instruction type")
	ErrInvalidPriority = errors.New("priority out of range")
	ErrNotFound        = errors.New("instruction not found")
)

// Instruction is one user-submitted dynamic instruction. Lifecycle:
// created -> queued -> processed; no instruction returns to an earlier
// state, and Response is fixed once Processed is set.
type Instruction struct {
	ID        string    `json:"instruction_id"`
	Timestamp time.Time `json:"timestamp"`
	Type      Type      `json:"instruction_type"`
	Content   string    `json:"content"`
	Target    string    `json:"target"`
	Priority  int       `json:"priority"`
	Processed bool      `json:"processed"`
	Response  string    `json:"response,omitempty"`
}
