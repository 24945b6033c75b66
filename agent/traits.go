// Package agent defines the evolving agent model: bounded personality
// traits, rolling performance metrics, and an append-only experience memory.
package agent

import (
	"sort"
	"sync"
	"time"
)

// Trait names form a fixed vocabulary. Every agent owns exactly one value
// per name.
const (
	TraitAnalytical    = "analytical"
	TraitCreative      = "creative"
	TraitCollaborative = "collaborative"
	TraitDecisive      = "decisive"
	TraitAdaptable     = "adaptable"
	TraitRiskTaking    = "risk_taking"
)

// TraitNames lists the known trait vocabulary in a stable order.
var TraitNames = []string{
	TraitAnalytical,
	TraitCreative,
	TraitCollaborative,
	TraitDecisive,
	TraitAdaptable,
	TraitRiskTaking,
}

// DefaultEvolutionRate is the default per-trait adjustment step size.
const DefaultEvolutionRate = 0.1

// PersonalityTrait is a single bounded personality dimension.
// Value is always within [0.0, 1.0].
type PersonalityTrait struct {
	Name          string    `json:"name"`
	Value         float64   `json:"value"`
	EvolutionRate float64   `json:"evolution_rate"`
	LastUpdated   time.Time `json:"last_updated"`
}

// TraitSet holds an agent's personality traits keyed by name.
// All mutations clamp the value into [0.0, 1.0].
type TraitSet struct {
	mu     sync.RWMutex
	traits map[string]*PersonalityTrait
}

// NewDefaultTraits builds the standard six-trait set. Every trait starts at
// 0.5 except risk_taking, which starts at 0.3.
func NewDefaultTraits() *TraitSet {
	now := time.Now()
	ts := &TraitSet{traits: make(map[string]*PersonalityTrait, len(TraitNames))}
	for _, name := range TraitNames {
		value := 0.5
		if name == TraitRiskTaking {
			value = 0.3
		}
		ts.traits[name] = &PersonalityTrait{
			Name:          name,
			Value:         value,
			EvolutionRate: DefaultEvolutionRate,
			LastUpdated:   now,
		}
	}
	return ts
}

// Get returns the current value of the named trait and whether it exists.
func (ts *TraitSet) Get(name string) (float64, bool) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	t, ok := ts.traits[name]
	if !ok {
		return 0, false
	}
	return t.Value, true
}

// Set assigns the named trait, clamped into [0.0, 1.0]. Unknown names are
// ignored and reported via the return value.
func (ts *TraitSet) Set(name string, value float64) bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	t, ok := ts.traits[name]
	if !ok {
		return false
	}
	t.Value = clamp01(value)
	t.LastUpdated = time.Now()
	return true
}

// Adjust shifts the named trait by delta, clamped into [0.0, 1.0], and
// returns the new value.
func (ts *TraitSet) Adjust(name string, delta float64) (float64, bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	t, ok := ts.traits[name]
	if !ok {
		return 0, false
	}
	t.Value = clamp01(t.Value + delta)
	t.LastUpdated = time.Now()
	return t.Value, true
}

// Values returns a copy of the current trait values keyed by name.
func (ts *TraitSet) Values() map[string]float64 {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	out := make(map[string]float64, len(ts.traits))
	for name, t := range ts.traits {
		out[name] = t.Value
	}
	return out
}

// Snapshot returns copies of the full trait records, sorted by name.
func (ts *TraitSet) Snapshot() []PersonalityTrait {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	out := make([]PersonalityTrait, 0, len(ts.traits))
	for _, t := range ts.traits {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Dominant returns trait names with value above the threshold.
func (ts *TraitSet) Dominant(threshold float64) []string {
	return ts.filter(func(v float64) bool { return v > threshold })
}

// Weak returns trait names with value below the threshold.
func (ts *TraitSet) Weak(threshold float64) []string {
	return ts.filter(func(v float64) bool { return v < threshold })
}

func (ts *TraitSet) filter(keep func(float64) bool) []string {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	var names []string
	for _, name := range TraitNames {
		if t, ok := ts.traits[name]; ok && keep(t.Value) {
			names = append(names, name)
		}
	}
	return names
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
