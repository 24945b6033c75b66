package evolution

import (
	"fmt"

	"github.com/crewevolve/crewevolve/agent"
)

// Strategy names an evolution mutation plan.
type Strategy string

const (
	StrategyPersonalityDrift        Strategy = "personality_drift"
	StrategyRoleSpecialization      Strategy = "role_specialization"
	StrategyRadicalTransformation   Strategy = "radical_transformation"
	StrategyCollaborativeAdaptation Strategy = "collaborative_adaptation"
)

// Profile carries a strategy's nominal success rate and risk class.
type Profile struct {
	SuccessRate float64 `json:"success_rate"`
	Risk        string  `json:"risk"`
}

var profiles = map[Strategy]Profile{
	StrategyPersonalityDrift:        {SuccessRate: 0.7, Risk: "low"},
	StrategyRoleSpecialization:      {SuccessRate: 0.6, Risk: "medium"},
	StrategyRadicalTransformation:   {SuccessRate: 0.4, Risk: "high"},
	StrategyCollaborativeAdaptation: {SuccessRate: 0.8, Risk: "low"},
}

// KnownStrategy reports whether s names a registered strategy.
func KnownStrategy(s Strategy) bool {
	_, ok := profiles[s]
	return ok
}

// StrategyProfile returns the nominal profile for a strategy.
func StrategyProfile(s Strategy) (Profile, bool) {
	p, ok := profiles[s]
	return p, ok
}

// dominantThreshold and weakThreshold classify behavioral patterns.
const (
	dominantThreshold = 0.7
	weakThreshold     = 0.3
)

// applyStrategy runs the named mutation against the agent and returns a
// structured diff of what changed.
func applyStrategy(ag *agent.EvolvingAgent, strategy Strategy) (map[string]any, error) {
	switch strategy {
	case StrategyPersonalityDrift:
		return applyPersonalityDrift(ag), nil
	case StrategyRoleSpecialization:
		return applyRoleSpecialization(ag), nil
	case StrategyRadicalTransformation:
		return applyRadicalTransformation(ag), nil
	case StrategyCollaborativeAdaptation:
		return applyCollaborativeAdaptation(ag), nil
	default:
		return nil, fmt.Errorf("unknown evolution strategy: %s", strategy)
	}
}

func applyPersonalityDrift(ag *agent.EvolvingAgent) map[string]any {
	changes := make(map[string]any)
	if ag.Metrics().SuccessRate < 0.6 {
		for _, name := range []string{agent.TraitAdaptable, agent.TraitCollaborative, agent.TraitAnalytical} {
			setTraitCapped(ag, changes, name, traitValue(ag, name)+0.15, 1.0)
		}
	}
	if v := traitValue(ag, agent.TraitRiskTaking); v > 0.7 {
		setTraitFloored(ag, changes, agent.TraitRiskTaking, v-0.1, 0.0)
	}
	return changes
}

func applyRoleSpecialization(ag *agent.EvolvingAgent) map[string]any {
	changes := make(map[string]any)
	dominant := make(map[string]bool)
	for _, name := range ag.Traits.Dominant(dominantThreshold) {
		dominant[name] = true
	}

	switch {
	case dominant[agent.TraitAnalytical]:
		setTraitCapped(ag, changes, agent.TraitAnalytical, 0.9, 1.0)
		setTraitFloored(ag, changes, agent.TraitCreative, traitValue(ag, agent.TraitCreative)-0.1, 0.2)
		changes["role"] = "data_analyst_specialist"
	case dominant[agent.TraitCreative]:
		setTraitCapped(ag, changes, agent.TraitCreative, 0.9, 1.0)
		setTraitFloored(ag, changes, agent.TraitAnalytical, traitValue(ag, agent.TraitAnalytical)-0.1, 0.2)
		changes["role"] = "creative_strategist"
	case dominant[agent.TraitCollaborative]:
		setTraitCapped(ag, changes, agent.TraitCollaborative, 0.9, 1.0)
		setTraitFloored(ag, changes, agent.TraitDecisive, traitValue(ag, agent.TraitDecisive)-0.1, 0.4)
		changes["role"] = "team_coordinator"
	}
	return changes
}

func applyRadicalTransformation(ag *agent.EvolvingAgent) map[string]any {
	changes := make(map[string]any)
	for name, value := range ag.Traits.Values() {
		switch {
		case value < 0.3:
			setTraitCapped(ag, changes, name, value+0.5, 0.8)
		case value > 0.8:
			setTraitFloored(ag, changes, name, value-0.3, 0.5)
		}
	}
	changes["role"] = "complete_personality_overhaul"
	return changes
}

func applyCollaborativeAdaptation(ag *agent.EvolvingAgent) map[string]any {
	changes := make(map[string]any)
	setTraitCapped(ag, changes, agent.TraitCollaborative, traitValue(ag, agent.TraitCollaborative)+0.2, 0.9)
	setTraitCapped(ag, changes, agent.TraitAdaptable, traitValue(ag, agent.TraitAdaptable)+0.15, 0.8)
	if v := traitValue(ag, agent.TraitRiskTaking); v > 0.6 {
		setTraitFloored(ag, changes, agent.TraitRiskTaking, v-0.1, 0.4)
	}
	return changes
}

func traitValue(ag *agent.EvolvingAgent, name string) float64 {
	v, _ := ag.Traits.Get(name)
	return v
}

func setTraitCapped(ag *agent.EvolvingAgent, changes map[string]any, name string, value, cap float64) {
	old := traitValue(ag, name)
	if value > cap {
		value = cap
	}
	ag.Traits.Set(name, value)
	recordChange(ag, changes, name, old)
}

func setTraitFloored(ag *agent.EvolvingAgent, changes map[string]any, name string, value, floor float64) {
	old := traitValue(ag, name)
	if value < floor {
		value = floor
	}
	ag.Traits.Set(name, value)
	recordChange(ag, changes, name, old)
}

func recordChange(ag *agent.EvolvingAgent, changes map[string]any, name string, old float64) {
	now := traitValue(ag, name)
	if now == old {
		return
	}
	changes[name] = map[string]any{"from": old, "to": now}
}
