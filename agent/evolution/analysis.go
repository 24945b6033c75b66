package evolution

import (
	"fmt"

	"github.com/crewevolve/crewevolve/agent"
)

// Collaboration styles derived from the collaborative trait.
const (
	StyleHighlyCollaborative     = "highly_collaborative"
	StyleIndependent             = "independent"
	StyleModeratelyCollaborative = "moderately_collaborative"
)

// Patterns classifies an agent's current behavior.
type Patterns struct {
	DominantTraits     []string `json:"dominant_traits"`
	WeakTraits         []string `json:"weak_traits"`
	RecentSuccesses    []string `json:"recent_successes"`
	RecentFailures     []string `json:"recent_failures"`
	CollaborationStyle string   `json:"collaboration_style"`
}

// Readiness is the result of an evolution readiness analysis.
type Readiness struct {
	ShouldEvolve        bool     `json:"should_evolve"`
	RecommendedStrategy Strategy `json:"recommended_strategy,omitempty"`
	Confidence          float64  `json:"confidence"`
	Reasoning           []string `json:"reasoning"`
	RiskAssessment      string   `json:"risk_assessment,omitempty"`
	PerformanceScore    float64  `json:"performance_score"`
	Patterns            Patterns `json:"patterns"`
}

// AnalyzeReadiness decides whether the agent should evolve, which strategy
// fits, and with what confidence. The decision is a pure function of the
// agent's metrics, memory, traits, and age.
func (e *Engine) AnalyzeReadiness(ag *agent.EvolvingAgent) *Readiness {
	metrics := ag.Metrics()
	score := metrics.PerformanceScore()
	failedCount := ag.Memory.FailedApproachCount()
	weeks := ag.WeeksActive()
	cycles := ag.EvolutionCycles()

	r := &Readiness{
		PerformanceScore: score,
		Patterns:         classifyPatterns(ag),
	}

	if score < 0.6 {
		r.ShouldEvolve = true
		r.Reasoning = append(r.Reasoning, fmt.Sprintf("performance score %.2f below 0.6 threshold", score))
	}
	if failedCount > 3 {
		r.ShouldEvolve = true
		r.Reasoning = append(r.Reasoning, fmt.Sprintf("%d failed approaches accumulated", failedCount))
	}
	if weeks >= 4 && cycles == 0 {
		r.ShouldEvolve = true
		r.Reasoning = append(r.Reasoning, fmt.Sprintf("agent active %d weeks without any evolution", weeks))
	}

	if !r.ShouldEvolve {
		r.Reasoning = append(r.Reasoning, "performance and history within normal bounds")
		return r
	}

	strategy := selectStrategy(score, r.Patterns, metrics)
	profile := profiles[strategy]
	r.RecommendedStrategy = strategy
	r.RiskAssessment = profile.Risk
	r.Confidence = confidenceFor(profile, weeks, cycles, metrics.AdaptabilityIndex)
	r.Reasoning = append(r.Reasoning, fmt.Sprintf("selected %s (nominal success %.2f, %s risk)",
		strategy, profile.SuccessRate, profile.Risk))
	return r
}

func classifyPatterns(ag *agent.EvolvingAgent) Patterns {
	collaborative, _ := ag.Traits.Get(agent.TraitCollaborative)
	style := StyleModeratelyCollaborative
	switch {
	case collaborative > dominantThreshold:
		style = StyleHighlyCollaborative
	case collaborative < weakThreshold:
		style = StyleIndependent
	}
	return Patterns{
		DominantTraits:     ag.Traits.Dominant(dominantThreshold),
		WeakTraits:         ag.Traits.Weak(weakThreshold),
		RecentSuccesses:    ag.Memory.RecentSuccesses(3),
		RecentFailures:     ag.Memory.RecentFailures(3),
		CollaborationStyle: style,
	}
}

// selectStrategy picks the evolution strategy deterministically; the first
// matching rule wins.
func selectStrategy(score float64, patterns Patterns, metrics agent.EvolutionMetrics) Strategy {
	switch {
	case score < 0.3:
		return StrategyRadicalTransformation
	case len(patterns.WeakTraits) > 2:
		return StrategyPersonalityDrift
	case patterns.CollaborationStyle == StyleIndependent && metrics.CollaborationScore < 0.4:
		return StrategyCollaborativeAdaptation
	case len(patterns.DominantTraits) >= 2:
		return StrategyRoleSpecialization
	default:
		return StrategyPersonalityDrift
	}
}

func confidenceFor(profile Profile, weeks, cycles int, adaptability float64) float64 {
	confidence := profile.SuccessRate
	if weeks < 2 {
		confidence *= 0.8
	}
	if cycles > 3 {
		confidence *= 0.9
	}
	if adaptability > 0.7 {
		confidence *= 1.1
	}
	if confidence > 1 {
		confidence = 1
	}
	if confidence < 0 {
		confidence = 0
	}
	return confidence
}
