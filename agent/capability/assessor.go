// Package capability computes crew-level skill coverage, balance, and
// missing-capability signals feeding autonomous crew decisions.
package capability

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/crewevolve/crewevolve/agent"
)

// Resource names used in adequacy reporting and missing-element labels.
const (
	ResourceTools     = "tools"
	ResourceKnowledge = "knowledge"
	ResourceData      = "data"
)

// coreSkills are the traits a crew must cover to at least 0.5.
var coreSkills = []string{agent.TraitAnalytical, agent.TraitCreative, agent.TraitCollaborative}

// EnvironmentFlags are environment-level resource signals supplied by the
// caller, not computed here.
type EnvironmentFlags struct {
	KnowledgeAccess bool `json:"knowledge_access"`
	DataAccess      bool `json:"data_access"`
}

// Assessment is the capability picture of one crew.
type Assessment struct {
	// SkillCoverage maps each trait to the crew's maximum value of it: the
	// crew "has" a skill if any member has it strongly.
	SkillCoverage map[string]float64 `json:"skill_coverage"`
	// ResourceAdequacy flags tool availability plus the caller-supplied
	// knowledge and data access.
	ResourceAdequacy map[string]bool `json:"resource_adequacy"`
	// TeamBalance is personality diversity: the mean population variance of
	// trait values across agents, clamped to [0,1].
	TeamBalance float64 `json:"team_balance"`
	// MissingElements names capability gaps.
	MissingElements []string `json:"missing_elements"`
}

// Decision is the crew-level action derived from an assessment.
type Decision struct {
	Action    string   `json:"action"`
	Changes   []string `json:"changes"`
	Reasoning string   `json:"reasoning"`
}

// Assessor computes crew capability assessments.
type Assessor struct {
	logger *zap.Logger
}

// NewAssessor creates an assessor.
func NewAssessor(logger *zap.Logger) *Assessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assessor{logger: logger.With(zap.String("component", "capability_assessor"))}
}

// Assess computes skill coverage, resource adequacy, balance, and missing
// elements over the given agents.
func (a *Assessor) Assess(agents []*agent.EvolvingAgent, flags EnvironmentFlags) *Assessment {
	coverage := make(map[string]float64, len(agent.TraitNames))
	for _, name := range agent.TraitNames {
		coverage[name] = 0
	}
	for _, ag := range agents {
		for name, value := range ag.Traits.Values() {
			if value > coverage[name] {
				coverage[name] = value
			}
		}
	}

	toolsAvailable := false
	for _, ag := range agents {
		if ag.HasTools() {
			toolsAvailable = true
			break
		}
	}
	adequacy := map[string]bool{
		ResourceTools:     toolsAvailable,
		ResourceKnowledge: flags.KnowledgeAccess,
		ResourceData:      flags.DataAccess,
	}

	assessment := &Assessment{
		SkillCoverage:    coverage,
		ResourceAdequacy: adequacy,
		TeamBalance:      teamBalance(agents),
	}

	for _, skill := range coreSkills {
		if coverage[skill] < 0.5 {
			assessment.MissingElements = append(assessment.MissingElements,
				fmt.Sprintf("agent_with_%s_skills", skill))
		}
	}
	for _, resource := range []string{ResourceTools, ResourceKnowledge, ResourceData} {
		if !adequacy[resource] {
			assessment.MissingElements = append(assessment.MissingElements,
				fmt.Sprintf("access_to_%s", resource))
		}
	}

	a.logger.Debug("capabilities assessed",
		zap.Int("agents", len(agents)),
		zap.Float64("team_balance", assessment.TeamBalance),
		zap.Strings("missing", assessment.MissingElements))
	return assessment
}

// Decide turns an assessment into an autonomous crew-level action.
func (a *Assessor) Decide(assessment *Assessment, context string) *Decision {
	switch {
	case len(assessment.MissingElements) > 0:
		changes := make([]string, 0, len(assessment.MissingElements))
		for _, missing := range assessment.MissingElements {
			changes = append(changes, "add_"+missing)
		}
		return &Decision{
			Action:    "modify_team",
			Changes:   changes,
			Reasoning: fmt.Sprintf("capability gaps detected (%s): %v", context, assessment.MissingElements),
		}
	case assessment.TeamBalance < 0.3:
		return &Decision{
			Action:    "rebalance_team",
			Changes:   []string{"redistribute_roles", "adjust_personalities"},
			Reasoning: fmt.Sprintf("team balance %.2f below 0.3 (%s)", assessment.TeamBalance, context),
		}
	default:
		return &Decision{
			Action:    "continue",
			Reasoning: fmt.Sprintf("coverage and balance adequate (%s)", context),
		}
	}
}

// teamBalance is the mean, over traits, of the population variance of that
// trait across agents. Zero agents means zero balance.
func teamBalance(agents []*agent.EvolvingAgent) float64 {
	if len(agents) == 0 {
		return 0
	}
	n := float64(len(agents))
	var totalVariance float64
	for _, name := range agent.TraitNames {
		var sum float64
		values := make([]float64, 0, len(agents))
		for _, ag := range agents {
			v, _ := ag.Traits.Get(name)
			values = append(values, v)
			sum += v
		}
		mean := sum / n
		var variance float64
		for _, v := range values {
			variance += (v - mean) * (v - mean)
		}
		totalVariance += variance / n
	}
	balance := totalVariance / float64(len(agent.TraitNames))
	if balance > 1 {
		balance = 1
	}
	return balance
}
