package instructions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewevolve/crewevolve/agent"
	"github.com/crewevolve/crewevolve/agent/crews"
)

func newTestHandler() (*Handler, *crews.Crew) {
	q := NewQueue(nil, nil)
	h := NewHandler(q, nil, nil)
	crew := crews.NewCrew("test_crew", nil)
	crew.AddAgent(agent.New("a1"))
	crew.AddAgent(agent.New("a2"))
	return h, crew
}

func TestProcessForCrew_Guidance(t *testing.T) {
	h, crew := newTestHandler()
	id, err := h.Queue().Add("focus on accuracy", TypeGuidance, crew.ID, 4)
	require.NoError(t, err)

	result := h.ProcessForCrew(crew)

	require.Len(t, result.Processed, 1)
	processed := result.Processed[0]
	assert.Equal(t, id, processed.InstructionID)
	assert.Empty(t, processed.Error)
	assert.Equal(t, 1, processed.Result["guidance_count"])
	assert.Equal(t, 2, processed.Result["agents_notified"])

	require.Len(t, crew.Guidance(), 1)
	assert.Equal(t, "focus on accuracy", crew.Guidance()[0].Content)

	for _, ag := range crew.Agents() {
		exps := ag.Memory.Experiences()
		require.Len(t, exps, 1)
		assert.Equal(t, "user_guidance", exps[0].Event)
	}

	instr, ok := h.Queue().Status(id)
	require.True(t, ok)
	assert.True(t, instr.Processed)
	assert.Contains(t, instr.Response, "guidance_count")
}

func TestProcessForCrew_PivotThenResource(t *testing.T) {
	h, crew := newTestHandler()

	// pivot arrives with higher priority than the resource
	_, err := h.Queue().Add("pivot to B2B enterprise sales", TypePivot, crew.ID, 5)
	require.NoError(t, err)
	_, err = h.Queue().Add("market research API access", TypeResource, crew.ID, 2)
	require.NoError(t, err)

	result := h.ProcessForCrew(crew)
	require.Len(t, result.Processed, 2)
	assert.Equal(t, TypePivot, result.Processed[0].Type)
	assert.Equal(t, TypeResource, result.Processed[1].Type)

	assert.Equal(t, "pivot to B2B enterprise sales", crew.CurrentStrategy())
	assert.Len(t, crew.Resources(), 1)
	require.Len(t, crew.Pivots(), 1)
	assert.Empty(t, crew.Pivots()[0].OldStrategy)
}

func TestProcessForCrew_EmergencyStopRunsFirst(t *testing.T) {
	h, crew := newTestHandler()

	// the stop is enqueued last and with the lowest priority; it must
	// still be applied before everything else in the batch
	_, err := h.Queue().Add("keep researching", TypeGuidance, crew.ID, 5)
	require.NoError(t, err)
	_, err = h.Queue().Add("budget exhausted", TypeEmergencyStop, crew.ID, 1)
	require.NoError(t, err)

	result := h.ProcessForCrew(crew)

	require.Len(t, result.Processed, 2)
	assert.Equal(t, TypeEmergencyStop, result.Processed[0].Type)
	assert.Equal(t, true, result.Processed[0].Result["emergency_stop"])
	assert.Equal(t, "budget exhausted", result.Processed[0].Result["reason"])

	stopped, reason, _ := crew.EmergencyStopInfo()
	assert.True(t, stopped)
	assert.Equal(t, "budget exhausted", reason)
}

func TestProcessForCrew_Feedback(t *testing.T) {
	tests := []struct {
		name         string
		content      string
		wantPositive bool
	}{
		{"positive", "great work on the summary", true},
		{"neutral", "the report needs more charts", false},
		{"case insensitive", "EXCELLENT analysis", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, crew := newTestHandler()
			_, err := h.Queue().Add(tt.content, TypeFeedback, crew.ID, 3)
			require.NoError(t, err)

			result := h.ProcessForCrew(crew)

			require.Len(t, result.Processed, 1)
			assert.Equal(t, tt.wantPositive, result.Processed[0].Result["positive"])
			assert.Len(t, crew.Feedback(), 1)

			for _, ag := range crew.Agents() {
				if tt.wantPositive {
					assert.Len(t, ag.Memory.SuccessfulStrategies(), 1)
					assert.Contains(t, ag.Memory.SuccessfulStrategies()[0], "approach_at_")
				} else {
					assert.Empty(t, ag.Memory.SuccessfulStrategies())
				}
			}
		})
	}
}

func TestProcessForCrew_Constraint(t *testing.T) {
	h, crew := newTestHandler()
	_, err := h.Queue().Add("no external calls", TypeConstraint, crew.ID, 3)
	require.NoError(t, err)

	result := h.ProcessForCrew(crew)

	assert.Equal(t, 1, result.Processed[0].Result["constraint_count"])
	assert.Len(t, crew.Constraints(), 1)
}

func TestProcessForCrew_SkillBoost(t *testing.T) {
	h, crew := newTestHandler()
	_, err := h.Queue().Add("strong analytical boost for 3 tasks", TypeSkillBoost, crew.ID, 3)
	require.NoError(t, err)

	result := h.ProcessForCrew(crew)

	res := result.Processed[0].Result
	assert.Equal(t, agent.TraitAnalytical, res["trait"])
	assert.Equal(t, 0.3, res["magnitude"])
	assert.Equal(t, 3, res["duration_tasks"])
	assert.Len(t, res["affected_agents"], 2)

	for _, ag := range crew.Agents() {
		v, _ := ag.Traits.Get(agent.TraitAnalytical)
		assert.InDelta(t, 0.8, v, 1e-9)

		exps := ag.Memory.Experiences()
		require.Len(t, exps, 1)
		assert.Equal(t, "skill_boost", exps[0].Event)
		assert.Equal(t, 0.5, exps[0].Details["original"])
	}
}

func TestParseSkillBoost(t *testing.T) {
	tests := []struct {
		content       string
		wantTrait     string
		wantDuration  int
		wantMagnitude float64
	}{
		{"strong analytical boost for 3 tasks", agent.TraitAnalytical, 3, 0.3},
		{"slight creative bump", agent.TraitCreative, 1, 0.1},
		{"boost risk taking for 2 tasks", agent.TraitRiskTaking, 2, 0.2},
		{"major collaborative push", agent.TraitCollaborative, 1, 0.3},
		{"just a boost", agent.TraitAdaptable, 1, 0.2},
		{"minor decisive tune, 10 tasks", agent.TraitDecisive, 10, 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.content, func(t *testing.T) {
			trait, duration, magnitude := parseSkillBoost(tt.content)
			assert.Equal(t, tt.wantTrait, trait)
			assert.Equal(t, tt.wantDuration, duration)
			assert.Equal(t, tt.wantMagnitude, magnitude)
		})
	}
}

func TestProcessForCrew_EmptyQueue(t *testing.T) {
	h, crew := newTestHandler()
	result := h.ProcessForCrew(crew)
	assert.Equal(t, crew.ID, result.CrewID)
	assert.Empty(t, result.Processed)
}
