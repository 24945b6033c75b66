package crews

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewevolve/crewevolve/agent"
)

func TestNewCrew_Defaults(t *testing.T) {
	crew := NewCrew("research", nil)

	assert.NotEmpty(t, crew.ID)
	assert.Equal(t, "research", crew.Name)
	assert.Empty(t, crew.Agents())
	assert.Zero(t, crew.AutonomyLevel())
	assert.Empty(t, crew.CurrentStrategy())
	assert.Empty(t, crew.Guidance())
	assert.Empty(t, crew.Constraints())
	assert.Empty(t, crew.Resources())
	assert.Empty(t, crew.Pivots())
	assert.Empty(t, crew.Feedback())
	assert.False(t, crew.EmergencyStopped())
}

func TestCrew_AgentManagement(t *testing.T) {
	crew := NewCrew("research", nil)
	a := agent.New("analyst")
	b := agent.New("writer")

	crew.AddAgent(a)
	crew.AddAgent(b)

	assert.Len(t, crew.Agents(), 2)

	found, ok := crew.AgentByID(a.ID)
	require.True(t, ok)
	assert.Equal(t, a, found)

	_, ok = crew.AgentByID("nope")
	assert.False(t, ok)
}

func TestCrew_SetAutonomyLevelClamps(t *testing.T) {
	crew := NewCrew("x", nil)

	crew.SetAutonomyLevel(1.5)
	assert.Equal(t, 1.0, crew.AutonomyLevel())

	crew.SetAutonomyLevel(-0.2)
	assert.Equal(t, 0.0, crew.AutonomyLevel())

	crew.SetAutonomyLevel(0.6)
	assert.Equal(t, 0.6, crew.AutonomyLevel())
}

func TestCrew_GuidanceConstraintsResources(t *testing.T) {
	crew := NewCrew("x", nil)

	assert.Equal(t, 1, crew.AddGuidance("be brief", 4))
	assert.Equal(t, 2, crew.AddGuidance("cite sources", 2))
	assert.Equal(t, 1, crew.AddConstraint("no external calls"))
	assert.Equal(t, 1, crew.AddResource("db access"))
	assert.Equal(t, 2, crew.AddResource("api key"))

	guidance := crew.Guidance()
	require.Len(t, guidance, 2)
	assert.Equal(t, "be brief", guidance[0].Content)
	assert.Equal(t, 4, guidance[0].Priority)
	assert.Len(t, crew.Constraints(), 1)
	assert.Len(t, crew.Resources(), 2)
}

func TestCrew_RecordPivot(t *testing.T) {
	crew := NewCrew("x", nil)

	first := crew.RecordPivot("go B2B")
	assert.Empty(t, first.OldStrategy)
	assert.Equal(t, "go B2B", first.NewDirection)
	assert.Equal(t, "go B2B", crew.CurrentStrategy())

	second := crew.RecordPivot("go enterprise")
	assert.Equal(t, "go B2B", second.OldStrategy)
	assert.Equal(t, "go enterprise", crew.CurrentStrategy())
	assert.Len(t, crew.Pivots(), 2)
}

func TestCrew_EmergencyStop(t *testing.T) {
	crew := NewCrew("x", nil)

	crew.TriggerEmergencyStop("budget exhausted")

	assert.True(t, crew.EmergencyStopped())
	stopped, reason, at := crew.EmergencyStopInfo()
	assert.True(t, stopped)
	assert.Equal(t, "budget exhausted", reason)
	assert.WithinDuration(t, time.Now(), at, time.Second)
}

func TestCrew_Snapshot(t *testing.T) {
	crew := NewCrew("research", nil)
	crew.AddAgent(agent.New("analyst"))
	crew.AddGuidance("g", 3)
	crew.RecordPivot("new direction")

	snap := crew.Snapshot()

	assert.Equal(t, crew.ID, snap["crew_id"])
	assert.Equal(t, "research", snap["name"])
	assert.Len(t, snap["agents"], 1)
	assert.Equal(t, 1, snap["guidance_count"])
	assert.Equal(t, 1, snap["pivots"])
	assert.Equal(t, "new direction", snap["current_strategy"])
	assert.Equal(t, false, snap["emergency_stop"])
}
