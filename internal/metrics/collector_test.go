package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCollector(t *testing.T) *Collector {
	t.Helper()
	return NewCollector("test", prometheus.NewRegistry(), zap.NewNop())
}

func TestCollector_RecordEvolution(t *testing.T) {
	c := newTestCollector(t)

	c.RecordEvolution("personality_drift", true, 0.05)
	c.RecordEvolution("personality_drift", true, 0.10)
	c.RecordEvolution("radical_transformation", false, 0.20)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.evolutionsTotal.WithLabelValues("personality_drift", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.evolutionsTotal.WithLabelValues("radical_transformation", "failure")))
}

func TestCollector_InstructionCounters(t *testing.T) {
	c := newTestCollector(t)

	c.RecordInstructionEnqueued("guidance")
	c.RecordInstructionEnqueued("guidance")
	c.RecordInstructionProcessed("guidance", nil)
	c.RecordInstructionProcessed("pivot", errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.instructionsEnqueued.WithLabelValues("guidance")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.instructionsProcessed.WithLabelValues("guidance", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.instructionsProcessed.WithLabelValues("pivot", "error")))
}

func TestCollector_Gauges(t *testing.T) {
	c := newTestCollector(t)

	c.SetQueueDepth(7)
	assert.Equal(t, 7.0, testutil.ToFloat64(c.queueDepth))

	c.TaskStarted()
	c.TaskStarted()
	c.TaskFinished()
	assert.Equal(t, 1.0, testutil.ToFloat64(c.activeTasks))

	c.RecordEmergencyStop()
	assert.Equal(t, 1.0, testutil.ToFloat64(c.emergencyStops))
}

func TestCollector_NilIsSafe(t *testing.T) {
	var c *Collector

	// none of these may panic
	c.RecordEvolution("s", true, 0.1)
	c.RecordInstructionEnqueued("g")
	c.RecordInstructionProcessed("g", nil)
	c.SetQueueDepth(3)
	c.TaskStarted()
	c.TaskFinished()
	c.RecordEmergencyStop()
}

func TestCollector_RegistersWithProvidedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector("crewevolve", reg, nil)
	c.RecordEvolution("personality_drift", true, 0.01)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["crewevolve_evolutions_total"])
	assert.True(t, names["crewevolve_evolution_duration_seconds"])
}
