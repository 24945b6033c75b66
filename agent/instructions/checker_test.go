package instructions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewevolve/crewevolve/agent/crews"
)

func TestChecker_DrainAllProcessesRegisteredCrews(t *testing.T) {
	q := NewQueue(nil, nil)
	h := NewHandler(q, nil, nil)
	c := NewChecker(h, time.Second, nil)

	crew := crews.NewCrew("alpha", nil)
	c.RegisterCrew(crew)

	id, err := q.Add("stay focused", TypeGuidance, crew.ID, 3)
	require.NoError(t, err)

	c.drainAll()

	instr, ok := q.Status(id)
	require.True(t, ok)
	assert.True(t, instr.Processed)
	assert.Len(t, crew.Guidance(), 1)
}

func TestChecker_UnregisterCleansUp(t *testing.T) {
	q := NewQueue(nil, nil)
	h := NewHandler(q, nil, nil)
	c := NewChecker(h, time.Second, nil)

	crew := crews.NewCrew("alpha", nil)
	c.RegisterCrew(crew)
	_, err := q.Add("stale", TypeGuidance, crew.ID, 3)
	require.NoError(t, err)

	removed := c.UnregisterCrew(crew.ID)
	assert.Equal(t, 1, removed)
	assert.Zero(t, q.Depth())

	// drained after unregister: nothing applied
	c.drainAll()
	assert.Empty(t, crew.Guidance())
}

func TestChecker_RunProcessesOnTicks(t *testing.T) {
	q := NewQueue(nil, nil)
	h := NewHandler(q, nil, nil)
	c := NewChecker(h, 10*time.Millisecond, nil)

	crew := crews.NewCrew("alpha", nil)
	c.RegisterCrew(crew)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(ctx)
	}()

	_, err := q.Add("tick work", TypeGuidance, crew.ID, 3)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return len(crew.Guidance()) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("checker did not stop")
	}
}
