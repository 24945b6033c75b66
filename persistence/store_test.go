package persistence

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// backends lists every Store implementation; the conformance tests below run
// against each one.
func backends(t *testing.T) map[string]Store {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	gormStore, err := NewGormStore(db, zap.NewNop())
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	redisStore, err := NewRedisStore(RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)

	return map[string]Store{
		"memory": NewMemoryStore(),
		"gorm":   gormStore,
		"redis":  redisStore,
	}
}

func newEvent(agentID, strategy string, success bool) *EvolutionEvent {
	return &EvolutionEvent{
		AgentID:       agentID,
		Timestamp:     time.Now(),
		EvolutionType: strategy,
		Changes:       map[string]any{"analytical": map[string]any{"from": 0.5, "to": 0.6}},
		PerformanceBefore: PerformanceSnapshot{
			SuccessRate:        0.4,
			TaskCompletionTime: 30,
			CollaborationScore: 0.5,
		},
		Success: success,
	}
}

func TestStore_AppendAndEventsByAgent(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			base := time.Now()
			for i := 0; i < 3; i++ {
				e := newEvent("a1", fmt.Sprintf("strategy_%d", i), true)
				e.Timestamp = base.Add(time.Duration(i) * time.Millisecond)
				require.NoError(t, store.AppendEvent(ctx, e))
				assert.NotEmpty(t, e.ID, "id should be assigned")
			}
			require.NoError(t, store.AppendEvent(ctx, newEvent("a2", "personality_drift", false)))

			events, err := store.EventsByAgent(ctx, "a1")
			require.NoError(t, err)
			require.Len(t, events, 3)
			// insertion order preserved
			for i, e := range events {
				assert.Equal(t, fmt.Sprintf("strategy_%d", i), e.EvolutionType)
				assert.Equal(t, "a1", e.AgentID)
			}

			all, err := store.AllEvents(ctx)
			require.NoError(t, err)
			assert.Len(t, all, 4)
		})
	}
}

func TestStore_EventsByAgent_Unknown(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			events, err := store.EventsByAgent(context.Background(), "nobody")
			require.NoError(t, err)
			assert.Empty(t, events)
		})
	}
}

func TestStore_EventRoundTrip(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			in := newEvent("a1", "role_specialization", true)
			in.PerformanceAfter = PerformanceSnapshot{SuccessRate: 0.7, TaskCompletionTime: 20, CollaborationScore: 0.8}
			require.NoError(t, store.AppendEvent(ctx, in))

			events, err := store.EventsByAgent(ctx, "a1")
			require.NoError(t, err)
			require.Len(t, events, 1)
			out := events[0]

			assert.Equal(t, in.ID, out.ID)
			assert.Equal(t, "role_specialization", out.EvolutionType)
			assert.True(t, out.Success)
			assert.Equal(t, in.PerformanceBefore, out.PerformanceBefore)
			assert.Equal(t, in.PerformanceAfter, out.PerformanceAfter)
			require.Contains(t, out.Changes, "analytical")
		})
	}
}

func TestStore_Stats(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.AppendEvent(ctx, newEvent("a1", "personality_drift", true)))
			require.NoError(t, store.AppendEvent(ctx, newEvent("a1", "personality_drift", false)))
			require.NoError(t, store.AppendEvent(ctx, newEvent("a2", "radical_transformation", true)))

			stats, err := store.Stats(ctx)
			require.NoError(t, err)

			assert.Equal(t, 3, stats.TotalEvents)
			assert.Equal(t, 2, stats.SuccessfulEvents)
			assert.Equal(t, 2, stats.DistinctAgents)

			drift := stats.ByStrategy["personality_drift"]
			assert.Equal(t, 2, drift.Total)
			assert.Equal(t, 1, drift.Successful)
			assert.InDelta(t, 0.5, drift.SuccessRate, 1e-9)

			radical := stats.ByStrategy["radical_transformation"]
			assert.Equal(t, 1, radical.Total)
			assert.InDelta(t, 1.0, radical.SuccessRate, 1e-9)
		})
	}
}

func TestStore_MemorySnapshotLatestWins(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := store.LoadMemorySnapshot(ctx, "a1")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, store.SaveMemorySnapshot(ctx, &MemorySnapshot{
				AgentID: "a1",
				TakenAt: time.Now(),
				Data:    map[string]any{"version": "old"},
			}))
			require.NoError(t, store.SaveMemorySnapshot(ctx, &MemorySnapshot{
				AgentID: "a1",
				TakenAt: time.Now(),
				Data:    map[string]any{"version": "new"},
			}))

			snap, err := store.LoadMemorySnapshot(ctx, "a1")
			require.NoError(t, err)
			assert.Equal(t, "a1", snap.AgentID)
			assert.Equal(t, "new", snap.Data["version"])
		})
	}
}

func TestStore_Ping(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, store.Ping(context.Background()))
		})
	}
}

func TestMemoryStore_ClosedErrors(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Close())

	ctx := context.Background()
	assert.ErrorIs(t, store.AppendEvent(ctx, newEvent("a1", "s", true)), ErrStoreClosed)
	_, err := store.EventsByAgent(ctx, "a1")
	assert.ErrorIs(t, err, ErrStoreClosed)
	assert.ErrorIs(t, store.Ping(ctx), ErrStoreClosed)
}

func TestMemoryStore_RejectsNilEvent(t *testing.T) {
	store := NewMemoryStore()
	assert.ErrorIs(t, store.AppendEvent(context.Background(), nil), ErrInvalidInput)
}

func TestNewStore_Factory(t *testing.T) {
	t.Run("defaults to memory", func(t *testing.T) {
		store, err := NewStore(StoreConfig{}, nil)
		require.NoError(t, err)
		assert.IsType(t, &MemoryStore{}, store)
	})

	t.Run("gorm sqlite in memory", func(t *testing.T) {
		store, err := NewStore(StoreConfig{Type: StoreTypeGorm, Driver: "sqlite"}, zap.NewNop())
		require.NoError(t, err)
		assert.IsType(t, &GormStore{}, store)
		assert.NoError(t, store.Close())
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		store, err := NewStore(StoreConfig{
			Type:  StoreTypeRedis,
			Redis: RedisConfig{Addr: mr.Addr()},
		}, zap.NewNop())
		require.NoError(t, err)
		assert.IsType(t, &RedisStore{}, store)
		assert.NoError(t, store.Close())
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := NewStore(StoreConfig{Type: "cassandra"}, nil)
		assert.Error(t, err)
	})
}
