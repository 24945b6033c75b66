package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore is a Redis-backed Store implementation for distributed
// deployments. Events live in per-agent lists (insertion-ordered), agent ids
// in a set, snapshots in plain keys.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Addr      string `yaml:"addr" json:"addr"`
	Password  string `yaml:"password" json:"password"`
	DB        int    `yaml:"db" json:"db"`
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix"`
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "crewevolve:"
	}
	return &RedisStore{client: client, keyPrefix: prefix}, nil
}

func (s *RedisStore) eventsKey(agentID string) string {
	return s.keyPrefix + "events:" + agentID
}

func (s *RedisStore) agentsKey() string {
	return s.keyPrefix + "agents"
}

func (s *RedisStore) snapshotKey(agentID string) string {
	return s.keyPrefix + "memory:" + agentID
}

// AppendEvent implements Store.
func (s *RedisStore) AppendEvent(ctx context.Context, event *EvolutionEvent) error {
	if event == nil || event.AgentID == "" {
		return ErrInvalidInput
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal evolution event: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, s.eventsKey(event.AgentID), data)
	pipe.SAdd(ctx, s.agentsKey(), event.AgentID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append evolution event: %w", err)
	}
	return nil
}

// EventsByAgent implements Store.
func (s *RedisStore) EventsByAgent(ctx context.Context, agentID string) ([]*EvolutionEvent, error) {
	raw, err := s.client.LRange(ctx, s.eventsKey(agentID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read events by agent: %w", err)
	}
	events := make([]*EvolutionEvent, 0, len(raw))
	for _, item := range raw {
		var e EvolutionEvent
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("decode evolution event: %w", err)
		}
		events = append(events, &e)
	}
	return events, nil
}

// AllEvents implements Store, merged across agents and sorted by timestamp.
func (s *RedisStore) AllEvents(ctx context.Context) ([]*EvolutionEvent, error) {
	agents, err := s.client.SMembers(ctx, s.agentsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	var all []*EvolutionEvent
	for _, agentID := range agents {
		events, err := s.EventsByAgent(ctx, agentID)
		if err != nil {
			return nil, err
		}
		all = append(all, events...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Timestamp.Before(all[j].Timestamp)
	})
	return all, nil
}

// Stats implements Store.
func (s *RedisStore) Stats(ctx context.Context) (*Stats, error) {
	events, err := s.AllEvents(ctx)
	if err != nil {
		return nil, err
	}
	return statsFromEvents(events), nil
}

// SaveMemorySnapshot implements Store (latest wins).
func (s *RedisStore) SaveMemorySnapshot(ctx context.Context, snap *MemorySnapshot) error {
	if snap == nil || snap.AgentID == "" {
		return ErrInvalidInput
	}
	stored := *snap
	if stored.TakenAt.IsZero() {
		stored.TakenAt = time.Now()
	}
	data, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("marshal memory snapshot: %w", err)
	}
	if err := s.client.Set(ctx, s.snapshotKey(snap.AgentID), data, 0).Err(); err != nil {
		return fmt.Errorf("save memory snapshot: %w", err)
	}
	return nil
}

// LoadMemorySnapshot implements Store.
func (s *RedisStore) LoadMemorySnapshot(ctx context.Context, agentID string) (*MemorySnapshot, error) {
	data, err := s.client.Get(ctx, s.snapshotKey(agentID)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load memory snapshot: %w", err)
	}
	var snap MemorySnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode memory snapshot: %w", err)
	}
	return &snap, nil
}

// Ping implements Store.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
