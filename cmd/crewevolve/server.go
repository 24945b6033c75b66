package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/crewevolve/crewevolve/agent"
	"github.com/crewevolve/crewevolve/agent/crews"
	"github.com/crewevolve/crewevolve/agent/evolution"
	"github.com/crewevolve/crewevolve/agent/instructions"
	"github.com/crewevolve/crewevolve/agent/termination"
	"github.com/crewevolve/crewevolve/config"
	"github.com/crewevolve/crewevolve/internal/metrics"
	"github.com/crewevolve/crewevolve/internal/server"
	"github.com/crewevolve/crewevolve/internal/telemetry"
	"github.com/crewevolve/crewevolve/persistence"
)

// Server wires the evolution engine, instruction pipeline, and monitoring
// endpoints into a single long-running process.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	collector  *metrics.Collector
	providers  *telemetry.Providers
	store      persistence.Store
	engine     *evolution.Engine
	monitor    *evolution.Monitor
	queue      *instructions.Queue
	handler    *instructions.Handler
	checker    *instructions.Checker
	terminator *termination.Terminator

	httpManager *server.Manager

	mu    sync.RWMutex
	crews map[string]*crews.Crew

	loopCancel context.CancelFunc
	loopWG     sync.WaitGroup
}

// NewServer builds all components from the configuration. Nothing is started
// until Start is called.
func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logger,
		crews:  make(map[string]*crews.Crew),
	}

	s.collector = metrics.NewCollector("crewevolve", nil, logger)

	providers, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	s.providers = providers

	store, err := persistence.NewStore(cfg.Store, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	s.store = store

	s.engine = evolution.NewEngine(evolution.EngineConfig{
		EvolutionsPerMinute: cfg.Evolution.EvolutionsPerMinute,
		Burst:               cfg.Evolution.Burst,
	}, store, s.collector, logger)

	s.monitor = evolution.NewMonitor(s.engine, s.allAgents, cfg.Evolution.MonitorInterval, logger)

	s.queue = instructions.NewQueue(s.collector, logger)
	s.handler = instructions.NewHandler(s.queue, s.collector, logger)
	s.checker = instructions.NewChecker(s.handler, cfg.Instructions.CheckInterval, logger)

	s.terminator = termination.NewTerminator(s.collector, logger)

	return s, nil
}

// Start launches the background loops and the HTTP listener.
func (s *Server) Start() error {
	loopCtx, cancel := context.WithCancel(context.Background())
	s.loopCancel = cancel

	s.loopWG.Add(2)
	go func() {
		defer s.loopWG.Done()
		s.monitor.Run(loopCtx)
	}()
	go func() {
		defer s.loopWG.Done()
		s.checker.Run(loopCtx)
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/version", s.handleVersion)
	mux.HandleFunc("/api/v1/evolution/stats", s.handleStats)
	mux.HandleFunc("/api/v1/evolution/history", s.handleHistory)

	serverConfig := server.DefaultConfig()
	serverConfig.Addr = s.cfg.Server.Addr

	s.httpManager = server.NewManager(mux, serverConfig, s.logger)
	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("crewevolve started", zap.String("addr", s.cfg.Server.Addr))
	return nil
}

// RegisterCrew makes a crew visible to the evolution monitor and the
// instruction checker.
func (s *Server) RegisterCrew(crew *crews.Crew) {
	s.mu.Lock()
	s.crews[crew.ID] = crew
	s.mu.Unlock()
	s.checker.RegisterCrew(crew)
}

// UnregisterCrew removes a crew and discards its pending instructions.
func (s *Server) UnregisterCrew(crewID string) {
	s.mu.Lock()
	delete(s.crews, crewID)
	s.mu.Unlock()
	s.checker.UnregisterCrew(crewID)
}

func (s *Server) allAgents() []*agent.EvolvingAgent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*agent.EvolvingAgent
	for _, c := range s.crews {
		out = append(out, c.Agents()...)
	}
	return out
}

// WaitForShutdown blocks on the HTTP listener's signal handling, then stops
// the background loops and flushes the store and telemetry.
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}
	s.Shutdown()
}

// Shutdown stops background loops, waits for in-flight termination
// callbacks, and closes the store and telemetry providers.
func (s *Server) Shutdown() {
	s.logger.Info("starting graceful shutdown")

	ctx := context.Background()

	if s.loopCancel != nil {
		s.loopCancel()
	}
	s.loopWG.Wait()

	s.terminator.Wait()

	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	if err := s.store.Close(); err != nil {
		s.logger.Error("store close error", zap.Error(err))
	}

	if err := s.providers.Shutdown(ctx); err != nil {
		s.logger.Error("telemetry shutdown error", zap.Error(err))
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		http.Error(w, fmt.Sprintf("store unavailable: %v", err), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{
		"version":    Version,
		"build_time": BuildTime,
		"git_commit": GitCommit,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.Stats(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, stats)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	agentID := r.URL.Query().Get("agent_id")
	if agentID == "" {
		writeJSON(w, s.engine.AllHistory())
		return
	}
	writeJSON(w, s.engine.History(agentID))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
