// Package crewevolve provides a top-level convenience entry point for
// building an evolving crew with minimal boilerplate.
//
// Usage:
//
//	import "github.com/crewevolve/crewevolve"
//
//	crew := crewevolve.NewCrew("research_team", logger)
//	ag := crewevolve.NewAgent("analyst")
//	crew.AddAgent(ag)
//
//	engine := crewevolve.NewEngine(crewevolve.EngineConfig{}, store, nil, logger)
//	readiness := engine.AnalyzeReadiness(ag)
//
// This is a thin wrapper around the agent, crews, and evolution packages;
// use it when you prefer the shorter import path.
package crewevolve

import (
	"github.com/crewevolve/crewevolve/agent"
	"github.com/crewevolve/crewevolve/agent/crews"
	"github.com/crewevolve/crewevolve/agent/evolution"
	"github.com/crewevolve/crewevolve/agent/instructions"
	"github.com/crewevolve/crewevolve/agent/termination"
	"github.com/crewevolve/crewevolve/persistence"
)

// Agent is an evolving agent with personality traits and memory.
type Agent = agent.EvolvingAgent

// Crew is a team of evolving agents accepting runtime instructions.
type Crew = crews.Crew

// Engine drives evolution analysis and execution.
type Engine = evolution.Engine

// EngineConfig configures the evolution engine.
type EngineConfig = evolution.EngineConfig

// Queue holds pending runtime instructions.
type Queue = instructions.Queue

// Instruction is a runtime directive for a crew.
type Instruction = instructions.Instruction

// Terminator coordinates cooperative task termination.
type Terminator = termination.Terminator

// Store persists evolution events and memory snapshots.
type Store = persistence.Store

// NewAgent creates an evolving agent with default traits and empty memory.
var NewAgent = agent.New

// NewCrew creates an empty crew.
var NewCrew = crews.NewCrew

// NewEngine creates an evolution engine.
var NewEngine = evolution.NewEngine

// NewQueue creates an instruction queue.
var NewQueue = instructions.NewQueue

// NewHandler creates an instruction handler over a queue.
var NewHandler = instructions.NewHandler

// NewTerminator creates a termination coordinator.
var NewTerminator = termination.NewTerminator

// NewMemoryStore creates an in-memory event store.
var NewMemoryStore = persistence.NewMemoryStore
