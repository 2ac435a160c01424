package service

import (
	"context"
	"errors"
	"time"

	"github.com/wricardo/mcp-training/autodrive/sim/engine"
)

var (
	ErrDuplicateVehicle = errors.New("vehicle name already used")
	ErrNoVehicles       = errors.New("no cars added to the simulation")
	ErrNoRun            = errors.New("session has not been run yet")
)

// SimulationService defines all simulation operations exposed to transports
type SimulationService interface {
	// Session Management
	CreateSession(ctx context.Context, scenarioID string) (*SessionInfo, error)
	CreateBlankSession(ctx context.Context, width, height int) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Simulation
	AddVehicle(ctx context.Context, sessionID string, spec engine.VehicleSpec) (*SessionInfo, error)
	ResetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	RunSimulation(ctx context.Context, sessionID string) (*RunInfo, error)
	GetResult(ctx context.Context, sessionID string) (*RunInfo, error)

	// Scenarios
	ListScenarios(ctx context.Context) ([]*ScenarioInfo, error)
	LoadScenario(ctx context.Context, name string) (*engine.Scenario, error)
	SaveScenario(ctx context.Context, name string, scenario *engine.Scenario) error

	Metrics(ctx context.Context) map[string]any
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id, scenarioID string, scenario *engine.Scenario) (*Session, error)
	Get(id string) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
	Save(id string) error
}

// ScenarioManager handles scenario catalogue loading
type ScenarioManager interface {
	LoadScenario(name string) (*engine.Scenario, error)
	ListScenarios() ([]*ScenarioInfo, error)
	GetDefault() *engine.Scenario
	SaveScenario(name string, scenario *engine.Scenario) error
}

// Session represents a simulation session: a field, the vehicles placed on it
// and the last completed run
type Session struct {
	ID             string
	ScenarioID     string
	Scenario       *engine.Scenario
	LastRun        *RunRecord
	CreatedAt      time.Time
	LastAccessedAt time.Time
}
