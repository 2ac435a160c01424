package service

import (
	"time"

	"github.com/wricardo/mcp-training/autodrive/sim/engine"
)

// SessionInfo provides information about a simulation session
type SessionInfo struct {
	ID             string               `json:"id"`
	ScenarioID     string               `json:"scenario_id"`
	Field          engine.Field         `json:"field"`
	Vehicles       []engine.VehicleSpec `json:"vehicles"`
	LastRunID      string               `json:"last_run_id,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	LastAccessedAt time.Time            `json:"last_accessed_at"`
}

// RunRecord is a completed run stored on its session
type RunRecord struct {
	RunID     string            `json:"run_id"`
	StartedAt time.Time         `json:"started_at"`
	Duration  time.Duration     `json:"duration"`
	Result    *engine.RunResult `json:"result"`
}

// RunInfo is the outcome of a simulation run as returned to transports
type RunInfo struct {
	SessionID  string                  `json:"session_id"`
	RunID      string                  `json:"run_id"`
	StartedAt  time.Time               `json:"started_at"`
	DurationMs float64                 `json:"duration_ms"`
	TotalTicks int                     `json:"total_ticks"`
	Survivors  int                     `json:"survivors"`
	Collided   []string                `json:"collided,omitempty"`
	Collisions []engine.CollisionEvent `json:"collisions"`
	Final      []engine.VehicleReport  `json:"final"`
	Ticks      []engine.TickSnapshot   `json:"ticks,omitempty"`
	// Report is the run rendered in the console format
	Report string `json:"report"`
}

// ScenarioInfo provides information about a scenario in the catalogue
type ScenarioInfo struct {
	Filename    string `json:"filename"`
	ScenarioID  string `json:"scenario_id"` // The identifier to use for session creation
	Name        string `json:"name"`
	Description string `json:"description"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Vehicles    int    `json:"vehicles"`
}
