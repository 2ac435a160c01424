package session

import (
	"time"

	"github.com/wricardo/mcp-training/autodrive/sim/engine"
	"github.com/wricardo/mcp-training/autodrive/sim/service"
)

// SessionPersistence defines the interface for persisting sessions
type SessionPersistence interface {
	// Save persists a session to storage
	Save(session *service.Session) error

	// Load retrieves a session from storage by ID
	Load(id string) (*service.Session, error)

	// Delete removes a session from storage
	Delete(id string) error

	// ListAll returns all persisted session IDs
	ListAll() ([]string, error)

	// Exists checks if a session exists in storage
	Exists(id string) bool
}

// PersistedSessionData represents the JSON structure for persisted sessions.
// The scenario is stored inline because sessions edit their own copy.
type PersistedSessionData struct {
	ID             string             `json:"id"`
	ScenarioID     string             `json:"scenario_id"`
	Scenario       *engine.Scenario   `json:"scenario"`
	LastRun        *service.RunRecord `json:"last_run,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	LastAccessedAt time.Time          `json:"last_accessed_at"`
}

func toPersisted(session *service.Session) PersistedSessionData {
	return PersistedSessionData{
		ID:             session.ID,
		ScenarioID:     session.ScenarioID,
		Scenario:       session.Scenario,
		LastRun:        session.LastRun,
		CreatedAt:      session.CreatedAt,
		LastAccessedAt: session.LastAccessedAt,
	}
}

func (d PersistedSessionData) toSession() (*service.Session, error) {
	if err := engine.ValidateScenario(d.Scenario); err != nil {
		return nil, err
	}
	return &service.Session{
		ID:             d.ID,
		ScenarioID:     d.ScenarioID,
		Scenario:       d.Scenario,
		LastRun:        d.LastRun,
		CreatedAt:      d.CreatedAt,
		LastAccessedAt: d.LastAccessedAt,
	}, nil
}
