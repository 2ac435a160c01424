package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wricardo/mcp-training/autodrive/sim/engine"
	"github.com/wricardo/mcp-training/autodrive/sim/render"
)

// blankScenarioID identifies sessions that started from an empty field
const blankScenarioID = "custom"

// simulationServiceImpl implements the SimulationService interface
type simulationServiceImpl struct {
	sessions  SessionManager
	scenarios ScenarioManager
	metrics   *RunMetrics
	log       *zap.SugaredLogger
	mu        sync.RWMutex
}

// NewSimulationService creates a new simulation service instance
func NewSimulationService(sessions SessionManager, scenarios ScenarioManager, log *zap.SugaredLogger) SimulationService {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &simulationServiceImpl{
		sessions:  sessions,
		scenarios: scenarios,
		metrics:   &RunMetrics{},
		log:       log,
	}
}

// CreateSession creates a session from a catalogue scenario, or from the
// default scenario when scenarioID is empty
func (s *simulationServiceImpl) CreateSession(ctx context.Context, scenarioID string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var scenario *engine.Scenario
	if scenarioID != "" {
		loaded, err := s.scenarios.LoadScenario(scenarioID)
		if err != nil {
			return nil, s.scenarioLoadError(scenarioID, err)
		}
		scenario = loaded
	} else {
		scenario = s.scenarios.GetDefault()
		scenarioID = scenario.Name
	}

	// Sessions mutate their scenario, the catalogue copy stays untouched
	sess, err := s.sessions.Create("", scenarioID, scenario.Clone())
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.log.Infow("session created", "session", sess.ID, "scenario", scenarioID)
	return toSessionInfo(sess), nil
}

// scenarioLoadError adds the available scenario IDs to a not-found error
func (s *simulationServiceImpl) scenarioLoadError(scenarioID string, err error) error {
	available, listErr := s.scenarios.ListScenarios()
	if listErr != nil || len(available) == 0 {
		return fmt.Errorf("failed to load scenario %s: %w", scenarioID, err)
	}
	ids := make([]string, 0, len(available))
	for _, info := range available {
		ids = append(ids, info.ScenarioID)
	}
	return fmt.Errorf("failed to load scenario %s (available: %v): %w", scenarioID, ids, err)
}

// CreateBlankSession creates a session with an empty field of the given size
func (s *simulationServiceImpl) CreateBlankSession(ctx context.Context, width, height int) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	scenario := &engine.Scenario{
		Name:  blankScenarioID,
		Field: engine.Field{Width: width, Height: height},
	}
	if err := engine.ValidateScenario(scenario); err != nil {
		return nil, err
	}

	sess, err := s.sessions.Create("", blankScenarioID, scenario)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.log.Infow("blank session created", "session", sess.ID, "field", scenario.Field.String())
	return toSessionInfo(sess), nil
}

// GetSession retrieves session information. Touching the access time is a
// write, so it holds the exclusive lock.
func (s *simulationServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}

	s.touch(sessionID)
	return toSessionInfo(sess), nil
}

// ListSessions returns all active sessions
func (s *simulationServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, toSessionInfo(sess))
	}
	return result, nil
}

// DeleteSession removes a session
func (s *simulationServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.sessions.Delete(sessionID); err != nil {
		return err
	}
	s.log.Infow("session deleted", "session", sessionID)
	return nil
}

// AddVehicle places a vehicle on the session's field. The previous run no
// longer describes the session and is dropped.
func (s *simulationServiceImpl) AddVehicle(ctx context.Context, sessionID string, spec engine.VehicleSpec) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}
	s.touch(sessionID)

	spec = spec.Normalize()
	if err := engine.ValidateVehicleSpec(spec, sess.Scenario.Field, sess.Scenario.Vehicles); err != nil {
		if errors.Is(err, engine.ErrDuplicateName) {
			return nil, fmt.Errorf("%w: %w", ErrDuplicateVehicle, err)
		}
		return nil, err
	}

	sess.Scenario.Vehicles = append(sess.Scenario.Vehicles, spec)
	sess.LastRun = nil

	if err := s.sessions.Save(sessionID); err != nil {
		s.log.Warnw("failed to persist session after adding vehicle", "session", sessionID, "error", err)
	}

	s.log.Debugw("vehicle added", "session", sessionID, "vehicle", spec.String())
	return toSessionInfo(sess), nil
}

// ResetSession starts the session over: the field is kept, vehicles and the
// last run are dropped
func (s *simulationServiceImpl) ResetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}
	s.touch(sessionID)

	sess.Scenario.Vehicles = nil
	sess.LastRun = nil

	if err := s.sessions.Save(sessionID); err != nil {
		s.log.Warnw("failed to persist session after reset", "session", sessionID, "error", err)
	}

	return toSessionInfo(sess), nil
}

// RunSimulation runs the session's vehicles on a fresh engine and stores the result
func (s *simulationServiceImpl) RunSimulation(ctx context.Context, sessionID string) (*RunInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}
	s.touch(sessionID)

	if len(sess.Scenario.Vehicles) == 0 {
		return nil, fmt.Errorf("%w: session %s", ErrNoVehicles, sessionID)
	}

	eng, err := sess.Scenario.NewEngine()
	if err != nil {
		return nil, err
	}

	started := time.Now()
	result, err := eng.Run()
	if err != nil {
		return nil, fmt.Errorf("simulation failed: %w", err)
	}
	elapsed := time.Since(started)

	record := &RunRecord{
		RunID:     uuid.NewString(),
		StartedAt: started,
		Duration:  elapsed,
		Result:    result,
	}
	sess.LastRun = record
	s.metrics.AddRun(result, elapsed)

	if err := s.sessions.Save(sessionID); err != nil {
		s.log.Warnw("failed to persist session after run", "session", sessionID, "error", err)
	}

	s.log.Infow("simulation completed",
		"session", sessionID,
		"run", record.RunID,
		"ticks", len(result.Ticks),
		"collisions", len(result.Collisions),
		"survivors", result.Survivors(),
	)

	return toRunInfo(sess.ID, record), nil
}

// GetResult returns the last completed run of a session
func (s *simulationServiceImpl) GetResult(ctx context.Context, sessionID string) (*RunInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}
	if sess.LastRun == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoRun, sessionID)
	}
	return toRunInfo(sess.ID, sess.LastRun), nil
}

// ListScenarios returns the scenario catalogue
func (s *simulationServiceImpl) ListScenarios(ctx context.Context) ([]*ScenarioInfo, error) {
	return s.scenarios.ListScenarios()
}

// LoadScenario loads a scenario from the catalogue
func (s *simulationServiceImpl) LoadScenario(ctx context.Context, name string) (*engine.Scenario, error) {
	return s.scenarios.LoadScenario(name)
}

// SaveScenario stores a scenario in the catalogue
func (s *simulationServiceImpl) SaveScenario(ctx context.Context, name string, scenario *engine.Scenario) error {
	return s.scenarios.SaveScenario(name, scenario)
}

// Metrics returns run counters across all sessions
func (s *simulationServiceImpl) Metrics(ctx context.Context) map[string]any {
	snapshot := s.metrics.Snapshot()

	s.mu.RLock()
	snapshot["sessions"] = len(s.sessions.List())
	s.mu.RUnlock()

	return snapshot
}

// touch refreshes the session's access time. Callers hold s.mu exclusively.
func (s *simulationServiceImpl) touch(sessionID string) {
	if err := s.sessions.UpdateLastAccessed(sessionID); err != nil {
		s.log.Debugw("failed to update session access time", "session", sessionID, "error", err)
	}
}

func toSessionInfo(sess *Session) *SessionInfo {
	info := &SessionInfo{
		ID:             sess.ID,
		ScenarioID:     sess.ScenarioID,
		Field:          sess.Scenario.Field,
		Vehicles:       append([]engine.VehicleSpec{}, sess.Scenario.Vehicles...),
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessedAt,
	}
	if sess.LastRun != nil {
		info.LastRunID = sess.LastRun.RunID
	}
	return info
}

func toRunInfo(sessionID string, record *RunRecord) *RunInfo {
	result := record.Result
	return &RunInfo{
		SessionID:  sessionID,
		RunID:      record.RunID,
		StartedAt:  record.StartedAt,
		DurationMs: float64(record.Duration.Nanoseconds()) / 1e6,
		TotalTicks: len(result.Ticks),
		Survivors:  result.Survivors(),
		Collided:   result.Collided(),
		Collisions: result.Collisions,
		Final:      result.Final,
		Ticks:      result.Ticks,
		Report:     render.Result(result),
	}
}
