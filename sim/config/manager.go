package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/wricardo/mcp-training/autodrive/sim/engine"
	"github.com/wricardo/mcp-training/autodrive/sim/service"
)

var (
	ErrConfigNotFound = errors.New("scenario not found")
	ErrInvalidConfig  = errors.New("invalid scenario")
)

// defaultScenarioID is the catalogue entry preferred as the default
const defaultScenarioID = "default"

// Manager handles scenario loading and caching for a catalogue directory
type Manager struct {
	dir             string
	defaultScenario *engine.Scenario
	scenarios       map[string]*engine.Scenario
	mu              sync.RWMutex
}

// NewManager creates a new scenario manager
func NewManager(dir string) (*Manager, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, fmt.Errorf("scenario directory does not exist: %s", dir)
	}

	m := &Manager{
		dir:       dir,
		scenarios: make(map[string]*engine.Scenario),
	}
	m.loadDefaultScenario()

	return m, nil
}

// scenarioID strips the .json extension and rejects names escaping the directory
func scenarioID(name string) (string, error) {
	id := strings.TrimSuffix(strings.TrimSpace(name), ".json")
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return "", fmt.Errorf("%w: bad scenario name %q", ErrInvalidConfig, name)
	}
	return id, nil
}

// LoadScenario loads a scenario by name. The returned scenario is shared by
// the cache and must be cloned before it is modified.
func (m *Manager) LoadScenario(name string) (*engine.Scenario, error) {
	id, err := scenarioID(name)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	if scenario, exists := m.scenarios[id]; exists {
		m.mu.RUnlock()
		return scenario, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if scenario, exists := m.scenarios[id]; exists {
		return scenario, nil
	}

	data, err := os.ReadFile(filepath.Join(m.dir, id+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, id)
		}
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := engine.ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, id, err)
	}

	m.scenarios[id] = scenario
	return scenario, nil
}

// ListScenarios returns information about every valid scenario in the directory
func (m *Manager) ListScenarios() ([]*service.ScenarioInfo, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario directory: %w", err)
	}

	var infos []*service.ScenarioInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		id := strings.TrimSuffix(entry.Name(), ".json")
		scenario, err := m.LoadScenario(id)
		if err != nil {
			// Skip invalid scenarios
			continue
		}

		infos = append(infos, &service.ScenarioInfo{
			Filename:    entry.Name(),
			ScenarioID:  id,
			Name:        scenario.Name,
			Description: scenario.Description,
			Width:       scenario.Field.Width,
			Height:      scenario.Field.Height,
			Vehicles:    len(scenario.Vehicles),
		})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].ScenarioID < infos[j].ScenarioID })
	return infos, nil
}

// GetDefault returns the default scenario
func (m *Manager) GetDefault() *engine.Scenario {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultScenario
}

// SetDefault sets the default scenario by name
func (m *Manager) SetDefault(name string) error {
	scenario, err := m.LoadScenario(name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultScenario = scenario
	return nil
}

// RefreshCache drops cached scenarios and reloads the default from disk
func (m *Manager) RefreshCache() {
	m.mu.Lock()
	m.scenarios = make(map[string]*engine.Scenario)
	m.mu.Unlock()

	m.loadDefaultScenario()
}

// loadDefaultScenario picks default.json, then the first valid scenario, then
// the built-in scenario
func (m *Manager) loadDefaultScenario() {
	scenario, err := m.LoadScenario(defaultScenarioID)
	if err != nil {
		scenario = engine.DefaultScenario()
		if infos, listErr := m.ListScenarios(); listErr == nil && len(infos) > 0 {
			if first, loadErr := m.LoadScenario(infos[0].ScenarioID); loadErr == nil {
				scenario = first
			}
		}
	}

	m.mu.Lock()
	m.defaultScenario = scenario
	m.mu.Unlock()
}

// SaveScenario validates a scenario and writes it to the directory
func (m *Manager) SaveScenario(name string, scenario *engine.Scenario) error {
	id, err := scenarioID(name)
	if err != nil {
		return err
	}

	if err := engine.ValidateScenario(scenario); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	data, err := json.MarshalIndent(scenario, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal scenario: %w", err)
	}

	if err := os.WriteFile(filepath.Join(m.dir, id+".json"), data, 0644); err != nil {
		return fmt.Errorf("failed to write scenario file: %w", err)
	}

	stored := scenario.Clone()
	m.mu.Lock()
	m.scenarios[id] = stored
	m.mu.Unlock()

	return nil
}
