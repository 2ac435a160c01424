package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// VehicleSpec is a vehicle definition as supplied by a collaborator
type VehicleSpec struct {
	Name      string `json:"name"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Direction string `json:"direction"`
	Commands  string `json:"commands"`
}

// Scenario is a field plus an ordered list of vehicle definitions, loaded from JSON
type Scenario struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Field       Field         `json:"field"`
	Vehicles    []VehicleSpec `json:"vehicles"`
}

// Normalize trims whitespace and upper-cases the direction and commands
func (spec VehicleSpec) Normalize() VehicleSpec {
	spec.Name = strings.TrimSpace(spec.Name)
	spec.Direction = strings.ToUpper(strings.TrimSpace(spec.Direction))
	spec.Commands = strings.ToUpper(strings.TrimSpace(spec.Commands))
	return spec
}

// String formats the definition as "<name>, (<x>,<y>) <direction>, <commands>"
func (spec VehicleSpec) String() string {
	return fmt.Sprintf("%s, (%d,%d) %s, %s", spec.Name, spec.X, spec.Y, spec.Direction, spec.Commands)
}

// NewVehicle builds an active vehicle from the definition
func (spec VehicleSpec) NewVehicle() (*Vehicle, error) {
	heading, err := ParseHeading(spec.Direction)
	if err != nil {
		return nil, err
	}
	return NewVehicle(spec.Name, Position{X: spec.X, Y: spec.Y}, heading, spec.Commands), nil
}

// ValidateCommands checks that every character is L, R or F
func ValidateCommands(commands string) error {
	if len(commands) > MaxCommandLength {
		return fmt.Errorf("%w: at most %d commands allowed, got %d", ErrInvalidCommand, MaxCommandLength, len(commands))
	}
	for i := 0; i < len(commands); i++ {
		if !Command(commands[i]).IsValid() {
			return fmt.Errorf("%w: '%c' at index %d", ErrInvalidCommand, commands[i], i)
		}
	}
	return nil
}

// ValidateVehicleSpec validates a single definition against the field and the
// vehicles already defined before it
func ValidateVehicleSpec(spec VehicleSpec, field Field, existing []VehicleSpec) error {
	if spec.Name == "" {
		return fmt.Errorf("%w: vehicle name is required", ErrInvalidScenario)
	}
	for _, other := range existing {
		if other.Name == spec.Name {
			return fmt.Errorf("%w: %w: %s", ErrInvalidScenario, ErrDuplicateName, spec.Name)
		}
	}
	if _, err := ParseHeading(spec.Direction); err != nil {
		return fmt.Errorf("%w: vehicle %s: %w", ErrInvalidScenario, spec.Name, err)
	}
	if err := ValidateCommands(spec.Commands); err != nil {
		return fmt.Errorf("%w: vehicle %s: %w", ErrInvalidScenario, spec.Name, err)
	}
	if !field.Contains(Position{X: spec.X, Y: spec.Y}) {
		return fmt.Errorf("%w: vehicle %s: %w: (%d,%d) not within %s",
			ErrInvalidScenario, spec.Name, ErrOutOfBounds, spec.X, spec.Y, field)
	}
	return nil
}

// ValidateScenario validates a scenario for structure and playability.
// A scenario without vehicles is valid; running it is not.
func ValidateScenario(scenario *Scenario) error {
	if scenario == nil {
		return fmt.Errorf("%w: scenario cannot be nil", ErrInvalidScenario)
	}
	if scenario.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidScenario)
	}

	field := scenario.Field
	if field.Width < MinFieldSize || field.Width > MaxFieldSize {
		return fmt.Errorf("%w: field width must be between %d and %d, got %d",
			ErrInvalidScenario, MinFieldSize, MaxFieldSize, field.Width)
	}
	if field.Height < MinFieldSize || field.Height > MaxFieldSize {
		return fmt.Errorf("%w: field height must be between %d and %d, got %d",
			ErrInvalidScenario, MinFieldSize, MaxFieldSize, field.Height)
	}

	for i, spec := range scenario.Vehicles {
		if err := ValidateVehicleSpec(spec, field, scenario.Vehicles[:i]); err != nil {
			return err
		}
	}

	return nil
}

// NewEngine validates the scenario and builds a fresh engine with newly created
// vehicles, so every call starts from the scenario's initial state
func (s *Scenario) NewEngine() (*Engine, error) {
	if err := ValidateScenario(s); err != nil {
		return nil, err
	}

	vehicles := make([]*Vehicle, 0, len(s.Vehicles))
	for _, spec := range s.Vehicles {
		v, err := spec.NewVehicle()
		if err != nil {
			return nil, err
		}
		vehicles = append(vehicles, v)
	}

	return NewEngine(s.Field, vehicles)
}

// Clone returns a deep copy of the scenario
func (s *Scenario) Clone() *Scenario {
	if s == nil {
		return nil
	}
	c := *s
	c.Vehicles = append([]VehicleSpec(nil), s.Vehicles...)
	return &c
}

// LoadScenario loads and validates a scenario from a JSON file
func LoadScenario(filename string) (*Scenario, error) {
	// Support SCENARIO_DIR environment variable for alternative scenario directory
	path := filename
	if dir := os.Getenv("SCENARIO_DIR"); dir != "" && strings.HasPrefix(filename, "scenarios/") {
		path = filepath.Join(dir, strings.TrimPrefix(filename, "scenarios/"))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return ParseScenario(data)
}

// ParseScenario decodes and validates a JSON scenario. Vehicle definitions are
// normalized before validation.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	if err := json.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}

	for i := range scenario.Vehicles {
		scenario.Vehicles[i] = scenario.Vehicles[i].Normalize()
	}

	if err := ValidateScenario(&scenario); err != nil {
		return nil, err
	}

	return &scenario, nil
}

// DefaultScenario returns the built-in scenario used when no catalogue is available
func DefaultScenario() *Scenario {
	return &Scenario{
		Name:        "default",
		Description: "Two cars on a 10x10 field whose paths cross",
		Field:       Field{Width: 10, Height: 10},
		Vehicles: []VehicleSpec{
			{Name: "A", X: 1, Y: 2, Direction: "N", Commands: "FFRFFFFRRL"},
			{Name: "B", X: 7, Y: 8, Direction: "W", Commands: "FFLFFFFFFF"},
		},
	}
}
