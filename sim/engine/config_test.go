package engine

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validScenario() *Scenario {
	return &Scenario{
		Name:        "Test Scenario",
		Description: "Scenario for validation tests",
		Field:       Field{Width: 10, Height: 10},
		Vehicles: []VehicleSpec{
			{Name: "A", X: 1, Y: 2, Direction: "N", Commands: "FFRFFFFRRL"},
			{Name: "B", X: 7, Y: 8, Direction: "W", Commands: "FFLFFFFFFF"},
		},
	}
}

func TestValidateScenario_Valid(t *testing.T) {
	if err := ValidateScenario(validScenario()); err != nil {
		t.Errorf("Expected valid scenario, got %v", err)
	}
}

func TestValidateScenario_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		modify   func(s *Scenario)
		sentinel error
		contains string
	}{
		{"missing name", func(s *Scenario) { s.Name = "" }, ErrInvalidScenario, "name is required"},
		{"zero width", func(s *Scenario) { s.Field.Width = 0 }, ErrInvalidScenario, "width"},
		{"too tall", func(s *Scenario) { s.Field.Height = MaxFieldSize + 1 }, ErrInvalidScenario, "height"},
		{"empty vehicle name", func(s *Scenario) { s.Vehicles[0].Name = "" }, ErrInvalidScenario, "vehicle name"},
		{"duplicate name", func(s *Scenario) { s.Vehicles[1].Name = "A" }, ErrDuplicateName, "A"},
		{"bad direction", func(s *Scenario) { s.Vehicles[0].Direction = "Q" }, ErrInvalidHeading, "Q"},
		{"bad command", func(s *Scenario) { s.Vehicles[1].Commands = "FFX" }, ErrInvalidCommand, "'X'"},
		{"lower-case command", func(s *Scenario) { s.Vehicles[1].Commands = "ff" }, ErrInvalidCommand, "'f'"},
		{"x out of bounds", func(s *Scenario) { s.Vehicles[0].X = 10 }, ErrOutOfBounds, "(10,2)"},
		{"negative y", func(s *Scenario) { s.Vehicles[0].Y = -1 }, ErrOutOfBounds, "(1,-1)"},
		{"too many commands", func(s *Scenario) {
			s.Vehicles[0].Commands = strings.Repeat("F", MaxCommandLength+1)
		}, ErrInvalidCommand, "at most"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			s := validScenario()
			test.modify(s)

			err := ValidateScenario(s)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !errors.Is(err, test.sentinel) {
				t.Errorf("Expected %v, got %v", test.sentinel, err)
			}
			if !errors.Is(err, ErrInvalidScenario) {
				t.Errorf("Expected error to wrap ErrInvalidScenario, got %v", err)
			}
			if !strings.Contains(err.Error(), test.contains) {
				t.Errorf("Expected error containing %q, got %q", test.contains, err.Error())
			}
		})
	}
}

func TestValidateScenario_NoVehiclesIsValid(t *testing.T) {
	s := validScenario()
	s.Vehicles = nil

	if err := ValidateScenario(s); err != nil {
		t.Fatalf("Expected empty scenario to validate, got %v", err)
	}

	eng, err := s.NewEngine()
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	if _, err := eng.Run(); !errors.Is(err, ErrInvalidConfiguration) {
		t.Errorf("Expected ErrInvalidConfiguration from Run, got %v", err)
	}
}

func TestScenario_NewEngineIsFresh(t *testing.T) {
	s := validScenario()

	first, err := s.NewEngine()
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	if _, err := first.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	second, err := s.NewEngine()
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	for _, v := range second.Vehicles() {
		if !v.Active {
			t.Errorf("Vehicle %s carried state over from a previous run", v.Name)
		}
	}
	if second.Vehicles()[0].Position != (Position{X: 1, Y: 2}) {
		t.Errorf("Expected A at start (1,2), got %s", second.Vehicles()[0].Position)
	}
}

func TestScenario_Clone(t *testing.T) {
	s := validScenario()
	c := s.Clone()
	c.Vehicles[0].Name = "Z"

	if s.Vehicles[0].Name != "A" {
		t.Error("Clone shares vehicle definitions with the original")
	}
	if (*Scenario)(nil).Clone() != nil {
		t.Error("Expected nil clone of nil scenario")
	}
}

func TestVehicleSpec_Normalize(t *testing.T) {
	spec := VehicleSpec{Name: "  A ", Direction: " n", Commands: " ffrl "}.Normalize()

	if spec.Name != "A" || spec.Direction != "N" || spec.Commands != "FFRL" {
		t.Errorf("Unexpected normalized spec %+v", spec)
	}
	if got := spec.String(); got != "A, (0,0) N, FFRL" {
		t.Errorf("Unexpected spec string %q", got)
	}
}

func TestParseScenario(t *testing.T) {
	data := []byte(`{
		"name": "crossing",
		"description": "two cars",
		"field": {"width": 10, "height": 10},
		"vehicles": [
			{"name": "A", "x": 1, "y": 2, "direction": "n", "commands": "ffrffffrrl"},
			{"name": "B", "x": 7, "y": 8, "direction": "W", "commands": "FFLFFFFFFF"}
		]
	}`)

	s, err := ParseScenario(data)
	if err != nil {
		t.Fatalf("ParseScenario failed: %v", err)
	}
	if s.Vehicles[0].Commands != "FFRFFFFRRL" || s.Vehicles[0].Direction != "N" {
		t.Errorf("Expected normalized vehicle, got %+v", s.Vehicles[0])
	}

	if _, err := ParseScenario([]byte(`{not json`)); err == nil {
		t.Error("Expected parse error")
	}
	if _, err := ParseScenario([]byte(`{"name": "x", "field": {"width": 0, "height": 1}}`)); !errors.Is(err, ErrInvalidScenario) {
		t.Errorf("Expected ErrInvalidScenario, got %v", err)
	}
}

func TestLoadScenario(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "single.json")
	content := `{"name": "single", "description": "one car", "field": {"width": 5, "height": 5},
		"vehicles": [{"name": "A", "x": 0, "y": 0, "direction": "N", "commands": "FF"}]}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write scenario: %v", err)
	}

	s, err := LoadScenario(path)
	if err != nil {
		t.Fatalf("LoadScenario failed: %v", err)
	}
	if s.Name != "single" || len(s.Vehicles) != 1 {
		t.Errorf("Unexpected scenario %+v", s)
	}

	t.Setenv("SCENARIO_DIR", dir)
	if _, err := LoadScenario("scenarios/single.json"); err != nil {
		t.Errorf("Expected SCENARIO_DIR override to resolve the file, got %v", err)
	}

	if _, err := LoadScenario(filepath.Join(dir, "missing.json")); !os.IsNotExist(err) {
		t.Errorf("Expected not-exist error, got %v", err)
	}
}

func TestDefaultScenario_IsValid(t *testing.T) {
	if err := ValidateScenario(DefaultScenario()); err != nil {
		t.Errorf("Default scenario invalid: %v", err)
	}
}
