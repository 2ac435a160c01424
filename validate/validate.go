// Command validate checks the scenario JSON files in a directory
// (default ../scenarios). For every file it checks:
//   - JSON structure and the scenario name matching the file name
//   - Field dimensions within the supported range
//   - Vehicle names, start positions, directions and command strings
//   - That the scenario actually runs (a dry run reporting ticks and collisions)
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/wricardo/mcp-training/autodrive/sim/engine"
)

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
}

func (r *ValidationResult) fail(format string, args ...any) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) info(format string, args ...any) {
	r.Errors = append(r.Errors, "✓ "+fmt.Sprintf(format, args...))
}

// validateScenario loads a scenario file and reports every problem found,
// not only the first one
func validateScenario(filePath string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.fail("Failed to read file: %v", err)
		return result
	}

	var scenario engine.Scenario
	if err := json.Unmarshal(data, &scenario); err != nil {
		result.fail("Invalid JSON: %v", err)
		return result
	}

	stem := strings.TrimSuffix(result.File, filepath.Ext(result.File))
	if scenario.Name == "" {
		result.fail("Missing scenario name")
	} else if scenario.Name != stem {
		result.fail("Scenario name %q does not match file name %q", scenario.Name, stem)
	}

	field := scenario.Field
	fieldValid := true
	if field.Width < engine.MinFieldSize || field.Width > engine.MaxFieldSize {
		fieldValid = false
		result.fail("Field width must be between %d and %d, got %d", engine.MinFieldSize, engine.MaxFieldSize, field.Width)
	}
	if field.Height < engine.MinFieldSize || field.Height > engine.MaxFieldSize {
		fieldValid = false
		result.fail("Field height must be between %d and %d, got %d", engine.MinFieldSize, engine.MaxFieldSize, field.Height)
	}

	if fieldValid {
		for i := range scenario.Vehicles {
			scenario.Vehicles[i] = scenario.Vehicles[i].Normalize()
			if err := engine.ValidateVehicleSpec(scenario.Vehicles[i], field, scenario.Vehicles[:i]); err != nil {
				result.fail("Vehicle %d: %v", i+1, err)
			}
		}
	}

	if !result.Valid {
		return result
	}

	result.info("Name: %s", scenario.Name)
	result.info("Field: %s", field)
	result.info("Vehicles: %d", len(scenario.Vehicles))

	if len(scenario.Vehicles) == 0 {
		result.info("Template only: add vehicles before running")
		return result
	}

	// Dry run
	eng, err := scenario.NewEngine()
	if err != nil {
		result.fail("Failed to build simulation: %v", err)
		return result
	}
	run, err := eng.Run()
	if err != nil {
		result.fail("Simulation failed: %v", err)
		return result
	}
	result.info("Dry run: %d ticks, %d collision events, %d/%d survivors",
		len(run.Ticks), len(run.Collisions), run.Survivors(), len(run.Final))

	return result
}

// validateDir validates every *.json file in dir and writes a report to out.
// It returns false if any file is invalid or none were found.
func validateDir(dir string, out io.Writer) bool {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		fmt.Fprintf(out, "Error finding scenario files: %v\n", err)
		return false
	}
	if len(files) == 0 {
		fmt.Fprintf(out, "No scenario files found in %s\n", dir)
		return false
	}

	allValid := true
	for _, file := range files {
		result := validateScenario(file)

		fmt.Fprintf(out, "\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Fprintln(out, "✅ VALID")
			for _, info := range result.Errors {
				fmt.Fprintln(out, "  "+info)
			}
		} else {
			fmt.Fprintln(out, "❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				if !strings.HasPrefix(err, "✓") {
					fmt.Fprintln(out, "  ❌ "+err)
				}
			}
		}
	}

	fmt.Fprintf(out, "\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Fprintln(out, "✅ All scenarios are valid!")
	} else {
		fmt.Fprintln(out, "❌ Some scenarios have errors")
	}
	return allValid
}

func main() {
	dir := "../scenarios"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	if !validateDir(dir, os.Stdout) {
		os.Exit(1)
	}
}
