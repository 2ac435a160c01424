// Command analyze runs every scenario in a directory (default "scenarios") and
// prints a short summary of each run: ticks, collisions, survivors and how many
// forward moves were wasted against the field boundary.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wricardo/mcp-training/autodrive/sim/engine"
)

// Analysis summarises one scenario run
type Analysis struct {
	Name            string
	Field           engine.Field
	Vehicles        int
	Ticks           int
	CollisionEvents int
	// Crashes counts distinct (tick, cell) collision sites
	Crashes        int
	FirstCrashTick int
	Survivors      int
	Collided       []string
	BlockedMoves   map[string]int
	Final          []engine.VehicleReport
}

// analyzeScenario steps through the scenario tick by tick, counting forward
// moves that left a vehicle in place because of the field boundary
func analyzeScenario(scenario *engine.Scenario) (*Analysis, error) {
	eng, err := scenario.NewEngine()
	if err != nil {
		return nil, err
	}

	a := &Analysis{
		Name:         scenario.Name,
		Field:        scenario.Field,
		Vehicles:     len(scenario.Vehicles),
		BlockedMoves: make(map[string]int),
	}

	type site struct {
		tick int
		pos  engine.Position
	}
	sites := make(map[site]bool)

	for !eng.Done() {
		step := eng.CurrentTick()

		before := make(map[string]engine.Position)
		for _, v := range eng.Vehicles() {
			if cmd, ok := v.CommandAt(step); ok && v.Active && cmd == engine.MoveForward {
				before[v.Name] = v.Position
			}
		}

		_, collisions, err := eng.Step()
		if err != nil {
			return nil, err
		}

		for _, v := range eng.Vehicles() {
			if pos, moved := before[v.Name]; moved && pos == v.Position {
				a.BlockedMoves[v.Name]++
			}
		}
		for _, c := range collisions {
			a.CollisionEvents++
			s := site{tick: c.Tick, pos: c.Position}
			if !sites[s] {
				sites[s] = true
				a.Crashes++
				if a.FirstCrashTick == 0 {
					a.FirstCrashTick = c.Tick
				}
			}
		}
		a.Ticks++
	}

	a.Final = eng.FinalReport()
	for _, r := range a.Final {
		if r.Active {
			a.Survivors++
		} else {
			a.Collided = append(a.Collided, r.Name)
		}
	}

	return a, nil
}

func printAnalysis(out io.Writer, a *Analysis) {
	fmt.Fprintf(out, "Name: %s\n", a.Name)
	fmt.Fprintf(out, "Field: %s\n", a.Field)
	fmt.Fprintf(out, "Vehicles: %d\n", a.Vehicles)
	fmt.Fprintf(out, "Ticks: %d\n", a.Ticks)

	if a.Crashes == 0 {
		fmt.Fprintln(out, "✅ No collisions")
	} else {
		fmt.Fprintf(out, "⚠️  %d collision(s), first at step %d (%d events)\n",
			a.Crashes, a.FirstCrashTick, a.CollisionEvents)
		fmt.Fprintf(out, "   Collided: %s\n", strings.Join(a.Collided, ", "))
	}
	fmt.Fprintf(out, "Survivors: %d/%d\n", a.Survivors, a.Vehicles)

	names := make([]string, 0, len(a.BlockedMoves))
	for name := range a.BlockedMoves {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "   %s wasted %d forward move(s) at the boundary\n", name, a.BlockedMoves[name])
	}

	for _, r := range a.Final {
		fmt.Fprintf(out, "- %s\n", r)
	}
}

// analyzeDir analyzes every scenario in dir and returns the number of files
// that could not be analyzed
func analyzeDir(dir string, out io.Writer) int {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		fmt.Fprintf(out, "Error finding scenario files: %v\n", err)
		return 1
	}

	failures := 0
	for _, file := range files {
		fmt.Fprintf(out, "\n=== Analyzing %s ===\n", filepath.Base(file))

		scenario, err := engine.LoadScenario(file)
		if err != nil {
			fmt.Fprintf(out, "Error loading scenario: %v\n", err)
			failures++
			continue
		}
		if len(scenario.Vehicles) == 0 {
			fmt.Fprintf(out, "Name: %s\nField: %s\nNo vehicles, nothing to run\n", scenario.Name, scenario.Field)
			continue
		}

		analysis, err := analyzeScenario(scenario)
		if err != nil {
			fmt.Fprintf(out, "Error running scenario: %v\n", err)
			failures++
			continue
		}
		printAnalysis(out, analysis)
	}

	return failures
}

func main() {
	dir := "scenarios"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	if failures := analyzeDir(dir, os.Stdout); failures > 0 {
		os.Exit(1)
	}
}
