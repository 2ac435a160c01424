package engine

import (
	"errors"
	"reflect"
	"testing"
)

// recordingObserver captures everything the engine reports, in order
type recordingObserver struct {
	events []string
	ticks  []TickSnapshot
}

func (o *recordingObserver) OnCollision(event CollisionEvent) {
	o.events = append(o.events, event.String())
}

func (o *recordingObserver) OnTick(snapshot TickSnapshot) {
	o.events = append(o.events, "tick")
	o.ticks = append(o.ticks, snapshot)
}

func newTestEngine(t *testing.T, width, height int, vehicles ...*Vehicle) *Engine {
	t.Helper()
	eng, err := NewEngine(Field{Width: width, Height: height}, vehicles)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return eng
}

func TestNewEngine_InvalidField(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
	}{
		{"zero width", 0, 5},
		{"zero height", 5, 0},
		{"negative", -1, -1},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := NewEngine(Field{Width: test.width, Height: test.height}, nil)
			if !errors.Is(err, ErrInvalidConfiguration) {
				t.Errorf("Expected ErrInvalidConfiguration, got %v", err)
			}
		})
	}
}

func TestRun_NoVehicles(t *testing.T) {
	eng := newTestEngine(t, 10, 10)

	if _, err := eng.Run(); !errors.Is(err, ErrInvalidConfiguration) {
		t.Errorf("Expected ErrInvalidConfiguration, got %v", err)
	}
	if _, _, err := eng.Step(); !errors.Is(err, ErrInvalidConfiguration) {
		t.Errorf("Step: expected ErrInvalidConfiguration, got %v", err)
	}
}

func TestRun_SingleVehicleTrace(t *testing.T) {
	a := NewVehicle("A", Position{X: 1, Y: 2}, North, "FFRFFFFRRL")
	eng := newTestEngine(t, 10, 10, a)

	expected := []struct {
		pos     Position
		heading Heading
	}{
		{Position{1, 3}, North},
		{Position{1, 4}, North},
		{Position{1, 4}, East},
		{Position{2, 4}, East},
		{Position{3, 4}, East},
		{Position{4, 4}, East},
		{Position{5, 4}, East},
		{Position{5, 4}, South},
		{Position{5, 4}, West},
		{Position{5, 4}, South},
	}

	if eng.TotalTicks() != len(expected) {
		t.Fatalf("Expected %d ticks, got %d", len(expected), eng.TotalTicks())
	}

	for i, want := range expected {
		snapshot, collisions, err := eng.Step()
		if err != nil {
			t.Fatalf("Step %d failed: %v", i+1, err)
		}
		if len(collisions) != 0 {
			t.Errorf("Step %d: unexpected collisions %v", i+1, collisions)
		}
		if snapshot.Tick != i+1 {
			t.Errorf("Step %d: snapshot tick %d", i+1, snapshot.Tick)
		}
		if a.Position != want.pos || a.Heading != want.heading {
			t.Errorf("Step %d: expected %s %s, got %s %s", i+1, want.pos, want.heading, a.Position, a.Heading)
		}
	}

	if !eng.Done() {
		t.Error("Expected engine to be done")
	}
	if _, _, err := eng.Step(); !errors.Is(err, ErrRunComplete) {
		t.Errorf("Expected ErrRunComplete, got %v", err)
	}

	result, err := eng.Run()
	if err != nil {
		t.Fatalf("Run after completion failed: %v", err)
	}
	if got := result.Final[0].String(); got != "A, (5,4) S" {
		t.Errorf("Expected final A, (5,4) S, got %s", got)
	}
	if len(result.Ticks) != 10 {
		t.Errorf("Expected 10 snapshots, got %d", len(result.Ticks))
	}
}

func TestRun_PassingThroughIsNotACollision(t *testing.T) {
	a := NewVehicle("A", Position{X: 0, Y: 0}, East, "F")
	b := NewVehicle("B", Position{X: 1, Y: 0}, West, "F")
	eng := newTestEngine(t, 10, 10, a, b)

	result, err := eng.Run()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(result.Collisions) != 0 {
		t.Errorf("Expected no collisions, got %v", result.Collisions)
	}
	if a.Position != (Position{1, 0}) || b.Position != (Position{0, 0}) {
		t.Errorf("Expected swap, got A=%s B=%s", a.Position, b.Position)
	}
	if !a.Active || !b.Active {
		t.Error("Expected both vehicles to remain active")
	}
}

func TestRun_SameCellCollision(t *testing.T) {
	a := NewVehicle("A", Position{X: 0, Y: 0}, East, "FF")
	b := NewVehicle("B", Position{X: 2, Y: 0}, West, "F")
	obs := &recordingObserver{}
	eng := newTestEngine(t, 10, 10, a, b)
	eng.AddObserver(obs)

	result, err := eng.Run()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	expectedEvents := []CollisionEvent{
		{Tick: 1, Position: Position{1, 0}, Vehicle: "B", Other: "A"},
		{Tick: 1, Position: Position{1, 0}, Vehicle: "A", Other: "B"},
	}
	if !reflect.DeepEqual(result.Collisions, expectedEvents) {
		t.Errorf("Expected collisions %v, got %v", expectedEvents, result.Collisions)
	}

	if a.Active || b.Active {
		t.Error("Expected both vehicles to be deactivated")
	}
	if a.Position != (Position{1, 0}) {
		t.Errorf("Expected A to stay at (1,0) on tick 2, got %s", a.Position)
	}

	if len(result.Ticks) != 2 {
		t.Fatalf("Expected 2 ticks, got %d", len(result.Ticks))
	}
	for _, snapshot := range result.Ticks {
		if len(snapshot.Vehicles) != 0 {
			t.Errorf("Tick %d: expected no active vehicles, got %v", snapshot.Tick, snapshot.Vehicles)
		}
	}

	wantOrder := []string{
		"Collision detected: B collides with A at (1,0) at step 1",
		"Collision detected: A collides with B at (1,0) at step 1",
		"tick",
		"tick",
	}
	if !reflect.DeepEqual(obs.events, wantOrder) {
		t.Errorf("Expected observer order %v, got %v", wantOrder, obs.events)
	}
}

func TestRun_PileUpReportsOnlyActiveOccupant(t *testing.T) {
	a := NewVehicle("A", Position{X: 0, Y: 0}, East, "F")
	b := NewVehicle("B", Position{X: 2, Y: 0}, West, "F")
	c := NewVehicle("C", Position{X: 1, Y: 1}, South, "F")
	eng := newTestEngine(t, 5, 5, a, b, c)

	result, err := eng.Run()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	var lines []string
	for _, e := range result.Collisions {
		lines = append(lines, e.String())
	}
	expected := []string{
		"Collision detected: B collides with A at (1,0) at step 1",
		"Collision detected: A collides with B at (1,0) at step 1",
		"Collision detected: A collides with C at (1,0) at step 1",
	}
	if !reflect.DeepEqual(lines, expected) {
		t.Errorf("Expected %v, got %v", expected, lines)
	}
	if result.Survivors() != 0 {
		t.Errorf("Expected no survivors, got %d", result.Survivors())
	}
}

func TestRun_CrossingPaths(t *testing.T) {
	scenario := DefaultScenario()
	eng, err := scenario.NewEngine()
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	result, err := eng.Run()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(result.Collisions) != 2 {
		t.Fatalf("Expected 2 collision events, got %v", result.Collisions)
	}
	first := result.Collisions[0]
	if first.Tick != 7 || first.Position != (Position{5, 4}) || first.Vehicle != "B" || first.Other != "A" {
		t.Errorf("Unexpected first collision %+v", first)
	}

	final := []string{result.Final[0].String(), result.Final[1].String()}
	expected := []string{"A, (5,4) E", "B, (5,4) S"}
	if !reflect.DeepEqual(final, expected) {
		t.Errorf("Expected final %v, got %v", expected, final)
	}
	if got := result.Collided(); !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Errorf("Expected collided [A B], got %v", got)
	}
}

func TestRun_EmptyCommandVehicleStaysPut(t *testing.T) {
	a := NewVehicle("A", Position{X: 0, Y: 0}, North, "FFF")
	idle := NewVehicle("idle", Position{X: 4, Y: 4}, West, "")
	eng := newTestEngine(t, 5, 5, a, idle)

	result, err := eng.Run()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got := result.Final[1]; got.Position != (Position{4, 4}) || got.Heading != West || !got.Active {
		t.Errorf("Expected idle vehicle unchanged and active, got %+v", got)
	}
	for _, snapshot := range result.Ticks {
		if snapshot.Cell(Position{4, 4}) != West.Symbol() {
			t.Errorf("Tick %d: expected idle vehicle drawn at (4,4)", snapshot.Tick)
		}
	}
}

func TestRun_StationaryVehicleIsNotAnObstacle(t *testing.T) {
	a := NewVehicle("A", Position{X: 0, Y: 0}, East, "F")
	parked := NewVehicle("P", Position{X: 1, Y: 0}, North, "")
	eng := newTestEngine(t, 5, 5, a, parked)

	result, err := eng.Run()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(result.Collisions) != 0 {
		t.Errorf("Expected no collisions, got %v", result.Collisions)
	}
	if result.Survivors() != 2 {
		t.Errorf("Expected both vehicles active, got %d", result.Survivors())
	}
	// Later registration wins the shared cell in the snapshot
	if got := result.Ticks[0].Cell(Position{1, 0}); got != North.Symbol() {
		t.Errorf("Expected %s at (1,0), got %s", North.Symbol(), got)
	}
}

func TestRun_ClampedVehiclesCollide(t *testing.T) {
	// A is clamped at the wall and stays on (4,0); B then moves onto it
	a := NewVehicle("A", Position{X: 4, Y: 0}, East, "F")
	b := NewVehicle("B", Position{X: 3, Y: 0}, East, "F")
	eng := newTestEngine(t, 5, 5, a, b)

	result, err := eng.Run()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(result.Collisions) != 2 {
		t.Errorf("Expected collision at the wall, got %v", result.Collisions)
	}
}

func TestRun_TicksContinueAfterCollisions(t *testing.T) {
	a := NewVehicle("A", Position{X: 0, Y: 0}, East, "F")
	b := NewVehicle("B", Position{X: 2, Y: 0}, West, "F")
	c := NewVehicle("C", Position{X: 0, Y: 4}, East, "FFFF")
	eng := newTestEngine(t, 5, 5, a, b, c)

	result, err := eng.Run()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(result.Ticks) != 4 {
		t.Errorf("Expected 4 ticks, got %d", len(result.Ticks))
	}
	if c.Position != (Position{4, 4}) {
		t.Errorf("Expected C at (4,4), got %s", c.Position)
	}
}

func TestRun_Deterministic(t *testing.T) {
	scenario := &Scenario{
		Name:  "determinism",
		Field: Field{Width: 6, Height: 6},
		Vehicles: []VehicleSpec{
			{Name: "A", X: 0, Y: 0, Direction: "N", Commands: "FFRFFLFF"},
			{Name: "B", X: 5, Y: 5, Direction: "S", Commands: "FFFRFFF"},
			{Name: "C", X: 2, Y: 2, Direction: "E", Commands: "LFFRFRF"},
		},
	}

	run := func() *RunResult {
		eng, err := scenario.NewEngine()
		if err != nil {
			t.Fatalf("NewEngine failed: %v", err)
		}
		result, err := eng.Run()
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		return result
	}

	first, second := run(), run()
	if !reflect.DeepEqual(first, second) {
		t.Error("Expected identical results for identical scenarios")
	}
}

func TestSnapshot_RowOrder(t *testing.T) {
	a := NewVehicle("A", Position{X: 0, Y: 0}, North, "")
	b := NewVehicle("B", Position{X: 2, Y: 1}, East, "")
	eng := newTestEngine(t, 3, 2, a, b)

	snapshot := eng.Snapshot()
	expected := [][]string{
		{".", ".", "▶"},
		{"▲", ".", "."},
	}
	if !reflect.DeepEqual(snapshot.Grid, expected) {
		t.Errorf("Expected grid %v, got %v", expected, snapshot.Grid)
	}
	if snapshot.Tick != 0 {
		t.Errorf("Expected tick 0 before any step, got %d", snapshot.Tick)
	}
}

func TestReports_CommandsOnlyInFinalReport(t *testing.T) {
	a := NewVehicle("A", Position{X: 0, Y: 0}, North, "FFR")
	b := NewVehicle("B", Position{X: 2, Y: 0}, North, "F")
	eng := newTestEngine(t, 3, 3, a, b)

	result, err := eng.Run()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	for _, tick := range result.Ticks {
		for _, report := range tick.Vehicles {
			if report.Commands != "" {
				t.Errorf("Tick %d: expected no commands for %s, got %q", tick.Tick, report.Name, report.Commands)
			}
		}
	}

	if len(result.Final) != 2 {
		t.Fatalf("Expected 2 final reports, got %d", len(result.Final))
	}
	if result.Final[0].Commands != "FFR" || result.Final[1].Commands != "F" {
		t.Errorf("Expected final commands FFR and F, got %q and %q", result.Final[0].Commands, result.Final[1].Commands)
	}
}

func TestNewEngine_CopiesRegistrationOrder(t *testing.T) {
	vehicles := []*Vehicle{
		NewVehicle("A", Position{}, North, "F"),
		NewVehicle("B", Position{X: 1}, North, "F"),
	}
	eng := newTestEngine(t, 3, 3, vehicles...)

	vehicles[0], vehicles[1] = vehicles[1], vehicles[0]

	if eng.Vehicles()[0].Name != "A" {
		t.Error("Engine registration order changed with the caller's slice")
	}
}
