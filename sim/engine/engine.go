package engine

import "fmt"

// Observer receives simulation output as it is produced. Collisions of a tick
// are delivered before that tick's snapshot.
type Observer interface {
	OnCollision(event CollisionEvent)
	OnTick(snapshot TickSnapshot)
}

// Engine advances an ordered set of vehicles over a field in lock-step ticks
type Engine struct {
	field     Field
	vehicles  []*Vehicle
	step      int
	maxSteps  int
	result    RunResult
	observers []Observer
}

// NewEngine creates an engine. Vehicles are registered in slice order, which
// is the order they move in within every tick.
func NewEngine(field Field, vehicles []*Vehicle) (*Engine, error) {
	if field.Width < MinFieldSize || field.Height < MinFieldSize {
		return nil, fmt.Errorf("%w: field must be at least %dx%d, got %dx%d",
			ErrInvalidConfiguration, MinFieldSize, MinFieldSize, field.Width, field.Height)
	}

	registered := make([]*Vehicle, len(vehicles))
	copy(registered, vehicles)

	maxSteps := 0
	for _, v := range registered {
		if len(v.Commands) > maxSteps {
			maxSteps = len(v.Commands)
		}
	}

	return &Engine{
		field:    field,
		vehicles: registered,
		maxSteps: maxSteps,
		result:   RunResult{Field: field},
	}, nil
}

// AddObserver registers an observer for collisions and snapshots
func (e *Engine) AddObserver(o Observer) {
	e.observers = append(e.observers, o)
}

// Field returns the simulation field
func (e *Engine) Field() Field {
	return e.field
}

// Vehicles returns the registered vehicles in registration order
func (e *Engine) Vehicles() []*Vehicle {
	return e.vehicles
}

// TotalTicks returns the number of ticks a full run takes, the longest command string
func (e *Engine) TotalTicks() int {
	return e.maxSteps
}

// CurrentTick returns the number of ticks already processed
func (e *Engine) CurrentTick() int {
	return e.step
}

// Done reports whether every tick has been processed
func (e *Engine) Done() bool {
	return e.step >= e.maxSteps
}

// Step processes a single tick and returns its snapshot and collisions
func (e *Engine) Step() (TickSnapshot, []CollisionEvent, error) {
	if len(e.vehicles) == 0 {
		return TickSnapshot{}, nil, fmt.Errorf("%w: at least one vehicle is required", ErrInvalidConfiguration)
	}
	if e.Done() {
		return TickSnapshot{}, nil, ErrRunComplete
	}

	tick := e.step + 1
	// Cells reached by a vehicle during this tick, mapped to the vehicle's index
	occupied := make(map[Position]int)
	var collisions []CollisionEvent

	for i, v := range e.vehicles {
		if !v.Active {
			continue
		}
		cmd, ok := v.CommandAt(e.step)
		if !ok {
			continue
		}

		v.ExecuteCommand(cmd, e.field)

		j, taken := occupied[v.Position]
		if !taken {
			occupied[v.Position] = i
			continue
		}

		occupant := e.vehicles[j]
		if occupant.Active {
			collisions = append(collisions, CollisionEvent{
				Tick:     tick,
				Position: v.Position,
				Vehicle:  v.Name,
				Other:    occupant.Name,
			})
			occupant.Deactivate()
		}
		collisions = append(collisions, CollisionEvent{
			Tick:     tick,
			Position: v.Position,
			Vehicle:  occupant.Name,
			Other:    v.Name,
		})
		v.Deactivate()
	}

	e.step++
	snapshot := e.Snapshot()

	e.result.Collisions = append(e.result.Collisions, collisions...)
	e.result.Ticks = append(e.result.Ticks, snapshot)

	for _, o := range e.observers {
		for _, c := range collisions {
			o.OnCollision(c)
		}
		o.OnTick(snapshot)
	}

	return snapshot, collisions, nil
}

// Run processes all remaining ticks and returns the accumulated result
func (e *Engine) Run() (*RunResult, error) {
	if len(e.vehicles) == 0 {
		return nil, fmt.Errorf("%w: at least one vehicle is required", ErrInvalidConfiguration)
	}

	for !e.Done() {
		if _, _, err := e.Step(); err != nil {
			return nil, err
		}
	}

	result := e.result
	result.Final = e.FinalReport()
	return &result, nil
}

// Snapshot renders the current occupancy of active vehicles. When two active
// vehicles share a cell the later-registered one is drawn.
func (e *Engine) Snapshot() TickSnapshot {
	grid := e.field.EmptyGrid()
	var active []VehicleReport

	for _, v := range e.vehicles {
		if !v.Active || !e.field.Contains(v.Position) {
			continue
		}
		grid[e.field.Height-1-v.Position.Y][v.Position.X] = v.Heading.Symbol()
		active = append(active, v.Report())
	}

	return TickSnapshot{
		Tick:     e.step,
		Width:    e.field.Width,
		Height:   e.field.Height,
		Grid:     grid,
		Vehicles: active,
	}
}

// FinalReport returns every vehicle's state and commands in registration order
func (e *Engine) FinalReport() []VehicleReport {
	reports := make([]VehicleReport, 0, len(e.vehicles))
	for _, v := range e.vehicles {
		report := v.Report()
		report.Commands = v.Commands
		reports = append(reports, report)
	}
	return reports
}
