package engine

import "fmt"

// Command is a single-character vehicle instruction
type Command byte

const (
	RotateLeft  Command = 'L'
	RotateRight Command = 'R'
	MoveForward Command = 'F'

	// Validation constants
	MinFieldSize     = 1
	MaxFieldSize     = 100
	MaxCommandLength = 1000

	// EmptyCell marks an unoccupied cell in a snapshot grid
	EmptyCell = "."
)

// IsValid reports whether c is one of the known commands
func (c Command) IsValid() bool {
	return c == RotateLeft || c == RotateRight || c == MoveForward
}

// Position represents x,y coordinates with the origin at the bottom-left corner
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// String formats the position as "(x,y)"
func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Step returns the position one unit away in the given heading
func (p Position) Step(h Heading) Position {
	dx, dy := h.Delta()
	return Position{X: p.X + dx, Y: p.Y + dy}
}

// VehicleReport is the externally visible state of a vehicle
type VehicleReport struct {
	Name     string   `json:"name"`
	Position Position `json:"position"`
	Heading  Heading  `json:"heading"`
	Active   bool     `json:"active"`
	Commands string   `json:"commands,omitempty"`
}

// String formats the report as "<name>, (<x>,<y>) <heading>"
func (r VehicleReport) String() string {
	return fmt.Sprintf("%s, %s %s", r.Name, r.Position, r.Heading)
}

// CollisionEvent describes a collision from the perspective of Vehicle.
// A single collision normally produces two events, one per participant.
type CollisionEvent struct {
	Tick     int      `json:"tick"`
	Position Position `json:"position"`
	Vehicle  string   `json:"vehicle"`
	Other    string   `json:"other"`
}

// String formats the event the way the console reports it
func (e CollisionEvent) String() string {
	return fmt.Sprintf("Collision detected: %s collides with %s at %s at step %d",
		e.Vehicle, e.Other, e.Position, e.Tick)
}

// TickSnapshot is the field occupancy after a tick.
// Grid row 0 is the top of the field (y = height-1) and the last row is y = 0.
type TickSnapshot struct {
	Tick     int             `json:"tick"`
	Width    int             `json:"width"`
	Height   int             `json:"height"`
	Grid     [][]string      `json:"grid"`
	Vehicles []VehicleReport `json:"vehicles"`
}

// Cell returns the content of the cell at p, or EmptyCell when p is outside the grid
func (s TickSnapshot) Cell(p Position) string {
	row := s.Height - 1 - p.Y
	if row < 0 || row >= len(s.Grid) || p.X < 0 || p.X >= len(s.Grid[row]) {
		return EmptyCell
	}
	return s.Grid[row][p.X]
}

// RunResult holds everything a run produced
type RunResult struct {
	Field      Field            `json:"field"`
	Ticks      []TickSnapshot   `json:"ticks"`
	Collisions []CollisionEvent `json:"collisions"`
	Final      []VehicleReport  `json:"final"`
}

// Survivors returns the number of vehicles still active at the end of the run
func (r *RunResult) Survivors() int {
	count := 0
	for _, v := range r.Final {
		if v.Active {
			count++
		}
	}
	return count
}

// Collided returns the names of deactivated vehicles in registration order
func (r *RunResult) Collided() []string {
	var names []string
	for _, v := range r.Final {
		if !v.Active {
			names = append(names, v.Name)
		}
	}
	return names
}
