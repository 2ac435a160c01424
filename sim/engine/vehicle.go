package engine

// Vehicle is a simulated car. Its commands are fixed at creation and consumed
// by index, one per tick.
type Vehicle struct {
	Name     string   `json:"name"`
	Position Position `json:"position"`
	Heading  Heading  `json:"heading"`
	Commands string   `json:"commands"`
	Active   bool     `json:"active"`
}

// NewVehicle creates an active vehicle
func NewVehicle(name string, pos Position, heading Heading, commands string) *Vehicle {
	return &Vehicle{
		Name:     name,
		Position: pos,
		Heading:  heading,
		Commands: commands,
		Active:   true,
	}
}

// CommandAt returns the command scheduled for the given 0-based step
func (v *Vehicle) CommandAt(step int) (Command, bool) {
	if step < 0 || step >= len(v.Commands) {
		return 0, false
	}
	return Command(v.Commands[step]), true
}

// ExecuteCommand applies a single command. Inactive vehicles ignore commands,
// unknown commands are ignored, and forward moves that would leave the field
// leave the vehicle where it is.
func (v *Vehicle) ExecuteCommand(cmd Command, field Field) {
	if !v.Active {
		return
	}

	switch cmd {
	case RotateLeft:
		v.Heading = v.Heading.RotateLeft()
	case RotateRight:
		v.Heading = v.Heading.RotateRight()
	case MoveForward:
		v.moveForward(field)
	}
}

// moveForward steps one cell in the current heading if the target is in bounds
func (v *Vehicle) moveForward(field Field) {
	next := v.Position.Step(v.Heading)
	if field.Contains(next) {
		v.Position = next
	}
}

// Deactivate marks the vehicle as crashed. It is idempotent.
func (v *Vehicle) Deactivate() {
	v.Active = false
}

// Report returns the vehicle's externally visible state. Commands are left
// out; they are attached only to the final report.
func (v *Vehicle) Report() VehicleReport {
	return VehicleReport{
		Name:     v.Name,
		Position: v.Position,
		Heading:  v.Heading,
		Active:   v.Active,
	}
}

// String formats the vehicle as "<name>, (<x>,<y>) <heading>"
func (v *Vehicle) String() string {
	return v.Report().String()
}
