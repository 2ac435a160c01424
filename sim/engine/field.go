package engine

import "fmt"

// Field is the immutable bounded grid vehicles move on
type Field struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// NewField creates a field, rejecting non-positive dimensions
func NewField(width, height int) (Field, error) {
	if width < MinFieldSize || height < MinFieldSize {
		return Field{}, fmt.Errorf("%w: field must be at least %dx%d, got %dx%d",
			ErrInvalidConfiguration, MinFieldSize, MinFieldSize, width, height)
	}
	return Field{Width: width, Height: height}, nil
}

// Contains reports whether p lies within [0, width-1] x [0, height-1]
func (f Field) Contains(p Position) bool {
	return p.X >= 0 && p.X < f.Width && p.Y >= 0 && p.Y < f.Height
}

// EmptyGrid returns a height x width grid filled with EmptyCell
func (f Field) EmptyGrid() [][]string {
	grid := make([][]string, f.Height)
	for i := range grid {
		row := make([]string, f.Width)
		for j := range row {
			row[j] = EmptyCell
		}
		grid[i] = row
	}
	return grid
}

// String formats the field as "W x H"
func (f Field) String() string {
	return fmt.Sprintf("%d x %d", f.Width, f.Height)
}
