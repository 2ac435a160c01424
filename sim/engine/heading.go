package engine

import (
	"fmt"
	"strings"
)

// Heading is a compass direction. The declaration order is the rotation cycle.
type Heading int

const (
	North Heading = iota
	East
	South
	West
)

var headingLetters = [...]string{"N", "E", "S", "W"}

var headingSymbols = [...]string{
	"\u25B2", // ▲
	"\u25B6", // ▶
	"\u25BC", // ▼
	"\u25C0", // ◀
}

// Headings lists all headings in rotation order
func Headings() []Heading {
	return []Heading{North, East, South, West}
}

// ParseHeading converts a single letter (N, E, S, W) to a Heading
func ParseHeading(s string) (Heading, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "N":
		return North, nil
	case "E":
		return East, nil
	case "S":
		return South, nil
	case "W":
		return West, nil
	}
	return North, fmt.Errorf("%w: %q", ErrInvalidHeading, s)
}

// IsValid reports whether h is one of the four compass headings
func (h Heading) IsValid() bool {
	return h >= North && h <= West
}

// RotateLeft returns the previous heading in the cycle, wrapping from North to West
func (h Heading) RotateLeft() Heading {
	return (h + 3) % 4
}

// RotateRight returns the next heading in the cycle, wrapping from West to North
func (h Heading) RotateRight() Heading {
	return (h + 1) % 4
}

// Delta returns the unit step for the heading; North increases y
func (h Heading) Delta() (dx, dy int) {
	switch h {
	case North:
		return 0, 1
	case East:
		return 1, 0
	case South:
		return 0, -1
	case West:
		return -1, 0
	}
	return 0, 0
}

// Symbol returns the glyph used to draw a vehicle with this heading
func (h Heading) Symbol() string {
	if !h.IsValid() {
		return "?"
	}
	return headingSymbols[h]
}

// String returns the heading letter
func (h Heading) String() string {
	if !h.IsValid() {
		return "?"
	}
	return headingLetters[h]
}

// MarshalText encodes the heading as its letter
func (h Heading) MarshalText() ([]byte, error) {
	if !h.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidHeading, int(h))
	}
	return []byte(h.String()), nil
}

// UnmarshalText decodes a heading letter
func (h *Heading) UnmarshalText(text []byte) error {
	parsed, err := ParseHeading(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
