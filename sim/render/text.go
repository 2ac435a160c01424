// Package render turns simulation output into something people can read:
// console text in the classic report format and tcell screen cells.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/wricardo/mcp-training/autodrive/sim/engine"
)

// Field renders a snapshot as rows of space-separated cells, top row first
func Field(snapshot engine.TickSnapshot) string {
	var b strings.Builder
	for _, row := range snapshot.Grid {
		b.WriteString(strings.Join(row, " "))
		b.WriteString("\n")
	}
	return b.String()
}

// FinalReport renders the end-of-run summary
func FinalReport(reports []engine.VehicleReport) string {
	var b strings.Builder
	b.WriteString("After simulation, the result is:\n")
	for _, r := range reports {
		fmt.Fprintf(&b, "- %s\n", r)
	}
	return b.String()
}

// VehicleList renders vehicle definitions the way the console lists them
func VehicleList(specs []engine.VehicleSpec) string {
	var b strings.Builder
	b.WriteString("Your current list of cars are:\n")
	for _, spec := range specs {
		fmt.Fprintf(&b, "- %s\n", spec)
	}
	return b.String()
}

// Result renders a complete run: collisions and field for each tick, then the final report
func Result(result *engine.RunResult) string {
	var b strings.Builder
	r := NewTextReporter(&b)

	byTick := make(map[int][]engine.CollisionEvent)
	for _, c := range result.Collisions {
		byTick[c.Tick] = append(byTick[c.Tick], c)
	}
	for _, snapshot := range result.Ticks {
		for _, c := range byTick[snapshot.Tick] {
			r.OnCollision(c)
		}
		r.OnTick(snapshot)
	}
	r.Final(result.Final)
	return b.String()
}

// TextReporter writes simulation output to a writer as it happens.
// It implements engine.Observer.
type TextReporter struct {
	w io.Writer
}

// NewTextReporter creates a reporter writing to w
func NewTextReporter(w io.Writer) *TextReporter {
	return &TextReporter{w: w}
}

// OnCollision writes a collision line
func (r *TextReporter) OnCollision(event engine.CollisionEvent) {
	fmt.Fprintln(r.w, event.String())
}

// OnTick writes the field after a tick
func (r *TextReporter) OnTick(snapshot engine.TickSnapshot) {
	fmt.Fprintf(r.w, "\nSimulation Field:\n%s", Field(snapshot))
}

// Final writes the final report
func (r *TextReporter) Final(reports []engine.VehicleReport) {
	fmt.Fprint(r.w, FinalReport(reports))
}
