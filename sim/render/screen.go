package render

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/wricardo/mcp-training/autodrive/sim/engine"
)

// CellSetter is the part of tcell.Screen the painter draws through
type CellSetter interface {
	SetContent(x, y int, primary rune, combining []rune, style tcell.Style)
}

var (
	headerStyle  = tcell.StyleDefault.Bold(true)
	emptyStyle   = tcell.StyleDefault.Foreground(tcell.ColorGray)
	vehicleStyle = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
	crashStyle   = tcell.StyleDefault.Foreground(tcell.ColorRed)
)

// ScreenPainter draws snapshots onto a tcell screen. Cells are two columns wide
// so the grid keeps the same spacing as the console rendering.
type ScreenPainter struct {
	screen CellSetter
}

// NewScreenPainter creates a painter for the given screen
func NewScreenPainter(screen CellSetter) *ScreenPainter {
	return &ScreenPainter{screen: screen}
}

// Paint draws the header line and the grid of a snapshot
func (p *ScreenPainter) Paint(snapshot engine.TickSnapshot, total int, collisions []engine.CollisionEvent) {
	header := fmt.Sprintf("Tick %d/%d  vehicles: %d  collisions: %d  (q to quit)",
		snapshot.Tick, total, len(snapshot.Vehicles), len(collisions))
	p.text(0, 0, header, headerStyle)

	for row, cells := range snapshot.Grid {
		for col, cell := range cells {
			style := vehicleStyle
			if cell == engine.EmptyCell {
				style = emptyStyle
			}
			r := []rune(cell)
			if len(r) == 0 {
				continue
			}
			p.screen.SetContent(col*2, row+2, r[0], nil, style)
		}
	}

	line := len(snapshot.Grid) + 3
	for _, c := range collisions {
		p.text(0, line, c.String(), crashStyle)
		line++
	}
}

func (p *ScreenPainter) text(x, y int, s string, style tcell.Style) {
	for i, r := range []rune(s) {
		p.screen.SetContent(x+i, y, r, nil, style)
	}
}

// Replay plays a finished run on the screen, one tick per delay. It returns
// when the last tick has been shown and a key is pressed, when q/Esc/Ctrl-C is
// pressed, or when ctx is cancelled.
func Replay(ctx context.Context, screen tcell.Screen, result *engine.RunResult, delay time.Duration) error {
	painter := NewScreenPainter(screen)

	keys := make(chan *tcell.EventKey, 1)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				close(keys)
				return
			}
			if key, ok := ev.(*tcell.EventKey); ok {
				select {
				case keys <- key:
				default:
				}
			}
		}
	}()

	var seen []engine.CollisionEvent
	next := 0
	for i, snapshot := range result.Ticks {
		for next < len(result.Collisions) && result.Collisions[next].Tick <= snapshot.Tick {
			seen = append(seen, result.Collisions[next])
			next++
		}

		screen.Clear()
		painter.Paint(snapshot, len(result.Ticks), seen)
		screen.Show()

		if i == len(result.Ticks)-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case key, ok := <-keys:
			if !ok || isQuit(key) {
				return nil
			}
		case <-time.After(delay):
		}
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-keys:
		return nil
	}
}

func isQuit(key *tcell.EventKey) bool {
	return key.Key() == tcell.KeyEscape || key.Key() == tcell.KeyCtrlC || key.Rune() == 'q'
}
