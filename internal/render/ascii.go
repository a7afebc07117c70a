// Package render draws stepped-simulation snapshots as a text map.
package render

import (
	"fmt"
	"io"
	"math"
	"strings"
	"sync"

	"drone-dispatch/internal/domain"
	"drone-dispatch/internal/simulation"
)

const (
	DefaultSize = 20

	glyphEmpty     = '.'
	glyphBase      = 'B'
	glyphPending   = 'P'
	glyphDelivered = 'E'
	glyphIdle      = 'D'
	glyphFlying    = '>'
	glyphReturning = '<'
	glyphRecharge  = 'R'
)

const legend = "Base=B | Order=P | Delivered=E | Idle=D | Outbound=> | Returning=< | Recharging=R"

// ASCII renders each snapshot as a square grid with the base at the top-left
// corner. Coordinates are divided by Scale, rounded and clamped into the grid.
type ASCII struct {
	Out   io.Writer
	Size  int
	Scale float64

	mu  sync.Mutex
	err error
}

func NewASCII(out io.Writer) *ASCII {
	return &ASCII{Out: out, Size: DefaultSize, Scale: 1}
}

// Err returns the first write error, if any.
func (a *ASCII) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

func (a *ASCII) Render(s simulation.Snapshot) {
	frame := a.Frame(s)
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return
	}
	_, a.err = io.WriteString(a.Out, frame)
}

// Frame returns the text Render would write for s.
func (a *ASCII) Frame(s simulation.Snapshot) string {
	grid := a.draw(s)

	var b strings.Builder
	fmt.Fprintf(&b, "---- step %d ----\n", s.Step)
	for _, row := range grid {
		for x, c := range row {
			if x > 0 {
				b.WriteByte(' ')
			}
			b.WriteRune(c)
		}
		b.WriteByte('\n')
	}
	b.WriteString(legend)
	b.WriteByte('\n')
	for _, d := range s.Drones {
		fmt.Fprintf(&b, "drone %d %-10s battery %5.1f%% at (%.1f, %.1f)\n", d.ID, d.Status, d.Battery, d.X, d.Y)
	}
	for _, n := range s.Notices {
		b.WriteString("  ")
		b.WriteString(n.String())
		b.WriteByte('\n')
	}
	return b.String()
}

func (a *ASCII) draw(s simulation.Snapshot) [][]rune {
	size := a.Size
	if size <= 0 {
		size = DefaultSize
	}
	grid := make([][]rune, size)
	for y := range grid {
		grid[y] = []rune(strings.Repeat(string(glyphEmpty), size))
	}
	grid[0][0] = glyphBase

	for _, o := range s.Orders {
		x, y := a.cell(o.X, size), a.cell(o.Y, size)
		glyph := glyphPending
		if o.Status == domain.OrderStatusDelivered {
			glyph = glyphDelivered
		}
		if grid[y][x] == glyphEmpty || grid[y][x] == glyphBase {
			grid[y][x] = glyph
		}
	}

	for _, d := range s.Drones {
		x, y := a.cell(d.X, size), a.cell(d.Y, size)
		glyph := droneGlyph(d.Status)
		if x == 0 && y == 0 {
			// only parked drones replace the base marker
			if d.Status == domain.DroneStatusIdle || d.Status == domain.DroneStatusRecharging {
				grid[0][0] = glyph
			}
			continue
		}
		if grid[y][x] != glyphDelivered {
			grid[y][x] = glyph
		}
	}
	return grid
}

func (a *ASCII) cell(v float64, size int) int {
	scale := a.Scale
	if scale <= 0 {
		scale = 1
	}
	c := int(math.Round(v / scale))
	return max(0, min(size-1, c))
}

func droneGlyph(status domain.DroneStatus) rune {
	switch status {
	case domain.DroneStatusFlying:
		return glyphFlying
	case domain.DroneStatusReturning:
		return glyphReturning
	case domain.DroneStatusRecharging:
		return glyphRecharge
	default:
		return glyphIdle
	}
}

var _ simulation.Renderer = (*ASCII)(nil)
