package render

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"drone-dispatch/internal/domain"
	"drone-dispatch/internal/simulation"
)

func rows(frame string, size int) []string {
	lines := strings.Split(frame, "\n")
	return lines[1 : 1+size]
}

func TestFrameGlyphs(t *testing.T) {
	a := NewASCII(nil)
	frame := a.Frame(simulation.Snapshot{
		Step: 3,
		Drones: []simulation.DroneState{
			{ID: 1, X: 2, Y: 0, Status: domain.DroneStatusFlying, Battery: 97.5},
			{ID: 2, X: 0, Y: 3, Status: domain.DroneStatusReturning, Battery: 40},
			{ID: 3, X: 5, Y: 5, Status: domain.DroneStatusFlying, Battery: 90},
		},
		Orders: []simulation.OrderState{
			{ID: "a", X: 4, Y: 0, Status: domain.OrderStatusAssigned},
			{ID: "b", X: 5, Y: 5, Status: domain.OrderStatusDelivered},
		},
	})

	grid := rows(frame, DefaultSize)
	require.True(t, strings.HasPrefix(frame, "---- step 3 ----\n"))
	require.Equal(t, "B . > . P", grid[0][:9])
	require.Equal(t, byte('<'), grid[3][0])
	// delivered marker wins over a drone on the same cell
	require.Equal(t, byte('E'), grid[5][10])
	require.Contains(t, frame, legend)
	require.Contains(t, frame, "drone 1 FLYING     battery  97.5%")
}

func TestFrameBaseMarker(t *testing.T) {
	a := NewASCII(nil)
	busy := a.Frame(simulation.Snapshot{Drones: []simulation.DroneState{{ID: 1, Status: domain.DroneStatusLoading}}})
	require.Equal(t, byte('B'), rows(busy, DefaultSize)[0][0])

	charging := a.Frame(simulation.Snapshot{Drones: []simulation.DroneState{{ID: 1, Status: domain.DroneStatusRecharging}}})
	require.Equal(t, byte('R'), rows(charging, DefaultSize)[0][0])
}

func TestFrameClampsAndScales(t *testing.T) {
	a := &ASCII{Size: 5, Scale: 10}
	frame := a.Frame(simulation.Snapshot{Orders: []simulation.OrderState{
		{ID: "far", X: 400, Y: -30, Status: domain.OrderStatusPending},
		{ID: "mid", X: 21, Y: 19, Status: domain.OrderStatusPending},
	}})
	grid := rows(frame, 5)
	require.Equal(t, "B . . . P", grid[0])
	require.Equal(t, ". . P . .", grid[2])
}

func TestRenderWritesFrames(t *testing.T) {
	var buf bytes.Buffer
	a := NewASCII(&buf)
	a.Render(simulation.Snapshot{Step: 1})
	a.Render(simulation.Snapshot{Step: 2})
	require.NoError(t, a.Err())
	require.Equal(t, 2, strings.Count(buf.String(), legend))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestRenderKeepsFirstError(t *testing.T) {
	a := NewASCII(failingWriter{})
	a.Render(simulation.Snapshot{})
	require.EqualError(t, a.Err(), "closed")
}
