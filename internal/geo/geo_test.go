package geo

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDistance(t *testing.T) {
	require.InDelta(t, 5.0, Distance(0, 0, 3, 4), 1e-4)
	require.Zero(t, Distance(7, -2, 7, -2))

	pairs := [][4]float64{{1, 2, 3, 4}, {-5, 0, 12, 9}, {0.5, 0.25, -100, 42}}
	for _, p := range pairs {
		require.Equal(t, Distance(p[0], p[1], p[2], p[3]), Distance(p[2], p[3], p[0], p[1]))
	}
}

func TestPathLength(t *testing.T) {
	require.Zero(t, PathLength())
	require.Zero(t, PathLength(Base))
	require.InDelta(t, 10.0, PathLength(Base, Point{X: 3, Y: 4}, Base), 1e-9)
}

func TestStepToward(t *testing.T) {
	next := StepToward(Base, Point{X: 5, Y: -3}, 1)
	require.Equal(t, Point{X: 1, Y: -1}, next)

	next = StepToward(Point{X: 4.5, Y: 2}, Point{X: 5, Y: 2}, 1)
	require.Equal(t, Point{X: 5, Y: 2}, next)
}
