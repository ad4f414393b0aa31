package cursor

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/accmouse/internal/monitoring"
	"github.com/banshee-data/accmouse/internal/motion"
)

func TestMapping_Apply(t *testing.T) {
	tests := []struct {
		name   string
		m      Mapping
		v      motion.Vec2
		dx, dy float64
	}{
		{"default swaps and inverts", DefaultMapping(), motion.Vec2{X: 0.001, Y: 0.002}, -14, -7},
		{"zero velocity", DefaultMapping(), motion.Vec2{}, 0, 0},
		{"unswapped", Mapping{GainX: 2, GainY: 3}, motion.Vec2{X: 1, Y: -1}, 2, -3},
		{"swapped custom gains", Mapping{GainX: 10, GainY: -1, SwapAxes: true}, motion.Vec2{X: 0.5, Y: 0.25}, 2.5, -0.5},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dx, dy := tc.m.Apply(tc.v)
			assert.InDelta(t, tc.dx, dx, 1e-9)
			assert.InDelta(t, tc.dy, dy, 1e-9)
		})
	}
}

func TestDefaultMapping(t *testing.T) {
	m := DefaultMapping()
	assert.Equal(t, Mapping{GainX: -7000, GainY: -7000, SwapAxes: true}, m)
}

func TestAccumulator_CarriesRemainder(t *testing.T) {
	var a Accumulator

	ix, iy := a.Add(0.4, -0.4)
	assert.Equal(t, int32(0), ix)
	assert.Equal(t, int32(0), iy)

	ix, iy = a.Add(0.4, -0.4)
	assert.Equal(t, int32(0), ix)
	assert.Equal(t, int32(0), iy)

	// 1.2 total: one whole pixel, 0.2 carried, sign preserved on y.
	ix, iy = a.Add(0.4, -0.4)
	assert.Equal(t, int32(1), ix)
	assert.Equal(t, int32(-1), iy)

	rx, ry := a.Remainder()
	assert.InDelta(t, 0.2, rx, 1e-9)
	assert.InDelta(t, -0.2, ry, 1e-9)
}

func TestAccumulator_LargeAndDirectionChange(t *testing.T) {
	var a Accumulator

	ix, _ := a.Add(5.75, 0)
	assert.Equal(t, int32(5), ix)

	// Reversing direction cancels the carried fraction first.
	ix, _ = a.Add(-1.0, 0)
	assert.Equal(t, int32(0), ix)
	rx, _ := a.Remainder()
	assert.InDelta(t, -0.25, rx, 1e-9)

	a.Reset()
	rx, ry := a.Remainder()
	assert.Zero(t, rx)
	assert.Zero(t, ry)
}

func TestAccumulator_NonFiniteAndOverflow(t *testing.T) {
	var a Accumulator

	ix, iy := a.Add(math.NaN(), math.Inf(1))
	assert.Equal(t, int32(0), ix)
	assert.Equal(t, int32(0), iy)

	ix, iy = a.Add(1e12, -1e12)
	assert.Equal(t, int32(math.MaxInt32), ix)
	assert.Equal(t, int32(math.MinInt32), iy)
}

func TestRecordingSink(t *testing.T) {
	s := NewRecordingSink()

	require.NoError(t, s.Move(1.5, -2))
	require.NoError(t, s.Move(0.5, 1))

	assert.Equal(t, []Move{{DX: 1.5, DY: -2}, {DX: 0.5, DY: 1}}, s.Moves())
	assert.Equal(t, Move{DX: 2, DY: -1}, s.Total())

	boom := errors.New("device gone")
	s.Err = boom
	assert.ErrorIs(t, s.Move(1, 1), boom)
	assert.Len(t, s.Moves(), 3, "failed moves are still recorded")

	require.NoError(t, s.Close())
	assert.True(t, s.Closed())
	assert.ErrorIs(t, s.Move(1, 1), ErrSinkClosed)
}

func TestRecordingSink_MovesIsACopy(t *testing.T) {
	s := NewRecordingSink()
	require.NoError(t, s.Move(1, 1))

	moves := s.Moves()
	moves[0].DX = 99
	assert.Equal(t, float64(1), s.Moves()[0].DX)
}

func TestSinksImplementInterface(t *testing.T) {
	var _ Sink = NewRecordingSink()
	var _ Sink = NewLogSink()
	var _ Sink = &UinputSink{}
}

func TestLogSink(t *testing.T) {
	original := monitoring.Logf
	defer func() { monitoring.Logf = original }()

	var lines []string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})

	s := NewLogSink()
	require.NoError(t, s.Move(0.6, -1.5))
	require.NoError(t, s.Move(0.6, 0))

	require.Len(t, lines, 2)
	assert.Equal(t, "cursor move dx=0.600 dy=-1.500 -> (0, -1)", lines[0])
	assert.Equal(t, "cursor move dx=0.600 dy=0.000 -> (1, 0)", lines[1])

	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Move(1, 1), ErrSinkClosed)
	assert.Len(t, lines, 2)
}
