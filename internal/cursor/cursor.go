// Package cursor turns planar velocity into relative pointer motion and
// delivers it to a pointer sink.
package cursor

import (
	"errors"
	"math"

	"github.com/banshee-data/accmouse/internal/motion"
)

// ErrSinkClosed is returned by sinks after Close.
var ErrSinkClosed = errors.New("cursor sink closed")

// Sink receives relative pointer moves. Absolute positioning is never used.
type Sink interface {
	Move(dx, dy float64) error
	Close() error
}

// Default gains scale velocity in g·s to pixels per sample. The sensor is
// mounted rotated, so the axes are swapped and the sign inverted.
const (
	DefaultGainX = -7000
	DefaultGainY = -7000
)

// Mapping converts a velocity into a cursor delta.
type Mapping struct {
	GainX    float64 `json:"gain_x"`
	GainY    float64 `json:"gain_y"`
	SwapAxes bool    `json:"swap_axes"`
}

// DefaultMapping returns the mapping for the standard sensor mounting.
func DefaultMapping() Mapping {
	return Mapping{GainX: DefaultGainX, GainY: DefaultGainY, SwapAxes: true}
}

// Apply returns the cursor delta for v. With SwapAxes the result is
// (GainX·v.Y, GainY·v.X).
func (m Mapping) Apply(v motion.Vec2) (dx, dy float64) {
	if m.SwapAxes {
		return m.GainX * v.Y, m.GainY * v.X
	}
	return m.GainX * v.X, m.GainY * v.Y
}

// Accumulator carries the fractional part of requested moves so that sinks
// limited to whole pixels do not lose slow motion.
type Accumulator struct {
	rx, ry float64
}

// Add adds a fractional move and returns the whole-pixel part to emit now.
// The remainder keeps the sign of the motion that produced it.
func (a *Accumulator) Add(dx, dy float64) (ix, iy int32) {
	a.rx += finite(dx)
	a.ry += finite(dy)
	wx, wy := math.Trunc(a.rx), math.Trunc(a.ry)
	a.rx -= wx
	a.ry -= wy
	return clampInt32(wx), clampInt32(wy)
}

// Remainder returns the carried sub-pixel motion.
func (a *Accumulator) Remainder() (rx, ry float64) { return a.rx, a.ry }

// Reset drops any carried motion.
func (a *Accumulator) Reset() { a.rx, a.ry = 0, 0 }

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func clampInt32(v float64) int32 {
	switch {
	case v > math.MaxInt32:
		return math.MaxInt32
	case v < math.MinInt32:
		return math.MinInt32
	}
	return int32(v)
}
