// Package motion turns a stream of accelerometer samples into planar cursor
// velocity.
//
// A Classifier keeps a short window of recent samples and decides whether the
// sensor is at rest or being moved. While at rest it slowly learns the
// sensor's resting offset (bias) and pins velocity to zero; while moving it
// integrates bias-corrected acceleration into velocity.
//
// Entering and leaving the moving state use different windows: a short
// window where any axis exceeding the threshold starts motion, and the full
// window where every axis must be quiet before motion ends.
package motion

import (
	"github.com/banshee-data/accmouse/internal/accel"
)

// Params controls classifier behaviour. Zero fields take the defaults from
// DefaultParams.
type Params struct {
	// WindowSize is the ring capacity and the number of samples needed
	// before any velocity is produced.
	WindowSize int
	// ShortWindow is the number of newest samples examined while stationary.
	ShortWindow int
	// Threshold is the per-axis max-min range separating rest from motion.
	Threshold float64
	// SettleCount is the number of consecutive stationary updates that must
	// pass before the bias estimate adapts.
	SettleCount int
	// BiasAlpha is the EMA retention factor for the bias estimate.
	BiasAlpha float64
	// MaxTimeDelta caps the integration step in seconds. Negative disables
	// the cap.
	MaxTimeDelta float64
}

// Default tuning, matching a 100 Hz sensor with 8-bit readings.
const (
	DefaultWindowSize   = 5
	DefaultShortWindow  = 3
	DefaultThreshold    = 1.0 / 128
	DefaultSettleCount  = 20
	DefaultBiasAlpha    = 0.99
	DefaultMaxTimeDelta = 0.1
)

// DefaultParams returns the standard tuning.
func DefaultParams() Params {
	return Params{
		WindowSize:   DefaultWindowSize,
		ShortWindow:  DefaultShortWindow,
		Threshold:    DefaultThreshold,
		SettleCount:  DefaultSettleCount,
		BiasAlpha:    DefaultBiasAlpha,
		MaxTimeDelta: DefaultMaxTimeDelta,
	}
}

// normalize fills unset or out-of-range fields with defaults.
func (p Params) normalize() Params {
	d := DefaultParams()
	if p.WindowSize <= 0 {
		p.WindowSize = d.WindowSize
	}
	if p.ShortWindow <= 0 {
		p.ShortWindow = d.ShortWindow
	}
	if p.ShortWindow > p.WindowSize {
		p.ShortWindow = p.WindowSize
	}
	if p.Threshold <= 0 {
		p.Threshold = d.Threshold
	}
	if p.SettleCount <= 0 {
		p.SettleCount = d.SettleCount
	}
	if p.BiasAlpha <= 0 || p.BiasAlpha >= 1 {
		p.BiasAlpha = d.BiasAlpha
	}
	if p.MaxTimeDelta == 0 {
		p.MaxTimeDelta = d.MaxTimeDelta
	}
	return p
}

// State is a snapshot of classifier internals.
type State struct {
	IsStationary      bool    `json:"is_stationary"`
	StationaryStreak  uint    `json:"stationary_streak"`
	Bias              Vec3    `json:"bias"`
	Velocity          Vec2    `json:"velocity"`
	SampleCount       uint    `json:"sample_count"`
	PreviousTimestamp float64 `json:"previous_timestamp"`
	Transitions       uint    `json:"transitions"`
}

// Classifier is the per-stream motion filter. It is not safe for concurrent
// use; each input stream owns its own instance.
type Classifier struct {
	params Params
	ring   *Ring
	state  State
}

// NewClassifier creates a classifier in the stationary state with zero bias
// and velocity.
func NewClassifier(p Params) *Classifier {
	p = p.normalize()
	return &Classifier{
		params: p,
		ring:   NewRing(p.WindowSize),
		state:  State{IsStationary: true},
	}
}

// Params returns the effective tuning after defaults were applied.
func (c *Classifier) Params() Params { return c.params }

// Update feeds one sample captured at captureTime (monotonic seconds) and
// returns the current velocity. Until the window is full the velocity stays
// at zero and neither the state nor the bias change.
func (c *Classifier) Update(sample accel.Sample, captureTime float64) Vec2 {
	dt := captureTime - c.state.PreviousTimestamp
	c.state.PreviousTimestamp = captureTime

	latest := fromSample(sample)
	c.ring.Push(latest)

	c.state.SampleCount++
	if c.state.SampleCount < uint(c.params.WindowSize) {
		return c.state.Velocity
	}

	c.classify()

	if c.state.IsStationary {
		c.state.StationaryStreak++
		if c.state.StationaryStreak > uint(c.params.SettleCount) {
			a := c.params.BiasAlpha
			c.state.Bias = Vec3{
				X: a*c.state.Bias.X + (1-a)*latest.X,
				Y: a*c.state.Bias.Y + (1-a)*latest.Y,
				Z: a*c.state.Bias.Z + (1-a)*latest.Z,
			}
		}
		c.state.Velocity = Vec2{}
		return c.state.Velocity
	}

	c.state.StationaryStreak = 0
	if step, ok := c.integrationStep(dt); ok {
		c.state.Velocity.X += (latest.X - c.state.Bias.X) * step
		c.state.Velocity.Y += (latest.Y - c.state.Bias.Y) * step
	}
	return c.state.Velocity
}

// classify applies the hysteresis rule to the buffered window.
func (c *Classifier) classify() {
	if c.state.IsStationary {
		if c.ring.AxisRange(c.params.ShortWindow).exceedsAny(c.params.Threshold) {
			c.state.IsStationary = false
			c.state.Transitions++
		}
		return
	}
	if c.ring.AxisRange(c.params.WindowSize).withinAll(c.params.Threshold) {
		c.state.IsStationary = true
		c.state.Transitions++
	}
}

// integrationStep returns the time step for one moving update. Non-positive
// deltas skip integration and deltas above MaxTimeDelta are clamped to it.
func (c *Classifier) integrationStep(dt float64) (float64, bool) {
	if dt <= 0 {
		return 0, false
	}
	if c.params.MaxTimeDelta > 0 && dt > c.params.MaxTimeDelta {
		return c.params.MaxTimeDelta, true
	}
	return dt, true
}

// Ready reports whether the warm-up window has been filled.
func (c *Classifier) Ready() bool {
	return c.state.SampleCount >= uint(c.params.WindowSize)
}

// Velocity returns the current velocity.
func (c *Classifier) Velocity() Vec2 { return c.state.Velocity }

// IsStationary reports the current classification.
func (c *Classifier) IsStationary() bool { return c.state.IsStationary }

// State returns a copy of the classifier state.
func (c *Classifier) State() State { return c.state }

// Reset returns the classifier to its initial state, as if newly created.
func (c *Classifier) Reset() {
	c.ring.Reset()
	c.state = State{IsStationary: true}
}
