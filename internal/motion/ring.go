package motion

import (
	"gonum.org/v1/gonum/floats"
)

// Ring is a fixed-capacity circular buffer of the most recent samples.
// Pushing into a full ring overwrites the oldest entry.
type Ring struct {
	buf    []Vec3
	next   int // index the next Push writes to
	length int

	// per-axis scratch reused by AxisRange
	xs, ys, zs []float64
}

// NewRing creates a ring holding up to capacity samples. Capacities below one
// are raised to one.
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{
		buf: make([]Vec3, capacity),
		xs:  make([]float64, 0, capacity),
		ys:  make([]float64, 0, capacity),
		zs:  make([]float64, 0, capacity),
	}
}

// Push inserts s as the newest sample.
func (r *Ring) Push(s Vec3) {
	r.buf[r.next] = s
	r.next = (r.next + 1) % len(r.buf)
	if r.length < len(r.buf) {
		r.length++
	}
}

// Len returns the number of samples currently held.
func (r *Ring) Len() int { return r.length }

// Cap returns the ring capacity.
func (r *Ring) Cap() int { return len(r.buf) }

// At returns the i-th most recent sample; At(0) is the newest.
// It panics if i is outside [0, Len()).
func (r *Ring) At(i int) Vec3 {
	if i < 0 || i >= r.length {
		panic("motion: ring index out of range")
	}
	idx := (r.next - 1 - i + 2*len(r.buf)) % len(r.buf)
	return r.buf[idx]
}

// Newest returns the most recently pushed sample, or the zero vector when
// the ring is empty.
func (r *Ring) Newest() Vec3 {
	if r.length == 0 {
		return Vec3{}
	}
	return r.At(0)
}

// AxisRange returns max-min per axis over the k most recent samples. k is
// clamped to the samples available; an empty ring yields the zero vector.
func (r *Ring) AxisRange(k int) Vec3 {
	if k > r.length {
		k = r.length
	}
	if k <= 0 {
		return Vec3{}
	}

	r.xs, r.ys, r.zs = r.xs[:0], r.ys[:0], r.zs[:0]
	for i := 0; i < k; i++ {
		s := r.At(i)
		r.xs = append(r.xs, s.X)
		r.ys = append(r.ys, s.Y)
		r.zs = append(r.zs, s.Z)
	}

	return Vec3{
		X: floats.Max(r.xs) - floats.Min(r.xs),
		Y: floats.Max(r.ys) - floats.Min(r.ys),
		Z: floats.Max(r.zs) - floats.Min(r.zs),
	}
}

// Reset empties the ring without releasing its storage.
func (r *Ring) Reset() {
	for i := range r.buf {
		r.buf[i] = Vec3{}
	}
	r.next = 0
	r.length = 0
}
