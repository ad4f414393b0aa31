package motion

import "github.com/banshee-data/accmouse/internal/accel"

// Vec3 is a 3-axis quantity in normalised acceleration units.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Vec2 is the planar (x, y) velocity the classifier emits.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func fromSample(s accel.Sample) Vec3 {
	return Vec3{X: s.X, Y: s.Y, Z: s.Z}
}

// exceedsAny reports whether any axis is strictly above limit.
func (v Vec3) exceedsAny(limit float64) bool {
	return v.X > limit || v.Y > limit || v.Z > limit
}

// withinAll reports whether every axis is at or below limit.
func (v Vec3) withinAll(limit float64) bool {
	return v.X <= limit && v.Y <= limit && v.Z <= limit
}
