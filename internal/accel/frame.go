// Package accel decodes accelerometer frames sent by the device firmware.
//
// Each frame carries one reading: three axis bytes followed by a newline
// terminator. Axis bytes are offset on the device so that they never collide
// with control characters on the receiving TTY.
package accel

// FrameLen is the size of a complete frame including the terminator.
const FrameLen = 4

// Terminator ends every frame.
const Terminator = '\n'

// Sample is a single 3-axis reading normalised to [-1, 1).
type Sample struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// DecodeAxis maps one wire byte to a normalised acceleration value.
func DecodeAxis(b byte) float64 {
	// byte arithmetic wraps, which gives the mod 256.
	return (float64(b-32) - 128) / 128
}

// DecodeFrame converts a raw frame into a Sample. Frames of any length other
// than FrameLen are partial or corrupt and are reported as not ok.
func DecodeFrame(frame []byte) (Sample, bool) {
	if len(frame) != FrameLen {
		return Sample{}, false
	}
	return Sample{
		X: DecodeAxis(frame[0]),
		Y: DecodeAxis(frame[1]),
		Z: DecodeAxis(frame[2]),
	}, true
}

// EncodeAxis produces the wire byte the firmware sends for a raw signed
// reading. Readings that would land above 223 are pinned to 255.
func EncodeAxis(v int8) byte {
	b := byte(v) + 127
	if b > 223 {
		return 255
	}
	return b + 32
}

// EncodeFrame builds a complete frame for a raw reading.
func EncodeFrame(x, y, z int8) []byte {
	return []byte{EncodeAxis(x), EncodeAxis(y), EncodeAxis(z), Terminator}
}
