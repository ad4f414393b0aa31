package accel

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeAxis(t *testing.T) {
	tests := []struct {
		name string
		in   byte
		want float64
	}{
		{"centre", 160, 0},
		{"one step above centre", 161, 1.0 / 128},
		{"lowest", 32, -1},
		{"highest", 31, 127.0 / 128},
		{"wraps below offset", 0, (224.0 - 128) / 128},
		{"pinned maximum", 255, 95.0 / 128},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := DecodeAxis(tc.in); got != tc.want {
				t.Errorf("DecodeAxis(%d) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestDecodeFrame(t *testing.T) {
	s, ok := DecodeFrame([]byte{160, 161, 32, Terminator})
	assert.True(t, ok)
	assert.Equal(t, Sample{X: 0, Y: 1.0 / 128, Z: -1}, s)
}

func TestDecodeFrame_RejectsWrongLength(t *testing.T) {
	for _, frame := range [][]byte{
		nil,
		{},
		{160, Terminator},
		{160, 160, Terminator},
		{160, 160, 160, 160, Terminator},
	} {
		s, ok := DecodeFrame(frame)
		assert.False(t, ok, "frame %v", frame)
		assert.Equal(t, Sample{}, s)
	}
}

// The firmware shifts raw readings by 127 before adding the 32 offset, so the
// decoded value lags the raw reading by one count.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	for v := -127; v <= 96; v++ {
		got := DecodeAxis(EncodeAxis(int8(v)))
		want := float64(v-1) / 128
		if got != want {
			t.Fatalf("raw %d: decoded %v, want %v", v, got, want)
		}
	}
}

func TestEncodeAxis_NeverEmitsControlBytes(t *testing.T) {
	for v := -128; v <= 127; v++ {
		b := EncodeAxis(int8(v))
		if b < 32 {
			t.Fatalf("raw %d encoded to control byte %d", v, b)
		}
	}
}

func TestEncodeFrame(t *testing.T) {
	frame := EncodeFrame(1, 1, 1)
	if len(frame) != FrameLen {
		t.Fatalf("len = %d, want %d", len(frame), FrameLen)
	}
	if !bytes.Equal(frame, []byte{160, 160, 160, Terminator}) {
		t.Errorf("frame = %v", frame)
	}
	s, ok := DecodeFrame(frame)
	assert.True(t, ok)
	assert.Equal(t, Sample{}, s)
}
