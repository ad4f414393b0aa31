//go:build !linux

package cursor

import (
	"errors"
	"runtime"
)

// DefaultUinputPath is the uinput control device.
const DefaultUinputPath = "/dev/uinput"

// UinputSink is only available on Linux.
type UinputSink struct{}

// NewUinputSink always fails off Linux.
func NewUinputSink(path, name string) (*UinputSink, error) {
	return nil, errors.New("uinput sink is not supported on " + runtime.GOOS)
}

func (s *UinputSink) Move(dx, dy float64) error { return ErrSinkClosed }
func (s *UinputSink) Close() error              { return nil }
