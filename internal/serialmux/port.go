package serialmux

import (
	"io"
)

// SerialPorter defines the minimal interface needed for a serial port.
// This abstraction enables unit testing without real serial hardware.
type SerialPorter interface {
	io.ReadWriter
	io.Closer
}

// SerialPortOpener opens a serial port at path using opts. The CLI swaps the
// opener in tests so no device is needed.
type SerialPortOpener func(path string, opts PortOptions) (SerialPorter, error)
