package serialmux

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/banshee-data/accmouse/internal/accel"
	"github.com/banshee-data/accmouse/internal/timeutil"
)

// SamplePeriod is the device sample period (100 Hz).
const SamplePeriod = 10 * time.Millisecond

// GestureStep holds a raw reading repeated for Count samples.
type GestureStep struct {
	X, Y, Z int8
	Count   int
}

// DefaultGesture is a hand resting, pushed along one axis, braked, resting,
// then pushed along the other axis and braked. Z stays at one gravity.
func DefaultGesture() []GestureStep {
	return []GestureStep{
		{X: 1, Y: 1, Z: 65, Count: 100},
		{X: 21, Y: 1, Z: 65, Count: 20},
		{X: -19, Y: 1, Z: 65, Count: 20},
		{X: 1, Y: 1, Z: 65, Count: 100},
		{X: 1, Y: 21, Z: 65, Count: 20},
		{X: 1, Y: -19, Z: 65, Count: 20},
	}
}

// ScriptFrames expands a gesture script into its encoded frame stream.
func ScriptFrames(script []GestureStep) []byte {
	var buf bytes.Buffer
	for _, step := range script {
		frame := accel.EncodeFrame(step.X, step.Y, step.Z)
		for i := 0; i < step.Count; i++ {
			buf.Write(frame)
		}
	}
	return buf.Bytes()
}

// MockSerialPort implements SerialPorter for testing. Writes are discarded.
type MockSerialPort struct {
	io.Reader
	io.WriteCloser
}

// pipeSink discards writes and closes the read side of the pipe so a pending
// Monitor read returns.
type pipeSink struct {
	r *io.PipeReader
}

func (p pipeSink) Write(b []byte) (int, error) { return len(b), nil }
func (p pipeSink) Close() error                { return p.r.Close() }

// NewMockSerialMux creates a SerialMux instance backed by a mock serial port
// that plays script on a loop, one frame per SamplePeriod of clock. A nil
// clock uses the real clock. An empty script produces no frames.
func NewMockSerialMux(script []GestureStep, clock timeutil.Clock) *SerialMux[*MockSerialPort] {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	r, w := io.Pipe()

	mockPort := &MockSerialPort{
		Reader:      r,
		WriteCloser: pipeSink{r: r},
	}

	frames := ScriptFrames(script)

	if len(frames) == 0 {
		w.Close()
		return NewSerialMux(mockPort)
	}

	// generate data periodically to simulate serial port input
	ticker := clock.NewTicker(SamplePeriod)
	go func() {
		defer w.Close()
		defer ticker.Stop()
		off := 0
		for range ticker.C() {
			if _, err := w.Write(frames[off : off+accel.FrameLen]); err != nil {
				return
			}
			off = (off + accel.FrameLen) % len(frames)
		}
	}()

	return NewSerialMux(mockPort)
}

// TestableSerialPort implements SerialPorter with configurable behaviour for testing.
// It provides fine-grained control over reads, errors, and latency.
type TestableSerialPort struct {
	mu sync.Mutex

	// ReadBuffer holds data to be returned by Read calls
	ReadBuffer *bytes.Buffer

	// WriteBuffer captures data written to the port
	WriteBuffer *bytes.Buffer

	// ReadLatency adds a delay to each Read call
	ReadLatency time.Duration

	// ReadError is returned by the next Read call if set
	ReadError error

	// CloseError is returned by Close if set
	CloseError error

	// Closed indicates whether Close was called
	Closed bool

	// ReadCalls records the number of Read calls
	ReadCalls int

	// BlockReads causes Read to block until data is added or Close is called
	BlockReads bool

	readCond *sync.Cond
}

// errPortClosed is returned by TestableSerialPort after Close.
var errPortClosed = errors.New("serial port closed")

// NewTestableSerialPort creates a new TestableSerialPort for testing.
func NewTestableSerialPort() *TestableSerialPort {
	tsp := &TestableSerialPort{
		ReadBuffer:  bytes.NewBuffer(nil),
		WriteBuffer: bytes.NewBuffer(nil),
	}
	tsp.readCond = sync.NewCond(&tsp.mu)
	return tsp
}

// Read reads from the read buffer, optionally simulating latency and errors.
// An empty non-blocking buffer reads as io.EOF.
func (t *TestableSerialPort) Read(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadCalls++

	if t.Closed {
		return 0, errPortClosed
	}

	if t.ReadError != nil {
		err := t.ReadError
		t.ReadError = nil
		return 0, err
	}

	if t.ReadLatency > 0 {
		t.mu.Unlock()
		time.Sleep(t.ReadLatency)
		t.mu.Lock()
	}

	// If blocking reads are enabled and buffer is empty, wait for data
	if t.BlockReads && t.ReadBuffer.Len() == 0 {
		for !t.Closed && t.ReadBuffer.Len() == 0 {
			t.readCond.Wait()
		}
		if t.Closed {
			return 0, errPortClosed
		}
	}

	return t.ReadBuffer.Read(p)
}

// Write records p in the write buffer.
func (t *TestableSerialPort) Write(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Closed {
		return 0, errPortClosed
	}
	return t.WriteBuffer.Write(p)
}

// Close marks the port as closed.
func (t *TestableSerialPort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.Closed = true
	t.readCond.Broadcast() // Wake up any blocked readers

	return t.CloseError
}

// AddReadData adds data to be returned by subsequent Read calls.
func (t *TestableSerialPort) AddReadData(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadBuffer.Write(data)
	t.readCond.Signal() // Wake up a blocked reader
}

// IsClosed reports whether Close was called.
func (t *TestableSerialPort) IsClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.Closed
}
