// Serialmux provides an abstraction over the accelerometer serial port. It
// splits the byte stream into terminator-delimited frames, hands every frame
// in order to a single synchronous handler, and lets debugging clients
// subscribe to a best-effort copy of the frame stream.
package serialmux

import (
	"bufio"
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"

	"tailscale.com/tsweb"

	"github.com/banshee-data/accmouse/internal/accel"
)

// ErrClosed is returned by Monitor when the mux was closed while reading.
var ErrClosed = errors.New("serial mux closed")

// FrameHandler receives each frame read from the port, terminator included.
// A final unterminated fragment at end of stream is delivered as well so the
// receiver can account for it. The handler must not retain the slice.
type FrameHandler func(frame []byte)

// subscriberBuffer bounds how far a debug subscriber may lag before frames
// are dropped for it.
const subscriberBuffer = 64

// SerialMux is a generic serial port multiplexer that delivers frames from a
// single port to one in-order handler and any number of lossy subscribers.
type SerialMux[T SerialPorter] struct {
	port         T
	terminator   byte
	subscribers  map[string]chan []byte
	subscriberMu sync.Mutex
	closing      bool
	closingMu    sync.Mutex

	framesRead    atomic.Uint64
	framesDropped atomic.Uint64 // subscriber deliveries skipped
}

// SerialMuxInterface defines the interface for the SerialMux type.
type SerialMuxInterface interface {
	// Subscribe creates a new channel receiving copies of frames read from the
	// port. Slow subscribers miss frames rather than stalling the reader. The
	// channel ID is used to identify the unique channel when unsubscribing.
	Subscribe() (string, chan []byte)
	// Unsubscribe removes a channel from the list of subscribers.
	Unsubscribe(string)
	// Monitor reads frames from the serial port until the context is
	// cancelled or the port fails, calling handle for every frame in order.
	Monitor(context.Context, FrameHandler) error
	// Close closes all subscribed channels and closes the serial port.
	Close() error

	// AttachAdminRoutes attaches admin debugging endpoints to the given HTTP
	// mux served at /debug/. These routes are accessible only over
	// localhost/via Tailscale and are not publicly accessible.
	AttachAdminRoutes(*http.ServeMux)
}

// NewSerialMux creates a SerialMux reading accelerometer frames from port.
func NewSerialMux[T SerialPorter](port T) *SerialMux[T] {
	return &SerialMux[T]{
		port:        port,
		terminator:  accel.Terminator,
		subscribers: make(map[string]chan []byte),
	}
}

// randomID generates a random channel ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

func (s *SerialMux[T]) Subscribe() (string, chan []byte) {
	id := randomID()
	ch := make(chan []byte, subscriberBuffer)

	s.closingMu.Lock()
	closing := s.closing
	s.closingMu.Unlock()
	if closing {
		// return a closed channel so callers don't block
		close(ch)
		return id, ch
	}

	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	s.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber from the serial mux.
func (s *SerialMux[T]) Unsubscribe(id string) {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
	}
}

// Stats reports how many frames were read and how many subscriber
// deliveries were skipped.
func (s *SerialMux[T]) Stats() (read, dropped uint64) {
	return s.framesRead.Load(), s.framesDropped.Load()
}

// Monitor monitors the serial port for frames and passes them to handle and
// then to subscribers.
func (s *SerialMux[T]) Monitor(ctx context.Context, handle FrameHandler) error {
	reader := bufio.NewReader(s.port)

	frameChan := make(chan []byte)
	readErrChan := make(chan error, 1)

	// The blocking read runs on its own goroutine so the loop below can react
	// to context cancellation; closing the port unblocks it.
	go func() {
		defer close(frameChan)
		for {
			frame, err := reader.ReadBytes(s.terminator)
			if len(frame) > 0 {
				select {
				case frameChan <- frame:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					readErrChan <- err
				}
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case frame, ok := <-frameChan:
			if !ok {
				select {
				case err := <-readErrChan:
					if s.isClosing() {
						return ErrClosed
					}
					return fmt.Errorf("read serial port: %w", err)
				default:
					return nil
				}
			}
			if s.isClosing() {
				return ErrClosed
			}

			s.framesRead.Add(1)
			if handle != nil {
				handle(frame)
			}
			s.publish(frame)
		}
	}
}

func (s *SerialMux[T]) isClosing() bool {
	s.closingMu.Lock()
	defer s.closingMu.Unlock()
	return s.closing
}

// publish offers a copy of frame to every subscriber without blocking.
func (s *SerialMux[T]) publish(frame []byte) {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	if len(s.subscribers) == 0 {
		return
	}
	cp := append([]byte(nil), frame...)
	for _, ch := range s.subscribers {
		select {
		case ch <- cp:
		default:
			// if the channel is full skip so as not to block the reader
			s.framesDropped.Add(1)
		}
	}
}

func (s *SerialMux[T]) Close() error {
	s.closingMu.Lock()
	if s.closing {
		s.closingMu.Unlock()
		return nil
	}
	s.closing = true
	s.closingMu.Unlock()

	s.subscriberMu.Lock()
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	s.subscriberMu.Unlock()
	return s.port.Close()
}

func (s *SerialMux[T]) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.KVFunc("Serial frames read", func() any {
		read, _ := s.Stats()
		return read
	})

	debug.Handle("serial-stats", "serial frame counters", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		read, dropped := s.Stats()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]uint64{
			"frames_read":      read,
			"subscriber_drops": dropped,
			"subscriber_count": uint64(s.subscriberCount()),
		})
	}))

	// Server-Side Events (SSE) stream of frames as hex as they arrive.
	debug.HandleSilent("tail", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

		id, c := s.Subscribe()
		defer s.Unsubscribe(id)

		// Send initial ping to establish connection
		w.Write([]byte(": ping\n\n"))
		flusher.Flush()

		for {
			select {
			case frame, ok := <-c:
				if !ok {
					// Channel closed, exit gracefully
					return
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", hex.EncodeToString(frame)); err != nil {
					return
				}
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	}))
}

func (s *SerialMux[T]) subscriberCount() int {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	return len(s.subscribers)
}
