package cursor

import (
	"sync"

	"github.com/banshee-data/accmouse/internal/monitoring"
)

// LogSink is a dry-run sink that logs each move instead of moving a pointer.
type LogSink struct {
	mu     sync.Mutex
	acc    Accumulator
	closed bool
}

// NewLogSink creates a LogSink.
func NewLogSink() *LogSink { return &LogSink{} }

// Move logs the requested move and the whole pixels a device would receive.
func (s *LogSink) Move(dx, dy float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	ix, iy := s.acc.Add(dx, dy)
	monitoring.Logf("cursor move dx=%.3f dy=%.3f -> (%d, %d)", dx, dy, ix, iy)
	return nil
}

// Close stops further moves.
func (s *LogSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Move is one recorded pointer request.
type Move struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

// RecordingSink keeps every move in memory. It backs the replay tool and
// tests.
type RecordingSink struct {
	mu     sync.Mutex
	moves  []Move
	closed bool

	// Err, when set, is returned from Move after the move is recorded.
	Err error
}

// NewRecordingSink creates an empty RecordingSink.
func NewRecordingSink() *RecordingSink { return &RecordingSink{} }

func (s *RecordingSink) Move(dx, dy float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	s.moves = append(s.moves, Move{DX: dx, DY: dy})
	return s.Err
}

func (s *RecordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Moves returns a copy of the recorded moves.
func (s *RecordingSink) Moves() []Move {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Move(nil), s.moves...)
}

// Total returns the sum of all recorded moves.
func (s *RecordingSink) Total() Move {
	s.mu.Lock()
	defer s.mu.Unlock()
	var t Move
	for _, m := range s.moves {
		t.DX += m.DX
		t.DY += m.DY
	}
	return t
}

// Closed reports whether Close was called.
func (s *RecordingSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
