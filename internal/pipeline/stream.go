// Package pipeline connects one frame source to one motion classifier and
// one cursor sink.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/accmouse/internal/accel"
	"github.com/banshee-data/accmouse/internal/cursor"
	"github.com/banshee-data/accmouse/internal/monitoring"
	"github.com/banshee-data/accmouse/internal/motion"
	"github.com/banshee-data/accmouse/internal/serialmux"
	"github.com/banshee-data/accmouse/internal/timeutil"
)

// DefaultHistoryLen keeps five seconds of velocity at 100 Hz.
const DefaultHistoryLen = 500

// sinkErrorLogEvery limits sink error logging at sample rate.
const sinkErrorLogEvery = 100

// Config configures a Stream. Sink is required; zero values elsewhere take
// defaults.
type Config struct {
	Params     motion.Params
	Mapping    cursor.Mapping
	Sink       cursor.Sink
	Clock      timeutil.Clock
	HistoryLen int
}

// Counters are the per-stream frame and move totals.
type Counters struct {
	FramesAccepted uint64 `json:"frames_accepted"`
	FramesDropped  uint64 `json:"frames_dropped"`
	Moves          uint64 `json:"moves"`
	SinkErrors     uint64 `json:"sink_errors"`
}

// VelocityPoint is one entry of the velocity history.
type VelocityPoint struct {
	Time       float64     `json:"t"`
	Velocity   motion.Vec2 `json:"velocity"`
	DX         float64     `json:"dx"`
	DY         float64     `json:"dy"`
	Stationary bool        `json:"stationary"`
}

// Snapshot is a consistent copy of a stream's observable state.
type Snapshot struct {
	ID        string          `json:"id"`
	StartedAt time.Time       `json:"started_at"`
	Params    motion.Params   `json:"params"`
	Mapping   cursor.Mapping  `json:"mapping"`
	Counters  Counters        `json:"counters"`
	State     motion.State    `json:"state"`
	History   []VelocityPoint `json:"history"`
}

// Stream owns the classifier for a single input stream. HandleFrame must be
// called from one goroutine; Snapshot may be called from any.
type Stream struct {
	id         string
	classifier *motion.Classifier
	mapping    cursor.Mapping
	sink       cursor.Sink
	watch      *timeutil.Stopwatch

	mu       sync.Mutex
	counters Counters
	state    motion.State
	history  []VelocityPoint
	next     int
	filled   bool
}

// NewStream creates a stream with a fresh classifier in the stationary state.
func NewStream(cfg Config) *Stream {
	n := cfg.HistoryLen
	if n <= 0 {
		n = DefaultHistoryLen
	}
	m := cfg.Mapping
	if m == (cursor.Mapping{}) {
		m = cursor.DefaultMapping()
	}
	c := motion.NewClassifier(cfg.Params)
	return &Stream{
		id:         uuid.New().String(),
		classifier: c,
		mapping:    m,
		sink:       cfg.Sink,
		watch:      timeutil.NewStopwatch(cfg.Clock),
		state:      c.State(),
		history:    make([]VelocityPoint, n),
	}
}

// ID returns the stream identifier.
func (s *Stream) ID() string { return s.id }

// HandleFrame processes one frame from the serial mux. Malformed frames are
// counted and otherwise ignored. Once the classifier is warmed up every
// accepted frame produces exactly one sink move.
func (s *Stream) HandleFrame(frame []byte) {
	sample, ok := accel.DecodeFrame(frame)
	if !ok {
		s.mu.Lock()
		s.counters.FramesDropped++
		s.mu.Unlock()
		monitoring.Tracef("stream %s: dropped %d-byte frame", s.id, len(frame))
		return
	}

	t := s.watch.Seconds()
	v := s.classifier.Update(sample, t)
	state := s.classifier.State()

	var (
		dx, dy  float64
		moved   bool
		sinkErr error
	)
	if s.classifier.Ready() {
		dx, dy = s.mapping.Apply(v)
		sinkErr = s.sink.Move(dx, dy)
		moved = true
	}

	monitoring.Tracef("stream %s: t=%.4f sample=%+v stationary=%v v=%+v d=(%.3f, %.3f)",
		s.id, t, sample, state.IsStationary, v, dx, dy)

	s.mu.Lock()
	s.counters.FramesAccepted++
	s.state = state
	if moved {
		s.counters.Moves++
		s.record(VelocityPoint{Time: t, Velocity: v, DX: dx, DY: dy, Stationary: state.IsStationary})
	}
	var sinkErrors uint64
	if sinkErr != nil {
		s.counters.SinkErrors++
		sinkErrors = s.counters.SinkErrors
	}
	s.mu.Unlock()

	if sinkErr != nil && sinkErrors%sinkErrorLogEvery == 1 {
		monitoring.Logf("stream %s: cursor sink error (%d so far): %v", s.id, sinkErrors, sinkErr)
	}
}

// record appends p to the history ring. Callers hold s.mu.
func (s *Stream) record(p VelocityPoint) {
	s.history[s.next] = p
	s.next++
	if s.next == len(s.history) {
		s.next = 0
		s.filled = true
	}
}

// Snapshot returns a copy of the stream's counters, classifier state and
// velocity history, oldest first.
func (s *Stream) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	var hist []VelocityPoint
	if s.filled {
		hist = make([]VelocityPoint, 0, len(s.history))
		hist = append(hist, s.history[s.next:]...)
		hist = append(hist, s.history[:s.next]...)
	} else {
		hist = append([]VelocityPoint(nil), s.history[:s.next]...)
	}

	return Snapshot{
		ID:        s.id,
		StartedAt: s.watch.Start(),
		Params:    s.classifier.Params(),
		Mapping:   s.mapping,
		Counters:  s.counters,
		State:     s.state,
		History:   hist,
	}
}

// Run feeds frames from mux into the stream until ctx is cancelled or the
// port fails.
func (s *Stream) Run(ctx context.Context, mux serialmux.SerialMuxInterface) error {
	monitoring.Logf("stream %s: started", s.id)
	err := mux.Monitor(ctx, s.HandleFrame)
	c := s.Snapshot().Counters
	monitoring.Logf("stream %s: stopped after %d frames (%d dropped, %d moves)",
		s.id, c.FramesAccepted, c.FramesDropped, c.Moves)
	return err
}

// Close closes the sink.
func (s *Stream) Close() error {
	return s.sink.Close()
}
