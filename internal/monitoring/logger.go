package monitoring

import (
	"log"
	"sync/atomic"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

var trace atomic.Bool

// SetTrace enables or disables per-sample trace output.
func SetTrace(on bool) { trace.Store(on) }

// TraceEnabled reports whether per-sample tracing is on.
func TraceEnabled() bool { return trace.Load() }

// Tracef logs through Logf only when tracing is enabled. Sample-rate code
// paths use it so the default output stays quiet at 100 Hz.
func Tracef(format string, v ...interface{}) {
	if trace.Load() {
		Logf(format, v...)
	}
}
