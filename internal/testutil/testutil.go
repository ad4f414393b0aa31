// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/banshee-data/accmouse/internal/accel"
)

// loopbackAddr is accepted by tsweb's debug access check.
const loopbackAddr = "127.0.0.1:12345"

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// NewDebugRequest creates a test HTTP request that appears to come from
// localhost, so tsweb debug routes serve it.
func NewDebugRequest(method, path string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = loopbackAddr
	return req
}

// ServeDebug runs a debug request through mux and returns the recorder.
func ServeDebug(mux http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, NewDebugRequest(method, path))
	return rec
}

// Reading is one raw device reading.
type Reading struct {
	X, Y, Z int8
}

// Frames encodes readings as the device would send them.
func Frames(readings ...Reading) []byte {
	var buf bytes.Buffer
	for _, r := range readings {
		buf.Write(accel.EncodeFrame(r.X, r.Y, r.Z))
	}
	return buf.Bytes()
}

// RepeatFrames encodes n copies of r.
func RepeatFrames(r Reading, n int) []byte {
	var buf bytes.Buffer
	frame := accel.EncodeFrame(r.X, r.Y, r.Z)
	for i := 0; i < n; i++ {
		buf.Write(frame)
	}
	return buf.Bytes()
}

// Rest is a reading that decodes to a zero sample.
var Rest = Reading{X: 1, Y: 1, Z: 1}
