package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/accmouse/internal/cursor"
	"github.com/banshee-data/accmouse/internal/pipeline"
	"github.com/banshee-data/accmouse/internal/serialmux"
	"github.com/banshee-data/accmouse/internal/testutil"
	"github.com/banshee-data/accmouse/internal/timeutil"
)

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    options
		wantErr error
	}{
		{
			name: "device only",
			args: []string{"/dev/ttyUSB0"},
			want: options{Sink: "uinput", Device: "/dev/ttyUSB0"},
		},
		{
			name: "all flags",
			args: []string{"-config", "tuning.json", "-sink", "log", "-debug-listen", "localhost:8081", "-trace", "/dev/ttyACM0"},
			want: options{
				ConfigPath:  "tuning.json",
				Sink:        "log",
				DebugListen: "localhost:8081",
				Trace:       true,
				Device:      "/dev/ttyACM0",
			},
		},
		{
			name: "dev mode needs no device",
			args: []string{"-dev"},
			want: options{Sink: "uinput", Dev: true},
		},
		{
			name: "version needs no device",
			args: []string{"-version"},
			want: options{Sink: "uinput", Version: true},
		},
		{
			name:    "missing device",
			args:    nil,
			want:    options{Sink: "uinput"},
			wantErr: errUsage,
		},
		{
			name:    "help",
			args:    []string{"-h"},
			want:    options{Sink: "uinput"},
			wantErr: flag.ErrHelp,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			got, err := parseArgs(tt.args, &out)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("parseArgs() error = %v, want %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("parseArgs() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseArgs_UsageText(t *testing.T) {
	var out bytes.Buffer
	_, err := parseArgs([]string{"-h"}, &out)
	if !errors.Is(err, flag.ErrHelp) {
		t.Fatalf("expected flag.ErrHelp, got %v", err)
	}
	if !strings.HasPrefix(out.String(), usageLine) {
		t.Errorf("usage output should start with %q, got %q", usageLine, out.String())
	}
	if !strings.Contains(out.String(), "-debug-listen") {
		t.Errorf("usage output should list flags, got %q", out.String())
	}
}

func TestParseArgs_UnknownFlag(t *testing.T) {
	var out bytes.Buffer
	_, err := parseArgs([]string{"-bogus", "/dev/ttyUSB0"}, &out)
	if err == nil {
		t.Fatal("expected error for unknown flag")
	}
}

func TestLoadTuning(t *testing.T) {
	cfg, err := loadTuning("")
	testutil.AssertNoError(t, err)
	if got := cfg.GetWindowSize(); got != 5 {
		t.Errorf("default window size = %d, want 5", got)
	}

	path := filepath.Join(t.TempDir(), "tuning.json")
	if err := os.WriteFile(path, []byte(`{"gain_x": -3500, "swap_axes": false}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = loadTuning(path)
	testutil.AssertNoError(t, err)
	want := cursor.Mapping{GainX: -3500, GainY: cursor.DefaultGainY, SwapAxes: false}
	if diff := cmp.Diff(want, cfg.CursorMapping()); diff != "" {
		t.Errorf("mapping mismatch (-want +got):\n%s", diff)
	}

	if _, err := loadTuning(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestNewSink(t *testing.T) {
	sink, err := newSink("log")
	testutil.AssertNoError(t, err)
	if _, ok := sink.(*cursor.LogSink); !ok {
		t.Errorf("newSink(log) = %T, want *cursor.LogSink", sink)
	}

	if _, err := newSink("tablet"); err == nil {
		t.Error("expected error for unknown sink kind")
	}
}

func TestOpenSerial_DevMode(t *testing.T) {
	mux, err := openSerial(options{Dev: true}, nil)
	testutil.AssertNoError(t, err)
	defer mux.Close()

	if _, ok := mux.(*serialmux.SerialMux[*serialmux.MockSerialPort]); !ok {
		t.Errorf("dev mode mux = %T, want mock serial mux", mux)
	}
}

func newTestStream(sink cursor.Sink) *pipeline.Stream {
	return pipeline.NewStream(pipeline.Config{
		Sink:  sink,
		Clock: timeutil.NewMockClock(time.Unix(0, 0)),
	})
}

func TestRun_EndsAtEOF(t *testing.T) {
	port := serialmux.NewTestableSerialPort()
	port.AddReadData(testutil.RepeatFrames(testutil.Rest, 8))
	accSerial := serialmux.NewSerialMux(port)
	defer accSerial.Close()

	sink := cursor.NewRecordingSink()
	stream := newTestStream(sink)

	if err := run(context.Background(), stream, accSerial, ""); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	snap := stream.Snapshot()
	if snap.Counters.FramesAccepted != 8 {
		t.Errorf("FramesAccepted = %d, want 8", snap.Counters.FramesAccepted)
	}
	// Warm-up swallows the first four samples.
	if got := len(sink.Moves()); got != 4 {
		t.Errorf("moves = %d, want 4", got)
	}
	if total := sink.Total(); total != (cursor.Move{}) {
		t.Errorf("resting device moved the cursor by %+v", total)
	}
}

func TestRun_ReadError(t *testing.T) {
	port := serialmux.NewTestableSerialPort()
	port.ReadError = errors.New("device unplugged")
	accSerial := serialmux.NewSerialMux(port)
	defer accSerial.Close()

	err := run(context.Background(), newTestStream(cursor.NewRecordingSink()), accSerial, "")
	if err == nil || !strings.Contains(err.Error(), "device unplugged") {
		t.Fatalf("run() error = %v, want wrapped read error", err)
	}
}

func TestRun_CancelWithDebugServer(t *testing.T) {
	port := serialmux.NewTestableSerialPort()
	port.BlockReads = true
	accSerial := serialmux.NewSerialMux(port)
	defer accSerial.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- run(ctx, newTestStream(cursor.NewRecordingSink()), accSerial, "127.0.0.1:0")
	}()

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run() error = %v, want nil after cancel", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}
