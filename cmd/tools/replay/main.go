// Package main replays a raw accelerometer capture through the motion
// pipeline and plots the resulting velocity and cursor traces.
//
// A capture is the byte stream read from the device, for example:
//
//	cat /dev/ttyACM0 > capture.bin
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/banshee-data/accmouse/internal/accel"
	"github.com/banshee-data/accmouse/internal/config"
	"github.com/banshee-data/accmouse/internal/cursor"
	"github.com/banshee-data/accmouse/internal/pipeline"
	"github.com/banshee-data/accmouse/internal/serialmux"
	"github.com/banshee-data/accmouse/internal/timeutil"
)

// Config holds configuration for a replay run.
type Config struct {
	InFile     string
	OutFile    string
	ConfigPath string
	Rate       float64
}

// Result summarises a replay run.
type Result struct {
	Counters pipeline.Counters
	History  []pipeline.VelocityPoint
	Total    cursor.Move
}

func main() {
	cfg := Config{}
	flag.StringVar(&cfg.InFile, "in", "", "Raw capture file to replay (required)")
	flag.StringVar(&cfg.OutFile, "out", "traces.png", "Output PNG file")
	flag.StringVar(&cfg.ConfigPath, "config", "", "Tuning JSON file (defaults are built in)")
	flag.Float64Var(&cfg.Rate, "rate", 100, "Sample rate of the capture in Hz")
	flag.Parse()

	if cfg.InFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: replay -in capture.bin -out traces.png [-rate 100]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	res, err := replayFile(cfg)
	if err != nil {
		log.Fatalf("replay failed: %v", err)
	}
	if err := renderTraces(res.History, cfg.OutFile); err != nil {
		log.Fatalf("render traces: %v", err)
	}

	c := res.Counters
	log.Printf("replayed %d frames (%d dropped), %d moves, net cursor (%.1f, %.1f)",
		c.FramesAccepted, c.FramesDropped, c.Moves, res.Total.DX, res.Total.DY)
	log.Printf("wrote %s", cfg.OutFile)
}

func replayFile(cfg Config) (Result, error) {
	if cfg.Rate <= 0 {
		return Result{}, fmt.Errorf("rate must be positive, got %g", cfg.Rate)
	}

	tuning := config.DefaultTuningConfig()
	if cfg.ConfigPath != "" {
		var err error
		if tuning, err = config.LoadTuningConfig(cfg.ConfigPath); err != nil {
			return Result{}, err
		}
	}

	f, err := os.Open(cfg.InFile)
	if err != nil {
		return Result{}, fmt.Errorf("open capture: %w", err)
	}
	// The mux closes f.
	mux := serialmux.NewSerialMux(f)
	defer mux.Close()

	info, err := f.Stat()
	if err != nil {
		return Result{}, fmt.Errorf("stat capture: %w", err)
	}
	frames := int(info.Size()/accel.FrameLen) + 1

	return replay(mux, tuning, cfg.Rate, frames)
}

// replay feeds every frame from mux through a fresh stream, stepping a mock
// clock one sample period per frame. The history holds up to maxFrames points.
func replay(mux serialmux.SerialMuxInterface, tuning *config.TuningConfig, rate float64, maxFrames int) (Result, error) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	step := time.Duration(float64(time.Second) / rate)
	sink := cursor.NewRecordingSink()

	stream := pipeline.NewStream(pipeline.Config{
		Params:     tuning.MotionParams(),
		Mapping:    tuning.CursorMapping(),
		Sink:       sink,
		Clock:      clock,
		HistoryLen: maxFrames,
	})
	defer stream.Close()

	err := mux.Monitor(context.Background(), func(frame []byte) {
		clock.Advance(step)
		stream.HandleFrame(frame)
	})
	if err != nil {
		return Result{}, err
	}

	snap := stream.Snapshot()
	return Result{
		Counters: snap.Counters,
		History:  snap.History,
		Total:    sink.Total(),
	}, nil
}
