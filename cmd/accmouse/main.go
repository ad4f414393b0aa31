package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/accmouse/internal/config"
	"github.com/banshee-data/accmouse/internal/cursor"
	"github.com/banshee-data/accmouse/internal/monitor"
	"github.com/banshee-data/accmouse/internal/monitoring"
	"github.com/banshee-data/accmouse/internal/pipeline"
	"github.com/banshee-data/accmouse/internal/serialmux"
	"github.com/banshee-data/accmouse/internal/version"
)

const usageLine = "Usage: accmouse [flags] <tty device file>"

// errUsage means the command line did not name a device.
var errUsage = errors.New("missing tty device")

// options holds the parsed command line.
type options struct {
	ConfigPath  string
	Sink        string
	DebugListen string
	Dev         bool
	Trace       bool
	Version     bool
	Device      string
}

func parseArgs(args []string, out io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("accmouse", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVar(&o.ConfigPath, "config", "", "Path to a tuning JSON file (defaults are built in)")
	fs.StringVar(&o.Sink, "sink", "uinput", "Cursor sink: uinput or log")
	fs.StringVar(&o.DebugListen, "debug-listen", "", "Serve /debug/ pages on this address, e.g. localhost:8081")
	fs.BoolVar(&o.Dev, "dev", false, "Replay a synthetic gesture instead of reading a device")
	fs.BoolVar(&o.Trace, "trace", false, "Log every sample")
	fs.BoolVar(&o.Version, "version", false, "Print version and exit")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), usageLine)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.Version {
		return o, nil
	}
	if fs.NArg() > 0 {
		o.Device = fs.Arg(0)
	}
	if o.Device == "" && !o.Dev {
		return o, errUsage
	}
	return o, nil
}

func loadTuning(path string) (*config.TuningConfig, error) {
	if path == "" {
		return config.DefaultTuningConfig(), nil
	}
	return config.LoadTuningConfig(path)
}

func newSink(kind string) (cursor.Sink, error) {
	switch kind {
	case "uinput":
		s, err := cursor.NewUinputSink(cursor.DefaultUinputPath, "accmouse")
		if err != nil {
			return nil, err
		}
		return s, nil
	case "log":
		return cursor.NewLogSink(), nil
	default:
		return nil, fmt.Errorf("unknown sink %q: expected uinput or log", kind)
	}
}

func openSerial(o options, tuning *config.TuningConfig) (serialmux.SerialMuxInterface, error) {
	if o.Dev {
		log.Printf("dev mode: replaying synthetic gesture")
		return serialmux.NewMockSerialMux(serialmux.DefaultGesture(), nil), nil
	}
	opts := tuning.GetSerial()
	mux, err := serialmux.NewRealSerialMux(o.Device, opts)
	if err != nil {
		return nil, err
	}
	log.Printf("opened %s at %s", o.Device, opts)
	return mux, nil
}

// Main
func main() {
	o, err := parseArgs(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if errors.Is(err, errUsage) {
		fmt.Println(usageLine)
		return
	}
	if err != nil {
		os.Exit(2)
	}
	if o.Version {
		fmt.Println(version.String())
		return
	}

	monitoring.SetTrace(o.Trace)

	tuning, err := loadTuning(o.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load tuning config: %v", err)
	}

	accSerial, err := openSerial(o, tuning)
	if err != nil {
		log.Fatalf("failed to open accelerometer port: %v", err)
	}
	defer accSerial.Close()

	sink, err := newSink(o.Sink)
	if err != nil {
		log.Fatalf("failed to create cursor sink: %v", err)
	}

	stream := pipeline.NewStream(pipeline.Config{
		Params:  tuning.MotionParams(),
		Mapping: tuning.CursorMapping(),
		Sink:    sink,
	})
	defer stream.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, stream, accSerial, o.DebugListen); err != nil {
		log.Printf("accmouse stopped: %v", err)
	}
	log.Printf("Graceful shutdown complete")
}

// run drives the stream from the serial mux until ctx is cancelled or the
// port ends, serving debug pages on debugListen when set.
func run(ctx context.Context, stream *pipeline.Stream, accSerial serialmux.SerialMuxInterface, debugListen string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	var monitorErr error

	// run the monitor routine to manage IO on the serial port
	wg.Add(1)
	go func() {
		defer wg.Done()
		// a closed port ends the program too
		defer cancel()
		err := stream.Run(ctx, accSerial)
		if err != nil && !errors.Is(err, context.Canceled) {
			monitorErr = fmt.Errorf("monitor serial port: %w", err)
		}
		log.Print("monitor routine terminated")
	}()

	if debugListen != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			serveDebug(ctx, debugListen, stream, accSerial)
		}()
	}

	wg.Wait()
	return monitorErr
}

func serveDebug(ctx context.Context, addr string, stream *pipeline.Stream, accSerial serialmux.SerialMuxInterface) {
	mux := http.NewServeMux()
	accSerial.AttachAdminRoutes(mux)
	monitor.AttachRoutes(mux, stream)

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	// Start server in a goroutine so it doesn't block
	go func() {
		log.Printf("debug pages on http://%s/debug/", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("debug server failed: %v", err)
		}
	}()

	// Wait for context cancellation to shut down server
	<-ctx.Done()
	log.Println("shutting down debug server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("debug server shutdown error: %v", err)
		// Force close the server if graceful shutdown fails
		if err := server.Close(); err != nil {
			log.Printf("debug server force close error: %v", err)
		}
	}
}
