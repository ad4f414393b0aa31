package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/accmouse/internal/cursor"
	"github.com/banshee-data/accmouse/internal/motion"
	"github.com/banshee-data/accmouse/internal/serialmux"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for tuning parameters.
// Every field is optional; the Get* methods supply defaults for fields the
// file leaves out.
type TuningConfig struct {
	// Classifier params
	WindowSize   *int     `json:"window_size,omitempty"`
	ShortWindow  *int     `json:"short_window,omitempty"`
	Threshold    *float64 `json:"threshold,omitempty"`
	SettleCount  *int     `json:"settle_count,omitempty"`
	BiasAlpha    *float64 `json:"bias_alpha,omitempty"`
	MaxTimeDelta *string  `json:"max_time_delta,omitempty"` // duration string like "100ms"; "0s" disables the cap

	// Cursor mapping params
	GainX    *float64 `json:"gain_x,omitempty"`
	GainY    *float64 `json:"gain_y,omitempty"`
	SwapAxes *bool    `json:"swap_axes,omitempty"`

	// Serial port params
	Serial *serialmux.PortOptions `json:"serial,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field set to its
// built-in default. It matches config/tuning.defaults.json.
func DefaultTuningConfig() *TuningConfig {
	p := motion.DefaultParams()
	m := cursor.DefaultMapping()
	return &TuningConfig{
		WindowSize:   ptrInt(p.WindowSize),
		ShortWindow:  ptrInt(p.ShortWindow),
		Threshold:    ptrFloat64(p.Threshold),
		SettleCount:  ptrInt(p.SettleCount),
		BiasAlpha:    ptrFloat64(p.BiasAlpha),
		MaxTimeDelta: ptrString("100ms"),
		GainX:        ptrFloat64(m.GainX),
		GainY:        ptrFloat64(m.GainY),
		SwapAxes:     ptrBool(m.SwapAxes),
		Serial: &serialmux.PortOptions{
			BaudRate: serialmux.DefaultBaudRate,
			DataBits: 8,
			StopBits: 1,
			Parity:   "N",
		},
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	// Validate the config file path.
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	// Try paths from current dir up to repo root
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from cmd/tools/replay/
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.WindowSize != nil && *c.WindowSize < 2 {
		return fmt.Errorf("window_size must be at least 2, got %d", *c.WindowSize)
	}

	if c.ShortWindow != nil {
		if *c.ShortWindow < 2 {
			return fmt.Errorf("short_window must be at least 2, got %d", *c.ShortWindow)
		}
		if *c.ShortWindow > c.GetWindowSize() {
			return fmt.Errorf("short_window (%d) must not exceed window_size (%d)", *c.ShortWindow, c.GetWindowSize())
		}
	}

	if c.Threshold != nil && *c.Threshold <= 0 {
		return fmt.Errorf("threshold must be positive, got %f", *c.Threshold)
	}

	if c.SettleCount != nil && *c.SettleCount < 1 {
		return fmt.Errorf("settle_count must be at least 1, got %d", *c.SettleCount)
	}

	if c.BiasAlpha != nil {
		if *c.BiasAlpha <= 0 || *c.BiasAlpha >= 1 {
			return fmt.Errorf("bias_alpha must be between 0 and 1 (exclusive), got %f", *c.BiasAlpha)
		}
	}

	// Validate MaxTimeDelta can be parsed if set
	if c.MaxTimeDelta != nil && *c.MaxTimeDelta != "" {
		d, err := time.ParseDuration(*c.MaxTimeDelta)
		if err != nil {
			return fmt.Errorf("invalid max_time_delta '%s': %w", *c.MaxTimeDelta, err)
		}
		if d < 0 {
			return fmt.Errorf("max_time_delta must be non-negative, got %s", d)
		}
	}

	if c.GainX != nil && *c.GainX == 0 {
		return fmt.Errorf("gain_x must be non-zero")
	}
	if c.GainY != nil && *c.GainY == 0 {
		return fmt.Errorf("gain_y must be non-zero")
	}

	if c.Serial != nil {
		if _, err := c.Serial.Normalise(); err != nil {
			return fmt.Errorf("serial: %w", err)
		}
	}

	return nil
}

// GetWindowSize returns the window_size value or the default.
func (c *TuningConfig) GetWindowSize() int {
	if c.WindowSize == nil {
		return motion.DefaultWindowSize
	}
	return *c.WindowSize
}

// GetShortWindow returns the short_window value or the default.
func (c *TuningConfig) GetShortWindow() int {
	if c.ShortWindow == nil {
		return motion.DefaultShortWindow
	}
	return *c.ShortWindow
}

// GetThreshold returns the threshold value or the default.
func (c *TuningConfig) GetThreshold() float64 {
	if c.Threshold == nil {
		return motion.DefaultThreshold
	}
	return *c.Threshold
}

// GetSettleCount returns the settle_count value or the default.
func (c *TuningConfig) GetSettleCount() int {
	if c.SettleCount == nil {
		return motion.DefaultSettleCount
	}
	return *c.SettleCount
}

// GetBiasAlpha returns the bias_alpha value or the default.
func (c *TuningConfig) GetBiasAlpha() float64 {
	if c.BiasAlpha == nil {
		return motion.DefaultBiasAlpha
	}
	return *c.BiasAlpha
}

// GetMaxTimeDelta parses and returns the MaxTimeDelta as a time.Duration.
// Zero means the cap is disabled.
func (c *TuningConfig) GetMaxTimeDelta() time.Duration {
	def := time.Duration(motion.DefaultMaxTimeDelta * float64(time.Second))
	if c.MaxTimeDelta == nil || *c.MaxTimeDelta == "" {
		return def
	}
	d, err := time.ParseDuration(*c.MaxTimeDelta)
	if err != nil || d < 0 {
		return def // default on parse error
	}
	return d
}

// GetGainX returns the gain_x value or the default.
func (c *TuningConfig) GetGainX() float64 {
	if c.GainX == nil {
		return cursor.DefaultGainX
	}
	return *c.GainX
}

// GetGainY returns the gain_y value or the default.
func (c *TuningConfig) GetGainY() float64 {
	if c.GainY == nil {
		return cursor.DefaultGainY
	}
	return *c.GainY
}

// GetSwapAxes returns the swap_axes value or the default.
func (c *TuningConfig) GetSwapAxes() bool {
	if c.SwapAxes == nil {
		return true
	}
	return *c.SwapAxes
}

// GetSerial returns the serial port options; unset fields are filled in when
// the port is opened.
func (c *TuningConfig) GetSerial() serialmux.PortOptions {
	if c.Serial == nil {
		return serialmux.PortOptions{}
	}
	return *c.Serial
}

// MotionParams builds the classifier parameters.
func (c *TuningConfig) MotionParams() motion.Params {
	maxDT := c.GetMaxTimeDelta().Seconds()
	if maxDT == 0 {
		// motion.Params treats zero as "use default" and negative as no cap.
		maxDT = -1
	}
	return motion.Params{
		WindowSize:   c.GetWindowSize(),
		ShortWindow:  c.GetShortWindow(),
		Threshold:    c.GetThreshold(),
		SettleCount:  c.GetSettleCount(),
		BiasAlpha:    c.GetBiasAlpha(),
		MaxTimeDelta: maxDT,
	}
}

// CursorMapping builds the velocity to cursor mapping.
func (c *TuningConfig) CursorMapping() cursor.Mapping {
	return cursor.Mapping{
		GainX:    c.GetGainX(),
		GainY:    c.GetGainY(),
		SwapAxes: c.GetSwapAxes(),
	}
}
