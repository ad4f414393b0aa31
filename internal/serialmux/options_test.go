package serialmux

import (
	"testing"

	"go.bug.st/serial"
)

func TestPortOptions_Normalise_Defaults(t *testing.T) {
	// Zero-value options should get defaults applied
	opts := PortOptions{}
	got, err := opts.Normalise()
	if err != nil {
		t.Fatalf("Normalise() error = %v", err)
	}
	if got.BaudRate != 9600 {
		t.Errorf("BaudRate = %d, want 9600", got.BaudRate)
	}
	if got.DataBits != 8 {
		t.Errorf("DataBits = %d, want 8", got.DataBits)
	}
	if got.StopBits != 1 {
		t.Errorf("StopBits = %d, want 1", got.StopBits)
	}
	if got.Parity != "N" {
		t.Errorf("Parity = %q, want %q", got.Parity, "N")
	}
}

func TestPortOptions_Normalise_ExplicitValues(t *testing.T) {
	opts := PortOptions{BaudRate: 115200, DataBits: 7, StopBits: 2, Parity: "E"}
	got, err := opts.Normalise()
	if err != nil {
		t.Fatalf("Normalise() error = %v", err)
	}
	if got.BaudRate != 115200 {
		t.Errorf("BaudRate = %d, want 115200", got.BaudRate)
	}
	if got.DataBits != 7 {
		t.Errorf("DataBits = %d, want 7", got.DataBits)
	}
	if got.StopBits != 2 {
		t.Errorf("StopBits = %d, want 2", got.StopBits)
	}
	if got.Parity != "E" {
		t.Errorf("Parity = %q, want %q", got.Parity, "E")
	}
}

func TestPortOptions_Normalise_NegativeBaudRate(t *testing.T) {
	opts := PortOptions{BaudRate: -5}
	got, err := opts.Normalise()
	if err != nil {
		t.Fatalf("Normalise() error = %v", err)
	}
	if got.BaudRate != DefaultBaudRate {
		t.Errorf("negative baud rate should default to %d, got %d", DefaultBaudRate, got.BaudRate)
	}
}

func TestPortOptions_Normalise_InvalidBaudRate(t *testing.T) {
	opts := PortOptions{BaudRate: 12345}
	_, err := opts.Normalise()
	if err == nil {
		t.Error("expected error for invalid baud rate, got nil")
	}
}

func TestPortOptions_Normalise_AllStandardBaudRates(t *testing.T) {
	rates := []int{110, 300, 600, 1200, 2400, 4800, 9600, 14400, 19200, 28800, 38400, 57600, 115200, 128000, 256000}
	for _, rate := range rates {
		opts := PortOptions{BaudRate: rate}
		got, err := opts.Normalise()
		if err != nil {
			t.Errorf("Normalise() with baud %d: unexpected error %v", rate, err)
		}
		if got.BaudRate != rate {
			t.Errorf("Normalise() with baud %d: got %d", rate, got.BaudRate)
		}
	}
}

func TestPortOptions_Normalise_InvalidDataBits(t *testing.T) {
	tests := []struct {
		name     string
		dataBits int
	}{
		{"too low", 4},
		{"too high", 9},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			opts := PortOptions{DataBits: tc.dataBits}
			_, err := opts.Normalise()
			if err == nil {
				t.Errorf("expected error for data bits %d, got nil", tc.dataBits)
			}
		})
	}
}

func TestPortOptions_Normalise_ValidDataBits(t *testing.T) {
	for bits := 5; bits <= 8; bits++ {
		opts := PortOptions{DataBits: bits}
		got, err := opts.Normalise()
		if err != nil {
			t.Errorf("Normalise() with data bits %d: unexpected error %v", bits, err)
		}
		if got.DataBits != bits {
			t.Errorf("Normalise() with data bits %d: got %d", bits, got.DataBits)
		}
	}
}

func TestPortOptions_Normalise_InvalidStopBits(t *testing.T) {
	opts := PortOptions{StopBits: 3}
	_, err := opts.Normalise()
	if err == nil {
		t.Error("expected error for stop bits 3, got nil")
	}
}

func TestPortOptions_Normalise_ParityVariations(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"N", "N"},
		{"n", "N"},
		{"NONE", "N"},
		{"none", "N"},
		{"E", "E"},
		{"e", "E"},
		{"EVEN", "E"},
		{"even", "E"},
		{"O", "O"},
		{"o", "O"},
		{"ODD", "O"},
		{"odd", "O"},
		{"  N  ", "N"}, // whitespace
	}
	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			opts := PortOptions{Parity: tc.input}
			got, err := opts.Normalise()
			if err != nil {
				t.Fatalf("Normalise() with parity %q: unexpected error %v", tc.input, err)
			}
			if got.Parity != tc.want {
				t.Errorf("Normalise() with parity %q: got %q, want %q", tc.input, got.Parity, tc.want)
			}
		})
	}
}

func TestPortOptions_Normalise_InvalidParity(t *testing.T) {
	opts := PortOptions{Parity: "X"}
	_, err := opts.Normalise()
	if err == nil {
		t.Error("expected error for parity X, got nil")
	}
}

func TestPortOptions_String(t *testing.T) {
	tests := []struct {
		name string
		opts PortOptions
		want string
	}{
		{"defaults", PortOptions{}, "9600 8N1"},
		{"explicit", PortOptions{BaudRate: 115200, DataBits: 7, StopBits: 2, Parity: "even"}, "115200 7E2"},
		{"invalid rendered as given", PortOptions{BaudRate: 12345, DataBits: 8, StopBits: 1, Parity: "N"}, "12345 8N1"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.opts.String(); got != tc.want {
				t.Errorf("String() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestPortOptions_SerialMode_Default(t *testing.T) {
	opts := PortOptions{}
	mode, err := opts.SerialMode()
	if err != nil {
		t.Fatalf("SerialMode() error = %v", err)
	}
	if mode.BaudRate != 9600 {
		t.Errorf("BaudRate = %d, want 9600", mode.BaudRate)
	}
	if mode.DataBits != 8 {
		t.Errorf("DataBits = %d, want 8", mode.DataBits)
	}
	if mode.StopBits != serial.OneStopBit {
		t.Errorf("StopBits = %v, want OneStopBit", mode.StopBits)
	}
	if mode.Parity != serial.NoParity {
		t.Errorf("Parity = %v, want NoParity", mode.Parity)
	}
}

func TestPortOptions_SerialMode_EvenParity(t *testing.T) {
	opts := PortOptions{Parity: "E"}
	mode, err := opts.SerialMode()
	if err != nil {
		t.Fatalf("SerialMode() error = %v", err)
	}
	if mode.Parity != serial.EvenParity {
		t.Errorf("Parity = %v, want EvenParity", mode.Parity)
	}
}

func TestPortOptions_SerialMode_OddParity(t *testing.T) {
	opts := PortOptions{Parity: "O"}
	mode, err := opts.SerialMode()
	if err != nil {
		t.Fatalf("SerialMode() error = %v", err)
	}
	if mode.Parity != serial.OddParity {
		t.Errorf("Parity = %v, want OddParity", mode.Parity)
	}
}

func TestPortOptions_SerialMode_TwoStopBits(t *testing.T) {
	opts := PortOptions{StopBits: 2}
	mode, err := opts.SerialMode()
	if err != nil {
		t.Fatalf("SerialMode() error = %v", err)
	}
	if mode.StopBits != serial.TwoStopBits {
		t.Errorf("StopBits = %v, want TwoStopBits", mode.StopBits)
	}
}

func TestPortOptions_SerialMode_InvalidOptions(t *testing.T) {
	opts := PortOptions{BaudRate: 12345}
	_, err := opts.SerialMode()
	if err == nil {
		t.Error("expected error for invalid options, got nil")
	}
}
