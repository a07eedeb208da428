// Package awg defines the capability contract any downstream arbitrary
// waveform generator driver must satisfy, plus a small registry used to
// select a concrete driver by name from configuration. Channel 0 means
// "all channels" for every setter. A driver's own errors are returned to
// the caller, who logs them; the VXI-11 session itself never fails because
// of a driver error (see the scpi package).
package awg

import "fmt"

// Driver is the abstract AWG capability set. Concrete implementations live
// in sibling packages (dummy, serial, ad9910spi, gpiolatch).
type Driver interface {
	Connect() error
	Disconnect() error
	Initialize() error
	GetID() string

	EnableOutput(channel int, on bool) error
	SetFrequency(channel int, hz float64) error
	SetPhase(channel int, degrees float64) error
	SetWaveType(channel int, code WaveType) error
	SetAmplitude(channel int, voltsPP float64) error
	SetOffset(channel int, volts float64) error
	SetLoadImpedance(channel int, ohmsOrHiZ float64) error
}

// WaveType is the numeric waveform code understood by drivers, using the
// conventional Siglent encoding.
type WaveType int

const (
	Sine WaveType = iota
	Square
	Triangle
	Pulse
	Noise
	Arbitrary
)

// HiZ is the sentinel passed to SetLoadImpedance/SetAmplitude conversions
// to mean "high input impedance" (no divider correction).
const HiZ = -1

// Constructor builds a Driver from a driver-specific configuration blob.
// cfg is typically a decoded TOML sub-table; concrete drivers type-assert
// it to their own config struct.
type Constructor func(cfg map[string]any) (Driver, error)

var registry = map[string]Constructor{}

// Register adds a named driver constructor to the global registry. Driver
// packages call this from an init() function, mirroring the pattern the
// original awg_factory.py uses to let each driver module register itself.
func Register(name string, ctor Constructor) {
	if registry == nil {
		registry = map[string]Constructor{}
	}
	registry[name] = ctor
}

// New constructs the driver registered under name, or an error if no such
// driver has been registered.
func New(name string, cfg map[string]any) (Driver, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("awg: no driver registered as %q", name)
	}
	return ctor(cfg)
}

// Names returns the short names of every registered driver.
func Names() []string {
	out := make([]string, 0, len(registry))
	for n := range registry {
		out = append(out, n)
	}
	return out
}
