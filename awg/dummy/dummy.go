// Package dummy implements an awg.Driver that does nothing but log every
// call it receives. It is ported from the original project's
// awgdrivers/dummy_awg.py, used there for development without a real AWG
// attached.
package dummy

import (
	"log"

	"github.com/bstrobel/sds1004x-bode/awg"
)

const awgID = "Dummy AWG"

func init() {
	awg.Register("dummy", func(cfg map[string]any) (awg.Driver, error) {
		return New(), nil
	})
}

// Driver is a no-op awg.Driver implementation.
type Driver struct{}

// New returns a ready-to-use dummy driver.
func New() *Driver {
	log.Printf("dummy: init")
	return &Driver{}
}

func (d *Driver) Connect() error {
	log.Printf("dummy: connect")
	return nil
}

func (d *Driver) Disconnect() error {
	log.Printf("dummy: disconnect")
	return nil
}

func (d *Driver) Initialize() error {
	log.Printf("dummy: initialize")
	return nil
}

func (d *Driver) GetID() string { return awgID }

func (d *Driver) EnableOutput(channel int, on bool) error {
	log.Printf("dummy: enable_output(channel: %d, on: %v)", channel, on)
	return nil
}

func (d *Driver) SetFrequency(channel int, hz float64) error {
	log.Printf("dummy: set_frequency(channel: %d, freq: %v)", channel, hz)
	return nil
}

func (d *Driver) SetPhase(channel int, degrees float64) error {
	log.Printf("dummy: set_phase(channel: %d, phase: %v)", channel, degrees)
	return nil
}

func (d *Driver) SetWaveType(channel int, code awg.WaveType) error {
	log.Printf("dummy: set_wave_type(channel: %d, wavetype: %v)", channel, code)
	return nil
}

func (d *Driver) SetAmplitude(channel int, voltsPP float64) error {
	log.Printf("dummy: set_amplitude(channel: %d, amplitude: %v)", channel, voltsPP)
	return nil
}

func (d *Driver) SetOffset(channel int, volts float64) error {
	log.Printf("dummy: set_offset(channel: %d, offset: %v)", channel, volts)
	return nil
}

func (d *Driver) SetLoadImpedance(channel int, ohmsOrHiZ float64) error {
	log.Printf("dummy: set_load_impedance(channel: %d, impedance: %v)", channel, ohmsOrHiZ)
	return nil
}

var _ awg.Driver = (*Driver)(nil)
