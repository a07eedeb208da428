// Package gpiolatch wraps another awg.Driver to also toggle a GPIO pin
// whenever the wrapped channel's output is enabled or disabled, the way a
// board with a relay or indicator LED on its AWG output stage needs a
// second signal alongside the wrapped driver's own enable command.
package gpiolatch

import (
	"fmt"

	"github.com/kidoman/embd"

	"github.com/bstrobel/sds1004x-bode/awg"
)

// gpioLow and gpioHigh mirror the 0/1 convention embd.DigitalPin.Write
// expects; embd doesn't export named level constants of its own.
const (
	gpioLow  = 0
	gpioHigh = 1
)

func init() {
	awg.Register("gpiolatch", func(cfg map[string]any) (awg.Driver, error) {
		wrapName, _ := cfg["wrap"].(string)
		if wrapName == "" {
			return nil, fmt.Errorf("awg/gpiolatch: config is missing \"wrap\"")
		}
		latchPin, _ := cfg["latch_pin"].(string)
		if latchPin == "" {
			return nil, fmt.Errorf("awg/gpiolatch: config is missing \"latch_pin\"")
		}
		wrapped, err := awg.New(wrapName, cfg)
		if err != nil {
			return nil, fmt.Errorf("awg/gpiolatch: building wrapped driver %q: %w", wrapName, err)
		}
		return New(wrapped, latchPin)
	})
}

// outPin is the slice of embd.DigitalPin this package actually drives;
// narrowing it down from the concrete embd type keeps the wrapped pin
// swappable with a fake in tests.
type outPin interface {
	Write(val int) error
}

// Driver forwards every call to an inner awg.Driver, additionally driving a
// GPIO pin high while any channel's output is enabled, and low once every
// channel has been disabled again.
type Driver struct {
	inner awg.Driver
	pin   outPin

	enabled map[int]bool
}

// New wraps inner, latching pinName via embd whenever output is toggled.
func New(inner awg.Driver, pinName string) (*Driver, error) {
	pin, err := embd.NewDigitalPin(pinName)
	if err != nil {
		return nil, fmt.Errorf("awg/gpiolatch: open GPIO pin %q: %w", pinName, err)
	}
	if err := pin.SetDirection(embd.Out); err != nil {
		return nil, fmt.Errorf("awg/gpiolatch: set direction on %q: %w", pinName, err)
	}
	if err := pin.Write(gpioLow); err != nil {
		return nil, fmt.Errorf("awg/gpiolatch: init %q low: %w", pinName, err)
	}
	return &Driver{inner: inner, pin: pin, enabled: map[int]bool{}}, nil
}

func (d *Driver) Connect() error    { return d.inner.Connect() }
func (d *Driver) Disconnect() error { return d.inner.Disconnect() }
func (d *Driver) Initialize() error { return d.inner.Initialize() }
func (d *Driver) GetID() string     { return d.inner.GetID() }

// EnableOutput forwards to the wrapped driver, then latches the GPIO pin
// high if any channel is now enabled, low if none are.
func (d *Driver) EnableOutput(channel int, on bool) error {
	if err := d.inner.EnableOutput(channel, on); err != nil {
		return err
	}
	d.enabled[channel] = on

	anyOn := false
	for _, v := range d.enabled {
		if v {
			anyOn = true
			break
		}
	}
	level := gpioLow
	if anyOn {
		level = gpioHigh
	}
	return d.pin.Write(level)
}

func (d *Driver) SetFrequency(channel int, hz float64) error { return d.inner.SetFrequency(channel, hz) }
func (d *Driver) SetPhase(channel int, degrees float64) error {
	return d.inner.SetPhase(channel, degrees)
}
func (d *Driver) SetWaveType(channel int, code awg.WaveType) error {
	return d.inner.SetWaveType(channel, code)
}
func (d *Driver) SetAmplitude(channel int, voltsPP float64) error {
	return d.inner.SetAmplitude(channel, voltsPP)
}
func (d *Driver) SetOffset(channel int, volts float64) error {
	return d.inner.SetOffset(channel, volts)
}
func (d *Driver) SetLoadImpedance(channel int, ohmsOrHiZ float64) error {
	return d.inner.SetLoadImpedance(channel, ohmsOrHiZ)
}

var _ awg.Driver = (*Driver)(nil)
