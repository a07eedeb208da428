// Package ad9910spi drives an Analog Devices AD9910 DDS chip directly over
// SPI, the kind of hardware AWG the original project's ad9910.py talks to
// when there's no bench generator and no USB-serial middleman: a raw DDS on
// a SPI bus plus an I/O-update GPIO strobe that latches a written register
// into the chip's active profile.
package ad9910spi

import (
	"fmt"
	"math"
	"sync"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/conn/spi"
	"periph.io/x/periph/conn/spi/spireg"

	"github.com/bstrobel/sds1004x-bode/awg"
)

func init() {
	awg.Register("ad9910spi", func(cfg map[string]any) (awg.Driver, error) {
		port, _ := cfg["spi_port"].(string)
		pin, _ := cfg["update_pin"].(string)
		if pin == "" {
			return nil, fmt.Errorf("awg/ad9910spi: config is missing \"update_pin\"")
		}
		return Open(port, pin)
	})
}

// sysClockHz is the AD9910's internal system clock after the PLL multiplier,
// used to convert requested frequencies into the 32-bit frequency tuning
// word the part's register 0x07 expects.
const sysClockHz = 1e9

// Registers the driver writes, per the AD9910 datasheet.
const (
	regCFR1 = 0x00
	regFTW  = 0x07
	regASF  = 0x09 // amplitude scale factor / ramp rate
	regPOW  = 0x08 // phase offset word
)

// Driver talks to one AD9910 over SPI. It only drives a single logical
// channel; multi-channel configs wrap two Drivers behind the mux in this
// package (see OpenPair).
type Driver struct {
	mu      sync.Mutex
	conn    spi.Conn
	port    spi.PortCloser
	updPin  gpio.PinIO
	fsAmp   float64 // full-scale amplitude in volts, set once at Open
	offset  float64
	enabled bool
}

// Open connects to the named SPI port (empty string picks the first
// available one, same as spireg.Open's own convention) and GPIO pin used
// for the I/O-update strobe.
func Open(portName, updatePin string) (*Driver, error) {
	p, err := spireg.Open(portName)
	if err != nil {
		return nil, fmt.Errorf("awg/ad9910spi: open SPI port %q: %w", portName, err)
	}
	c, err := p.Connect(10*1000*1000, spi.Mode0, 8)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("awg/ad9910spi: connect: %w", err)
	}
	pin := gpioreg.ByName(updatePin)
	if pin == nil {
		p.Close()
		return nil, fmt.Errorf("awg/ad9910spi: no such GPIO pin %q", updatePin)
	}
	if err := pin.Out(gpio.Low); err != nil {
		p.Close()
		return nil, fmt.Errorf("awg/ad9910spi: init update pin: %w", err)
	}
	return &Driver{conn: c, port: p, updPin: pin, fsAmp: 1.0}, nil
}

func (d *Driver) Connect() error    { return nil }
func (d *Driver) Disconnect() error { return d.port.Close() }
func (d *Driver) Initialize() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writeRegister(regCFR1, []byte{0x00, 0x00, 0x00, 0x00})
}
func (d *Driver) GetID() string { return "AD9910 DDS" }

func (d *Driver) EnableOutput(channel int, on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enabled = on
	amp := uint16(0)
	if on {
		amp = 0x3FFF
	}
	return d.writeRegister(regASF, []byte{0x00, 0x00, byte(amp >> 8), byte(amp)})
}

func (d *Driver) SetFrequency(channel int, hz float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	ftw := uint32(hz / sysClockHz * (1 << 32))
	return d.writeRegister(regFTW, []byte{
		byte(ftw >> 24), byte(ftw >> 16), byte(ftw >> 8), byte(ftw),
	})
}

func (d *Driver) SetPhase(channel int, degrees float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	pow := uint16(math.Mod(degrees, 360) / 360 * (1 << 16))
	return d.writeRegister(regPOW, []byte{0x00, 0x00, byte(pow >> 8), byte(pow)})
}

// SetWaveType is a no-op: the AD9910 is a sine-only DDS core, matching the
// original driver's own behavior of ignoring waveform-shape requests.
func (d *Driver) SetWaveType(channel int, code awg.WaveType) error { return nil }

func (d *Driver) SetAmplitude(channel int, voltsPP float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.enabled {
		return nil
	}
	scale := voltsPP / d.fsAmp
	if scale > 1 {
		scale = 1
	}
	if scale < 0 {
		scale = 0
	}
	amp := uint16(scale * 0x3FFF)
	return d.writeRegister(regASF, []byte{0x00, 0x00, byte(amp >> 8), byte(amp)})
}

// SetOffset records the requested DC offset but cannot apply it: the
// AD9910 has no offset register of its own, and the reference design
// applies offset via an external summing amplifier this driver doesn't own.
func (d *Driver) SetOffset(channel int, volts float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.offset = volts
	return nil
}

// SetLoadImpedance is a no-op: the DDS chip drives a fixed-impedance output
// stage and has no load-dependent scaling of its own, unlike the serial
// bench generators in awg/serial.
func (d *Driver) SetLoadImpedance(channel int, ohmsOrHiZ float64) error { return nil }

// writeRegister sends an AD9910 instruction byte (register address, write)
// followed by the register payload, then pulses the I/O-update pin so the
// write takes effect. Caller must hold d.mu.
func (d *Driver) writeRegister(reg byte, data []byte) error {
	w := append([]byte{reg & 0x7F}, data...)
	r := make([]byte, len(w))
	if err := d.conn.Tx(w, r); err != nil {
		return fmt.Errorf("awg/ad9910spi: SPI write to register 0x%02x: %w", reg, err)
	}
	if err := d.updPin.Out(gpio.High); err != nil {
		return err
	}
	return d.updPin.Out(gpio.Low)
}

var _ awg.Driver = (*Driver)(nil)

// OpenPair connects two AD9910 chips that share a single SPI bus and chip
// select, distinguished by an external demux fed from selectPin. This is
// the two-channel variant of the original board, where a single SPI
// controller drives both channels' DDS chips.
func OpenPair(portName, updatePinA, updatePinB, selectPin string) (a, b *Driver, err error) {
	p, err := spireg.Open(portName)
	if err != nil {
		return nil, nil, fmt.Errorf("awg/ad9910spi: open SPI port %q: %w", portName, err)
	}
	sel := gpioreg.ByName(selectPin)
	if sel == nil {
		p.Close()
		return nil, nil, fmt.Errorf("awg/ad9910spi: no such GPIO pin %q", selectPin)
	}

	connA, connB := newMuxPair(p, sel)
	if err := connA.connect(10*1000*1000, spi.Mode0, 8); err != nil {
		p.Close()
		return nil, nil, fmt.Errorf("awg/ad9910spi: connect: %w", err)
	}

	pinA := gpioreg.ByName(updatePinA)
	pinB := gpioreg.ByName(updatePinB)
	if pinA == nil || pinB == nil {
		p.Close()
		return nil, nil, fmt.Errorf("awg/ad9910spi: no such GPIO pin %q or %q", updatePinA, updatePinB)
	}
	if err := pinA.Out(gpio.Low); err != nil {
		p.Close()
		return nil, nil, err
	}
	if err := pinB.Out(gpio.Low); err != nil {
		p.Close()
		return nil, nil, err
	}

	a = &Driver{conn: connA, port: p, updPin: pinA, fsAmp: 1.0}
	b = &Driver{conn: connB, port: noopCloser{p}, updPin: pinB, fsAmp: 1.0}
	return a, b, nil
}

// noopCloser wraps a spi.PortCloser so that closing the second Driver of a
// pair doesn't close the SPI port out from under the first.
type noopCloser struct {
	spi.PortCloser
}

func (noopCloser) Close() error { return nil }
