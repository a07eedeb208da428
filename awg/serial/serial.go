// Package serial drives a bench arbitrary waveform generator attached over
// a USB-serial port, of the kind the original project's jds6600/fy6600/
// bk4075/utg1000x/dg800 drivers talk to: short ASCII command lines
// terminated by a newline. This package implements one representative
// dialect rather than every vendor's own, since the distilled protocol
// spec treats concrete vendor dialects as an external collaborator.
package serial

import (
	"bufio"
	"fmt"
	"strconv"
	"sync"

	goserial "github.com/daedaluz/goserial"

	"github.com/bstrobel/sds1004x-bode/awg"
)

func init() {
	awg.Register("serial", func(cfg map[string]any) (awg.Driver, error) {
		device, _ := cfg["device"].(string)
		if device == "" {
			return nil, fmt.Errorf("awg/serial: config is missing \"device\"")
		}
		baud := 57600
		if b, ok := cfg["baud"].(int64); ok {
			baud = int(b)
		}
		return Open(device, baud)
	})
}

// speeds maps supported baud rates to the termios CFlag constant goserial
// expects; unlisted rates fail Open with a clear error rather than silently
// picking the wrong one.
var speeds = map[int]goserial.CFlag{
	9600:   goserial.B9600,
	57600:  goserial.B57600,
	115200: goserial.B115200,
}

// Driver talks to a real AWG over a termios serial port using short ASCII
// commands, one per line.
type Driver struct {
	mu   sync.Mutex
	port *goserial.Port
	r    *bufio.Reader
}

// Open opens device at the given baud rate and puts it into raw mode.
func Open(device string, baud int) (*Driver, error) {
	speed, ok := speeds[baud]
	if !ok {
		return nil, fmt.Errorf("awg/serial: unsupported baud rate %d", baud)
	}

	port, err := goserial.Open(device, nil)
	if err != nil {
		return nil, fmt.Errorf("awg/serial: open %s: %w", device, err)
	}
	if err := port.MakeRaw(); err != nil {
		port.Close()
		return nil, fmt.Errorf("awg/serial: make raw %s: %w", device, err)
	}
	attrs, err := port.GetAttr()
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("awg/serial: get attrs %s: %w", device, err)
	}
	attrs.SetSpeed(speed)
	if err := port.SetAttr(goserial.TCSANOW, attrs); err != nil {
		port.Close()
		return nil, fmt.Errorf("awg/serial: set speed %s: %w", device, err)
	}

	return &Driver{port: port, r: bufio.NewReader(port)}, nil
}

// send writes a command line and discards any single-line acknowledgement
// the device sends back; real bench generators don't report errors beyond
// that ack, matching the distilled spec's "driver errors are logged, never
// surfaced" posture for the whole stack above this one.
func (d *Driver) send(format string, args ...interface{}) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	line := fmt.Sprintf(format, args...) + "\n"
	if _, err := d.port.Write([]byte(line)); err != nil {
		return err
	}
	_, err := d.r.ReadString('\n')
	return err
}

func (d *Driver) Connect() error    { return nil }
func (d *Driver) Disconnect() error { return d.port.Close() }
func (d *Driver) Initialize() error { return d.send("*IDN?") }
func (d *Driver) GetID() string     { return "Serial AWG" }

func (d *Driver) EnableOutput(channel int, on bool) error {
	state := 0
	if on {
		state = 1
	}
	return d.send("C%s:OUTP %d", chanArg(channel), state)
}

func (d *Driver) SetFrequency(channel int, hz float64) error {
	return d.send("C%s:FRQ %s", chanArg(channel), formatFloat(hz))
}

func (d *Driver) SetPhase(channel int, degrees float64) error {
	return d.send("C%s:PHS %s", chanArg(channel), formatFloat(degrees))
}

func (d *Driver) SetWaveType(channel int, code awg.WaveType) error {
	return d.send("C%s:WVT %d", chanArg(channel), int(code))
}

func (d *Driver) SetAmplitude(channel int, voltsPP float64) error {
	return d.send("C%s:AMP %s", chanArg(channel), formatFloat(voltsPP))
}

func (d *Driver) SetOffset(channel int, volts float64) error {
	return d.send("C%s:OFS %s", chanArg(channel), formatFloat(volts))
}

func (d *Driver) SetLoadImpedance(channel int, ohmsOrHiZ float64) error {
	if ohmsOrHiZ == awg.HiZ {
		return d.send("C%s:LOAD HZ", chanArg(channel))
	}
	return d.send("C%s:LOAD %s", chanArg(channel), formatFloat(ohmsOrHiZ))
}

// chanArg renders the channel selector for the wire command; 0 (all
// channels) is sent as "A", matching the broadcast convention several of
// the original drivers' own dialects use.
func chanArg(channel int) string {
	if channel == 0 {
		return "A"
	}
	return strconv.Itoa(channel)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var _ awg.Driver = (*Driver)(nil)
