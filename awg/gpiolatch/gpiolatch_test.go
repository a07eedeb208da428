package gpiolatch

import (
	"testing"

	"github.com/bstrobel/sds1004x-bode/awg"
)

type fakePin struct {
	levels []int
}

func (p *fakePin) Write(val int) error {
	p.levels = append(p.levels, val)
	return nil
}

func (p *fakePin) last() int {
	if len(p.levels) == 0 {
		return -1
	}
	return p.levels[len(p.levels)-1]
}

type fakeDriver struct {
	enabled map[int]bool
	freq    float64
	amp     float64
}

func newFakeDriver() *fakeDriver { return &fakeDriver{enabled: map[int]bool{}} }

func (f *fakeDriver) Connect() error                            { return nil }
func (f *fakeDriver) Disconnect() error                         { return nil }
func (f *fakeDriver) Initialize() error                         { return nil }
func (f *fakeDriver) GetID() string                              { return "fake" }
func (f *fakeDriver) EnableOutput(ch int, on bool) error          { f.enabled[ch] = on; return nil }
func (f *fakeDriver) SetFrequency(_ int, hz float64) error        { f.freq = hz; return nil }
func (f *fakeDriver) SetPhase(int, float64) error                 { return nil }
func (f *fakeDriver) SetWaveType(int, awg.WaveType) error          { return nil }
func (f *fakeDriver) SetAmplitude(_ int, v float64) error          { f.amp = v; return nil }
func (f *fakeDriver) SetOffset(int, float64) error                 { return nil }
func (f *fakeDriver) SetLoadImpedance(int, float64) error          { return nil }

func newTestDriver() (*Driver, *fakePin, *fakeDriver) {
	pin := &fakePin{}
	inner := newFakeDriver()
	return &Driver{inner: inner, pin: pin, enabled: map[int]bool{}}, pin, inner
}

func TestEnableOutputLatchesPinHigh(t *testing.T) {
	d, pin, inner := newTestDriver()
	if err := d.EnableOutput(1, true); err != nil {
		t.Fatalf("EnableOutput: %v", err)
	}
	if !inner.enabled[1] {
		t.Fatal("inner driver was not told to enable channel 1")
	}
	if pin.last() != gpioHigh {
		t.Fatalf("latch pin = %d, want %d", pin.last(), gpioHigh)
	}
}

func TestLatchStaysHighUntilAllChannelsOff(t *testing.T) {
	d, pin, _ := newTestDriver()
	d.EnableOutput(1, true)
	d.EnableOutput(2, true)
	d.EnableOutput(1, false)
	if pin.last() != gpioHigh {
		t.Fatalf("latch went low while channel 2 still on: %d", pin.last())
	}
	d.EnableOutput(2, false)
	if pin.last() != gpioLow {
		t.Fatalf("latch = %d, want low once all channels off", pin.last())
	}
}

func TestOtherCallsForwardToInner(t *testing.T) {
	d, _, inner := newTestDriver()
	if err := d.SetFrequency(1, 1000); err != nil {
		t.Fatalf("SetFrequency: %v", err)
	}
	if inner.freq != 1000 {
		t.Fatalf("inner SetFrequency got %v, want 1000", inner.freq)
	}
	if err := d.SetAmplitude(1, 2.0); err != nil {
		t.Fatalf("SetAmplitude: %v", err)
	}
	if inner.amp != 2.0 {
		t.Fatalf("inner SetAmplitude got %v, want 2.0", inner.amp)
	}
}
