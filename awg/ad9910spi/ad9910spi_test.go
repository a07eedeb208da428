package ad9910spi

import (
	"testing"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpiotest"
	"periph.io/x/periph/conn/spi"

	"github.com/bstrobel/sds1004x-bode/awg"
)

// recordingConn is a minimal spi.Conn fake that records every Tx call, used
// instead of a hardware connection to test register framing.
type recordingConn struct {
	writes [][]byte
}

func (c *recordingConn) Tx(w, r []byte) error {
	c.writes = append(c.writes, append([]byte(nil), w...))
	return nil
}

func (c *recordingConn) TxPackets(p []spi.Packet) error { return nil }

var _ spi.Conn = (*recordingConn)(nil)

func newTestDriver(t *testing.T) (*Driver, *recordingConn, *gpiotest.Pin) {
	t.Helper()
	rec := &recordingConn{}
	pin := &gpiotest.Pin{N: "UPD"}
	return &Driver{conn: rec, updPin: pin, fsAmp: 1.0}, rec, pin
}

func TestEnableOutputWritesASFRegister(t *testing.T) {
	d, rec, _ := newTestDriver(t)
	if err := d.EnableOutput(1, true); err != nil {
		t.Fatalf("EnableOutput: %v", err)
	}
	if len(rec.writes) != 1 {
		t.Fatalf("expected 1 SPI transaction, got %d", len(rec.writes))
	}
	if got := rec.writes[0][0]; got != regASF {
		t.Fatalf("register byte = 0x%02x, want 0x%02x", got, regASF)
	}
	if rec.writes[0][3] != 0x3F || rec.writes[0][4] != 0xFF {
		t.Fatalf("ASF payload for full scale = %x", rec.writes[0][3:5])
	}
}

func TestSetAmplitudeClampsToFullScale(t *testing.T) {
	d, rec, _ := newTestDriver(t)
	d.enabled = true
	if err := d.SetAmplitude(1, 5.0); err != nil { // above fsAmp of 1.0
		t.Fatalf("SetAmplitude: %v", err)
	}
	if rec.writes[0][3] != 0x3F || rec.writes[0][4] != 0xFF {
		t.Fatalf("amplitude wasn't clamped to full scale: %x", rec.writes[0][3:5])
	}
}

func TestSetAmplitudeIgnoredWhenDisabled(t *testing.T) {
	d, rec, _ := newTestDriver(t)
	if err := d.SetAmplitude(1, 0.5); err != nil {
		t.Fatalf("SetAmplitude: %v", err)
	}
	if len(rec.writes) != 0 {
		t.Fatalf("expected no SPI traffic while output disabled, got %d ops", len(rec.writes))
	}
}

func TestSetWaveTypeIsNoOp(t *testing.T) {
	d, rec, _ := newTestDriver(t)
	if err := d.SetWaveType(1, awg.Square); err != nil {
		t.Fatalf("SetWaveType: %v", err)
	}
	if len(rec.writes) != 0 {
		t.Fatalf("SetWaveType should not touch SPI, got %d ops", len(rec.writes))
	}
}

func TestWriteRegisterPulsesUpdatePinLow(t *testing.T) {
	d, _, pin := newTestDriver(t)
	if err := d.writeRegister(regFTW, []byte{0, 0, 0, 0}); err != nil {
		t.Fatalf("writeRegister: %v", err)
	}
	if pin.Read() != gpio.Low {
		t.Fatalf("update pin left high after pulse")
	}
}
