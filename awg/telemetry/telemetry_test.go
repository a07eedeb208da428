package telemetry

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/bstrobel/sds1004x-bode/awg"
)

type fakeToken struct{}

func (fakeToken) Wait() bool                     { return true }
func (fakeToken) WaitTimeout(time.Duration) bool { return true }
func (fakeToken) Done() <-chan struct{}          { return closedDone }
func (fakeToken) Error() error                   { return nil }

var closedDone = func() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

type fakePublisher struct {
	mu    sync.Mutex
	seen  []string
	stall chan struct{} // when non-nil, Publish blocks until closed
}

func (f *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	if f.stall != nil {
		<-f.stall
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, topic)
	return fakeToken{}
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}

type fakeDriver struct{}

func (fakeDriver) Connect() error                            { return nil }
func (fakeDriver) Disconnect() error                         { return nil }
func (fakeDriver) Initialize() error                         { return nil }
func (fakeDriver) GetID() string                              { return "fake" }
func (fakeDriver) EnableOutput(int, bool) error                { return nil }
func (fakeDriver) SetFrequency(int, float64) error             { return nil }
func (fakeDriver) SetPhase(int, float64) error                 { return nil }
func (fakeDriver) SetWaveType(int, awg.WaveType) error          { return nil }
func (fakeDriver) SetAmplitude(int, float64) error              { return nil }
func (fakeDriver) SetOffset(int, float64) error                 { return nil }
func (fakeDriver) SetLoadImpedance(int, float64) error          { return nil }

func newTestDriver() (*Driver, *fakePublisher) {
	pub := &fakePublisher{}
	d := &Driver{inner: fakeDriver{}, conn: pub, queue: make(chan state, publishQueueSize)}
	go d.run()
	return d, pub
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func TestSetAmplitudePublishesState(t *testing.T) {
	d, pub := newTestDriver()
	if err := d.SetAmplitude(2, 1.5); err != nil {
		t.Fatalf("SetAmplitude: %v", err)
	}
	waitUntil(t, func() bool { return pub.count() == 1 })
	if pub.seen[0] != "awg/2/state" {
		t.Fatalf("topic = %q, want %q", pub.seen[0], "awg/2/state")
	}
}

func TestPublishNeverBlocksCaller(t *testing.T) {
	pub := &fakePublisher{stall: make(chan struct{})}
	d := &Driver{inner: fakeDriver{}, conn: pub, queue: make(chan state, publishQueueSize)}
	go d.run()

	done := make(chan struct{})
	go func() {
		for i := 0; i < publishQueueSize*2; i++ {
			d.SetAmplitude(1, float64(i))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("SetAmplitude blocked with a stalled broker and a full queue")
	}
	close(pub.stall)
}

func TestStateMarshalsOmittingZeroFields(t *testing.T) {
	b, err := json.Marshal(state{Channel: 1, Enabled: true})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got map[string]interface{}
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := got["freq_hz"]; ok {
		t.Fatal("zero-valued freq_hz should have been omitted")
	}
}
