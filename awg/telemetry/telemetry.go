// Copyright (c) 2016 by Thorsten von Eicken, see LICENSE file for details

// Package telemetry wraps another awg.Driver to publish its state changes
// to an MQTT broker on topics awg/<channel>/state, so something like
// Grafana or a dashboard can watch what the emulator is telling the scope
// without polling it. Publishing never blocks SCPI processing: a stuck or
// unreachable broker can only make telemetry stale, never slow the AWG.
package telemetry

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/bstrobel/sds1004x-bode/awg"
)

// telemetry is applied as a wrapper around whatever driver [awg] selects,
// controlled by the separate [telemetry] config section, rather than being
// selectable as an [awg] driver itself (see cmd/awgserver).

// Config describes how to reach the MQTT broker telemetry is published to.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
}

// state is the JSON payload published for a channel whenever it changes.
type state struct {
	Channel   int     `json:"channel"`
	Enabled   bool    `json:"enabled,omitempty"`
	FreqHz    float64 `json:"freq_hz,omitempty"`
	PhaseDeg  float64 `json:"phase_deg,omitempty"`
	WaveType  int     `json:"wave_type,omitempty"`
	AmpVpp    float64 `json:"amp_vpp,omitempty"`
	OffsetV   float64 `json:"offset_v,omitempty"`
	LoadOhm   float64 `json:"load_ohm,omitempty"`
}

const publishQueueSize = 64

// publisher is the slice of mqtt.Client this package actually uses; narrowing
// it from the concrete paho type keeps the broker connection swappable with
// a fake in tests.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Driver forwards every call to an inner awg.Driver and, when the inner call
// succeeds, enqueues a best-effort MQTT publish of the channel's updated state.
type Driver struct {
	inner awg.Driver
	conn  publisher

	queue chan state
}

// New connects to the broker described by cfg and wraps inner. The MQTT
// connection attempt has a hard timeout: a broker that's down at startup
// must not prevent the emulator itself from starting.
func New(inner awg.Driver, cfg Config) (*Driver, error) {
	mqtt.ERROR = log.New(os.Stderr, "", 0)
	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port))
	opts.ClientID = "awgserver"
	opts.Username = cfg.User
	opts.Password = cfg.Password

	conn := mqtt.NewClient(opts)
	if token := conn.Connect(); !token.WaitTimeout(5 * time.Second) {
		log.Printf("awg/telemetry: connect to %s:%d timed out, starting without a broker connection", cfg.Host, cfg.Port)
	}

	d := &Driver{inner: inner, conn: conn, queue: make(chan state, publishQueueSize)}
	go d.run()
	return d, nil
}

// run drains the publish queue in the background so that a slow broker
// backs up the queue, not the caller.
func (d *Driver) run() {
	for st := range d.queue {
		payload, err := json.Marshal(st)
		if err != nil {
			log.Printf("awg/telemetry: marshal state: %v", err)
			continue
		}
		topic := fmt.Sprintf("awg/%d/state", st.Channel)
		d.conn.Publish(topic, 0, false, payload)
	}
}

// publish enqueues st without blocking; if the queue is full the update is
// dropped and logged rather than stalling the SCPI command that triggered it.
func (d *Driver) publish(st state) {
	select {
	case d.queue <- st:
	default:
		log.Printf("awg/telemetry: publish queue full, dropping update for channel %d", st.Channel)
	}
}

func (d *Driver) Connect() error    { return d.inner.Connect() }
func (d *Driver) Disconnect() error { return d.inner.Disconnect() }
func (d *Driver) Initialize() error { return d.inner.Initialize() }
func (d *Driver) GetID() string     { return d.inner.GetID() }

func (d *Driver) EnableOutput(channel int, on bool) error {
	err := d.inner.EnableOutput(channel, on)
	if err == nil {
		d.publish(state{Channel: channel, Enabled: on})
	}
	return err
}

func (d *Driver) SetFrequency(channel int, hz float64) error {
	err := d.inner.SetFrequency(channel, hz)
	if err == nil {
		d.publish(state{Channel: channel, FreqHz: hz})
	}
	return err
}

func (d *Driver) SetPhase(channel int, degrees float64) error {
	err := d.inner.SetPhase(channel, degrees)
	if err == nil {
		d.publish(state{Channel: channel, PhaseDeg: degrees})
	}
	return err
}

func (d *Driver) SetWaveType(channel int, code awg.WaveType) error {
	err := d.inner.SetWaveType(channel, code)
	if err == nil {
		d.publish(state{Channel: channel, WaveType: int(code)})
	}
	return err
}

func (d *Driver) SetAmplitude(channel int, voltsPP float64) error {
	err := d.inner.SetAmplitude(channel, voltsPP)
	if err == nil {
		d.publish(state{Channel: channel, AmpVpp: voltsPP})
	}
	return err
}

func (d *Driver) SetOffset(channel int, volts float64) error {
	err := d.inner.SetOffset(channel, volts)
	if err == nil {
		d.publish(state{Channel: channel, OffsetV: volts})
	}
	return err
}

func (d *Driver) SetLoadImpedance(channel int, ohmsOrHiZ float64) error {
	err := d.inner.SetLoadImpedance(channel, ohmsOrHiZ)
	if err == nil {
		d.publish(state{Channel: channel, LoadOhm: ohmsOrHiZ})
	}
	return err
}

var _ awg.Driver = (*Driver)(nil)
