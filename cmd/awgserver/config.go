// Copyright (c) 2016 by Thorsten von Eicken, see LICENSE file for details

package main

// LogPrintf matches the teacher's debug-logging gate: a no-op when debug
// logging is off, log.Printf when it's on.
type LogPrintf func(format string, v ...interface{})

// Config is the top-level TOML configuration for awgserver.
type Config struct {
	Debug     bool
	AWG       AWGConfig
	Server    ServerConfig
	Telemetry TelemetryConfig
}

// AWGConfig selects and configures the driver behind the SCPI parser.
// Only the fields relevant to the chosen Driver are read; the rest are
// ignored, matching the teacher's tolerant TOML decoding style.
type AWGConfig struct {
	Driver string // dummy | serial | ad9910spi | gpiolatch

	Device string // serial: tty path
	Baud   int64  // serial: baud rate

	SpiPort   string `toml:"spi_port"`   // ad9910spi: periph port name
	UpdatePin string `toml:"update_pin"` // ad9910spi: I/O-update strobe

	Wrap     string // gpiolatch: name of the wrapped driver
	LatchPin string `toml:"latch_pin"` // gpiolatch: indicator/relay pin
}

// ServerConfig configures the network-facing half of the emulator.
type ServerConfig struct {
	Host            string
	RpcbindPort     int `toml:"rpcbind_port"`
	Vxi11PortStart  int `toml:"vxi11_port_start"`
	Vxi11PortEnd    int `toml:"vxi11_port_end"`
}

// TelemetryConfig describes an optional MQTT broker used to publish AWG
// state changes. Disabled by default.
type TelemetryConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
}

// withDefaults fills in the values the distilled spec calls out as
// defaults, for any field left at its TOML zero value.
func (c *Config) withDefaults() {
	if c.AWG.Driver == "" {
		c.AWG.Driver = "dummy"
	}
	if c.AWG.Baud == 0 {
		c.AWG.Baud = 57600
	}
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.RpcbindPort == 0 {
		c.Server.RpcbindPort = 111
	}
	if c.Server.Vxi11PortStart == 0 {
		c.Server.Vxi11PortStart = 9010
	}
	if c.Server.Vxi11PortEnd == 0 {
		c.Server.Vxi11PortEnd = 9019
	}
	if c.Telemetry.Port == 0 {
		c.Telemetry.Port = 1883
	}
}

// asMap renders the AWG config section as the map[string]any the driver
// registry's constructors expect, so cmd/awgserver stays the only place
// that knows about TOML struct tags.
func (c AWGConfig) asMap() map[string]any {
	return map[string]any{
		"device":     c.Device,
		"baud":       c.Baud,
		"spi_port":   c.SpiPort,
		"update_pin": c.UpdatePin,
		"wrap":       c.Wrap,
		"latch_pin":  c.LatchPin,
	}
}
