// Package scpi tokenizes and dispatches the Siglent-dialect SCPI commands
// the scope sends over VXI-11 (BSWV/BTWV/OUTP/*IDN?), converting dB- and
// RMS-referenced amplitudes to the volts-peak-to-peak value the downstream
// awg.Driver expects. BSWV parameters are dispatched by a switch over a
// fixed set of names, not by a dynamic-dispatch dictionary; there is no
// parameter table, only the waveTypes lookup for WVTP values.
package scpi

import (
	"log"
	"strconv"
	"strings"

	"github.com/bstrobel/sds1004x-bode/awg"
)

// SourceImpedance is the AWG's fixed output impedance, used by the load
// attenuation correction. Bench function generators conventionally use 50 Ω.
const SourceImpedance = 50.0

// waveTypes maps the SCPI waveform type mnemonic to the numeric code the
// driver expects. Unknown strings map to Sine.
var waveTypes = map[string]awg.WaveType{
	"SINE":     awg.Sine,
	"SQUARE":   awg.Square,
	"RAMP":     awg.Triangle,
	"TRIANGLE": awg.Triangle,
	"PULSE":    awg.Pulse,
	"NOISE":    awg.Noise,
	"ARB":      awg.Arbitrary,
}

// Parser decodes SCPI command lines and invokes the corresponding awg.Driver
// calls. It is not safe for concurrent use; the VXI-11 service only ever
// has one session active, so a single Parser is processed strictly in
// arrival order.
type Parser struct {
	driver awg.Driver
	loads  map[int]float64 // channel -> ohms, or hiZ
}

// New returns a Parser that drives d.
func New(d awg.Driver) *Parser {
	return &Parser{driver: d, loads: map[int]float64{}}
}

// Parse decodes and executes a single SCPI command line. Malformed
// numerics, unknown parameters, and unknown verbs are logged and skipped;
// they never return an error, since the VXI-11 session has no channel to
// report one back to the scope.
func (p *Parser) Parse(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	channel, rest := splitChannel(line)

	root, params := rest, ""
	if i := strings.IndexByte(rest, ' '); i >= 0 {
		root, params = rest[:i], strings.TrimSpace(rest[i+1:])
	}
	root = strings.ToUpper(root)

	switch root {
	case "OUTP":
		p.parseOutp(channel, params)
	case "BSWV":
		p.parseBswv(channel, params)
	case "BTWV":
		// Burst parameters: the scope sometimes sends these. Accepted and
		// silently ignored.
	case "*IDN?":
		// Satisfied by the VXI-11 service's canned DEVICE_READ reply.
	default:
		log.Printf("scpi: unknown command %q", line)
	}
}

// splitChannel strips a leading "C<n>:" prefix, returning the channel
// number (0 if absent, meaning "all channels") and the remainder of the
// command.
func splitChannel(line string) (channel int, rest string) {
	upper := strings.ToUpper(line)
	if len(upper) >= 2 && upper[0] == 'C' {
		if i := strings.IndexByte(upper, ':'); i > 1 {
			if n, err := strconv.Atoi(upper[1:i]); err == nil {
				return n, line[i+1:]
			}
		}
	}
	return 0, line
}

// parseOutp handles "<state>[,LOAD,<z>]". The load change is applied
// before returning so a subsequent BSWV in the same command stream sees
// the new impedance.
func (p *Parser) parseOutp(channel int, params string) {
	tokens := strings.Split(params, ",")
	if len(tokens) == 0 || tokens[0] == "" {
		log.Printf("scpi: OUTP missing state")
		return
	}

	if len(tokens) >= 3 && strings.EqualFold(tokens[1], "LOAD") {
		z, err := parseImpedance(tokens[2])
		if err != nil {
			log.Printf("scpi: OUTP bad load %q: %v", tokens[2], err)
		} else {
			p.loads[channel] = z
			if err := p.driver.SetLoadImpedance(channel, z); err != nil {
				log.Printf("scpi: set_load_impedance(%d, %v): %v", channel, z, err)
			}
		}
	}

	state := strings.EqualFold(tokens[0], "ON")
	if !state && !strings.EqualFold(tokens[0], "OFF") {
		log.Printf("scpi: OUTP unknown state %q", tokens[0])
		return
	}
	if err := p.driver.EnableOutput(channel, state); err != nil {
		log.Printf("scpi: enable_output(%d, %v): %v", channel, state, err)
	}
}

// parseBswv handles a comma-separated list of (param, value) pairs.
func (p *Parser) parseBswv(channel int, params string) {
	tokens := strings.Split(params, ",")
	for i := 0; i+1 < len(tokens); i += 2 {
		name := strings.ToUpper(strings.TrimSpace(tokens[i]))
		value := strings.TrimSpace(tokens[i+1])
		p.applyBswvParam(channel, name, value)
	}
}

func (p *Parser) applyBswvParam(channel int, name, value string) {
	switch name {
	case "WVTP":
		code, ok := waveTypes[strings.ToUpper(value)]
		if !ok {
			log.Printf("scpi: unknown WVTP %q, defaulting to SINE", value)
			code = awg.Sine
		}
		if err := p.driver.SetWaveType(channel, code); err != nil {
			log.Printf("scpi: set_wave_type(%d, %v): %v", channel, code, err)
		}

	case "FRQ":
		hz, err := strconv.ParseFloat(value, 64)
		if err != nil {
			log.Printf("scpi: bad FRQ %q: %v", value, err)
			return
		}
		if err := p.driver.SetFrequency(channel, hz); err != nil {
			log.Printf("scpi: set_frequency(%d, %v): %v", channel, hz, err)
		}

	case "AMP":
		vpp, err := strconv.ParseFloat(value, 64)
		if err != nil {
			log.Printf("scpi: bad AMP %q: %v", value, err)
			return
		}
		p.setAmplitude(channel, loadCorrected(vpp, SourceImpedance, p.loadOf(channel)))

	case "AMPDBM":
		dBm, err := strconv.ParseFloat(value, 64)
		if err != nil {
			log.Printf("scpi: bad AMPDBM %q: %v", value, err)
			return
		}
		p.setAmplitude(channel, dBmToVpp(dBm, p.loadOf(channel)))

	case "AMPVRMS":
		vrms, err := strconv.ParseFloat(value, 64)
		if err != nil {
			log.Printf("scpi: bad AMPVRMS %q: %v", value, err)
			return
		}
		p.setAmplitude(channel, vrmsToVpp(vrms))

	case "OFST":
		volts, err := strconv.ParseFloat(value, 64)
		if err != nil {
			log.Printf("scpi: bad OFST %q: %v", value, err)
			return
		}
		if err := p.driver.SetOffset(channel, volts); err != nil {
			log.Printf("scpi: set_offset(%d, %v): %v", channel, volts, err)
		}

	case "PHSE":
		degrees, err := strconv.ParseFloat(value, 64)
		if err != nil {
			log.Printf("scpi: bad PHSE %q: %v", value, err)
			return
		}
		if err := p.driver.SetPhase(channel, degrees); err != nil {
			log.Printf("scpi: set_phase(%d, %v): %v", channel, degrees, err)
		}

	default:
		log.Printf("scpi: unknown BSWV param %q", name)
	}
}

func (p *Parser) setAmplitude(channel int, voltsPP float64) {
	if err := p.driver.SetAmplitude(channel, voltsPP); err != nil {
		log.Printf("scpi: set_amplitude(%d, %v): %v", channel, voltsPP, err)
	}
}

// loadOf returns the last load impedance configured for channel, defaulting
// to high impedance (no divider correction) until an OUTP command has set
// one explicitly.
func (p *Parser) loadOf(channel int) float64 {
	if z, ok := p.loads[channel]; ok {
		return z
	}
	return hiZ
}

// parseImpedance parses an OUTP LOAD value: a number of ohms, or the
// literal "HZ" meaning high impedance.
func parseImpedance(s string) (float64, error) {
	if strings.EqualFold(s, "HZ") {
		return hiZ, nil
	}
	return strconv.ParseFloat(s, 64)
}
