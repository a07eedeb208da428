package scpi

import "math"

// hiZ is the load impedance value used internally once "HZ" has been
// parsed; it disables the divider correction entirely.
const hiZ = -1

// dBmToVpp converts a power level in dBm, referenced to load z ohms, to
// peak-to-peak volts. dBm has no meaning without a concrete load, so the
// high-impedance sentinel falls back to the AWG's own source impedance
// rather than feeding a negative value to Sqrt.
//
//	Vrms = sqrt(z * 10^(dBm/10) * 1e-3)
//	Vpp  = 2*sqrt(2)*Vrms
func dBmToVpp(dBm, z float64) float64 {
	if z == hiZ {
		z = SourceImpedance
	}
	vrms := math.Sqrt(z * math.Pow(10, dBm/10) * 1e-3)
	return vrmsToVpp(vrms)
}

// vrmsToVpp converts RMS volts to peak-to-peak volts for a sine wave.
func vrmsToVpp(vrms float64) float64 {
	return 2 * math.Sqrt2 * vrms
}

// loadCorrected scales a voltage that the driver reports as referenced to a
// 50-ohm source driving load z by the voltage-divider factor (r+z)/z. When
// z is the high-impedance sentinel, the divider is unity and no correction
// is applied, since there is no significant current draw to divide against.
func loadCorrected(volts, r, z float64) float64 {
	if z == hiZ {
		return volts
	}
	return volts * (r + z) / z
}
