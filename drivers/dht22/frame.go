package dht22

import "time"

// Reading is one successful measurement in fixed-point tenths.
type Reading struct {
	HumidityTenths    uint16 // 453 => 45.3 %RH
	TemperatureTenths int16  // -266 => -26.6 °C
}

// Datasheet operating range.
const (
	HumidityMaxTenths    = 1000
	TemperatureMinTenths = -400
	TemperatureMaxTenths = 800
)

// Plausible reports whether r lies inside the sensor's specified range. A
// reading can pass the checksum and still be implausible on a marginal line.
func (r Reading) Plausible() bool {
	return r.HumidityTenths <= HumidityMaxTenths &&
		r.TemperatureTenths >= TemperatureMinTenths &&
		r.TemperatureTenths <= TemperatureMaxTenths
}

// Frame is the 5-byte payload in transmission order:
// humidity high, humidity low, temperature high, temperature low, checksum.
type Frame [5]byte

// Sum returns the checksum the first four bytes call for.
func (f Frame) Sum() byte { return f[0] + f[1] + f[2] + f[3] }

// Valid reports whether the transmitted checksum matches.
func (f Frame) Valid() bool { return f.Sum() == f[4] }

// Reading converts the payload without looking at the checksum.
// Temperature is sign-magnitude: bit 15 set means negative.
func (f Frame) Reading() Reading {
	hum := uint16(f[0])<<8 | uint16(f[1])
	mag := int16(uint16(f[2]&0x7F)<<8 | uint16(f[3]))
	if f[2]&0x80 != 0 {
		mag = -mag
	}
	return Reading{HumidityTenths: hum, TemperatureTenths: mag}
}

// Decode verifies the checksum and converts the payload.
func (f Frame) Decode() (Reading, error) {
	if !f.Valid() {
		return Reading{}, &ChecksumError{Frame: f}
	}
	return f.Reading(), nil
}

// Encode builds the frame a sensor would transmit for r.
func Encode(r Reading) Frame {
	var f Frame
	f[0] = byte(r.HumidityTenths >> 8)
	f[1] = byte(r.HumidityTenths)
	t := r.TemperatureTenths
	var sign byte
	if t < 0 {
		sign = 0x80
		t = -t
	}
	f[2] = byte(uint16(t)>>8)&0x7F | sign
	f[3] = byte(t)
	f[4] = f.Sum()
	return f
}

// Pulse is one level held on the line for a duration.
type Pulse struct {
	High     bool
	Duration time.Duration
}

// Nominal sensor timings (datasheet).
const (
	ResponseDelay = 30 * time.Microsecond // pull-up high before the sensor answers
	AckLow        = 80 * time.Microsecond
	AckHigh       = 80 * time.Microsecond
	BitLow        = 50 * time.Microsecond
	ZeroHigh      = 27 * time.Microsecond
	OneHigh       = 70 * time.Microsecond
)

// Pulses returns the waveform the sensor drives after the host releases the
// line: response delay, acknowledgement, 40 bits MSB first, and the trailing
// low before the line floats high again.
func (f Frame) Pulses() []Pulse {
	out := make([]Pulse, 0, 3+2*frameBits+1)
	out = append(out,
		Pulse{High: true, Duration: ResponseDelay},
		Pulse{High: false, Duration: AckLow},
		Pulse{High: true, Duration: AckHigh},
	)
	for i := 0; i < frameBits; i++ {
		hi := ZeroHigh
		if f[i/8]&(0x80>>(i%8)) != 0 {
			hi = OneHigh
		}
		out = append(out, Pulse{High: false, Duration: BitLow}, Pulse{High: true, Duration: hi})
	}
	return append(out, Pulse{High: false, Duration: BitLow})
}
