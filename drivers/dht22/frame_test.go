package dht22

import (
	"errors"
	"testing"
)

func TestFrameDecodeExamples(t *testing.T) {
	for _, c := range []struct {
		name  string
		frame Frame
		want  Reading
	}{
		{
			name:  "positive",
			frame: withSum(Frame{0x02, 0x8A, 0x01, 0x08}),
			want:  Reading{HumidityTenths: 650, TemperatureTenths: 264},
		},
		{
			name:  "negative temperature",
			frame: withSum(Frame{0x01, 0xC5, 0x81, 0x0A}),
			want:  Reading{HumidityTenths: 453, TemperatureTenths: -266},
		},
		{
			name:  "zero",
			frame: Frame{0, 0, 0, 0, 0},
			want:  Reading{},
		},
		{
			name:  "checksum wraps",
			frame: withSum(Frame{0x03, 0xE8, 0x03, 0x20}),
			want:  Reading{HumidityTenths: 1000, TemperatureTenths: 800},
		},
	} {
		got, err := c.frame.Decode()
		if err != nil {
			t.Fatalf("%s: Decode error: %v", c.name, err)
		}
		if got != c.want {
			t.Fatalf("%s: Decode = %+v, want %+v", c.name, got, c.want)
		}
	}
}

func withSum(f Frame) Frame {
	f[4] = f.Sum()
	return f
}

func TestPositiveExampleChecksum(t *testing.T) {
	if got := withSum(Frame{0x02, 0x8A, 0x01, 0x08})[4]; got != 0x95 {
		t.Fatalf("checksum = %#02x, want 0x95", got)
	}
}

func TestEncodeDecodeAllChecksummedFrames(t *testing.T) {
	// Sweep humidity and signed temperature; every frame whose checksum is the
	// byte sum must decode back to the exact values.
	for h := uint16(0); h <= 1000; h += 37 {
		for tc := int16(-400); tc <= 800; tc += 13 {
			r := Reading{HumidityTenths: h, TemperatureTenths: tc}
			f := Encode(r)
			if !f.Valid() {
				t.Fatalf("Encode(%+v) produced invalid checksum: % x", r, f)
			}
			got, err := f.Decode()
			if err != nil || got != r {
				t.Fatalf("Decode(Encode(%+v)) = %+v, %v", r, got, err)
			}
		}
	}
}

func TestCorruptChecksumNeverSucceeds(t *testing.T) {
	f := Encode(Reading{HumidityTenths: 650, TemperatureTenths: 264})
	for delta := 1; delta < 256; delta++ {
		bad := f
		bad[4] += byte(delta)
		_, err := bad.Decode()
		if !errors.Is(err, ErrChecksum) {
			t.Fatalf("checksum off by %d: err = %v, want ErrChecksum", delta, err)
		}
		if OutcomeOf(err) != OutcomeChecksumMismatch {
			t.Fatalf("OutcomeOf = %v, want checksum_mismatch", OutcomeOf(err))
		}
	}
}

func TestChecksumErrorExposesRawValues(t *testing.T) {
	f := Frame{0x02, 0x8A, 0x01, 0x08, 0x00}
	_, err := f.Decode()
	var ce *ChecksumError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *ChecksumError", err)
	}
	if got := ce.Raw(); got.HumidityTenths != 650 || got.TemperatureTenths != 264 {
		t.Fatalf("Raw = %+v", got)
	}
	if got, want := ce.Error(), "dht22: checksum mismatch: got 0x00 want 0x95"; got != want {
		t.Fatalf("Error = %q, want %q", got, want)
	}
}

func TestNegativeTemperatureEncoding(t *testing.T) {
	f := Encode(Reading{TemperatureTenths: -266})
	if f[2] != 0x81 || f[3] != 0x0A {
		t.Fatalf("temperature bytes = %#02x %#02x, want 0x81 0x0a", f[2], f[3])
	}
}

func TestPlausible(t *testing.T) {
	for _, c := range []struct {
		r    Reading
		want bool
	}{
		{Reading{HumidityTenths: 453, TemperatureTenths: 231}, true},
		{Reading{HumidityTenths: 1000, TemperatureTenths: -400}, true},
		{Reading{HumidityTenths: 1001, TemperatureTenths: 0}, false},
		{Reading{HumidityTenths: 0, TemperatureTenths: 801}, false},
		{Reading{HumidityTenths: 0, TemperatureTenths: -401}, false},
	} {
		if got := c.r.Plausible(); got != c.want {
			t.Fatalf("Plausible(%+v) = %v, want %v", c.r, got, c.want)
		}
	}
}

func TestPulsesShape(t *testing.T) {
	p := Frame{0x80, 0, 0, 0, 0x80}.Pulses()
	if len(p) != 3+80+1 {
		t.Fatalf("len = %d", len(p))
	}
	// First data bit is a 1, second a 0.
	if p[4].Duration != OneHigh || p[6].Duration != ZeroHigh {
		t.Fatalf("bit pulses = %v, %v", p[4], p[6])
	}
	if last := p[len(p)-1]; last.High || last.Duration != BitLow {
		t.Fatalf("trailing pulse = %+v", last)
	}
}

func TestOutcomeString(t *testing.T) {
	if OutcomeOf(nil) != OutcomeSuccess || OutcomeSuccess.String() != "success" {
		t.Fatal("nil error must be success")
	}
	if OutcomeOf(&TimeoutError{Phase: PhaseAck, Bit: -1}) != OutcomeTimeout {
		t.Fatal("TimeoutError must map to timeout")
	}
	if OutcomeTimeout.String() != "timeout" || OutcomeChecksumMismatch.String() != "checksum_mismatch" {
		t.Fatal("unexpected outcome strings")
	}
}
