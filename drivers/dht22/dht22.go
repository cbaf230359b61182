// Package dht22 provides a driver for the DHT22 (AM2302) temperature/humidity
// sensor on its single bidirectional data line.
//
//	d := dht22.New(line, clock)
//	r, err := d.Read()          // one complete transaction
//
// A transaction drives the start pulse, waits for the sensor's acknowledgement,
// samples 40 pulse-width coded bits and verifies the checksum. It either
// completes fully or fails with ErrTimeout or ErrChecksum; partially sampled
// bits are never reported.
//
// The sensor needs at least MinInterval between transactions. The driver does
// not enforce this; scheduling reads is the caller's responsibility.
//
// Values are fixed-point tenths (deci-°C and deci-%RH) to avoid floating point
// on the hot path.
package dht22

import (
	"time"

	"tinygo.org/x/drivers"
)

// MinInterval is the minimum spacing between two transactions required by the
// sensor.
const MinInterval = 2 * time.Second

// Mode is the direction the data line is configured for.
type Mode uint8

const (
	ModeOutput Mode = iota // host drives the line (start pulse, idle high)
	ModeInput              // sensor drives the line, host samples with pull-up
)

func (m Mode) String() string {
	if m == ModeInput {
		return "input"
	}
	return "output"
}

// Line is exclusive access to the sensor data line for the duration of a
// transaction. Nothing else may drive or sample the line concurrently.
type Line interface {
	// ConfigureOutput switches the line to output and drives level.
	ConfigureOutput(level bool)
	// ConfigureInput switches the line to input with the pull-up enabled.
	ConfigureInput()
	// Set drives level; only meaningful in output mode.
	Set(level bool)
	// Get samples the line level.
	Get() bool
}

// Clock is a monotonic microsecond-resolution time source with a busy-wait
// delay. Delay must not yield to other work.
type Clock interface {
	Now() time.Duration
	Delay(d time.Duration)
}

// CriticalSection may be implemented by a Line (or Clock) whose platform can
// keep other work off the CPU for the length of a transaction: interrupts
// masked on an MCU, garbage collection paused on a hosted runtime.
type CriticalSection interface {
	Enter() (exit func())
}

// Config controls protocol timing. All fields are optional.
type Config struct {
	// StartLow is how long the host holds the line low. Default 1.2 ms (>= 1 ms).
	StartLow time.Duration
	// StartRelease is how long the host drives high after the start pulse
	// before switching to input. Default 20 µs.
	StartRelease time.Duration
	// EdgeTimeout bounds every wait for a level change. Default 200 µs.
	EdgeTimeout time.Duration
	// BitThreshold separates a 0 (~27 µs high) from a 1 (~70 µs high).
	// Default 45 µs.
	BitThreshold time.Duration
}

func (c Config) withDefaults() Config {
	if c.StartLow < time.Millisecond {
		c.StartLow = 1200 * time.Microsecond
	}
	if c.StartRelease <= 0 {
		c.StartRelease = 20 * time.Microsecond
	}
	if c.EdgeTimeout <= 0 {
		c.EdgeTimeout = 200 * time.Microsecond
	}
	if c.BitThreshold <= 0 {
		c.BitThreshold = 45 * time.Microsecond
	}
	return c
}

// Device wraps the data line of one DHT22.
type Device struct {
	line  Line
	clock Clock
	cfg   Config

	mode Mode

	last  Reading // last successful reading
	valid bool
}

// Ensure compile-time conformance with the tinygo sensor interface.
var _ drivers.Sensor = (*Device)(nil)

// New creates a Device with default timing. It does not touch the line; call
// Configure before the first Read.
func New(line Line, clock Clock) *Device {
	return &Device{line: line, clock: clock, cfg: Config{}.withDefaults()}
}

// Configure applies optional timing and parks the line at output-high idle.
func (d *Device) Configure(cfgs ...Config) {
	if len(cfgs) > 0 {
		d.cfg = cfgs[0].withDefaults()
	}
	d.idle()
}

// Config returns the effective timing.
func (d *Device) Config() Config { return d.cfg }

// Mode reports the current line direction.
func (d *Device) Mode() Mode { return d.mode }

// Read performs one complete transaction. On success the reading is cached
// and returned. On failure the zero Reading is returned with an error that
// matches ErrTimeout or ErrChecksum; the cached reading is left untouched but
// callers must not treat it as fresh.
func (d *Device) Read() (Reading, error) {
	var f Frame
	if err := d.transact(&f); err != nil {
		return Reading{}, err
	}
	r, err := f.Decode()
	if err != nil {
		return Reading{}, err
	}
	d.last, d.valid = r, true
	return r, nil
}

// Update implements drivers.Sensor. Any request covering temperature or
// humidity performs one transaction.
func (d *Device) Update(which drivers.Measurement) error {
	if which&(drivers.Temperature|drivers.Humidity) == 0 {
		return nil
	}
	_, err := d.Read()
	return err
}

// Last returns the last successful reading and whether one exists.
func (d *Device) Last() (Reading, bool) { return d.last, d.valid }

// DeciCelsius returns tenths of °C from the last successful reading.
func (d *Device) DeciCelsius() int32 { return int32(d.last.TemperatureTenths) }

// DeciRelHumidity returns tenths of %RH from the last successful reading.
func (d *Device) DeciRelHumidity() int32 { return int32(d.last.HumidityTenths) }

// Celsius returns °C (float). Prefer DeciCelsius for fixed-point.
func (d *Device) Celsius() float32 { return float32(d.last.TemperatureTenths) / 10 }

// RelHumidity returns %RH (float). Prefer DeciRelHumidity for fixed-point.
func (d *Device) RelHumidity() float32 { return float32(d.last.HumidityTenths) / 10 }
