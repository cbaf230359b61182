// Package sim provides a virtual clock and a simulated DHT22 that answers the
// start pulse by replaying the sensor waveform. It lets the driver, the HAL
// device and the host build run without hardware and with deterministic
// timing.
package sim

import (
	"sync"
	"time"

	"dhtcode-go/drivers/dht22"
)

// Clock is a virtual monotonic clock. Every Now call advances time by Step so
// that busy-wait loops make progress; Delay advances by the requested amount.
type Clock struct {
	mu   sync.Mutex
	now  time.Duration
	Step time.Duration // default 1 µs
}

func (c *Clock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	step := c.Step
	if step <= 0 {
		step = time.Microsecond
	}
	c.now += step
	return c.now
}

func (c *Clock) Delay(d time.Duration) { c.Advance(d) }

// Advance moves time forward without counting as a poll.
func (c *Clock) Advance(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	c.now += d
	c.mu.Unlock()
}

// Peek returns the current time without advancing it.
func (c *Clock) Peek() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Fault selects how the simulated sensor misbehaves.
type Fault uint8

const (
	FaultNone     Fault = iota
	FaultNoAck          // never answers the start pulse
	FaultStall          // stops mid-frame, holding the line low (see StallBit)
	FaultChecksum       // transmits a wrong checksum byte
)

// Sensor implements dht22.Line for one simulated DHT22 wired to the line.
type Sensor struct {
	mu    sync.Mutex
	clock *Clock

	reading  dht22.Reading
	fault    Fault
	stallBit int

	mode     dht22.Mode
	level    bool // driven level while in output mode
	lowSince time.Duration

	active bool
	start  time.Duration
	pulses []dht22.Pulse
	hold   bool // level after the waveform ends

	transactions int
	trace        []dht22.Mode
}

// NewSensor returns a sensor reporting r, idle with the line high.
func NewSensor(clock *Clock, r dht22.Reading) *Sensor {
	return &Sensor{clock: clock, reading: r, level: true}
}

// SetReading changes the values transmitted by subsequent transactions.
func (s *Sensor) SetReading(r dht22.Reading) {
	s.mu.Lock()
	s.reading = r
	s.mu.Unlock()
}

// SetFault selects the failure mode for subsequent transactions. For
// FaultStall, bit is the data bit (0..39) whose low marker never ends.
func (s *Sensor) SetFault(f Fault, bit int) {
	s.mu.Lock()
	s.fault = f
	s.stallBit = bit
	s.mu.Unlock()
}

// Transactions returns how many start pulses the sensor has answered or
// ignored.
func (s *Sensor) Transactions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transactions
}

// Trace returns the sequence of line modes the host configured.
func (s *Sensor) Trace() []dht22.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]dht22.Mode(nil), s.trace...)
}

func (s *Sensor) ConfigureOutput(level bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trace = append(s.trace, dht22.ModeOutput)
	s.mode = dht22.ModeOutput
	s.active = false
	s.drive(level)
}

func (s *Sensor) ConfigureInput() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trace = append(s.trace, dht22.ModeInput)
	s.mode = dht22.ModeInput
	// Releasing straight from a long low is also a valid start signal.
	s.drive(true)
}

func (s *Sensor) Set(level bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode == dht22.ModeOutput {
		s.drive(level)
	}
}

func (s *Sensor) Get() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode == dht22.ModeOutput {
		return s.level
	}
	if !s.active {
		return true // pull-up
	}
	t := s.clock.Peek() - s.start
	for _, p := range s.pulses {
		if t < p.Duration {
			return p.High
		}
		t -= p.Duration
	}
	return s.hold
}

// drive tracks the host-driven level and arms the waveform on the rising edge
// that ends a start pulse of at least 1 ms. Caller holds the lock.
func (s *Sensor) drive(level bool) {
	now := s.clock.Peek()
	was := s.level
	s.level = level
	switch {
	case was && !level:
		s.lowSince = now
	case !was && level:
		if now-s.lowSince >= time.Millisecond {
			s.begin(now)
		}
	}
}

func (s *Sensor) begin(now time.Duration) {
	s.transactions++
	s.hold = true
	switch s.fault {
	case FaultNoAck:
		s.active = false
		return
	case FaultChecksum:
		f := dht22.Encode(s.reading)
		f[4]++
		s.pulses = f.Pulses()
	case FaultStall:
		p := dht22.Encode(s.reading).Pulses()
		// 3 preamble pulses, then (low, high) per bit. Keep the bits before
		// the stalled one; its low marker is then held forever.
		n := 3 + 2*s.stallBit
		if n > len(p) {
			n = len(p)
		}
		s.pulses = p[:n]
		s.hold = false
	default:
		s.pulses = dht22.Encode(s.reading).Pulses()
	}
	s.active = true
	s.start = now
}
