package dht22

import "time"

// Phases of a transaction, reported by TimeoutError.
const (
	PhaseAck  = "ack"  // sensor acknowledgement (low, high, first bit marker)
	PhaseData = "data" // one of the 40 data bits
)

// frameBits is the number of data bits in one transaction.
const frameBits = 40

// transact runs the bus transaction and fills f. The line is always returned
// to output-high idle, whatever the outcome.
func (d *Device) transact(f *Frame) error {
	if cs, ok := d.line.(CriticalSection); ok {
		exit := cs.Enter()
		defer exit()
	} else if cs, ok := d.clock.(CriticalSection); ok {
		exit := cs.Enter()
		defer exit()
	}
	defer d.idle()

	// Host start signal.
	d.drive(false)
	d.clock.Delay(d.cfg.StartLow)
	d.line.Set(true)
	d.clock.Delay(d.cfg.StartRelease)

	// From here on the sensor owns the line.
	d.release()

	// Acknowledgement: low ~80 µs, high ~80 µs, then the first bit's low marker.
	for _, lvl := range [...]bool{false, true, false} {
		if _, ok := d.waitFor(lvl); !ok {
			return &TimeoutError{Phase: PhaseAck, Bit: -1}
		}
	}

	var buf Frame
	for i := 0; i < frameBits; i++ {
		// End of the ~50 µs low marker.
		if _, ok := d.waitFor(true); !ok {
			return &TimeoutError{Phase: PhaseData, Bit: i}
		}
		// High pulse width carries the bit.
		high, ok := d.waitFor(false)
		if !ok {
			return &TimeoutError{Phase: PhaseData, Bit: i}
		}
		buf[i/8] <<= 1
		if high > d.cfg.BitThreshold {
			buf[i/8] |= 1
		}
	}
	*f = buf
	return nil
}

// drive puts the line in output mode at level.
func (d *Device) drive(level bool) {
	d.line.ConfigureOutput(level)
	d.mode = ModeOutput
}

// release hands the line to the sensor (input with pull-up).
func (d *Device) release() {
	d.line.ConfigureInput()
	d.mode = ModeInput
}

// idle parks the line at output high, ready for the next start pulse.
func (d *Device) idle() { d.drive(true) }

// waitFor spins until the line reads level and returns how long that took.
// It reports false once EdgeTimeout elapses, or if the line is not in input
// mode (sampling a line the host is driving would only read back its own
// level).
func (d *Device) waitFor(level bool) (time.Duration, bool) {
	if d.mode != ModeInput {
		return 0, false
	}
	start := d.clock.Now()
	for d.line.Get() != level {
		if d.clock.Now()-start > d.cfg.EdgeTimeout {
			return 0, false
		}
	}
	return d.clock.Now() - start, true
}
