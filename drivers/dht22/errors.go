package dht22

import (
	"errors"
	"strconv"
)

// Errors returned by the driver. Both are transient; retry after MinInterval.
var (
	ErrTimeout  = errors.New("dht22: timeout")
	ErrChecksum = errors.New("dht22: checksum mismatch")
)

// TimeoutError reports which edge the sensor failed to produce in time.
type TimeoutError struct {
	Phase string // PhaseAck or PhaseData
	Bit   int    // 0..39 for PhaseData, -1 otherwise
}

func (e *TimeoutError) Error() string {
	if e.Phase == PhaseData {
		return "dht22: timeout at bit " + strconv.Itoa(e.Bit)
	}
	return "dht22: timeout waiting for " + e.Phase
}

func (e *TimeoutError) Unwrap() error { return ErrTimeout }

// ChecksumError carries the received frame so callers may inspect the raw
// values for diagnostics.
type ChecksumError struct {
	Frame Frame
}

func (e *ChecksumError) Error() string {
	return "dht22: checksum mismatch: got 0x" + hex(e.Frame[4]) + " want 0x" + hex(e.Frame.Sum())
}

func (e *ChecksumError) Unwrap() error { return ErrChecksum }

// Raw returns the values decoded from the rejected frame.
func (e *ChecksumError) Raw() Reading { return e.Frame.Reading() }

func hex(b byte) string {
	const digits = "0123456789abcdef"
	return string([]byte{digits[b>>4], digits[b&0x0F]})
}

// Outcome classifies a transaction.
type Outcome uint8

const (
	OutcomeSuccess Outcome = iota
	OutcomeTimeout
	OutcomeChecksumMismatch
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeChecksumMismatch:
		return "checksum_mismatch"
	default:
		return "unknown"
	}
}

// OutcomeOf maps the error returned by Read to an Outcome. The driver only
// produces the two error kinds, so anything else is treated as a timeout: the
// sensor did not deliver a frame.
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrChecksum):
		return OutcomeChecksumMismatch
	default:
		return OutcomeTimeout
	}
}
