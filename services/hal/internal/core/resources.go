package core

import "time"

// ---- GPIO ----

type Pull uint8

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

// PinFunc is what a device claims a pin for.
type PinFunc uint8

const (
	FuncGPIOIn PinFunc = iota
	FuncGPIOOut
	FuncGPIOBidir // direction switched at runtime (single-wire buses)
)

type GPIOHandle interface {
	Number() int
	ConfigureInput(pull Pull) error
	ConfigureOutput(initial bool) error
	Set(bool)
	Get() bool
	Toggle()
}

// PinHandle is an exclusive claim on one pin.
type PinHandle interface {
	Pin() int
	AsGPIO() GPIOHandle
}

// CriticalSection may be implemented by a GPIOHandle whose platform can keep
// other work off the CPU for a timing-critical exchange.
type CriticalSection interface {
	Enter() (exit func())
}

// Clock is a monotonic microsecond clock with a busy-wait delay.
type Clock interface {
	Now() time.Duration
	Delay(d time.Duration)
}

// ---- Registry ----

type ResourceRegistry interface {
	// ClaimPin fails with errcode.UnknownPin or errcode.PinInUse.
	ClaimPin(devID string, pin int, fn PinFunc) (PinHandle, error)
	ReleasePin(devID string, pin int)
}

// MonoClock is a Clock on the Go runtime's monotonic time.
type MonoClock struct{ t0 time.Time }

func NewMonoClock() *MonoClock { return &MonoClock{t0: time.Now()} }

func (c *MonoClock) Now() time.Duration { return time.Since(c.t0) }

func (c *MonoClock) Delay(d time.Duration) {
	end := c.Now() + d
	for c.Now() < end {
	}
}
