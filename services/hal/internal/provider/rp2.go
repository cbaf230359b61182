//go:build rp2040 || rp2350

package provider

import (
	"io"
	"machine"
	"runtime/interrupt"
	"time"

	"dhtcode-go/services/hal/internal/core"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
	"tinygo.org/x/drivers/delay"
)

const (
	rp2GPIOMin = 0
	rp2GPIOMax = 29

	consoleBaud = 115_200
)

// -----------------------------------------------------------------------------
// GPIO handle
// -----------------------------------------------------------------------------

type rp2GPIO struct {
	p machine.Pin
	n int
}

func (r *rp2GPIO) Number() int { return r.n }

func (r *rp2GPIO) ConfigureInput(pull core.Pull) error {
	var mode machine.PinMode
	switch pull {
	case core.PullUp:
		mode = machine.PinInputPullup
	case core.PullDown:
		mode = machine.PinInputPulldown
	default:
		mode = machine.PinInput
	}
	r.p.Configure(machine.PinConfig{Mode: mode})
	return nil
}

func (r *rp2GPIO) ConfigureOutput(initial bool) error {
	r.p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	r.p.Set(initial)
	return nil
}

func (r *rp2GPIO) Set(b bool) { r.p.Set(b) }
func (r *rp2GPIO) Get() bool  { return r.p.Get() }
func (r *rp2GPIO) Toggle() {
	if r.p.Get() {
		r.p.Low()
	} else {
		r.p.High()
	}
}

// Enter masks interrupts so a bit-banged exchange is not stretched by the
// scheduler or an ISR.
func (r *rp2GPIO) Enter() (exit func()) {
	st := interrupt.Disable()
	return func() { interrupt.Restore(st) }
}

// -----------------------------------------------------------------------------
// Clock: hardware timer for Now, cycle-counted busy wait for Delay
// -----------------------------------------------------------------------------

type rp2Clock struct{ t0 time.Time }

func (c *rp2Clock) Now() time.Duration    { return time.Since(c.t0) }
func (c *rp2Clock) Delay(d time.Duration) { delay.Sleep(d) }

// -----------------------------------------------------------------------------
// Registry
// -----------------------------------------------------------------------------

func openRP2(n int) (core.GPIOHandle, error) {
	if err := rangeCheck(n, rp2GPIOMin, rp2GPIOMax); err != nil {
		return nil, err
	}
	return &rp2GPIO{p: machine.Pin(n), n: n}, nil
}

func NewResources() core.Resources {
	return core.Resources{
		Reg:   newPinTable(openRP2),
		Clock: &rp2Clock{t0: time.Now()},
	}
}

// Console configures UART0 (GP0 TX, GP1 RX) for log output.
func Console() (io.Writer, bool) {
	if err := uartx.UART0.Configure(uartx.UARTConfig{
		BaudRate: consoleBaud,
		TX:       machine.Pin(0),
		RX:       machine.Pin(1),
	}); err != nil {
		return nil, false
	}
	return uartx.UART0, true
}
