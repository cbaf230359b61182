//go:build linux && periph

package provider

import (
	"io"
	"runtime"
	"runtime/debug"
	"strconv"
	"sync"

	"dhtcode-go/errcode"
	"dhtcode-go/services/hal/internal/core"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

type periphGPIO struct {
	p gpio.PinIO
	n int
}

func (g *periphGPIO) Number() int { return g.n }

func (g *periphGPIO) ConfigureInput(pull core.Pull) error {
	pp := gpio.Float
	switch pull {
	case core.PullUp:
		pp = gpio.PullUp
	case core.PullDown:
		pp = gpio.PullDown
	}
	return g.p.In(pp, gpio.NoEdge)
}

func (g *periphGPIO) ConfigureOutput(initial bool) error { return g.p.Out(gpio.Level(initial)) }

func (g *periphGPIO) Set(b bool) { _ = g.p.Out(gpio.Level(b)) }
func (g *periphGPIO) Get() bool  { return g.p.Read() == gpio.High }
func (g *periphGPIO) Toggle()    { g.Set(!g.Get()) }

// Enter pins the goroutine to its thread and pauses the garbage collector for
// the length of a timing-critical exchange.
func (g *periphGPIO) Enter() (exit func()) {
	runtime.LockOSThread()
	pct := debug.SetGCPercent(-1)
	return func() {
		debug.SetGCPercent(pct)
		runtime.UnlockOSThread()
	}
}

var hostInit = sync.OnceValue(func() error {
	_, err := host.Init()
	return err
})

// openPeriph resolves BCM-style numbers ("GPIO<n>") through the periph registry.
func openPeriph(n int) (core.GPIOHandle, error) {
	if err := hostInit(); err != nil {
		return nil, &errcode.E{C: errcode.Error, Op: "host.Init", Err: err}
	}
	p := gpioreg.ByName("GPIO" + strconv.Itoa(n))
	if p == nil {
		return nil, errcode.UnknownPin
	}
	return &periphGPIO{p: p, n: n}, nil
}

func NewResources() core.Resources {
	return core.Resources{Reg: newPinTable(openPeriph), Clock: core.NewMonoClock()}
}

func Console() (io.Writer, bool) { return nil, false }
