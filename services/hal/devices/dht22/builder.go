package dht22dev

import (
	"context"
	"time"

	"dhtcode-go/drivers/dht22"
	"dhtcode-go/errcode"
	"dhtcode-go/services/hal/internal/core"
	"dhtcode-go/types"
)

func init() { core.RegisterBuilder("dht22", builder{}) }

type builder struct{}

func (builder) Build(ctx context.Context, in core.BuilderInput) (core.Device, error) {
	p, code := core.As[types.DHT22Params](in.Params)
	if code != "" || in.Params == nil {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "dht22", Msg: in.ID}
	}
	if in.Res.Clock == nil {
		return nil, &errcode.E{C: errcode.Unsupported, Op: "dht22", Msg: "no clock"}
	}
	ph, err := in.Res.Reg.ClaimPin(in.ID, p.Pin, core.FuncGPIOBidir)
	if err != nil {
		return nil, err
	}
	drv := dht22.New(lineFor(ph.AsGPIO()), in.Res.Clock)
	drv.Configure(dht22.Config{
		StartLow:    time.Duration(p.StartLowUs) * time.Microsecond,
		EdgeTimeout: time.Duration(p.EdgeTimeoutUs) * time.Microsecond,
	})
	return New(in.ID, p.Pin, drv, in.Res), nil
}

// ---- GPIOHandle as a single-wire data line ----

type line struct{ g core.GPIOHandle }

func (l line) ConfigureOutput(level bool) { _ = l.g.ConfigureOutput(level) }
func (l line) ConfigureInput()            { _ = l.g.ConfigureInput(core.PullUp) }
func (l line) Set(level bool)             { l.g.Set(level) }
func (l line) Get() bool                  { return l.g.Get() }

// criticalLine forwards the platform's critical section to the driver.
type criticalLine struct {
	line
	cs core.CriticalSection
}

func (l criticalLine) Enter() (exit func()) { return l.cs.Enter() }

func lineFor(g core.GPIOHandle) dht22.Line {
	if cs, ok := g.(core.CriticalSection); ok {
		return criticalLine{line: line{g}, cs: cs}
	}
	return line{g}
}
