//go:build !(rp2040 || rp2350) && !(linux && periph)

package provider

import (
	"io"
	"sync"

	"dhtcode-go/drivers/dht22"
	"dhtcode-go/drivers/dht22/sim"
	"dhtcode-go/services/hal/internal/core"
	"dhtcode-go/types"
)

const simGPIOMax = 39

// SimReading is what simulated DHT22 sensors report until changed.
var SimReading = dht22.Reading{HumidityTenths: 453, TemperatureTenths: 264}

// Sim is the host platform: plain in-memory pins, plus a simulated DHT22 on
// every pin a dht22 device is configured for. All sensors share one virtual
// microsecond clock.
type Sim struct {
	*pinTable
	Clock   *sim.Clock
	sensors map[int]*sim.Sensor
}

// NewSim builds a simulated platform for cfg.
func NewSim(cfg types.HALConfig) *Sim {
	s := &Sim{Clock: &sim.Clock{}, sensors: map[int]*sim.Sensor{}}
	for _, d := range cfg.Devices {
		if p, ok := d.Params.(types.DHT22Params); ok && d.Type == "dht22" {
			s.sensors[p.Pin] = sim.NewSensor(s.Clock, SimReading)
		}
	}
	s.pinTable = newPinTable(s.open)
	return s
}

// Sensor returns the simulated DHT22 wired to pin n, if any.
func (s *Sim) Sensor(n int) (*sim.Sensor, bool) {
	sn, ok := s.sensors[n]
	return sn, ok
}

func (s *Sim) open(n int) (core.GPIOHandle, error) {
	if err := rangeCheck(n, 0, simGPIOMax); err != nil {
		return nil, err
	}
	if sn, ok := s.sensors[n]; ok {
		return &simLine{n: n, s: sn}, nil
	}
	return &simGPIO{n: n}, nil
}

func (s *Sim) Resources() core.Resources {
	return core.Resources{Reg: s, Clock: s.Clock}
}

// NewResources returns resources for the compiled-in setup.
func NewResources() core.Resources {
	return NewSim(SelectedSetup()).Resources()
}

// Console is the UART console on MCUs; host builds keep the default sink.
func Console() (io.Writer, bool) { return nil, false }

// ---- plain pin ----

type simGPIO struct {
	mu    sync.Mutex
	n     int
	out   bool
	level bool
}

func (g *simGPIO) Number() int { return g.n }

func (g *simGPIO) ConfigureInput(pull core.Pull) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.out = false
	switch pull {
	case core.PullUp:
		g.level = true
	case core.PullDown:
		g.level = false
	}
	return nil
}

func (g *simGPIO) ConfigureOutput(initial bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.out, g.level = true, initial
	return nil
}

func (g *simGPIO) Set(b bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.out {
		g.level = b
	}
}

func (g *simGPIO) Get() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.level
}

func (g *simGPIO) Toggle() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.out {
		g.level = !g.level
	}
}

// ---- pin with a simulated DHT22 attached ----

type simLine struct {
	n int
	s *sim.Sensor
}

func (l *simLine) Number() int                        { return l.n }
func (l *simLine) ConfigureInput(core.Pull) error     { l.s.ConfigureInput(); return nil }
func (l *simLine) ConfigureOutput(initial bool) error { l.s.ConfigureOutput(initial); return nil }
func (l *simLine) Set(b bool)                         { l.s.Set(b) }
func (l *simLine) Get() bool                          { return l.s.Get() }
func (l *simLine) Toggle()                            { l.s.Set(!l.s.Get()) }
