// Package provider supplies the platform resources HAL devices claim. The
// platform is chosen at build time:
//
//	rp2040/rp2350            TinyGo machine pins, UART0 console
//	linux + tag "periph"     periph.io GPIO on single-board computers
//	anything else            simulated pins and DHT22 (development, tests)
package provider

import (
	"sync"

	"dhtcode-go/errcode"
	"dhtcode-go/services/hal/internal/core"
	"dhtcode-go/services/hal/internal/provider/setups"
	"dhtcode-go/types"
)

// SelectedSetup is the board's device configuration, published on config/hal.
func SelectedSetup() types.HALConfig { return setups.SelectedSetup }

// -----------------------------------------------------------------------------
// Pin ownership (shared by every platform)
// -----------------------------------------------------------------------------

type pinOwner struct {
	devID string
	fn    core.PinFunc
}

type pinHandle struct {
	n    int
	fn   core.PinFunc
	gpio core.GPIOHandle
}

func (h *pinHandle) Pin() int                { return h.n }
func (h *pinHandle) AsGPIO() core.GPIOHandle { return h.gpio }

// pinTable enforces exclusive pin ownership. open maps a pin number to the
// platform GPIO, failing for pins the board does not have.
type pinTable struct {
	mu     sync.Mutex
	owners map[int]pinOwner
	gpio   map[int]core.GPIOHandle
	open   func(n int) (core.GPIOHandle, error)
}

func newPinTable(open func(n int) (core.GPIOHandle, error)) *pinTable {
	return &pinTable{
		owners: make(map[int]pinOwner),
		gpio:   make(map[int]core.GPIOHandle),
		open:   open,
	}
}

var _ core.ResourceRegistry = (*pinTable)(nil)

func (t *pinTable) ClaimPin(devID string, n int, fn core.PinFunc) (core.PinHandle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if owner, inUse := t.owners[n]; inUse {
		return nil, &errcode.E{C: errcode.PinInUse, Op: "claim", Msg: "pin owned by " + owner.devID}
	}
	g, ok := t.gpio[n]
	if !ok {
		var err error
		if g, err = t.open(n); err != nil {
			return nil, err
		}
		t.gpio[n] = g
	}
	t.owners[n] = pinOwner{devID: devID, fn: fn}
	return &pinHandle{n: n, fn: fn, gpio: g}, nil
}

func (t *pinTable) ReleasePin(devID string, n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if owner, ok := t.owners[n]; ok && owner.devID == devID {
		// Park released pins as plain inputs.
		if g := t.gpio[n]; g != nil {
			_ = g.ConfigureInput(core.PullNone)
		}
		delete(t.owners, n)
	}
}

// Owner reports which device holds pin n.
func (t *pinTable) Owner(n int) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	o, ok := t.owners[n]
	return o.devID, ok
}

func rangeCheck(n, min, max int) error {
	if n < min || n > max {
		return errcode.UnknownPin
	}
	return nil
}
