// Package led drives an LED on a GPIO output and exposes it as
// hal/cap/io/led/<name>.
package led

import (
	"context"

	"dhtcode-go/errcode"
	"dhtcode-go/services/hal/internal/core"
	"dhtcode-go/types"
	"dhtcode-go/x/timex"
)

type Device struct {
	id      string
	pin     core.GPIOHandle
	initial bool
	res     core.Resources
	addr    core.CapAddr
}

func New(id string, p types.LEDParams, h core.GPIOHandle, res core.Resources) *Device {
	return &Device{
		id:      id,
		pin:     h,
		initial: p.Initial,
		res:     res,
		addr:    core.CapAddr{Domain: "io", Kind: string(types.KindLED), Name: id},
	}
}

func (d *Device) ID() string { return d.id }

func (d *Device) Capabilities() []core.CapabilitySpec {
	return []core.CapabilitySpec{{
		Domain: d.addr.Domain,
		Kind:   types.KindLED,
		Name:   d.addr.Name,
		Info: types.Info{
			SchemaVersion: 1,
			Driver:        "gpio_led",
			Detail:        types.LEDInfo{Pin: d.pin.Number()},
		},
	}}
}

func (d *Device) Init(ctx context.Context) error {
	if err := d.pin.ConfigureOutput(d.initial); err != nil {
		return err
	}
	d.emitValueNow()
	return nil
}

func (d *Device) Close() error {
	d.pin.Set(false)
	d.res.Reg.ReleasePin(d.id, d.pin.Number())
	return nil
}

// Control runs synchronously: a GPIO write cannot block.
func (d *Device) Control(_ core.CapAddr, verb string, payload any) (core.EnqueueResult, error) {
	switch verb {
	case "set":
		p, code := core.As[types.LEDSet](payload)
		if code != "" || payload == nil {
			return core.EnqueueResult{Error: errcode.InvalidPayload}, nil
		}
		d.pin.Set(p.On)
	case "toggle":
		d.pin.Toggle()
	case "read":
	default:
		return core.EnqueueResult{Error: errcode.Unsupported}, nil
	}
	d.emitValueNow()
	return core.EnqueueResult{OK: true}, nil
}

func (d *Device) emitValueNow() {
	_ = d.res.Pub.Emit(core.Event{
		Addr:    d.addr,
		Payload: types.LEDValue{On: d.pin.Get()},
		TSms:    timex.NowMs(),
	})
}
