package led

import (
	"context"

	"dhtcode-go/errcode"
	"dhtcode-go/services/hal/internal/core"
	"dhtcode-go/types"
)

func init() {
	core.RegisterBuilder("gpio_led", builder{})
}

type builder struct{}

func (builder) Build(ctx context.Context, in core.BuilderInput) (core.Device, error) {
	p, code := core.As[types.LEDParams](in.Params)
	if code != "" {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "gpio_led", Msg: in.ID}
	}
	ph, err := in.Res.Reg.ClaimPin(in.ID, p.Pin, core.FuncGPIOOut)
	if err != nil {
		return nil, err
	}
	return New(in.ID, p, ph.AsGPIO(), in.Res), nil
}
