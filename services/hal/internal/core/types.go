package core

import (
	"context"

	"dhtcode-go/errcode"
	"dhtcode-go/types"
)

// ---- Capability & device model ----

// CapAddr is the public address of one capability:
// hal/cap/<Domain>/<Kind>/<Name>/...
type CapAddr struct {
	Domain string
	Kind   string
	Name   string
}

type CapabilitySpec struct {
	Domain string // empty => inferred from Kind
	Kind   types.Kind
	Name   string // empty => device ID
	Info   types.Info
}

// Device is owned by the HAL goroutine. Control must not block: work that
// touches slow hardware is handed to the device's own worker.
type Device interface {
	ID() string
	Capabilities() []CapabilitySpec
	Init(ctx context.Context) error
	Control(addr CapAddr, verb string, payload any) (EnqueueResult, error)
	Close() error // releases claimed resources
}

// EnqueueResult reports whether a control was accepted. Results of accepted
// work arrive later as Events.
type EnqueueResult struct {
	OK    bool
	Error errcode.Code
}

// ---- Device → HAL telemetry (single shape) ----
// By default, an Event represents a "value-like" update for a capability that
// HAL should publish to .../value (retained). If IsEvent is true, HAL instead
// publishes to .../event[/EventTag] (non-retained). Err, when non-empty, causes
// HAL to publish only .../status=degraded (retained).

type Event struct {
	Addr     CapAddr
	Payload  any
	TSms     int64
	Err      string // "timeout","checksum_mismatch",...
	IsEvent  bool
	EventTag string // optional subtopic tag for events (e.g. "raw")
}

type EventEmitter interface {
	// Emit must be non-blocking; false indicates a drop under pressure.
	Emit(ev Event) bool
}

// ---- HAL-injected resources ----

type Resources struct {
	Reg   ResourceRegistry
	Clock Clock        // microsecond clock for bit-banged protocols
	Pub   EventEmitter // provided by HAL
}

type BuilderInput struct {
	ID, Type string
	Params   any
	Res      Resources
}

type Builder interface {
	Build(ctx context.Context, in BuilderInput) (Device, error)
}
