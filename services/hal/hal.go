// Package hal runs the hardware abstraction layer as a bus service.
//
// HAL waits for a types.HALConfig on config/hal, builds the configured
// devices on the platform selected at build time and exposes each of their
// capabilities under hal/cap/<domain>/<kind>/<name>:
//
//	.../info             retained types.Info
//	.../status           retained types.CapabilityStatus
//	.../value            retained latest value
//	.../event[/tag]      non-retained diagnostics
//	.../control/<verb>   request/reply
//
// Controls are rejected with hal_not_ready until the first config arrives.
package hal

import (
	"context"
	"io"

	"dhtcode-go/bus"
	"dhtcode-go/services/hal/internal/core"
	"dhtcode-go/services/hal/internal/provider"
	"dhtcode-go/types"

	// Device builders register themselves.
	_ "dhtcode-go/services/hal/devices/dht22"
	_ "dhtcode-go/services/hal/devices/led"
)

// Run blocks until ctx is cancelled, then closes all devices and publishes
// hal/state "stopped".
func Run(ctx context.Context, conn *bus.Connection) {
	core.NewHAL(conn, provider.NewResources()).Run(ctx)
}

// SelectedSetup returns the device configuration for the board this binary
// was built for.
func SelectedSetup() types.HALConfig { return provider.SelectedSetup() }

// Console returns the board's serial console, when it has one that needs
// setting up. Hosted builds return false and keep stderr.
func Console() (io.Writer, bool) { return provider.Console() }
