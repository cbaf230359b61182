package config

import (
	"dhtcode-go/services/hal"
	"dhtcode-go/types"
)

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Key: device ID (same value placed in ctx under CtxDeviceKey).
// The HAL section is the board setup selected at build time.
// -----------------------------------------------------------------------------

// DefaultDevice is the ID main configures when none is given.
const DefaultDevice = "board"

var embeddedConfigs = map[string]Bundle{
	DefaultDevice: {
		LogLevel: "info",
		HAL:      hal.SelectedSetup(),
		Blinker:  types.BlinkerConfig{IntervalMs: 250, LED: "led0"},
		Counter:  types.CounterConfig{IntervalMs: 1000},
		Climate:  types.ClimateConfig{IntervalMs: 3000, Sensor: "dht0"},
	},
	// Bench profile: chatty logs, slowest legal sensor cadence.
	"bench": {
		LogLevel: "debug",
		HAL:      hal.SelectedSetup(),
		Blinker:  types.BlinkerConfig{IntervalMs: 1000, LED: "led0"},
		Counter:  types.CounterConfig{IntervalMs: 1000},
		Climate:  types.ClimateConfig{IntervalMs: 2000, Sensor: "dht0"},
	},
}
