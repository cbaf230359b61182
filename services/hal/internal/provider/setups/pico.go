//go:build rp2040 || rp2350

package setups

import "dhtcode-go/types"

// Pico: on-board LED on GP25, DHT22 data on GP15 (pulled up externally).
var SelectedSetup = types.HALConfig{
	Devices: []types.HALDevice{
		{ID: "led0", Type: "gpio_led", Params: types.LEDParams{Pin: 25}},
		{ID: "dht0", Type: "dht22", Params: types.DHT22Params{Pin: 15}},
	},
}
