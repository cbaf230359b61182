//go:build !(rp2040 || rp2350)

package setups

import "dhtcode-go/types"

// Host wiring mirrors the ESP32 dev board layout: LED on 2, DHT22 on 23.
var SelectedSetup = types.HALConfig{
	Devices: []types.HALDevice{
		{ID: "led0", Type: "gpio_led", Params: types.LEDParams{Pin: 2}},
		{ID: "dht0", Type: "dht22", Params: types.DHT22Params{Pin: 23}},
	},
}
