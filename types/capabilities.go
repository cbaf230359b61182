package types

type Kind string

const (
	KindLED         Kind = "led"
	KindTemperature Kind = "temperature"
	KindHumidity    Kind = "humidity"
)

// ------------------------
// LED
// ------------------------

type LEDParams struct {
	Pin     int  `json:"pin"`
	Initial bool `json:"initial,omitempty"`
}

type LEDInfo struct {
	Pin int `json:"pin"`
}

type LEDValue struct {
	On bool `json:"on"`
}

type LEDSet struct {
	On bool `json:"on"`
}

// ------------------------
// DHT22 temperature/humidity
// ------------------------

type DHT22Params struct {
	Pin int `json:"pin"`
	// Optional protocol timing overrides; zero keeps the driver default.
	StartLowUs    uint16 `json:"start_low_us,omitempty"`
	EdgeTimeoutUs uint16 `json:"edge_timeout_us,omitempty"`
}

// DHT22Info is published as Info.Detail on both env capabilities.
type DHT22Info struct {
	Pin           int    `json:"pin"`
	Sensor        string `json:"sensor"` // "dht22"
	MinIntervalMs uint32 `json:"min_interval_ms"`
}

// Fixed-point, small types to suit TinyGo.

type TemperatureValue struct {
	DeciC int16 `json:"deci_c"` // 264 => 26.4 °C
}

type HumidityValue struct {
	DeciRH uint16 `json:"deci_rh"` // 453 => 45.3 %RH
}

// DHT22RawFrame is emitted on .../temperature/<name>/event/raw when a frame
// arrives with a bad checksum. DeciC/DeciRH are decoded without validation.
type DHT22RawFrame struct {
	Frame  [5]byte `json:"frame"`
	Want   byte    `json:"want"` // computed checksum
	DeciC  int16   `json:"deci_c"`
	DeciRH uint16  `json:"deci_rh"`
}
