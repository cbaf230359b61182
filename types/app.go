package types

// Application task payloads and configuration (config/<service>, app/...).

type BlinkerConfig struct {
	IntervalMs uint32 `json:"interval_ms"`
	LED        string `json:"led"` // capability name, e.g. "led0"
}

type CounterConfig struct {
	IntervalMs uint32 `json:"interval_ms"`
}

type ClimateConfig struct {
	IntervalMs uint32 `json:"interval_ms"` // clamped to >= the sensor minimum
	Sensor     string `json:"sensor"`      // capability name, e.g. "dht0"
}

// CounterValue is retained on app/counter/value.
type CounterValue struct {
	Count uint32 `json:"count"`
	TSms  int64  `json:"ts_ms"`
}

// ClimateReport is retained on app/climate/report. When the latest read
// failed, Outcome names the failure and Stale marks DeciC/DeciRH as the last
// good values rather than current ones.
type ClimateReport struct {
	DeciC    int16  `json:"deci_c"`
	DeciRH   uint16 `json:"deci_rh"`
	Outcome  string `json:"outcome"` // "success", "timeout", "checksum_mismatch"
	Stale    bool   `json:"stale"`
	Valid    bool   `json:"valid"` // a good reading has been seen
	Failures uint32 `json:"failures"`
	TSms     int64  `json:"ts_ms"`
}
