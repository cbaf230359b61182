package hal

import (
	"dhtcode-go/bus"
	"dhtcode-go/services/hal/internal/core"
	"dhtcode-go/types"
)

const (
	VerbRead      = "read"
	VerbToggle    = "toggle"
	VerbSet       = "set"
	VerbPollStart = core.VerbPollStart
	VerbPollStop  = core.VerbPollStop
)

func ConfigTopic() bus.Topic { return bus.T("config", "hal") }
func StateTopic() bus.Topic  { return bus.T("hal", "state") }

// CapTopic returns hal/cap/<domain>/<kind>/<name>/<leaf...>.
func CapTopic(domain string, kind types.Kind, name string, leaf ...bus.Token) bus.Topic {
	return bus.T("hal", "cap", domain, string(kind), name).Append(leaf...)
}

// ControlTopic returns the request topic for verb on a capability.
func ControlTopic(domain string, kind types.Kind, name, verb string) bus.Topic {
	return CapTopic(domain, kind, name, "control", verb)
}

// EnvTopic addresses the env-domain capabilities of a DHT22 named sensor.
func EnvTopic(kind types.Kind, sensor string, leaf ...bus.Token) bus.Topic {
	return CapTopic("env", kind, sensor, leaf...)
}

// LEDTopic addresses io/led/<name>.
func LEDTopic(name string, leaf ...bus.Token) bus.Topic {
	return CapTopic("io", types.KindLED, name, leaf...)
}
