// Package config publishes the compiled-in configuration for this device as
// retained messages, one per service: config/hal, config/blinker, ...
package config

import (
	"context"
	"errors"

	"dhtcode-go/bus"
	"dhtcode-go/types"
	"dhtcode-go/x/logx"
)

const (
	serviceName  = "config"
	configPrefix = "config"
)

type ctxKey string

// CtxDeviceKey is the context key carrying the device ID to configure.
const CtxDeviceKey ctxKey = "device"

var log = logx.New(serviceName)

// Bundle is the full configuration of one device.
type Bundle struct {
	LogLevel string
	HAL      types.HALConfig
	Blinker  types.BlinkerConfig
	Counter  types.CounterConfig
	Climate  types.ClimateConfig
}

// EmbeddedConfigLookup allows overriding how configs are resolved.
var EmbeddedConfigLookup = func(device string) (Bundle, bool) {
	b, ok := embeddedConfigs[device]
	return b, ok
}

// -----------------------------------------------------------------------------
// Config Service
// -----------------------------------------------------------------------------

type ConfigService struct {
	Name string
}

func NewConfigService() *ConfigService {
	return &ConfigService{Name: serviceName}
}

// publishConfig resolves the device bundle, applies the log level and
// publishes each section retained under config/<section>.
func (s *ConfigService) publishConfig(ctx context.Context, conn *bus.Connection) error {
	device, _ := ctx.Value(CtxDeviceKey).(string)
	if device == "" {
		return errors.New("missing device ID in context")
	}

	b, ok := EmbeddedConfigLookup(device)
	if !ok {
		return errors.New("no embedded config for device: " + device)
	}

	if b.LogLevel != "" {
		lv, ok := logx.ParseLevel(b.LogLevel)
		if !ok {
			return errors.New("bad log level: " + b.LogLevel)
		}
		logx.SetLevel(lv)
	}

	for _, e := range []struct {
		key string
		val any
	}{
		{"hal", b.HAL},
		{"blinker", b.Blinker},
		{"counter", b.Counter},
		{"climate", b.Climate},
	} {
		conn.Publish(conn.NewMessage(bus.T(configPrefix, e.key), e.val, true))
	}
	log.Info("published", "device", device, "devices", len(b.HAL.Devices))
	return nil
}

// Start launches the config publisher in a goroutine.
func (s *ConfigService) Start(ctx context.Context, conn *bus.Connection) {
	go func() {
		if err := s.publishConfig(ctx, conn); err != nil {
			log.Error("publish failed", "err", err)
		}
	}()
}
