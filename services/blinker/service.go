// Package blinker toggles an LED capability on a fixed period.
package blinker

import (
	"context"
	"time"

	"dhtcode-go/bus"
	"dhtcode-go/services/hal"
	"dhtcode-go/types"
	"dhtcode-go/x/logx"
	"dhtcode-go/x/strx"
	"dhtcode-go/x/timex"
)

const (
	defaultInterval = 250 * time.Millisecond
	defaultLED      = "led0"
)

var (
	topicConfigBlinker = bus.T("config", "blinker")

	log = logx.New("blinker")
)

type Service struct{}

func New() *Service { return &Service{} }

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigBlinker)
	defer conn.Unsubscribe(cfgSub)

	tick := time.NewTicker(defaultInterval)
	defer tick.Stop()

	toggle := hal.LEDTopic(defaultLED, "control", hal.VerbToggle)
	for {
		select {
		case <-ctx.Done():
			log.Info("stopping")
			return
		case <-tick.C:
			log.Info("Toggle LED")
			// Fire and forget: no ReplyTo, so HAL does not answer.
			conn.Publish(conn.NewMessage(toggle, nil, false))
		case msg := <-cfgSub.Channel():
			cfg, ok := msg.Payload.(types.BlinkerConfig)
			if !ok || cfg.IntervalMs == 0 {
				log.Warn("ignoring config", "payload", msg.Payload)
				continue
			}
			toggle = hal.LEDTopic(strx.Coalesce(cfg.LED, defaultLED), "control", hal.VerbToggle)
			tick.Reset(timex.Ms(cfg.IntervalMs))
			log.Info("blinking", "led", cfg.LED, "ms", cfg.IntervalMs)
		}
	}
}

// Start the blinker service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}
