// Package counter runs the counting task: once per interval it logs the
// running count and publishes it retained on app/counter/value.
package counter

import (
	"context"
	"time"

	"dhtcode-go/bus"
	"dhtcode-go/types"
	"dhtcode-go/x/conv"
	"dhtcode-go/x/logx"
	"dhtcode-go/x/timex"
)

const defaultInterval = time.Second

var (
	topicConfigCounter = bus.T("config", "counter")
	topicValue         = bus.T("app", "counter", "value")

	log = logx.New("counter")
)

type Service struct{}

func New() *Service { return &Service{} }

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigCounter)
	defer conn.Unsubscribe(cfgSub)

	tick := time.NewTicker(defaultInterval)
	defer tick.Stop()

	var (
		count uint32
		buf   [20]byte
	)
	for {
		select {
		case <-ctx.Done():
			log.Info("stopping")
			return
		case <-tick.C:
			log.Info("Counts: " + string(conv.Itoa(buf[:], int64(count))))
			conn.Publish(conn.NewMessage(topicValue, types.CounterValue{Count: count, TSms: timex.NowMs()}, true))
			count++
		case msg := <-cfgSub.Channel():
			cfg, ok := msg.Payload.(types.CounterConfig)
			if !ok || cfg.IntervalMs == 0 {
				log.Warn("ignoring config", "payload", msg.Payload)
				continue
			}
			tick.Reset(timex.Ms(cfg.IntervalMs))
			log.Debug("interval set", "ms", cfg.IntervalMs)
		}
	}
}

// Start the counter service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}
