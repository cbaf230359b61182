// cmd/dhtprobe/main.go
//
// dhtprobe brings up HAL for the selected setup and exercises the DHT22 over
// the bus: a fixed number of reads, each value or failure printed, the raw
// frame shown for checksum failures, then a tally. The LED flashes the
// verdict: two short flashes when every read succeeded, one long otherwise.
package main

import (
	"context"
	"time"

	"dhtcode-go/bus"
	"dhtcode-go/drivers/dht22"
	"dhtcode-go/services/hal"
	"dhtcode-go/types"
	"dhtcode-go/x/conv"
	"dhtcode-go/x/logx"
)

// ---------- Configuration ----------

const (
	halReadyTimeout = 5 * time.Second
	resultTimeout   = 2 * time.Second

	readsToRun = 10
	sensor     = "dht0"
	led        = "led0"

	// Slack over the sensor minimum so the device never has to queue.
	readSpacing = dht22.MinInterval + 100*time.Millisecond
)

var log = logx.New("dhtprobe")

// ---------- Topics ----------

func tRead() bus.Topic {
	return hal.ControlTopic("env", types.KindTemperature, sensor, hal.VerbRead)
}
func tEnv() bus.Topic    { return hal.CapTopic("env", "+", sensor, "+") }
func tRaw() bus.Topic    { return hal.EnvTopic(types.KindTemperature, sensor, "event", "raw") }
func tLEDSet() bus.Topic { return hal.LEDTopic(led, "control", hal.VerbSet) }

// ---------- Helpers ----------

func waitHALReady(c *bus.Connection, d time.Duration) bool {
	sub := c.Subscribe(hal.StateTopic())
	defer c.Unsubscribe(sub)

	dead := time.After(d)
	for {
		select {
		case m := <-sub.Channel():
			if st, ok := m.Payload.(types.HALState); ok && st.Level == "ready" {
				return true
			}
		case <-dead:
			return false
		}
	}
}

// result is one read as seen on the bus.
type result struct {
	outcome string
	rh      uint16
	c       int16
	raw     *types.DHT22RawFrame
}

// awaitResult follows the capability topics until the temperature status of
// a read newer than after arrives.
func awaitResult(env, raw *bus.Subscription, after int64) (result, bool) {
	var r result
	dead := time.After(resultTimeout)
	for {
		select {
		case m := <-raw.Channel():
			if f, ok := m.Payload.(types.DHT22RawFrame); ok {
				r.raw = &f
			}
		case m := <-env.Channel():
			switch p := m.Payload.(type) {
			case types.HumidityValue:
				r.rh = p.DeciRH
			case types.TemperatureValue:
				r.c = p.DeciC
			case types.CapabilityStatus:
				if m.Topic.At(3) != string(types.KindTemperature) || p.TSms <= after || p.Link == types.LinkDown {
					continue
				}
				r.outcome = dht22.OutcomeSuccess.String()
				if p.Link == types.LinkDegraded {
					r.outcome = p.Error
				}
				return r, true
			}
		case <-dead:
			return r, false
		}
	}
}

func ledFlashPassFail(ui *bus.Connection, pass bool) {
	set := func(on bool, d time.Duration) {
		ui.Publish(ui.NewMessage(tLEDSet(), types.LEDSet{On: on}, false))
		time.Sleep(d)
	}
	if pass {
		for i := 0; i < 2; i++ {
			set(true, 120*time.Millisecond)
			set(false, 200*time.Millisecond)
		}
		return
	}
	set(true, 400*time.Millisecond)
	set(false, 200*time.Millisecond)
}

// ---------- Main ----------

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if w, ok := hal.Console(); ok {
		logx.SetOutput(w)
	}

	b := bus.NewBus(16)
	ui := b.NewConnection("ui")
	go hal.Run(ctx, b.NewConnection("hal"))
	ui.Publish(ui.NewMessage(hal.ConfigTopic(), hal.SelectedSetup(), true))

	if !waitHALReady(ui, halReadyTimeout) {
		log.Error("HAL not ready within timeout")
		return
	}

	env := ui.Subscribe(tEnv())
	raw := ui.Subscribe(tRaw())
	defer ui.Unsubscribe(env)
	defer ui.Unsubscribe(raw)

	tally := map[string]int{}
	var (
		last int64
		buf  [8]byte
		hex  []byte
	)
	for i := 1; i <= readsToRun; i++ {
		rctx, rcancel := context.WithTimeout(ctx, time.Second)
		reply, err := ui.RequestWait(rctx, ui.NewMessage(tRead(), nil, false))
		rcancel()
		if err != nil {
			log.Error("read request", "n", i, "err", err)
			tally["no_reply"]++
			continue
		}
		if er, ok := reply.Payload.(types.ErrorReply); ok {
			log.Warn("read refused", "n", i, "err", er.Error)
			tally[er.Error]++
			continue
		}

		r, ok := awaitResult(env, raw, last)
		if !ok {
			log.Error("no result", "n", i)
			tally["no_result"]++
			continue
		}
		last = time.Now().UnixMilli() - 1
		tally[r.outcome]++

		if r.outcome == dht22.OutcomeSuccess.String() {
			hum := string(conv.Tenths(buf[:], int16(r.rh)))
			log.Info("read", "n", i, "hum", hum, "tmp", string(conv.Tenths(buf[:], r.c)))
		} else {
			log.Warn("read", "n", i, "outcome", r.outcome)
		}
		if r.raw != nil {
			hex = conv.AppendHex(hex[:0], r.raw.Frame[:])
			log.Warn("raw frame", "bytes", string(hex), "want", r.raw.Want,
				"hum", string(conv.Tenths(buf[:], int16(r.raw.DeciRH))),
				"tmp", string(conv.Tenths(buf[:], r.raw.DeciC)))
		}
		time.Sleep(readSpacing)
	}

	log.Info("=== dhtprobe: done ===", "reads", readsToRun)
	for k, n := range tally {
		log.Info("tally", "outcome", k, "count", n)
	}
	ledFlashPassFail(ui, tally[dht22.OutcomeSuccess.String()] == readsToRun)
}
