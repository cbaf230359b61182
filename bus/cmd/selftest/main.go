//go:build rp2040 || rp2350

// bus/cmd/selftest/main.go
//
// On-target check of the bus behaviours the firmware relies on. Results go
// to the console; the on-board LED stays on when everything passed and
// blinks otherwise.
package main

import (
	"context"
	"machine"
	"time"

	"dhtcode-go/bus"
	"dhtcode-go/x/logx"
)

var log = logx.New("selftest")

// --- helpers -----------------------------------------------------------------

func payloadIs(sub *bus.Subscription, want string, timeout time.Duration) bool {
	select {
	case got := <-sub.Channel():
		s, ok := got.Payload.(string)
		return ok && s == want
	case <-time.After(timeout):
		return false
	}
}

func silent(sub *bus.Subscription, timeout time.Duration) bool {
	select {
	case <-sub.Channel():
		return false
	case <-time.After(timeout):
		return true
	}
}

// --- checks ------------------------------------------------------------------

func checkRetainedConfig() bool {
	c := bus.NewBus(4).NewConnection("t")
	c.Publish(c.NewMessage(bus.T("config", "climate"), "v1", true))
	c.Publish(c.NewMessage(bus.T("config", "climate"), "v2", true))
	sub := c.Subscribe(bus.T("config", "climate"))
	return payloadIs(sub, "v2", 100*time.Millisecond) && silent(sub, 30*time.Millisecond)
}

// One wildcard subscription must see a device's publications in order.
func checkEnvOrdering() bool {
	c := bus.NewBus(8).NewConnection("t")
	sub := c.Subscribe(bus.T("hal", "cap", "env", "+", "dht0", "+"))
	for _, p := range []struct{ kind, leaf string }{
		{"humidity", "value"}, {"humidity", "status"},
		{"temperature", "value"}, {"temperature", "status"},
	} {
		c.Publish(c.NewMessage(bus.T("hal", "cap", "env", p.kind, "dht0", p.leaf), p.kind+"/"+p.leaf, false))
	}
	return payloadIs(sub, "humidity/value", 50*time.Millisecond) &&
		payloadIs(sub, "humidity/status", 50*time.Millisecond) &&
		payloadIs(sub, "temperature/value", 50*time.Millisecond) &&
		payloadIs(sub, "temperature/status", 50*time.Millisecond)
}

func checkNoMatch() bool {
	c := bus.NewBus(4).NewConnection("t")
	sub := c.Subscribe(bus.T("hal", "cap", "env", "+", "dht0", "value"))
	c.Publish(c.NewMessage(bus.T("hal", "cap", "io", "led", "dht0", "value"), "x", false))
	c.Publish(c.NewMessage(bus.T("hal", "cap", "env", "temperature", "dht1", "value"), "y", false))
	return silent(sub, 30*time.Millisecond)
}

func checkDropOldest() bool {
	c := bus.NewBus(2).NewConnection("t")
	sub := c.Subscribe(bus.T("app", "counter", "value"))
	for _, p := range []string{"0", "1", "2"} {
		c.Publish(c.NewMessage(bus.T("app", "counter", "value"), p, false))
	}
	return payloadIs(sub, "1", 50*time.Millisecond) && payloadIs(sub, "2", 50*time.Millisecond)
}

func checkRequestReply() bool {
	b := bus.NewBus(4)
	req, resp := b.NewConnection("req"), b.NewConnection("resp")
	topic := bus.T("hal", "cap", "io", "led", "led0", "control", "toggle")
	sub := resp.Subscribe(topic)
	defer resp.Unsubscribe(sub)
	go func() {
		if m, ok := <-sub.Channel(); ok {
			resp.Reply(m, "ok", false)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	m, err := req.RequestWait(ctx, req.NewMessage(topic, nil, false))
	return err == nil && m.Payload == "ok"
}

func checkRequestTimeout() bool {
	c := bus.NewBus(4).NewConnection("t")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.RequestWait(ctx, c.NewMessage(bus.T("nobody"), nil, false))
	return err != nil
}

// --- main --------------------------------------------------------------------

func main() {
	time.Sleep(250 * time.Millisecond)

	led := machine.LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})
	led.High()

	checks := []struct {
		name string
		fn   func() bool
	}{
		{"retained_config", checkRetainedConfig},
		{"env_ordering", checkEnvOrdering},
		{"no_match", checkNoMatch},
		{"drop_oldest", checkDropOldest},
		{"request_reply", checkRequestReply},
		{"request_timeout", checkRequestTimeout},
	}

	failed := 0
	log.Info("bus self-test starting")
	for _, c := range checks {
		if c.fn() {
			log.Info("PASS", "check", c.name)
		} else {
			log.Error("FAIL", "check", c.name)
			failed++
		}
		time.Sleep(10 * time.Millisecond)
	}
	log.Info("done", "passed", len(checks)-failed, "failed", failed)

	for {
		led.High()
		if failed == 0 {
			time.Sleep(2 * time.Second)
			continue
		}
		time.Sleep(250 * time.Millisecond)
		led.Low()
		time.Sleep(250 * time.Millisecond)
	}
}
