package blinker

import (
	"context"
	"testing"
	"time"

	"dhtcode-go/bus"
	"dhtcode-go/services/hal"
	"dhtcode-go/types"
)

func TestTogglesConfiguredLED(t *testing.T) {
	b := bus.NewBus(8)
	conn := b.NewConnection("test")
	conn.Publish(conn.NewMessage(topicConfigBlinker, types.BlinkerConfig{IntervalMs: 10, LED: "status"}, true))
	sub := conn.Subscribe(hal.LEDTopic("+", "control", "+"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = New().Start(ctx, b.NewConnection("blinker"))

	for i := 0; i < 3; i++ {
		select {
		case m := <-sub.Channel():
			if m.Topic.At(4) != "status" || m.Topic.At(6) != hal.VerbToggle {
				t.Fatalf("topic = %v", m.Topic)
			}
			if m.CanReply() {
				t.Fatal("toggle must not request a reply")
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("toggle %d not sent", i)
		}
	}
}

func TestDrivesHALLED(t *testing.T) {
	b := bus.NewBus(16)
	conn := b.NewConnection("test")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hal.Run(ctx, b.NewConnection("hal"))
	conn.Publish(conn.NewMessage(hal.ConfigTopic(), hal.SelectedSetup(), true))
	conn.Publish(conn.NewMessage(topicConfigBlinker, types.BlinkerConfig{IntervalMs: 20, LED: "led0"}, true))
	vals := conn.Subscribe(hal.LEDTopic("led0", "value"))

	_ = New().Start(ctx, b.NewConnection("blinker"))

	seen := map[bool]bool{}
	deadline := time.After(3 * time.Second)
	for !(seen[true] && seen[false]) {
		select {
		case m := <-vals.Channel():
			seen[m.Payload.(types.LEDValue).On] = true
		case <-deadline:
			t.Fatalf("LED never alternated: %v", seen)
		}
	}
}
