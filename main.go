package main

import (
	"context"
	"runtime"
	"time"

	"dhtcode-go/bus"
	"dhtcode-go/services/blinker"
	"dhtcode-go/services/climate"
	"dhtcode-go/services/config"
	"dhtcode-go/services/counter"
	"dhtcode-go/services/hal"
	"dhtcode-go/x/conv"
	"dhtcode-go/x/logx"
)

const memReportInterval = 10 * time.Second

var log = logx.New("main")

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(bootDelay)
	if w, ok := hal.Console(); ok {
		logx.SetOutput(w)
	}
	log.Info("boot", "setup_devices", len(hal.SelectedSetup().Devices))

	ctx, stop := rootContext()
	defer stop()

	b := bus.NewBus(8)
	go hal.Run(ctx, b.NewConnection("hal"))

	_ = blinker.New().Start(ctx, b.NewConnection("blinker"))
	_ = counter.New().Start(ctx, b.NewConnection("counter"))
	_ = climate.New().Start(ctx, b.NewConnection("climate"))

	cfgCtx := context.WithValue(ctx, config.CtxDeviceKey, config.DefaultDevice)
	config.NewConfigService().Start(cfgCtx, b.NewConnection("config"))

	tick := time.NewTicker(memReportInterval)
	defer tick.Stop()
	var m memWatch
	for {
		select {
		case <-ctx.Done():
			log.Info("shutdown")
			// Let HAL release its pins.
			time.Sleep(100 * time.Millisecond)
			return
		case <-tick.C:
			m.report()
		}
	}
}

// memWatch tracks the lowest free heap seen.
type memWatch struct {
	min uint64
	buf [20]byte
}

func (w *memWatch) report() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	free := ms.HeapSys - ms.HeapInuse
	if w.min == 0 || free < w.min {
		w.min = free
	}
	log.Info("Minimum free heap size: "+string(conv.Itoa(w.buf[:], int64(w.min)))+" bytes",
		"alloc", ms.Alloc, "mallocs", ms.Mallocs, "frees", ms.Frees)
}
