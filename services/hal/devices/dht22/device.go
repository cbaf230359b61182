// Package dht22dev exposes a DHT22 as two capabilities sharing one sensor:
// hal/cap/env/temperature/<name> and hal/cap/env/humidity/<name>.
//
// Reads are executed by a per-device worker so the HAL loop never waits on
// the bus. The worker spaces transactions by at least dht22.MinInterval and
// backs off further while the sensor keeps failing.
package dht22dev

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"dhtcode-go/drivers/dht22"
	"dhtcode-go/errcode"
	"dhtcode-go/services/hal/internal/core"
	"dhtcode-go/types"
	"dhtcode-go/x/logx"
	"dhtcode-go/x/mathx"
)

const (
	backoffStep = 500 * time.Millisecond
	backoffMax  = 30 * time.Second
)

var log = logx.New("dht22")

// Sensor is the part of the driver the worker uses.
type Sensor interface {
	Read() (dht22.Reading, error)
}

type Device struct {
	id   string
	pin  int
	aTmp core.CapAddr
	aHum core.CapAddr
	res  core.Resources
	drv  Sensor

	reqCh chan struct{}
	stop  chan struct{}
	done  chan struct{}
	once  sync.Once
	alive atomic.Bool

	// Owned by the worker only.
	last     time.Time
	failures int

	// Injectable for tests.
	now   func() time.Time
	sleep func(stop <-chan struct{}, d time.Duration) bool
}

func New(id string, pin int, drv Sensor, res core.Resources) *Device {
	return &Device{
		id:    id,
		pin:   pin,
		aTmp:  core.CapAddr{Domain: "env", Kind: string(types.KindTemperature), Name: id},
		aHum:  core.CapAddr{Domain: "env", Kind: string(types.KindHumidity), Name: id},
		res:   res,
		drv:   drv,
		reqCh: make(chan struct{}, 1),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
		now:   time.Now,
		sleep: sleepOrStop,
	}
}

// ---- core.Device ----

func (d *Device) ID() string { return d.id }

func (d *Device) Capabilities() []core.CapabilitySpec {
	info := types.Info{
		SchemaVersion: 1,
		Driver:        "dht22",
		Detail: types.DHT22Info{
			Pin:           d.pin,
			Sensor:        "dht22",
			MinIntervalMs: uint32(dht22.MinInterval / time.Millisecond),
		},
	}
	return []core.CapabilitySpec{
		{Domain: d.aTmp.Domain, Kind: types.KindTemperature, Name: d.aTmp.Name, Info: info},
		{Domain: d.aHum.Domain, Kind: types.KindHumidity, Name: d.aHum.Name, Info: info},
	}
}

func (d *Device) Init(ctx context.Context) error {
	d.alive.Store(true)
	go d.worker(ctx)
	return nil
}

// Control accepts "read" on either capability. One read may be pending while
// another runs; anything beyond that is refused with busy.
func (d *Device) Control(_ core.CapAddr, verb string, _ any) (core.EnqueueResult, error) {
	if verb != "read" {
		return core.EnqueueResult{Error: errcode.Unsupported}, nil
	}
	select {
	case d.reqCh <- struct{}{}:
		return core.EnqueueResult{OK: true}, nil
	default:
		return core.EnqueueResult{Error: errcode.Busy}, nil
	}
}

func (d *Device) Close() error {
	d.once.Do(func() { close(d.stop) })
	if d.alive.Load() {
		<-d.done
	}
	d.res.Reg.ReleasePin(d.id, d.pin)
	return nil
}

// ---- worker ----

func (d *Device) worker(ctx context.Context) {
	defer close(d.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stop:
			return
		case <-d.reqCh:
		}
		if wait := d.nextAllowed().Sub(d.now()); wait > 0 {
			if !d.sleep(d.stop, wait) {
				return
			}
		}
		d.readOnce()
	}
}

// spacing is MinInterval after a success, growing by backoffStep per
// consecutive failure up to backoffMax.
func (d *Device) spacing() time.Duration {
	return mathx.Backoff(dht22.MinInterval, backoffStep, d.failures, backoffMax)
}

func (d *Device) nextAllowed() time.Time {
	if d.last.IsZero() {
		return d.last
	}
	return d.last.Add(d.spacing())
}

func (d *Device) readOnce() {
	r, err := d.drv.Read()
	d.last = d.now()
	ts := d.last.UnixMilli()

	if err != nil {
		d.failures++
		code := string(errcode.Of(err))
		log.Warn("read failed", "id", d.id, "err", code, "failures", d.failures)

		var ce *dht22.ChecksumError
		if errors.As(err, &ce) {
			raw := ce.Raw()
			d.emit(core.Event{
				Addr:     d.aTmp,
				IsEvent:  true,
				EventTag: "raw",
				TSms:     ts,
				Payload: types.DHT22RawFrame{
					Frame:  ce.Frame,
					Want:   ce.Frame.Sum(),
					DeciC:  raw.TemperatureTenths,
					DeciRH: raw.HumidityTenths,
				},
			})
		}
		// Humidity first: consumers complete a sample on temperature.
		d.emit(core.Event{Addr: d.aHum, TSms: ts, Err: code})
		d.emit(core.Event{Addr: d.aTmp, TSms: ts, Err: code})
		return
	}

	d.failures = 0
	d.emit(core.Event{Addr: d.aHum, TSms: ts, Payload: types.HumidityValue{DeciRH: r.HumidityTenths}})
	d.emit(core.Event{Addr: d.aTmp, TSms: ts, Payload: types.TemperatureValue{DeciC: r.TemperatureTenths}})
}

func (d *Device) emit(ev core.Event) {
	if !d.res.Pub.Emit(ev) {
		log.Warn("event dropped", "id", d.id, "kind", ev.Addr.Kind)
	}
}

func sleepOrStop(stop <-chan struct{}, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-stop:
		return false
	}
}
