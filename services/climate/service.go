// Package climate is the DHT task: it keeps the sensor polled through HAL,
// logs every sample and publishes a retained app/climate/report.
//
// A sample completes when the sensor's temperature status changes, since the
// device publishes humidity before temperature for each read. A degraded
// status yields a report whose values are the last good ones, marked stale.
package climate

import (
	"context"
	"time"

	"dhtcode-go/bus"
	"dhtcode-go/drivers/dht22"
	"dhtcode-go/services/hal"
	"dhtcode-go/types"
	"dhtcode-go/x/conv"
	"dhtcode-go/x/logx"
	"dhtcode-go/x/mathx"
	"dhtcode-go/x/strx"
	"dhtcode-go/x/timex"
)

const (
	defaultInterval = 3 * time.Second
	defaultSensor   = "dht0"
	controlTimeout  = time.Second
)

var (
	topicConfigClimate = bus.T("config", "climate")
	topicReport        = bus.T("app", "climate", "report")

	log = logx.New("climate")
)

type Service struct{}

func New() *Service { return &Service{} }

// task is the loop-local state.
type task struct {
	conn     *bus.Connection
	sensor   string
	interval time.Duration
	halReady bool

	capSub *bus.Subscription

	hum    uint16
	humTS  int64
	tmp    int16
	lastTS int64 // status timestamp of the last completed sample
	report types.ClimateReport
	fmtBuf [8]byte
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigClimate)
	defer conn.Unsubscribe(cfgSub)
	stateSub := conn.Subscribe(hal.StateTopic())
	defer conn.Unsubscribe(stateSub)

	t := &task{conn: conn, sensor: defaultSensor, interval: defaultInterval}
	t.watch(defaultSensor)
	defer func() { t.conn.Unsubscribe(t.capSub) }()

	log.Info("Starting DHT Task")
	for {
		select {
		case <-ctx.Done():
			log.Info("stopping")
			return
		case msg := <-stateSub.Channel():
			st, ok := msg.Payload.(types.HALState)
			if !ok {
				continue
			}
			was := t.halReady
			t.halReady = st.Level == "ready"
			if t.halReady && !was {
				t.startPolling(ctx)
			}
		case msg := <-cfgSub.Channel():
			cfg, ok := msg.Payload.(types.ClimateConfig)
			if !ok || cfg.IntervalMs == 0 {
				log.Warn("ignoring config", "payload", msg.Payload)
				continue
			}
			t.applyConfig(ctx, cfg)
		case msg, ok := <-t.capSub.Channel():
			if ok {
				t.handleCap(msg)
			}
		}
	}
}

func (t *task) applyConfig(ctx context.Context, cfg types.ClimateConfig) {
	iv := mathx.AtLeast(timex.Ms(cfg.IntervalMs), dht22.MinInterval)
	if iv != timex.Ms(cfg.IntervalMs) {
		log.Warn("interval raised to sensor minimum", "ms", iv.Milliseconds())
	}
	sensor := strx.Coalesce(cfg.Sensor, defaultSensor)
	if sensor != t.sensor {
		if t.halReady {
			t.control(ctx, t.sensor, hal.VerbPollStop, types.PollStop{Verb: hal.VerbRead})
		}
		t.watch(sensor)
	}
	t.interval = iv
	if t.halReady {
		t.startPolling(ctx)
	}
}

// watch replaces the capability subscription with one covering every leaf of
// both env capabilities of sensor, so values and statuses arrive in order.
func (t *task) watch(sensor string) {
	if t.capSub != nil {
		t.conn.Unsubscribe(t.capSub)
	}
	t.sensor = sensor
	t.hum, t.humTS, t.lastTS = 0, 0, 0
	t.report = types.ClimateReport{}
	t.capSub = t.conn.Subscribe(hal.CapTopic("env", "+", sensor, "+"))
}

func (t *task) startPolling(ctx context.Context) {
	t.control(ctx, t.sensor, hal.VerbRead, nil)
	t.control(ctx, t.sensor, hal.VerbPollStart, types.PollStart{
		Verb:       hal.VerbRead,
		IntervalMs: uint32(t.interval / time.Millisecond),
	})
}

// control sends a request without blocking the loop; failures are logged.
func (t *task) control(ctx context.Context, sensor, verb string, payload any) {
	msg := t.conn.NewMessage(hal.EnvTopic(types.KindTemperature, sensor, "control", verb), payload, false)
	go func() {
		rctx, cancel := context.WithTimeout(ctx, controlTimeout)
		defer cancel()
		reply, err := t.conn.RequestWait(rctx, msg)
		if err != nil {
			log.Warn("no reply", "verb", verb, "err", err)
			return
		}
		if er, ok := reply.Payload.(types.ErrorReply); ok {
			log.Warn("control refused", "verb", verb, "err", er.Error)
		}
	}()
}

func (t *task) handleCap(msg *bus.Message) {
	if msg.Topic.Len() != 6 {
		return
	}
	kind, _ := msg.Topic.At(3).(string)
	leaf, _ := msg.Topic.At(5).(string)

	switch p := msg.Payload.(type) {
	case types.HumidityValue:
		t.hum = p.DeciRH
	case types.TemperatureValue:
		t.tmp = p.DeciC
	case types.CapabilityStatus:
		if leaf != "status" {
			return
		}
		if kind == string(types.KindHumidity) {
			if p.Link == types.LinkUp {
				t.humTS = p.TSms
			}
			return
		}
		if kind == string(types.KindTemperature) {
			t.completeSample(p)
		}
	}
}

func (t *task) completeSample(st types.CapabilityStatus) {
	if st.Link == types.LinkDown || st.TSms <= t.lastTS {
		return
	}
	t.lastTS = st.TSms
	r := &t.report
	r.TSms = st.TSms

	log.Info("=== Reading DHT ===")
	switch st.Link {
	case types.LinkUp:
		if t.humTS != st.TSms {
			log.Warn("humidity not from this read", "hum_ts", t.humTS, "ts", st.TSms)
		}
		r.DeciC, r.DeciRH = t.tmp, t.hum
		r.Outcome = dht22.OutcomeSuccess.String()
		r.Stale, r.Valid, r.Failures = false, true, 0
		log.Info("Hum " + t.tenths(int16(r.DeciRH)))
		log.Info("Tmp " + t.tenths(r.DeciC))
	default:
		r.Outcome = st.Error
		r.Stale = true
		r.Failures++
		if r.Valid {
			log.Warn(st.Error, "failures", r.Failures, "hum", t.tenths(int16(r.DeciRH)), "tmp", t.tenths(r.DeciC), "stale", true)
		} else {
			log.Warn(st.Error, "failures", r.Failures)
		}
	}
	t.conn.Publish(t.conn.NewMessage(topicReport, *r, true))
}

func (t *task) tenths(v int16) string { return string(conv.Tenths(t.fmtBuf[:], v)) }

// Start the climate service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}
