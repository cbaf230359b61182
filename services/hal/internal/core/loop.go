package core

import (
	"context"

	"dhtcode-go/bus"
	"dhtcode-go/errcode"
	"dhtcode-go/types"
	"dhtcode-go/x/logx"
	"dhtcode-go/x/strx"
	"dhtcode-go/x/timex"
)

const (
	eventQueueLen = 16
	pollQueueLen  = 4

	VerbPollStart = "poll_start"
	VerbPollStop  = "poll_stop"
)

var log = logx.New("hal")

// HAL owns device lifecycle, routes capability controls and publishes device
// telemetry. Everything except the poller runs on the Run goroutine.
type HAL struct {
	conn *bus.Connection
	res  Resources

	dev      map[string]Device  // devID -> device
	capIndex map[CapAddr]string // capability -> devID
	order    []string           // build order, for Close

	cfgSub  *bus.Subscription
	ctrlSub *bus.Subscription

	evCh   chan Event
	pollCh chan PollReq
	poller *Poller
}

func NewHAL(conn *bus.Connection, res Resources) *HAL {
	h := &HAL{
		conn:     conn,
		res:      res,
		dev:      map[string]Device{},
		capIndex: map[CapAddr]string{},
		evCh:     make(chan Event, eventQueueLen),
		pollCh:   make(chan PollReq, pollQueueLen),
	}
	if h.res.Clock == nil {
		h.res.Clock = NewMonoClock()
	}
	h.res.Pub = h
	h.poller = NewPoller(h.pollCh)
	return h
}

func (h *HAL) Run(ctx context.Context) {
	h.cfgSub = h.conn.Subscribe(topicConfigHAL())
	h.ctrlSub = h.conn.Subscribe(ctrlWildcard())
	defer h.conn.Unsubscribe(h.cfgSub)
	defer h.conn.Unsubscribe(h.ctrlSub)

	go h.poller.Run(ctx)
	h.pubHALState("idle", "awaiting_config")

	ready := false
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			h.pubHALState("stopped", "context_cancelled")
			return
		case msg := <-h.cfgSub.Channel():
			cfg, code := As[types.HALConfig](msg.Payload)
			if code != "" {
				log.Warn("ignoring config", "err", code)
				continue
			}
			// Additive: devices that already exist are left alone.
			h.applyConfig(ctx, cfg)
			if !ready {
				ready = true
				h.pubHALState("ready", "")
			}
		case m := <-h.ctrlSub.Channel():
			if !ready {
				h.replyErr(m, errcode.HALNotReady)
				continue
			}
			h.handleControl(m)
		case ev := <-h.evCh:
			h.handleEvent(ev)
		case pr := <-h.pollCh:
			h.handlePoll(pr)
		}
	}
}

func (h *HAL) applyConfig(ctx context.Context, cfg types.HALConfig) {
	for _, dc := range cfg.Devices {
		if _, exists := h.dev[dc.ID]; exists {
			continue
		}
		b, ok := lookupBuilder(dc.Type)
		if !ok {
			log.Warn("no builder", "type", dc.Type, "id", dc.ID)
			continue
		}
		dev, err := b.Build(ctx, BuilderInput{ID: dc.ID, Type: dc.Type, Params: dc.Params, Res: h.res})
		if err != nil {
			log.Error("build failed", "id", dc.ID, "err", errcode.Of(err))
			continue
		}
		if err := dev.Init(ctx); err != nil {
			log.Error("init failed", "id", dc.ID, "err", errcode.Of(err))
			_ = dev.Close()
			continue
		}
		h.dev[dev.ID()] = dev
		h.order = append(h.order, dev.ID())

		// Register capabilities, publish retained info + initial status:down
		for _, cs := range dev.Capabilities() {
			k := string(cs.Kind)
			a := CapAddr{
				Domain: strx.Coalesce(cs.Domain, defaultDomainFor(k)),
				Kind:   k,
				Name:   strx.Coalesce(cs.Name, dev.ID()),
			}
			h.capIndex[a] = dev.ID()
			h.conn.Publish(h.conn.NewMessage(capInfo(a), cs.Info, true))
			h.conn.Publish(h.conn.NewMessage(
				capStatus(a),
				types.CapabilityStatus{Link: types.LinkDown, TSms: timex.NowMs()},
				true,
			))
		}
		log.Info("device up", "id", dc.ID, "type", dc.Type)
	}

	for _, ps := range cfg.Pollers {
		a := CapAddr{Domain: strx.Coalesce(ps.Domain, defaultDomainFor(string(ps.Kind))), Kind: string(ps.Kind), Name: ps.Name}
		if _, ok := h.capIndex[a]; !ok {
			log.Warn("poller for unknown capability", "cap", capBase(a).String())
			continue
		}
		h.poller.Upsert(a, strx.Coalesce(ps.Verb, "read"), timex.Ms(ps.IntervalMs), timex.Ms(uint32(ps.JitterMs)))
	}
}

func (h *HAL) lookup(a CapAddr) Device {
	id, ok := h.capIndex[a]
	if !ok {
		return nil
	}
	return h.dev[id]
}

func (h *HAL) handleControl(msg *bus.Message) {
	// hal/cap/<domain>/<kind>/<name>/control/<verb>
	if msg.Topic.Len() != 7 {
		h.replyErr(msg, errcode.InvalidTopic)
		return
	}
	domain, _ := msg.Topic.At(2).(string)
	kind, _ := msg.Topic.At(3).(string)
	name, _ := msg.Topic.At(4).(string)
	verb, _ := msg.Topic.At(6).(string)
	a := CapAddr{Domain: domain, Kind: kind, Name: name}

	dev := h.lookup(a)
	if dev == nil {
		h.replyErr(msg, errcode.UnknownCapability)
		return
	}

	switch verb {
	case VerbPollStart:
		p, code := As[types.PollStart](msg.Payload)
		if code != "" {
			h.replyErr(msg, code)
			return
		}
		if p.IntervalMs == 0 {
			h.replyErr(msg, errcode.InvalidParams)
			return
		}
		h.poller.Upsert(a, strx.Coalesce(p.Verb, "read"), timex.Ms(p.IntervalMs), timex.Ms(uint32(p.JitterMs)))
		h.replyOK(msg)
		return
	case VerbPollStop:
		p, code := As[types.PollStop](msg.Payload)
		if code != "" {
			h.replyErr(msg, code)
			return
		}
		h.poller.Stop(a, strx.Coalesce(p.Verb, "read"))
		h.replyOK(msg)
		return
	}

	res, err := dev.Control(a, verb, msg.Payload)
	if err != nil {
		h.replyFromError(msg, err)
		return
	}
	if res.OK {
		h.replyOK(msg)
		return
	}
	h.replyErr(msg, strx.Coalesce(res.Error, errcode.Busy))
}

func (h *HAL) handlePoll(pr PollReq) {
	dev := h.lookup(pr.Addr)
	if dev == nil {
		h.poller.Stop(pr.Addr, pr.Verb)
		return
	}
	res, err := dev.Control(pr.Addr, pr.Verb, nil)
	if err != nil || !res.OK {
		log.Debug("poll not accepted", "cap", capBase(pr.Addr).String(), "err", strx.Coalesce(res.Error, errcode.Of(err)))
	}
}

func (h *HAL) handleEvent(ev Event) {
	a := ev.Addr
	if ev.TSms == 0 {
		ev.TSms = timex.NowMs()
	}

	// 1) Error → retained status:degraded; no value published.
	if ev.Err != "" {
		h.conn.Publish(h.conn.NewMessage(
			capStatus(a),
			types.CapabilityStatus{Link: types.LinkDegraded, TSms: ev.TSms, Error: ev.Err},
			true,
		))
		return
	}

	// 2) Diagnostic events do not change the link state.
	if ev.IsEvent {
		h.conn.Publish(h.conn.NewMessage(capEvent(a, ev.EventTag), ev.Payload, false))
		return
	}

	// 3) Value → retained value + status:up
	h.conn.Publish(h.conn.NewMessage(capValue(a), ev.Payload, true))
	h.conn.Publish(h.conn.NewMessage(
		capStatus(a),
		types.CapabilityStatus{Link: types.LinkUp, TSms: ev.TSms},
		true,
	))
}

func (h *HAL) closeAll() {
	for i := len(h.order) - 1; i >= 0; i-- {
		id := h.order[i]
		if err := h.dev[id].Close(); err != nil {
			log.Warn("close failed", "id", id, "err", err)
		}
	}
}

func (h *HAL) pubHALState(level, status string) {
	h.conn.Publish(h.conn.NewMessage(
		topicHALState(),
		types.HALState{Level: level, Status: status, TSms: timex.NowMs()},
		true,
	))
}

func defaultDomainFor(kind string) string {
	switch kind {
	case "temperature", "humidity":
		return "env"
	default:
		return "io"
	}
}

// ---- HAL as EventEmitter (enqueue to single publisher) ----

func (h *HAL) Emit(ev Event) bool {
	select {
	case h.evCh <- ev:
		return true
	default:
		return false
	}
}
