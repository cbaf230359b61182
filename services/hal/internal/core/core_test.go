package core

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"dhtcode-go/bus"
	"dhtcode-go/errcode"
	"dhtcode-go/types"
)

// ---- Test fakes ----

type testDev struct {
	id     string
	pub    EventEmitter
	ctrls  chan string
	closed atomic.Bool
}

func (d *testDev) ID() string { return d.id }
func (d *testDev) Capabilities() []CapabilitySpec {
	return []CapabilitySpec{{
		Kind: types.KindTemperature,
		Info: types.Info{SchemaVersion: 1, Driver: "testdev"},
	}}
}
func (d *testDev) Init(context.Context) error { return nil }
func (d *testDev) Close() error               { d.closed.Store(true); return nil }

func (d *testDev) Control(a CapAddr, verb string, payload any) (EnqueueResult, error) {
	select {
	case d.ctrls <- verb:
	default:
	}
	switch verb {
	case "read":
		d.pub.Emit(Event{Addr: a, Payload: types.TemperatureValue{DeciC: 215}})
		return EnqueueResult{OK: true}, nil
	case "fail":
		d.pub.Emit(Event{Addr: a, Err: string(errcode.Timeout)})
		return EnqueueResult{OK: true}, nil
	case "raw":
		d.pub.Emit(Event{Addr: a, IsEvent: true, EventTag: "raw", Payload: "frame"})
		return EnqueueResult{OK: true}, nil
	case "busy":
		return EnqueueResult{Error: errcode.Busy}, nil
	case "bad":
		return EnqueueResult{}, errcode.InvalidParams
	}
	return EnqueueResult{Error: errcode.Unsupported}, nil
}

var lastTestDev atomic.Pointer[testDev]

type testBuilder struct{}

func (testBuilder) Build(_ context.Context, in BuilderInput) (Device, error) {
	if in.Params == "explode" {
		return nil, errcode.PinInUse
	}
	d := &testDev{id: in.ID, pub: in.Res.Pub, ctrls: make(chan string, 16)}
	lastTestDev.Store(d)
	return d, nil
}

func init() { RegisterBuilder("core_testdev", testBuilder{}) }

func recvWithin[T any](t *testing.T, ch <-chan T, d time.Duration) (T, bool) {
	t.Helper()
	var zero T
	select {
	case v := <-ch:
		return v, true
	case <-time.After(d):
		return zero, false
	}
}

func startHAL(t *testing.T) (*bus.Connection, context.CancelFunc) {
	t.Helper()
	b := bus.NewBus(16)
	conn := b.NewConnection("test")
	h := NewHAL(b.NewConnection("hal"), Resources{})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	// hal/state is published only after HAL has subscribed to its inputs.
	st := conn.Subscribe(T("hal", "state"))
	defer conn.Unsubscribe(st)
	go h.Run(ctx)
	if _, ok := recvWithin(t, st.Channel(), time.Second); !ok {
		t.Fatal("HAL did not start")
	}
	return conn, cancel
}

func configure(t *testing.T, conn *bus.Connection, cfg types.HALConfig) {
	t.Helper()
	st := conn.Subscribe(T("hal", "state"))
	defer conn.Unsubscribe(st)
	conn.Publish(conn.NewMessage(topicConfigHAL(), cfg, true))
	deadline := time.After(time.Second)
	for {
		select {
		case m := <-st.Channel():
			if m.Payload.(types.HALState).Level == "ready" {
				return
			}
		case <-deadline:
			t.Fatal("HAL never became ready")
		}
	}
}

func request(t *testing.T, conn *bus.Connection, verb string, payload any) any {
	t.Helper()
	return requestCap(t, conn, "env", "temperature", "t0", verb, payload)
}

func requestCap(t *testing.T, conn *bus.Connection, d, k, n, verb string, payload any) any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	m := conn.NewMessage(T("hal", "cap", d, k, n, "control", verb), payload, false)
	rep, err := conn.RequestWait(ctx, m)
	if err != nil {
		t.Fatalf("%s: %v", verb, err)
	}
	return rep.Payload
}

func wantErrReply(t *testing.T, got any, code errcode.Code) {
	t.Helper()
	er, ok := got.(types.ErrorReply)
	if !ok || er.Error != string(code) {
		t.Fatalf("reply = %#v, want error %q", got, code)
	}
}

// ---- Tests ----

func TestControlBeforeConfigIsRejected(t *testing.T) {
	conn, _ := startHAL(t)
	wantErrReply(t, request(t, conn, "read", nil), errcode.HALNotReady)
}

func TestConfigRegistersCapabilities(t *testing.T) {
	conn, _ := startHAL(t)
	configure(t, conn, types.HALConfig{Devices: []types.HALDevice{{ID: "t0", Type: "core_testdev"}}})

	info := conn.Subscribe(T("hal", "cap", "env", "temperature", "t0", "info"))
	m, ok := recvWithin(t, info.Channel(), 200*time.Millisecond)
	if !ok || m.Payload.(types.Info).Driver != "testdev" {
		t.Fatalf("info = %+v", m)
	}
	st := conn.Subscribe(T("hal", "cap", "env", "temperature", "t0", "status"))
	m, ok = recvWithin(t, st.Channel(), 200*time.Millisecond)
	if !ok || m.Payload.(types.CapabilityStatus).Link != types.LinkDown {
		t.Fatalf("initial status = %+v", m)
	}
}

func TestControlRoutingAndTelemetry(t *testing.T) {
	conn, _ := startHAL(t)
	configure(t, conn, types.HALConfig{Devices: []types.HALDevice{{ID: "t0", Type: "core_testdev"}}})

	val := conn.Subscribe(T("hal", "cap", "env", "temperature", "t0", "value"))
	st := conn.Subscribe(T("hal", "cap", "env", "temperature", "t0", "status"))
	raw := conn.Subscribe(T("hal", "cap", "env", "temperature", "t0", "event", "raw"))
	recvWithin(t, st.Channel(), 200*time.Millisecond) // retained "down"

	if _, ok := request(t, conn, "read", nil).(types.OKReply); !ok {
		t.Fatal("read not acknowledged")
	}
	m, ok := recvWithin(t, val.Channel(), 200*time.Millisecond)
	if !ok || m.Payload.(types.TemperatureValue).DeciC != 215 || !m.Retained {
		t.Fatalf("value = %+v", m)
	}
	m, _ = recvWithin(t, st.Channel(), 200*time.Millisecond)
	if m.Payload.(types.CapabilityStatus).Link != types.LinkUp {
		t.Fatalf("status after value = %+v", m.Payload)
	}

	request(t, conn, "fail", nil)
	m, _ = recvWithin(t, st.Channel(), 200*time.Millisecond)
	if s := m.Payload.(types.CapabilityStatus); s.Link != types.LinkDegraded || s.Error != "timeout" {
		t.Fatalf("status after failure = %+v", s)
	}

	request(t, conn, "raw", nil)
	if m, ok := recvWithin(t, raw.Channel(), 200*time.Millisecond); !ok || m.Retained {
		t.Fatalf("raw event = %+v", m)
	}

	wantErrReply(t, request(t, conn, "busy", nil), errcode.Busy)
	wantErrReply(t, request(t, conn, "bad", nil), errcode.InvalidParams)
	wantErrReply(t, request(t, conn, "dance", nil), errcode.Unsupported)
	wantErrReply(t, requestCap(t, conn, "env", "temperature", "nope", "read", nil), errcode.UnknownCapability)
}

func TestBuildFailureDoesNotBlockOthers(t *testing.T) {
	conn, _ := startHAL(t)
	configure(t, conn, types.HALConfig{Devices: []types.HALDevice{
		{ID: "bad", Type: "core_testdev", Params: "explode"},
		{ID: "ghost", Type: "no_such_type"},
		{ID: "t0", Type: "core_testdev"},
	}})
	if _, ok := request(t, conn, "read", nil).(types.OKReply); !ok {
		t.Fatal("healthy device not reachable")
	}
	wantErrReply(t, requestCap(t, conn, "env", "temperature", "bad", "read", nil), errcode.UnknownCapability)
}

func TestPollStartStop(t *testing.T) {
	conn, _ := startHAL(t)
	configure(t, conn, types.HALConfig{Devices: []types.HALDevice{{ID: "t0", Type: "core_testdev"}}})
	d := lastTestDev.Load()

	wantErrReply(t, request(t, conn, VerbPollStart, types.PollStart{}), errcode.InvalidParams)
	wantErrReply(t, request(t, conn, VerbPollStart, "fast please"), errcode.InvalidPayload)

	if _, ok := request(t, conn, VerbPollStart, types.PollStart{Verb: "read", IntervalMs: 20}).(types.OKReply); !ok {
		t.Fatal("poll_start rejected")
	}
	for i := 0; i < 2; i++ {
		if v, ok := recvWithin(t, d.ctrls, 300*time.Millisecond); !ok || v != "read" {
			t.Fatalf("poll %d: %q, %v", i, v, ok)
		}
	}
	if _, ok := request(t, conn, VerbPollStop, types.PollStop{}).(types.OKReply); !ok {
		t.Fatal("poll_stop rejected")
	}
	time.Sleep(30 * time.Millisecond)
	for len(d.ctrls) > 0 {
		<-d.ctrls
	}
	if v, ok := recvWithin(t, d.ctrls, 80*time.Millisecond); ok {
		t.Fatalf("poll fired after stop: %q", v)
	}
}

func TestDeclarativePollers(t *testing.T) {
	conn, _ := startHAL(t)
	configure(t, conn, types.HALConfig{
		Devices: []types.HALDevice{{ID: "t0", Type: "core_testdev"}},
		Pollers: []types.PollSpec{{Kind: types.KindTemperature, Name: "t0", IntervalMs: 20}},
	})
	d := lastTestDev.Load()
	if v, ok := recvWithin(t, d.ctrls, 300*time.Millisecond); !ok || v != "read" {
		t.Fatalf("declarative poll: %q, %v", v, ok)
	}
}

func TestShutdownClosesDevices(t *testing.T) {
	conn, cancel := startHAL(t)
	configure(t, conn, types.HALConfig{Devices: []types.HALDevice{{ID: "t0", Type: "core_testdev"}}})
	d := lastTestDev.Load()

	st := conn.Subscribe(T("hal", "state"))
	recvWithin(t, st.Channel(), 200*time.Millisecond) // retained "ready"
	cancel()
	m, ok := recvWithin(t, st.Channel(), time.Second)
	if !ok || m.Payload.(types.HALState).Level != "stopped" {
		t.Fatalf("state = %+v", m)
	}
	if !d.closed.Load() {
		t.Fatal("device not closed on shutdown")
	}
}

func TestDuplicateBuilderPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	RegisterBuilder("core_testdev", testBuilder{})
}

func TestAs(t *testing.T) {
	v, code := As[types.LEDSet](types.LEDSet{On: true})
	if code != "" || !v.On {
		t.Fatal("value")
	}
	v, code = As[types.LEDSet](&types.LEDSet{On: true})
	if code != "" || !v.On {
		t.Fatal("pointer")
	}
	if _, code = As[types.LEDSet](nil); code != "" {
		t.Fatal("nil should be zero value")
	}
	if _, code = As[types.LEDSet](42); code != errcode.InvalidPayload {
		t.Fatal("wrong type accepted")
	}
	if !errors.Is(code, errcode.InvalidPayload) {
		t.Fatal("code is an error")
	}
}

func TestPollerFiresAndStops(t *testing.T) {
	out := make(chan PollReq, 4)
	p := NewPoller(out)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	a := CapAddr{Domain: "env", Kind: "temperature", Name: "x"}
	p.Upsert(a, "read", 15*time.Millisecond, 0)
	p.Upsert(a, "read", 15*time.Millisecond, 5*time.Millisecond) // update, not duplicate
	if p.Len() != 1 {
		t.Fatalf("Len = %d", p.Len())
	}
	r, ok := recvWithin(t, out, 200*time.Millisecond)
	if !ok || r.Addr != a || r.Verb != "read" || r.Every != 15*time.Millisecond {
		t.Fatalf("req = %+v, %v", r, ok)
	}
	if !p.Stop(a, "read") || p.Stop(a, "read") {
		t.Fatal("Stop should report existence once")
	}
	p.Upsert(a, "", time.Second, 0) // ignored
	p.Upsert(a, "read", 0, 0)       // ignored
	if p.Len() != 0 {
		t.Fatalf("invalid schedules armed: %d", p.Len())
	}
}
