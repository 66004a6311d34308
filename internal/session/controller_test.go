package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const waitTimeout = 2 * time.Second

type emission struct {
	event string
	body  string
}

// fakeSocket records handlers so tests can play the server.
type fakeSocket struct {
	mu           sync.Mutex
	handlers     map[string]func([]json.RawMessage)
	onConnect    func()
	onDisconnect func(string)
	closed       bool
	emitErr      error
	closeErr     error
	emitted      chan emission
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{
		handlers: make(map[string]func([]json.RawMessage)),
		emitted:  make(chan emission, 8),
	}
}

func (s *fakeSocket) On(event string, fn func([]json.RawMessage)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[event] = fn
}

func (s *fakeSocket) OnConnect(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onConnect = fn
}

func (s *fakeSocket) OnDisconnect(fn func(string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDisconnect = fn
}

func (s *fakeSocket) Open(context.Context) {}

func (s *fakeSocket) Emit(event string, args ...any) error {
	s.mu.Lock()
	err := s.emitErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	body, _ := json.Marshal(args[0])
	s.emitted <- emission{event: event, body: string(body)}
	return nil
}

func (s *fakeSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return s.closeErr
}

func (s *fakeSocket) connect() {
	s.mu.Lock()
	fn := s.onConnect
	s.mu.Unlock()
	fn()
}

func (s *fakeSocket) disconnect(reason string) {
	s.mu.Lock()
	fn := s.onDisconnect
	s.mu.Unlock()
	fn(reason)
}

func (s *fakeSocket) push(event, payload string) {
	s.mu.Lock()
	fn := s.handlers[event]
	s.mu.Unlock()
	fn([]json.RawMessage{json.RawMessage(payload)})
}

func (s *fakeSocket) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type recordingNotifier struct {
	lines  chan string
	mu     sync.Mutex
	states []State
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{lines: make(chan string, 64)}
}

func (n *recordingNotifier) Notify(line string) { n.lines <- line }

func (n *recordingNotifier) StateChanged(s State, _ int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.states = append(n.states, s)
}

func (n *recordingNotifier) sawState(s State) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, st := range n.states {
		if st == s {
			return true
		}
	}
	return false
}

// waitLine consumes lines until want shows up.
func (n *recordingNotifier) waitLine(t *testing.T, want string) {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case got := <-n.lines:
			if got == want {
				return
			}
		case <-deadline:
			t.Fatalf("line %q never notified", want)
		}
	}
}

type harness struct {
	ctrl    *Controller
	notify  *recordingNotifier
	sockets chan *fakeSocket
	cancel  context.CancelFunc
}

func newHarness(t *testing.T, configure ...func(*Options)) *harness {
	t.Helper()
	h := &harness{
		notify:  newRecordingNotifier(),
		sockets: make(chan *fakeSocket, 4),
	}
	opts := Options{
		NewSocket: func() (Socket, error) {
			s := newFakeSocket()
			h.sockets <- s
			return s, nil
		},
		Notifier: h.notify,
	}
	for _, fn := range configure {
		fn(&opts)
	}
	ctrl, err := New(opts)
	require.NoError(t, err)
	h.ctrl = ctrl

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	require.NoError(t, ctrl.Connect(ctx))

	done := make(chan struct{})
	go func() {
		defer close(done)
		ctrl.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h
}

func (h *harness) socket(t *testing.T) *fakeSocket {
	t.Helper()
	select {
	case s := <-h.sockets:
		return s
	case <-time.After(waitTimeout):
		t.Fatal("no socket created")
		return nil
	}
}

func (h *harness) prompt(t *testing.T) PromptRequest {
	t.Helper()
	select {
	case req := <-h.ctrl.Prompts():
		return req
	case <-time.After(waitTimeout):
		t.Fatal("no prompt opened")
		return PromptRequest{}
	}
}

func waitEmission(t *testing.T, s *fakeSocket) emission {
	t.Helper()
	select {
	case e := <-s.emitted:
		return e
	case <-time.After(waitTimeout):
		t.Fatal("nothing emitted")
		return emission{}
	}
}

func TestNewValidatesOptions(t *testing.T) {
	_, err := New(Options{Notifier: newRecordingNotifier()})
	assert.Error(t, err)

	_, err = New(Options{NewSocket: func() (Socket, error) { return newFakeSocket(), nil }})
	assert.Error(t, err)
}

func TestControllerRedemptionApproved(t *testing.T) {
	h := newHarness(t)
	sock := h.socket(t)
	h.notify.waitLine(t, "searching for dealyze...")

	sock.connect()
	h.notify.waitLine(t, "connected")

	sock.push("order", `{"order":{"discounts":[{"name":"Free Coffee","skus":["cof-1"]}]}}`)
	h.notify.waitLine(t, "order received with Free Coffee")

	req := h.prompt(t)
	assert.Equal(t, PromptRedemption, req.Kind)
	assert.Equal(t, "approve the redemption of Free Coffee? [yes/no/cancel]: ", req.Question)
	assert.Eventually(t, func() bool { return h.ctrl.State() == StateAwaitingPrompt }, waitTimeout, 5*time.Millisecond)

	req.Answer("Yes")
	e := waitEmission(t, sock)
	assert.Equal(t, "order", e.event)
	assert.JSONEq(t, `{
		"order": {
			"discounts": [{"name":"Free Coffee","skus":["cof-1"]}],
			"items": ["Free Coffee", ["cof-1"]],
			"total": 0
		},
		"employee": {"code":"123456","firstName":"Bob","lastName":"Johnson","emailAddress":"bob@dealyze.com"}
	}`, e.body)
	h.notify.waitLine(t, "approved redemption")
	assert.Eventually(t, func() bool { return h.ctrl.State() == StateConnected }, waitTimeout, 5*time.Millisecond)
	assert.True(t, h.notify.sawState(StateAwaitingPrompt))
}

func TestControllerBillPay(t *testing.T) {
	h := newHarness(t)
	sock := h.socket(t)
	sock.connect()

	sock.push("customer", `{"customer":{"phoneNumber":"5551234"}}`)
	h.notify.waitLine(t, "customer signed in with phone number 5551234")

	req := h.prompt(t)
	assert.Equal(t, PromptBillPay, req.Kind)
	assert.Equal(t, BillPayQuestion, req.Question)
	req.Answer("3")

	e := waitEmission(t, sock)
	assert.JSONEq(t, `{"order":{"items":[{"name":"Bill Pay","skus":["abc123"]}]},
		"employee":{"code":"123456","firstName":"Bob","lastName":"Johnson","emailAddress":"bob@dealyze.com"}}`, e.body)
	h.notify.waitLine(t, "3 bills paid")
}

func TestControllerOrderWithoutDiscountsNoPrompt(t *testing.T) {
	h := newHarness(t)
	sock := h.socket(t)
	sock.connect()
	h.notify.waitLine(t, "connected")

	sock.push("order", `{"order":{"discounts":[]}}`)
	sock.push("order", `{"order":{}}`)

	select {
	case req := <-h.ctrl.Prompts():
		t.Fatalf("unexpected prompt %q", req.Question)
	case <-time.After(100 * time.Millisecond):
	}
	assert.Empty(t, sock.emitted)
}

func TestControllerTransactionsQueue(t *testing.T) {
	h := newHarness(t)
	sock := h.socket(t)
	sock.connect()

	sock.push("customer", `{"customer":{"phoneNumber":"1"}}`)
	sock.push("order", `{"order":{"discounts":[{"name":"Free Coffee"}]}}`)

	first := h.prompt(t)
	assert.Equal(t, PromptBillPay, first.Kind)

	// Intake continues while the first prompt is open.
	sock.disconnect("transport close")
	h.notify.waitLine(t, "disconnected transport close")
	assert.Eventually(t, func() bool { return h.ctrl.State() == StateDisconnected }, waitTimeout, 5*time.Millisecond)
	sock.connect()
	h.notify.waitLine(t, "connected")

	first.Answer("cancel")
	h.notify.waitLine(t, "bill payment cancelled")

	second := h.prompt(t)
	assert.Equal(t, PromptRedemption, second.Kind)
	second.Answer("cancel")
	assert.Empty(t, sock.emitted)
}

func TestControllerReconnectsOnServerDisconnect(t *testing.T) {
	h := newHarness(t)
	first := h.socket(t)
	first.connect()
	h.notify.waitLine(t, "connected")

	first.disconnect("io server disconnect")
	h.notify.waitLine(t, "disconnected io server disconnect")

	second := h.socket(t)
	assert.True(t, first.isClosed())
	h.notify.waitLine(t, "searching for dealyze...")

	// Events from the replaced socket are ignored.
	first.push("customer", `{"customer":{"phoneNumber":"1"}}`)
	second.connect()
	h.notify.waitLine(t, "connected")
	select {
	case req := <-h.ctrl.Prompts():
		t.Fatalf("prompt from stale socket: %q", req.Question)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestControllerNoReconnectOnOtherReasons(t *testing.T) {
	h := newHarness(t)
	sock := h.socket(t)
	sock.connect()

	for _, reason := range []string{"transport close", "ping timeout", "transport error", "io client disconnect"} {
		sock.disconnect(reason)
		h.notify.waitLine(t, "disconnected "+reason)
	}
	select {
	case <-h.sockets:
		t.Fatal("controller reconnected on a client-side reason")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestControllerEmitFailureReported(t *testing.T) {
	h := newHarness(t)
	sock := h.socket(t)
	sock.connect()
	sock.mu.Lock()
	sock.emitErr = errors.New("not connected")
	sock.mu.Unlock()

	sock.push("customer", `{"customer":{"phoneNumber":"1"}}`)
	h.prompt(t).Answer("2")
	h.notify.waitLine(t, "order: response not sent: not connected")
}

func TestControllerStringPayloads(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.StringPayloads = true })
	sock := h.socket(t)
	sock.connect()

	sock.push("order", `{"order":{"discounts":[{"name":"Free Coffee","skus":["cof-1"]},{"name":"Free Bagel"}]}}`)
	h.prompt(t).Answer("no")
	e := waitEmission(t, sock)
	var text string
	require.NoError(t, json.Unmarshal([]byte(e.body), &text), "redemption answers go out as a string")
	assert.JSONEq(t, `{"discounts":[{"name":"Free Bagel"}]}`, text)

	sock.push("customer", `{"customer":{"phoneNumber":"1"}}`)
	h.prompt(t).Answer("1")
	e = waitEmission(t, sock)
	assert.True(t, strings.HasPrefix(e.body, "{"), "bill pay stays an object: %s", e.body)
}

func TestControllerLogsReplacedSocketCloseError(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	h := newHarness(t, func(o *Options) { o.Logger = zap.New(core) })
	first := h.socket(t)
	first.mu.Lock()
	first.closeErr = errors.New("already gone")
	first.mu.Unlock()
	first.connect()

	first.disconnect("io server disconnect")
	h.socket(t)
	assert.Eventually(t, func() bool {
		return logs.FilterMessage("close replaced socket").Len() == 1
	}, waitTimeout, 5*time.Millisecond)
}
