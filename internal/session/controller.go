// Package session drives a Dealyze session: it owns the socket, turns
// server events into operator prompts and sends the operator's decisions
// back. Prompts are handed to a UI over a channel so event intake keeps
// running while the operator thinks.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dealyze/pos-demo/internal/dealyze"
	"go.uber.org/zap"
)

const (
	inboundBuffer = 64
	pendingBuffer = 32
)

// Socket is the transport the controller drives. socketio.Conn
// satisfies it.
type Socket interface {
	On(event string, fn func(args []json.RawMessage))
	OnConnect(fn func())
	OnDisconnect(fn func(reason string))
	Open(ctx context.Context)
	Emit(event string, args ...any) error
	Close() error
}

// SocketFactory creates a fresh, unopened socket for each connect.
type SocketFactory func() (Socket, error)

// Notifier receives operator-facing output. Methods are called from more
// than one goroutine.
type Notifier interface {
	Notify(line string)
	StateChanged(s State, queued int)
}

// Options configure a Controller.
type Options struct {
	NewSocket SocketFactory
	Notifier  Notifier
	Employee  dealyze.Employee
	Logger    *zap.Logger
	// StringPayloads sends redemption answers as JSON text in a string
	// argument, the encoding older Dealyze clients used.
	StringPayloads bool
}

type inbound struct {
	gen int
	ev  Inbound
}

type transaction struct {
	kind     PromptKind
	customer *dealyze.Customer
	order    *dealyze.Order
}

// Controller is the session controller.
type Controller struct {
	newSocket SocketFactory
	notify    Notifier
	employee  dealyze.Employee
	log       *zap.Logger
	asText    bool

	inbound chan inbound
	pending chan transaction
	prompts chan PromptRequest

	mu       sync.Mutex
	socket   Socket
	gen      int
	conn     State
	awaiting bool
	queued   int
}

// New creates a controller. Call Connect, then Run.
func New(opts Options) (*Controller, error) {
	if opts.NewSocket == nil {
		return nil, errors.New("session: socket factory is required")
	}
	if opts.Notifier == nil {
		return nil, errors.New("session: notifier is required")
	}
	if opts.Employee == (dealyze.Employee{}) {
		opts.Employee = dealyze.TestEmployee()
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		newSocket: opts.NewSocket,
		notify:    opts.Notifier,
		employee:  opts.Employee,
		log:       log,
		asText:    opts.StringPayloads,
		inbound:   make(chan inbound, inboundBuffer),
		pending:   make(chan transaction, pendingBuffer),
		prompts:   make(chan PromptRequest),
		conn:      StateDisconnected,
	}, nil
}

// Prompts delivers prompts for the UI to answer, one at a time.
func (c *Controller) Prompts() <-chan PromptRequest { return c.prompts }

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller) stateLocked() State {
	if c.conn == StateConnected && c.awaiting {
		return StateAwaitingPrompt
	}
	return c.conn
}

// Connect replaces the current socket with a new one and opens it.
func (c *Controller) Connect(ctx context.Context) error {
	sock, err := c.newSocket()
	if err != nil {
		return err
	}

	c.mu.Lock()
	old := c.socket
	c.gen++
	gen := c.gen
	c.socket = sock
	c.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			c.log.Warn("close replaced socket", zap.Error(err))
		}
	}

	sock.OnConnect(func() { c.deliver(ctx, gen, Inbound{Kind: EventConnect}) })
	sock.OnDisconnect(func(reason string) {
		c.deliver(ctx, gen, Inbound{Kind: EventDisconnect, Reason: reason})
	})
	sock.On(dealyze.EventCustomer, func(args []json.RawMessage) {
		c.deliver(ctx, gen, Inbound{Kind: EventCustomer, Payload: firstArg(args)})
	})
	sock.On(dealyze.EventOrder, func(args []json.RawMessage) {
		c.deliver(ctx, gen, Inbound{Kind: EventOrder, Payload: firstArg(args)})
	})

	c.notify.Notify("searching for dealyze...")
	c.setConn(StateConnecting)
	sock.Open(ctx)
	return nil
}

func firstArg(args []json.RawMessage) json.RawMessage {
	if len(args) == 0 {
		return nil
	}
	return args[0]
}

// deliver is called from the socket's goroutine.
func (c *Controller) deliver(ctx context.Context, gen int, ev Inbound) {
	select {
	case c.inbound <- inbound{gen: gen, ev: ev}:
	case <-ctx.Done():
	}
}

// Run processes events and transactions until ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.work(ctx)
	}()
	defer func() {
		c.mu.Lock()
		sock := c.socket
		c.mu.Unlock()
		if sock != nil {
			if err := sock.Close(); err != nil {
				c.log.Warn("close socket", zap.Error(err))
			}
		}
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case in := <-c.inbound:
			c.handle(ctx, in)
		}
	}
}

func (c *Controller) handle(ctx context.Context, in inbound) {
	c.mu.Lock()
	stale := in.gen != c.gen
	c.mu.Unlock()
	if stale {
		c.log.Debug("dropping event from replaced socket", zap.Stringer("event", in.ev.Kind))
		return
	}

	res := Dispatch(in.ev)
	fields := []zap.Field{zap.Stringer("event", in.ev.Kind), zap.Stringer("action", res.Action)}
	if res.Err != nil {
		c.log.Warn("undecodable payload", append(fields, zap.Error(res.Err), zap.ByteString("payload", in.ev.Payload))...)
	} else {
		c.log.Debug("event", fields...)
	}
	if res.Line != "" {
		c.notify.Notify(res.Line)
	}

	switch in.ev.Kind {
	case EventConnect:
		c.setConn(StateConnected)
	case EventDisconnect:
		c.setConn(StateDisconnected)
	}

	switch res.Action {
	case ActionReconnect:
		if err := c.Connect(ctx); err != nil {
			c.log.Error("reconnect failed", zap.Error(err))
			c.notify.Notify("reconnect failed: " + err.Error())
		}
	case ActionPayBill:
		c.queue(transaction{kind: PromptBillPay, customer: res.Customer})
	case ActionRedeem:
		c.queue(transaction{kind: PromptRedemption, order: res.Order})
	}
}

func (c *Controller) queue(tx transaction) {
	c.mu.Lock()
	c.queued++
	c.mu.Unlock()
	select {
	case c.pending <- tx:
		c.publishState()
	default:
		c.mu.Lock()
		c.queued--
		c.mu.Unlock()
		c.log.Warn("transaction queue full", zap.Stringer("kind", tx.kind))
		c.notify.Notify("busy: " + tx.kind.String() + " dropped")
	}
}

func (c *Controller) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case tx := <-c.pending:
			c.mu.Lock()
			c.queued--
			c.mu.Unlock()
			c.transact(ctx, tx)
		}
	}
}

func (c *Controller) transact(ctx context.Context, tx transaction) {
	var question string
	switch tx.kind {
	case PromptRedemption:
		if tx.order == nil {
			return
		}
		question = RedemptionQuestion(tx.order)
	case PromptBillPay:
		if tx.customer == nil {
			return
		}
		question = BillPayQuestion
	}

	c.setAwaiting(true)
	answer, err := c.ask(ctx, tx.kind, question)
	c.setAwaiting(false)
	if err != nil {
		return
	}

	var out Outcome
	switch tx.kind {
	case PromptRedemption:
		out = Redeem(tx.order, answer, c.employee)
	case PromptBillPay:
		out = PayBill(tx.customer, answer, c.employee)
	}

	if out.Emit != nil {
		if err := c.emit(out.Emit); err != nil {
			c.log.Warn("response not sent", zap.Stringer("kind", tx.kind), zap.Error(err))
			c.notify.Notify(out.Emit.Event + ": response not sent: " + err.Error())
			return
		}
	}
	if out.Line != "" {
		c.notify.Notify(out.Line)
	}
}

func (c *Controller) ask(ctx context.Context, kind PromptKind, question string) (string, error) {
	req := NewPrompt(kind, question)
	log := c.log.With(zap.Stringer("prompt_id", req.ID), zap.Stringer("kind", kind))
	log.Debug("prompt opened")

	select {
	case c.prompts <- req:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	answer, err := req.Wait(ctx)
	if err != nil {
		return "", err
	}
	log.Debug("prompt answered", zap.String("answer", answer))
	return answer, nil
}

func (c *Controller) emit(out *Outbound) error {
	c.mu.Lock()
	sock := c.socket
	c.mu.Unlock()
	if sock == nil {
		return errors.New("no socket")
	}
	payload := out.Payload
	if c.asText && out.AsText {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s: %w", out.Event, err)
		}
		payload = string(b)
	}
	return sock.Emit(out.Event, payload)
}

func (c *Controller) setConn(s State) {
	c.mu.Lock()
	c.conn = s
	c.mu.Unlock()
	c.publishState()
}

func (c *Controller) setAwaiting(v bool) {
	c.mu.Lock()
	c.awaiting = v
	c.mu.Unlock()
	c.publishState()
}

func (c *Controller) publishState() {
	c.mu.Lock()
	s, q := c.stateLocked(), c.queued
	c.mu.Unlock()
	c.notify.StateChanged(s, q)
}
