package socketio

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	sio "github.com/zishang520/socket.io-client-go/socket"
	"go.uber.org/zap"
)

// Client is a revision 4 connection to one namespace on top of
// socket.io-client-go. The library owns reconnection and the heartbeat.
// Handlers run on library goroutines, so two events may be handled
// concurrently.
type Client struct {
	uri string
	log *zap.Logger
	io  *sio.Socket

	mu           sync.Mutex
	opened       bool
	closed       bool
	noReconnect  bool
	handlers     map[string][]EventHandler
	onConnect    []func()
	onDisconnect []func(reason string)
	done         chan struct{}
	stop         sync.Once
}

// NewClient creates an unopened revision 4 client for rawURL.
func NewClient(rawURL string, opts Options) (*Client, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	u, err := parseServerURL(rawURL)
	if err != nil {
		return nil, err
	}
	base := fmt.Sprintf("%s://%s", u.Scheme, u.Host)

	o := sio.DefaultOptions()
	o.SetPath(u.Path)
	o.SetTransports(types.NewSet(transports.WebSocket))
	o.SetAutoConnect(false)
	o.SetReconnection(!opts.NoReconnect)
	o.SetReconnectionDelay(float64(opts.ReconnectBaseDelay.Milliseconds()))
	o.SetReconnectionDelayMax(float64(opts.ReconnectMaxDelay.Milliseconds()))
	o.SetTimeout(handshakeTimeout)
	if len(opts.Header) > 0 {
		o.SetExtraHeaders(opts.Header)
	}

	manager := sio.NewManager(base, o)
	c := &Client{
		uri:         base + u.Path,
		log:         opts.Logger.With(zap.String("endpoint", base+u.Path)),
		io:          manager.Socket(opts.Namespace, o),
		noReconnect: opts.NoReconnect,
		handlers:    make(map[string][]EventHandler),
		done:        make(chan struct{}),
	}
	c.io.On("connect", func(...any) { c.connected() })
	c.io.On("disconnect", func(args ...any) { c.disconnected(args) })
	c.io.On("connect_error", func(args ...any) {
		c.log.Warn("socketio: connect failed", zap.Any("error", first(args)))
	})
	c.io.OnAny(func(args ...any) { c.event(args) })
	return c, nil
}

// URL returns the server address and Socket.IO path.
func (c *Client) URL() string { return c.uri }

// On registers a handler for event.
func (c *Client) On(event string, fn EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = append(c.handlers[event], fn)
}

// OnConnect registers a handler called after each namespace connect.
func (c *Client) OnConnect(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnect = append(c.onConnect, fn)
}

// OnDisconnect registers a handler called with the disconnect reason.
func (c *Client) OnDisconnect(fn func(reason string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDisconnect = append(c.onDisconnect, fn)
}

// Connected reports whether the namespace is currently joined.
func (c *Client) Connected() bool { return c.io.Connected() }

// SID returns the socket id the server assigned on connect.
func (c *Client) SID() string { return c.io.Id() }

// Done is closed once the client stops for good.
func (c *Client) Done() <-chan struct{} { return c.done }

// Open starts connecting in the background and closes the client when ctx
// is done.
func (c *Client) Open(ctx context.Context) {
	c.mu.Lock()
	if c.opened || c.closed {
		c.mu.Unlock()
		return
	}
	c.opened = true
	c.mu.Unlock()

	c.io.Connect()
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-c.done:
		}
	}()
}

// Emit sends event with args. Unlike the library it never buffers: an
// emit while disconnected fails with ErrNotConnected.
func (c *Client) Emit(event string, args ...any) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if !c.io.Connected() {
		return ErrNotConnected
	}
	return c.io.Emit(event, args...)
}

// Close leaves the namespace and stops reconnecting. Safe to call more than
// once and from handlers.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.io.Disconnect()
	c.finish()
	return nil
}

func (c *Client) finish() {
	c.stop.Do(func() { close(c.done) })
}

func (c *Client) connected() {
	c.log.Info("socketio: connected", zap.String("sid", c.io.Id()))
	c.mu.Lock()
	hs := append([]func(){}, c.onConnect...)
	c.mu.Unlock()
	for _, h := range hs {
		h()
	}
}

func (c *Client) disconnected(args []any) {
	reason, _ := first(args).(string)
	fields := []zap.Field{zap.String("reason", reason)}
	if len(args) > 1 {
		if err, ok := args[1].(error); ok && err != nil {
			fields = append(fields, zap.Error(err))
		}
	}
	c.log.Info("socketio: disconnected", fields...)

	c.mu.Lock()
	hs := append([]func(string){}, c.onDisconnect...)
	c.mu.Unlock()
	for _, h := range hs {
		h(reason)
	}
	if c.noReconnect || !Reconnects(reason) {
		c.finish()
	}
}

// event receives the event name followed by its decoded arguments.
func (c *Client) event(args []any) {
	name, ok := first(args).(string)
	if !ok {
		return
	}
	c.mu.Lock()
	hs := append([]EventHandler(nil), c.handlers[name]...)
	c.mu.Unlock()
	if len(hs) == 0 {
		c.log.Debug("socketio: unhandled event", zap.String("event", name))
		return
	}
	raw := rawArgs(args[1:])
	for _, h := range hs {
		h(raw)
	}
}

// rawArgs re-encodes decoded arguments. Values JSON cannot carry, such as
// ack callbacks, are dropped.
func rawArgs(args []any) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(args))
	for _, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			continue
		}
		out = append(out, b)
	}
	return out
}

func first(args []any) any {
	if len(args) == 0 {
		return nil
	}
	return args[0]
}
