package socketio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// EIO3Client speaks Engine.IO revision 3 over one websocket and joins one
// namespace. The client sends the pings. Handlers run on the read goroutine
// in registration order.
type EIO3Client struct {
	endpoint string
	opts     Options
	log      *zap.Logger

	mu           sync.Mutex
	writeMu      sync.Mutex // serialises all conn writes
	conn         *websocket.Conn
	connected    bool
	closed       bool
	sid          string
	handlers     map[string][]EventHandler
	onConnect    []func()
	onDisconnect []func(reason string)
	cancel       context.CancelFunc
	done         chan struct{}
}

// NewEIO3Client creates an unopened revision 3 client for rawURL.
func NewEIO3Client(rawURL string, opts Options) (*EIO3Client, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	opts.EIO = 3
	if opts.Dialer == nil {
		d := *websocket.DefaultDialer
		d.HandshakeTimeout = handshakeTimeout
		opts.Dialer = &d
	}
	endpoint, err := Endpoint(rawURL, opts.EIO)
	if err != nil {
		return nil, err
	}
	return &EIO3Client{
		endpoint: endpoint,
		opts:     opts,
		log:      opts.Logger.With(zap.String("endpoint", endpoint)),
		handlers: make(map[string][]EventHandler),
		done:     make(chan struct{}),
	}, nil
}

// URL returns the websocket endpoint the client dials.
func (c *EIO3Client) URL() string { return c.endpoint }

// On registers a handler for event.
func (c *EIO3Client) On(event string, fn EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = append(c.handlers[event], fn)
}

// OnConnect registers a handler called after each namespace connect.
func (c *EIO3Client) OnConnect(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnect = append(c.onConnect, fn)
}

// OnDisconnect registers a handler called with the disconnect reason.
func (c *EIO3Client) OnDisconnect(fn func(reason string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDisconnect = append(c.onDisconnect, fn)
}

// Connected reports whether the namespace is currently joined.
func (c *EIO3Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// SID returns the Socket.IO session id of the current connection.
func (c *EIO3Client) SID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sid
}

// Open starts connecting in the background. It returns immediately.
func (c *EIO3Client) Open(ctx context.Context) {
	c.mu.Lock()
	if c.cancel != nil || c.closed {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	go c.run(ctx)
}

// Done is closed once the client stops for good.
func (c *EIO3Client) Done() <-chan struct{} { return c.done }

// Emit sends event with args to the server.
func (c *EIO3Client) Emit(event string, args ...any) error {
	c.mu.Lock()
	conn, connected, closed := c.conn, c.connected, c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if !connected || conn == nil {
		return ErrNotConnected
	}
	p, err := NewEvent(c.opts.Namespace, event, args...)
	if err != nil {
		return err
	}
	return c.write(conn, p.Frame())
}

// Close leaves the namespace and stops reconnecting. Safe to call more than
// once and from handlers.
func (c *EIO3Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn, connected, cancel := c.conn, c.connected, c.cancel
	c.mu.Unlock()

	if connected && conn != nil {
		if err := c.write(conn, DisconnectPacket(c.opts.Namespace).Frame()); err != nil {
			c.log.Debug("socketio: send disconnect", zap.Error(err))
		}
	}
	if cancel != nil {
		cancel()
	} else {
		close(c.done)
	}
	if conn != nil {
		conn.Close()
	}
	return nil
}

func (c *EIO3Client) run(ctx context.Context) {
	defer close(c.done)
	delay := c.opts.ReconnectBaseDelay
	for {
		if ctx.Err() != nil {
			return
		}
		reason, err := c.session(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warn("socketio: connect failed", zap.Error(err), zap.Duration("retry_in", delay))
			if !c.sleep(ctx, delay) || c.opts.NoReconnect {
				return
			}
			delay = min(delay*2, c.opts.ReconnectMaxDelay)
			continue
		}

		c.log.Info("socketio: disconnected", zap.String("reason", reason))
		c.fireDisconnect(reason)
		if c.opts.NoReconnect || !Reconnects(reason) {
			return
		}
		delay = c.opts.ReconnectBaseDelay
		if !c.sleep(ctx, delay) {
			return
		}
	}
}

func (c *EIO3Client) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// session dials, joins the namespace and reads until the connection ends.
// A non-nil error means the namespace was never joined.
func (c *EIO3Client) session(ctx context.Context) (string, error) {
	conn, _, err := c.opts.Dialer.DialContext(ctx, c.endpoint, c.opts.Header)
	if err != nil {
		return "", fmt.Errorf("dial: %w", err)
	}

	hs, err := c.join(conn)
	if err != nil {
		conn.Close()
		return "", err
	}

	sctx, stop := context.WithCancel(ctx)
	defer stop()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return ReasonClientDisconnect, nil
	}
	c.conn = conn
	c.connected = true
	c.sid = hs.SID
	c.mu.Unlock()

	go func() {
		<-sctx.Done()
		conn.Close()
	}()
	go c.pingLoop(sctx, conn, time.Duration(hs.PingInterval)*time.Millisecond)

	c.log.Info("socketio: connected", zap.String("sid", hs.SID))
	c.fireConnect()

	reason := c.readLoop(conn, hs)

	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		c.connected = false
	}
	if c.closed {
		reason = ReasonClientDisconnect
	}
	c.mu.Unlock()
	return reason, nil
}

// join reads the open packet and completes the namespace connect.
func (c *EIO3Client) join(conn *websocket.Conn) (Handshake, error) {
	var hs Handshake
	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))

	typ, payload, err := readFrame(conn)
	if err != nil {
		return hs, fmt.Errorf("read open: %w", err)
	}
	if typ != EngineOpen {
		return hs, fmt.Errorf("expected open packet, got %q", typ)
	}
	if err := json.Unmarshal([]byte(payload), &hs); err != nil {
		return hs, fmt.Errorf("decode handshake: %w", err)
	}

	// The server joins the default namespace on its own.
	if c.opts.Namespace != DefaultNamespace {
		if err := c.write(conn, ConnectPacket(c.opts.Namespace).Frame()); err != nil {
			return hs, fmt.Errorf("send connect: %w", err)
		}
	}

	for {
		typ, payload, err := readFrame(conn)
		if err != nil {
			return hs, fmt.Errorf("await connect: %w", err)
		}
		switch typ {
		case EnginePing:
			if err := c.write(conn, string(EnginePong)+payload); err != nil {
				return hs, err
			}
			continue
		case EngineMessage:
		default:
			continue
		}
		p, err := DecodePacket(payload)
		if err != nil {
			return hs, err
		}
		if p.Namespace != c.opts.Namespace {
			continue
		}
		switch p.Type {
		case PacketConnect:
			conn.SetReadDeadline(c.deadline(hs))
			return hs, nil
		case PacketConnectError:
			return hs, fmt.Errorf("connect refused: %s", string(p.Data))
		}
	}
}

func (c *EIO3Client) readLoop(conn *websocket.Conn, hs Handshake) string {
	for {
		typ, payload, err := readFrame(conn)
		if err != nil {
			return c.classify(err)
		}
		conn.SetReadDeadline(c.deadline(hs))

		switch typ {
		case EnginePing:
			if err := c.write(conn, string(EnginePong)+payload); err != nil {
				return ReasonTransportError
			}
		case EnginePong, EngineNoop:
		case EngineClose:
			return ReasonTransportClose
		case EngineMessage:
			p, err := DecodePacket(payload)
			if err != nil {
				c.log.Warn("socketio: bad packet", zap.Error(err))
				continue
			}
			if p.Namespace != c.opts.Namespace {
				continue
			}
			switch p.Type {
			case PacketEvent:
				name, args, err := p.Event()
				if err != nil {
					c.log.Warn("socketio: bad event", zap.Error(err))
					continue
				}
				c.dispatch(name, args)
			case PacketDisconnect:
				return ReasonServerDisconnect
			case PacketConnectError:
				c.log.Warn("socketio: connect error", zap.ByteString("data", p.Data))
			case PacketAck:
				c.log.Debug("socketio: ack ignored", zap.Int("id", p.ID))
			}
		}
	}
}

func (c *EIO3Client) classify(err error) string {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ReasonClientDisconnect
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ReasonPingTimeout
	}
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ReasonTransportClose
	}
	if errors.Is(err, net.ErrClosed) || strings.Contains(err.Error(), "use of closed network connection") {
		return ReasonTransportClose
	}
	return ReasonTransportError
}

func (c *EIO3Client) deadline(hs Handshake) time.Time {
	interval := time.Duration(hs.PingInterval) * time.Millisecond
	timeout := time.Duration(hs.PingTimeout) * time.Millisecond
	if interval+timeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(interval + timeout)
}

// pingLoop sends client pings until ctx is done.
func (c *EIO3Client) pingLoop(ctx context.Context, conn *websocket.Conn, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.write(conn, string(EnginePing)); err != nil {
				return
			}
		}
	}
}

func (c *EIO3Client) write(conn *websocket.Conn, frame string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, []byte(frame))
}

func (c *EIO3Client) dispatch(event string, args []json.RawMessage) {
	c.mu.Lock()
	hs := append([]EventHandler(nil), c.handlers[event]...)
	c.mu.Unlock()
	if len(hs) == 0 {
		c.log.Debug("socketio: unhandled event", zap.String("event", event))
		return
	}
	for _, h := range hs {
		h(args)
	}
}

func (c *EIO3Client) fireConnect() {
	c.mu.Lock()
	hs := append([]func(){}, c.onConnect...)
	c.mu.Unlock()
	for _, h := range hs {
		h()
	}
}

func (c *EIO3Client) fireDisconnect(reason string) {
	c.mu.Lock()
	hs := append([]func(string){}, c.onDisconnect...)
	c.mu.Unlock()
	for _, h := range hs {
		h(reason)
	}
}

func readFrame(conn *websocket.Conn) (EngineType, string, error) {
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return 0, "", err
		}
		if mt != websocket.TextMessage || len(data) == 0 {
			continue
		}
		return ParseFrame(data)
	}
}
