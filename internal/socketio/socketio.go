// Package socketio connects to a Socket.IO server over the websocket
// transport. Revision 4 servers are served by socket.io-client-go; revision
// 3 servers, which that library does not speak, by the codec in this
// package. Neither client polls or sends binary events.
package socketio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Disconnect reasons reported to OnDisconnect handlers.
const (
	ReasonServerDisconnect = "io server disconnect"
	ReasonClientDisconnect = "io client disconnect"
	ReasonPingTimeout      = "ping timeout"
	ReasonTransportClose   = "transport close"
	ReasonTransportError   = "transport error"
)

const (
	defaultReconnectBase = 1 * time.Second
	defaultReconnectMax  = 30 * time.Second
	writeTimeout         = 10 * time.Second
	handshakeTimeout     = 10 * time.Second
)

var (
	ErrNotConnected = errors.New("socketio: not connected")
	ErrClosed       = errors.New("socketio: client closed")
)

// EventHandler receives the arguments of an event.
type EventHandler = func(args []json.RawMessage)

// Options tune a connection. The zero value connects with EIO 3 to the
// default namespace and reconnects with the default backoff.
type Options struct {
	EIO                int
	Namespace          string
	ReconnectBaseDelay time.Duration
	ReconnectMaxDelay  time.Duration
	NoReconnect        bool
	Header             http.Header
	// Dialer is used by the EIO 3 client only.
	Dialer *websocket.Dialer
	Logger *zap.Logger
}

// Conn is a Socket.IO connection to one namespace.
type Conn interface {
	On(event string, fn EventHandler)
	OnConnect(fn func())
	OnDisconnect(fn func(reason string))
	Open(ctx context.Context)
	Emit(event string, args ...any) error
	Close() error
	Connected() bool
	SID() string
	// Done is closed once the connection stops for good.
	Done() <-chan struct{}
}

// New creates an unopened connection for rawURL using the client that
// speaks opts.EIO. The Socket.IO path is added when missing, so
// "ws://localhost:3100" is accepted.
func New(rawURL string, opts Options) (Conn, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	if opts.EIO == 4 {
		return NewClient(rawURL, opts)
	}
	return NewEIO3Client(rawURL, opts)
}

func (o Options) withDefaults() (Options, error) {
	if o.EIO == 0 {
		o.EIO = 3
	}
	if o.EIO != 3 && o.EIO != 4 {
		return o, fmt.Errorf("socketio: unsupported EIO revision %d", o.EIO)
	}
	if o.Namespace == "" {
		o.Namespace = DefaultNamespace
	}
	if o.ReconnectBaseDelay <= 0 {
		o.ReconnectBaseDelay = defaultReconnectBase
	}
	if o.ReconnectMaxDelay < o.ReconnectBaseDelay {
		o.ReconnectMaxDelay = max(defaultReconnectMax, o.ReconnectBaseDelay)
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o, nil
}

// Endpoint converts a server URL into the Engine.IO websocket endpoint.
func Endpoint(rawURL string, eio int) (string, error) {
	u, err := parseServerURL(rawURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	q := u.Query()
	q.Set("EIO", strconv.Itoa(eio))
	q.Set("transport", "websocket")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// parseServerURL validates rawURL and fills in the default Socket.IO path.
func parseServerURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("socketio: parse url: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return nil, fmt.Errorf("socketio: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("socketio: missing host in %q", rawURL)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/socket.io/"
	}
	return u, nil
}

// Reconnects reports whether the client retries after reason on its own.
func Reconnects(reason string) bool {
	switch reason {
	case ReasonServerDisconnect, ReasonClientDisconnect:
		return false
	}
	return true
}
