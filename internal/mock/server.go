// Package mock is a stand-in Dealyze server. It runs a socket.io/v2
// server that accepts revision 3 and 4 clients over websocket, pushes
// scripted customer and order events and records the orders clients send
// back.
package mock

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io/v2/socket"
	"go.uber.org/zap"
)

const maxPayload = 1_000_000

var ErrNoClients = errors.New("mock: no connected clients")

// Response is an event a client sent to the server.
type Response struct {
	ID      uuid.UUID       `json:"id"`
	At      time.Time       `json:"at"`
	SID     string          `json:"sid"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Options configure a Server.
type Options struct {
	// Namespace clients join. Defaults to "/".
	Namespace    string
	PingInterval time.Duration
	PingTimeout  time.Duration
	Logger       *zap.Logger
}

type Server struct {
	opts    Options
	log     *zap.Logger
	io      *socket.Server
	nsp     socket.Namespace
	handler http.Handler

	mu        sync.RWMutex
	responses []Response
	notify    chan struct{}
	started   time.Time
	closeOnce sync.Once
}

func NewServer(opts Options) *Server {
	if opts.Namespace == "" {
		opts.Namespace = "/"
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 25 * time.Second
	}
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = 20 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	so := socket.DefaultServerOptions()
	so.SetAllowEIO3(true)
	so.SetTransports(types.NewSet("websocket"))
	so.SetServeClient(false)
	so.SetPingInterval(opts.PingInterval)
	so.SetPingTimeout(opts.PingTimeout)
	so.SetMaxHttpBufferSize(maxPayload)

	s := &Server{
		opts:    opts,
		log:     log,
		io:      socket.NewServer(nil, so),
		notify:  make(chan struct{}),
		started: time.Now(),
	}
	s.nsp = s.io.Of(opts.Namespace, nil)
	s.nsp.On("connection", func(args ...any) {
		if sock, ok := args[0].(*socket.Socket); ok {
			s.attach(sock)
		}
	})
	s.handler = s.io.ServeHandler(nil)
	return s
}

// attach records what the socket sends until it leaves.
func (s *Server) attach(sock *socket.Socket) {
	sid := string(sock.Id())
	log := s.log.With(zap.String("sid", sid), zap.Int("eio", sock.Conn().Protocol()))
	log.Info("client connected", zap.String("remote", sock.Handshake().Address))

	sock.OnAny(func(args ...any) {
		name, ok := args[0].(string)
		if !ok {
			return
		}
		var body json.RawMessage
		if len(args) > 1 {
			b, err := json.Marshal(args[1])
			if err != nil {
				log.Warn("bad event", zap.String("event", name), zap.Error(err))
				return
			}
			body = b
		}
		s.record(Response{ID: uuid.New(), At: time.Now(), SID: sid, Event: name, Payload: body})
		log.Info("response received", zap.String("event", name), zap.ByteString("payload", body))
	})
	sock.On("disconnect", func(args ...any) {
		reason, _ := args[0].(string)
		log.Info("client disconnected", zap.String("reason", reason))
	})
}

func (s *Server) record(r Response) {
	s.mu.Lock()
	s.responses = append(s.responses, r)
	notify := s.notify
	s.notify = make(chan struct{})
	s.mu.Unlock()
	close(notify)
}

// Push sends the scripted event kind to every client.
func (s *Server) Push(kind Kind) (int, error) {
	event, payload, err := Script(kind)
	if err != nil {
		return 0, err
	}
	return s.Broadcast(event, payload)
}

// Broadcast emits event with payload to every client and returns how many
// it was sent to.
func (s *Server) Broadcast(event string, payload any) (int, error) {
	n := s.ClientCount()
	if n == 0 {
		return 0, ErrNoClients
	}
	if err := s.nsp.Emit(event, payload); err != nil {
		return 0, err
	}
	return n, nil
}

// DisconnectAll sends every client a namespace disconnect, which Socket.IO
// clients see as "io server disconnect".
func (s *Server) DisconnectAll() int {
	n := s.ClientCount()
	s.nsp.DisconnectSockets(false)
	return n
}

// Close drops every client and shuts the engine down.
func (s *Server) Close() {
	s.closeOnce.Do(func() { s.io.Close(nil) })
}

// Responses returns a copy of everything clients have sent.
func (s *Server) Responses() []Response {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Response(nil), s.responses...)
}

// Changed returns a channel closed at the next recorded response.
func (s *Server) Changed() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.notify
}

// ClientCount returns the number of clients joined to the namespace.
func (s *Server) ClientCount() int {
	return s.nsp.Sockets().Len()
}
