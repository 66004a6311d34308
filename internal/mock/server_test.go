package mock

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dealyze/pos-demo/internal/socketio"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 2 * time.Second

func startServer(t *testing.T, opts Options) (*Server, *httptest.Server) {
	t.Helper()
	if opts.PingInterval == 0 {
		opts.PingInterval = time.Hour
		opts.PingTimeout = time.Hour
	}
	s := NewServer(opts)
	srv := httptest.NewServer(s.Routes())
	t.Cleanup(func() {
		s.Close()
		srv.Close()
	})
	return s, srv
}

// dialRaw opens a websocket to the mock and returns the open handshake.
func dialRaw(t *testing.T, srv *httptest.Server, eio string) (*websocket.Conn, socketio.Handshake) {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/socket.io/?EIO=" + eio + "&transport=websocket"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	frame := readText(t, conn)
	require.Equal(t, byte(socketio.EngineOpen), frame[0])
	var hs socketio.Handshake
	require.NoError(t, json.Unmarshal([]byte(frame[1:]), &hs))
	return conn, hs
}

func readText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(waitTimeout))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	return string(data)
}

func send(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

// join completes a revision 4 namespace connect and returns the socket id.
func join(t *testing.T, s *Server, conn *websocket.Conn) string {
	t.Helper()
	send(t, conn, "40")
	ack := readText(t, conn)
	require.True(t, strings.HasPrefix(ack, "40{"), ack)
	var body struct {
		SID string `json:"sid"`
	}
	require.NoError(t, json.Unmarshal([]byte(ack[2:]), &body))
	require.NotEmpty(t, body.SID)
	require.Eventually(t, func() bool { return s.ClientCount() == 1 }, waitTimeout, 5*time.Millisecond)
	return body.SID
}

func TestHandshakeEIO4(t *testing.T) {
	s, srv := startServer(t, Options{})
	conn, hs := dialRaw(t, srv, "4")
	assert.NotEmpty(t, hs.SID)
	assert.Equal(t, int(time.Hour/time.Millisecond), hs.PingInterval)
	assert.Equal(t, int64(maxPayload), hs.MaxPayload)
	assert.Equal(t, 0, s.ClientCount(), "not joined before CONNECT")

	join(t, s, conn)
}

func TestHandshakeEIO3JoinsDefaultNamespace(t *testing.T) {
	s, srv := startServer(t, Options{})
	conn, _ := dialRaw(t, srv, "3")
	assert.Equal(t, "40", readText(t, conn))
	assert.Eventually(t, func() bool { return s.ClientCount() == 1 }, waitTimeout, 5*time.Millisecond)

	send(t, conn, "2")
	assert.Equal(t, "3", readText(t, conn))
}

func TestCustomNamespace(t *testing.T) {
	s, srv := startServer(t, Options{Namespace: "/pos"})
	conn, _ := dialRaw(t, srv, "4")
	send(t, conn, "40/pos,")
	require.True(t, strings.HasPrefix(readText(t, conn), "40/pos,{"))

	require.Eventually(t, func() bool { return s.ClientCount() == 1 }, waitTimeout, 5*time.Millisecond)
	_, err := s.Push(KindCustomer)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(readText(t, conn), `42/pos,["customer",`))
}

func TestUnknownNamespaceRefused(t *testing.T) {
	s, srv := startServer(t, Options{})
	conn, _ := dialRaw(t, srv, "4")
	send(t, conn, "40/pos,")
	assert.True(t, strings.HasPrefix(readText(t, conn), "44/pos,"))
	assert.Equal(t, 0, s.ClientCount())
}

func TestRejectsPolling(t *testing.T) {
	_, srv := startServer(t, Options{})
	resp, err := http.Get(srv.URL + "/socket.io/?EIO=4&transport=polling")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPushAndRecord(t *testing.T) {
	s, srv := startServer(t, Options{})
	conn, _ := dialRaw(t, srv, "4")
	sid := join(t, s, conn)

	sent, err := s.Push(KindOrder)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	pkt, err := socketio.DecodePacket(strings.TrimPrefix(readText(t, conn), "4"))
	require.NoError(t, err)
	name, args, err := pkt.Event()
	require.NoError(t, err)
	assert.Equal(t, "order", name)
	require.Len(t, args, 1)
	assert.Contains(t, string(args[0]), "Free Coffee")

	changed := s.Changed()
	send(t, conn, `42["order",{"order":{"total":0}}]`)
	select {
	case <-changed:
	case <-time.After(waitTimeout):
		t.Fatal("response never recorded")
	}
	got := s.Responses()
	require.Len(t, got, 1)
	assert.Equal(t, "order", got[0].Event)
	assert.Equal(t, sid, got[0].SID)
	assert.JSONEq(t, `{"order":{"total":0}}`, string(got[0].Payload))
}

func TestRecordsStringPayload(t *testing.T) {
	s, srv := startServer(t, Options{})
	conn, _ := dialRaw(t, srv, "4")
	join(t, s, conn)

	changed := s.Changed()
	send(t, conn, `42["order","{\"discounts\":[]}"]`)
	select {
	case <-changed:
	case <-time.After(waitTimeout):
		t.Fatal("response never recorded")
	}
	got := s.Responses()
	require.Len(t, got, 1)
	assert.Equal(t, `"{\"discounts\":[]}"`, string(got[0].Payload))
}

func TestPushWithoutClients(t *testing.T) {
	s, _ := startServer(t, Options{})
	_, err := s.Push(KindCustomer)
	assert.ErrorIs(t, err, ErrNoClients)

	_, err = s.Push("nope")
	assert.Error(t, err)
}

func TestDisconnectAll(t *testing.T) {
	s, srv := startServer(t, Options{})
	conn, _ := dialRaw(t, srv, "4")
	join(t, s, conn)

	assert.Equal(t, 1, s.DisconnectAll())
	assert.Equal(t, "41", readText(t, conn))
	assert.Eventually(t, func() bool { return s.ClientCount() == 0 }, waitTimeout, 5*time.Millisecond)
}

func TestServerPingsEIO4(t *testing.T) {
	s, srv := startServer(t, Options{PingInterval: 20 * time.Millisecond, PingTimeout: time.Second})
	conn, _ := dialRaw(t, srv, "4")
	join(t, s, conn)

	assert.Equal(t, "2", readText(t, conn))
	send(t, conn, "3")
	assert.Equal(t, "2", readText(t, conn))
}

func TestClientLeavesOnDisconnectPacket(t *testing.T) {
	s, srv := startServer(t, Options{})
	conn, _ := dialRaw(t, srv, "4")
	join(t, s, conn)

	send(t, conn, "41")
	assert.Eventually(t, func() bool { return s.ClientCount() == 0 }, waitTimeout, 5*time.Millisecond)
}

func TestCloseDropsClients(t *testing.T) {
	s, srv := startServer(t, Options{})
	conn, _ := dialRaw(t, srv, "4")
	join(t, s, conn)

	s.Close()
	assert.Eventually(t, func() bool { return s.ClientCount() == 0 }, waitTimeout, 5*time.Millisecond)
}
