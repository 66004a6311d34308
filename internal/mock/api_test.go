package mock

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIPushWithoutClients(t *testing.T) {
	_, srv := startServer(t, Options{})
	resp, err := http.Post(srv.URL+"/api/push/customer", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPIPushUnknownKind(t *testing.T) {
	s, srv := startServer(t, Options{})
	conn, _ := dialRaw(t, srv, "3")
	readText(t, conn)
	require.Eventually(t, func() bool { return s.ClientCount() == 1 }, waitTimeout, 5*time.Millisecond)

	resp, err := http.Post(srv.URL+"/api/push/bogus", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIPushAndResponses(t *testing.T) {
	s, srv := startServer(t, Options{})
	conn, _ := dialRaw(t, srv, "4")
	send(t, conn, "40")
	readText(t, conn)
	require.Eventually(t, func() bool { return s.ClientCount() == 1 }, waitTimeout, 5*time.Millisecond)

	resp, err := http.Post(srv.URL+"/api/push/order-error", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(readText(t, conn), "reward already redeemed"))

	send(t, conn, `42["order",{"order":{"items":[]}}]`)
	require.Eventually(t, func() bool { return len(s.Responses()) == 1 }, waitTimeout, 5*time.Millisecond)

	resp, err = http.Get(srv.URL + "/api/responses")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var got []Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, "order", got[0].Event)
	assert.WithinDuration(t, time.Now(), got[0].At, time.Minute)
}

func TestAPIClientsAndDisconnect(t *testing.T) {
	s, srv := startServer(t, Options{})
	conn, _ := dialRaw(t, srv, "3")
	readText(t, conn)
	require.Eventually(t, func() bool { return s.ClientCount() == 1 }, waitTimeout, 5*time.Millisecond)

	resp, err := http.Get(srv.URL + "/api/clients")
	require.NoError(t, err)
	var clients map[string]int
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&clients))
	resp.Body.Close()
	assert.Equal(t, 1, clients["clients"])

	resp, err = http.Post(srv.URL+"/api/disconnect", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "41", readText(t, conn))
}

func TestAPIStatus(t *testing.T) {
	s, srv := startServer(t, Options{})
	conn, _ := dialRaw(t, srv, "3")
	readText(t, conn)
	require.Eventually(t, func() bool { return s.ClientCount() == 1 }, waitTimeout, 5*time.Millisecond)

	resp, err := http.Get(srv.URL + "/api/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	var st Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, 1, st.Clients)
	assert.Equal(t, 0, st.Responses)
	assert.NotZero(t, st.PID)
	assert.False(t, st.StartedAt.IsZero())
}
