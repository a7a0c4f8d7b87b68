package simulation

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/fsuipc-bridge/internal/fsuipc"
	"github.com/yegors/fsuipc-bridge/internal/signals"
	"github.com/yegors/fsuipc-bridge/pkg/logger"
)

func newTestServer(t *testing.T) (*Service, *Server, string) {
	t.Helper()
	sim := NewService(DefaultAircraft(45.5, -122.6, 0), logger.NewNop())
	srv := NewServer(sim, logger.NewNop())
	ts := httptest.NewServer(http.HandlerFunc(srv.HandleConnection))
	t.Cleanup(ts.Close)
	return sim, srv, "ws" + strings.TrimPrefix(ts.URL, "http") + "/fsuipc/"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	dialer := websocket.Dialer{Subprotocols: []string{fsuipc.Subprotocol}}
	conn, _, err := dialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readResponse(t *testing.T, conn *websocket.Conn) response {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var resp response
	require.NoError(t, conn.ReadJSON(&resp))
	return resp
}

// readUntil skips frames until match accepts one
func readUntil(t *testing.T, conn *websocket.Conn, match func(response) bool) response {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		resp := readResponse(t, conn)
		if match(resp) {
			return resp
		}
	}
	require.FailNow(t, "no matching frame")
	return response{}
}

func isAck(command string) func(response) bool {
	return func(r response) bool { return r.Command == command && r.Data == nil }
}

func declareRequest(name string) fsuipc.DeclareRequest {
	return fsuipc.DeclareRequest{
		Command: fsuipc.CommandDeclare,
		Name:    name,
		Offsets: []signals.Declaration{
			{Name: "lat", Address: 0x0560, Type: signals.EncodingLat, Size: 8},
			{Name: "gear", Address: 0x0BE8, Type: signals.EncodingUint, Size: 4},
			{Name: "unknown", Address: 0x4444, Type: signals.EncodingUint, Size: 4},
		},
	}
}

func TestDeclareReadWrite(t *testing.T) {
	sim, _, url := newTestServer(t)
	conn := dial(t, url)
	assert.Equal(t, fsuipc.Subprotocol, conn.Subprotocol())

	require.NoError(t, conn.WriteJSON(declareRequest("flightData")))
	ack := readResponse(t, conn)
	assert.Equal(t, response{Command: fsuipc.CommandDeclare, Name: "flightData", Success: true}, ack)

	require.NoError(t, conn.WriteJSON(fsuipc.ReadRequest{Command: fsuipc.CommandRead, Name: "flightData", Interval: 20}))
	ack = readResponse(t, conn)
	assert.Equal(t, response{Command: fsuipc.CommandRead, Name: "flightData", Success: true}, ack)

	frame := readResponse(t, conn)
	assert.True(t, frame.Success)
	assert.Equal(t, "flightData", frame.Name)
	assert.Equal(t, 45.5, frame.Data["lat"])
	assert.Equal(t, 16383.0, frame.Data["gear"])
	assert.NotContains(t, frame.Data, "unknown")

	require.NoError(t, conn.WriteJSON(fsuipc.WriteRequest{
		Command: fsuipc.CommandWrite,
		Values:  []fsuipc.WriteValue{{Address: 0x0BE8, Type: signals.EncodingInt, Size: 4, Value: 0}},
	}))
	readUntil(t, conn, isAck(fsuipc.CommandWrite))
	assert.Zero(t, sim.Aircraft().GearRaw)

	frame = readUntil(t, conn, func(r response) bool { return r.Data != nil })
	assert.Equal(t, 0.0, frame.Data["gear"])
}

func TestRequestErrors(t *testing.T) {
	_, _, url := newTestServer(t)
	conn := dial(t, url)

	require.NoError(t, conn.WriteJSON(fsuipc.ReadRequest{Command: fsuipc.CommandRead, Name: "nope", Interval: 20}))
	resp := readResponse(t, conn)
	assert.False(t, resp.Success)
	assert.Equal(t, "NotDeclared", resp.ErrorCode)
	assert.Contains(t, resp.ErrorMessage, "not declared")

	require.NoError(t, conn.WriteJSON(map[string]any{"command": "offsets.bogus"}))
	resp = readResponse(t, conn)
	assert.False(t, resp.Success)
	assert.Equal(t, "UnknownCommand", resp.ErrorCode)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{")))
	resp = readResponse(t, conn)
	assert.False(t, resp.Success)
	assert.Equal(t, "InvalidRequest", resp.ErrorCode)

	require.NoError(t, conn.WriteJSON(declareRequest("")))
	resp = readResponse(t, conn)
	assert.False(t, resp.Success)
	assert.Equal(t, fsuipc.CommandDeclare, resp.Command)
}

func TestStopEndsReads(t *testing.T) {
	_, _, url := newTestServer(t)
	conn := dial(t, url)

	require.NoError(t, conn.WriteJSON(declareRequest("g")))
	readResponse(t, conn)
	require.NoError(t, conn.WriteJSON(map[string]any{"command": fsuipc.CommandRead, "name": "g", "interval_ms": 10}))
	readUntil(t, conn, func(r response) bool { return r.Data != nil })

	require.NoError(t, conn.WriteJSON(map[string]any{"command": CommandStop, "name": "g"}))
	readUntil(t, conn, isAck(CommandStop))

	// one frame may already have been in flight when the stop arrived
	frames := 0
	for {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
		_, data, err := conn.ReadMessage()
		if err != nil {
			var netErr net.Error
			require.ErrorAs(t, err, &netErr)
			assert.True(t, netErr.Timeout())
			break
		}
		var resp response
		require.NoError(t, json.Unmarshal(data, &resp))
		frames++
	}
	assert.LessOrEqual(t, frames, 1)
}

func TestReadInterval(t *testing.T) {
	assert.Equal(t, 50*time.Millisecond, readInterval(&request{Interval: 50, IntervalMs: 900}))
	assert.Equal(t, 900*time.Millisecond, readInterval(&request{IntervalMs: 900}))
	assert.Equal(t, defaultReadInterval, readInterval(&request{}))
	assert.Equal(t, minReadInterval, readInterval(&request{Interval: 1}))
}

func TestSessionsTracked(t *testing.T) {
	_, srv, url := newTestServer(t)

	conn := dial(t, url)
	assert.Eventually(t, func() bool { return srv.Sessions() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return srv.Sessions() == 0 }, time.Second, 5*time.Millisecond)
}
