package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/fsuipc-bridge/internal/bridge"
	"github.com/yegors/fsuipc-bridge/internal/fsuipc"
	"github.com/yegors/fsuipc-bridge/internal/signals"
	"github.com/yegors/fsuipc-bridge/internal/simdata"
	"github.com/yegors/fsuipc-bridge/internal/storage/sqlite"
	"github.com/yegors/fsuipc-bridge/internal/websocket"
	"github.com/yegors/fsuipc-bridge/pkg/logger"
)

type fakeSimulator struct {
	state     fsuipc.State
	frames    uint64
	lastFrame time.Time
}

func (f *fakeSimulator) State() fsuipc.State  { return f.state }
func (f *fakeSimulator) Frames() uint64       { return f.frames }
func (f *fakeSimulator) LastFrame() time.Time { return f.lastFrame }

type fakeJournal struct {
	mu      sync.Mutex
	records []*sqlite.CommandRecord
	limit   int
	err     error
}

func (j *fakeJournal) lastLimit() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.limit
}

func (j *fakeJournal) Recent(_ context.Context, limit int) ([]*sqlite.CommandRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.limit = limit
	if j.err != nil {
		return nil, j.err
	}
	return j.records, nil
}

type testEnv struct {
	srv   *httptest.Server
	hub   *websocket.Server
	sd    *simdata.SimData
	clock time.Time
}

func newTestEnv(t *testing.T, sim SimulatorStatus, journal CommandLister) *testEnv {
	t.Helper()
	env := &testEnv{clock: time.Date(2025, 3, 4, 5, 6, 7, 890_000_000, time.UTC)}
	env.sd = simdata.New(logger.NewNop(), simdata.WithClock(func() time.Time { return env.clock }))

	table := signals.MustNewTable()
	commands := signals.NewCommandTable()
	caps := bridge.NewCapabilities(table, commands)

	env.hub = websocket.NewServer(logger.NewNop())
	env.hub.SetHandler(bridge.NewHandler(caps, commands, nopWriter{}, nil, logger.NewNop()))
	ctx, cancel := context.WithCancel(context.Background())
	go env.hub.Run(ctx)

	h := NewHandler(env.hub, sim, env.sd, caps, journal, "/api/v1/", logger.NewNop())
	env.srv = httptest.NewServer(NewRouter(h, "/api/v1/").Routes())
	t.Cleanup(func() {
		cancel()
		env.srv.Close()
	})
	return env
}

type nopWriter struct{}

func (nopWriter) WriteOffset(context.Context, int, signals.Encoding, int, int64) error { return nil }

func getJSON(t *testing.T, url string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func (e *testEnv) wsURL(path string) string {
	return "ws" + strings.TrimPrefix(e.srv.URL, "http") + path
}

func TestNormalizePath(t *testing.T) {
	tests := map[string]string{
		"/api/v1":   "/api/v1",
		"/api/v1/":  "/api/v1",
		"/api/v1//": "/api/v1",
		"":          "/",
		"/":         "/",
		"shirley":   "/shirley",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizePath(in), "input %q", in)
	}

	assert.Equal(t, []string{"/api/v1", "/api/v1/", "/"}, AcceptedPaths("/api/v1/"))
	assert.Equal(t, []string{"/"}, AcceptedPaths(""))
}

func TestWebSocketAcceptedPaths(t *testing.T) {
	env := newTestEnv(t, &fakeSimulator{}, nil)

	for _, path := range []string{"/api/v1", "/api/v1/", "/"} {
		t.Run(path, func(t *testing.T) {
			conn, _, err := gorilla.DefaultDialer.Dial(env.wsURL(path), nil)
			require.NoError(t, err)
			defer conn.Close()

			require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
			var caps map[string]any
			require.NoError(t, conn.ReadJSON(&caps))
			assert.Equal(t, websocket.MessageTypeCapabilities, caps["type"])
		})
	}
}

func TestWebSocketInvalidPathRejected(t *testing.T) {
	env := newTestEnv(t, &fakeSimulator{}, nil)

	conn, _, err := gorilla.DefaultDialer.Dial(env.wsURL("/wrong"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	var closeErr *gorilla.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, gorilla.ClosePolicyViolation, closeErr.Code)
	assert.Equal(t, "Invalid path", closeErr.Text)
	assert.Equal(t, 0, env.hub.ClientCount())
}

func TestPlainHTTP(t *testing.T) {
	env := newTestEnv(t, &fakeSimulator{}, nil)

	status, body := getJSON(t, env.srv.URL+"/nowhere")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not found", body["error"])

	status, body = getJSON(t, env.srv.URL+"/api/v1")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "/api/v1", body["websocket"])
}

func TestHealthAndStatus(t *testing.T) {
	sim := &fakeSimulator{
		state:     fsuipc.StateStreaming,
		frames:    42,
		lastFrame: time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC),
	}
	env := newTestEnv(t, sim, nil)

	status, body := getJSON(t, env.srv.URL+"/healthz")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "streaming", body["simulator"])

	_, body = getJSON(t, env.srv.URL+"/api/v1/status")
	assert.Nil(t, body["last_update"], "nothing merged yet")
	assert.Equal(t, 0.0, body["clients"])
	simulator := body["simulator"].(map[string]any)
	assert.Equal(t, "streaming", simulator["state"])
	assert.Equal(t, 42.0, simulator["frames"])
	assert.Equal(t, "2025-03-04T05:06:07.000Z", simulator["last_frame"])

	env.sd.MergePartial(simdata.GroupGPS, simdata.Partial{simdata.FieldLatitude: simdata.Float(45)})
	_, body = getJSON(t, env.srv.URL+"/api/v1/status")
	assert.Equal(t, "2025-03-04T05:06:07.890Z", body["last_update"])
}

func TestSnapshotAndCapabilities(t *testing.T) {
	env := newTestEnv(t, &fakeSimulator{}, nil)

	_, body := getJSON(t, env.srv.URL+"/api/v1/snapshot")
	assert.Empty(t, body)

	env.sd.MergePartial(simdata.GroupSimulation, simdata.Partial{simdata.FieldAircraftName: simdata.String("C172")})
	_, body = getJSON(t, env.srv.URL+"/api/v1/snapshot")
	assert.Equal(t, map[string]any{"aircraftName": "C172"}, body["simulation"])

	_, body = getJSON(t, env.srv.URL+"/api/v1/capabilities")
	assert.Equal(t, websocket.MessageTypeCapabilities, body["type"])
	assert.Contains(t, body["writes"], "GEAR_HANDLE")
	assert.NotEmpty(t, body["reads"])
}

func TestCommands(t *testing.T) {
	t.Run("journal disabled", func(t *testing.T) {
		env := newTestEnv(t, &fakeSimulator{}, nil)
		status, body := getJSON(t, env.srv.URL+"/api/v1/commands")
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, "command journal disabled", body["error"])
	})

	t.Run("recent commands", func(t *testing.T) {
		journal := &fakeJournal{records: []*sqlite.CommandRecord{
			{ID: 2, Name: "throttle", Value: "0.5", Raw: 12288, Address: 0x088C, OK: true},
			{ID: 1, Name: "nope", Value: "1", Error: "unknown command"},
		}}
		env := newTestEnv(t, &fakeSimulator{}, journal)

		status, body := getJSON(t, env.srv.URL+"/api/v1/commands?limit=5")
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, 5, journal.lastLimit())
		assert.Equal(t, 2.0, body["count"])
		commands := body["commands"].([]any)
		assert.Equal(t, "throttle", commands[0].(map[string]any)["name"])

		getJSON(t, env.srv.URL+"/api/v1/commands?limit=-3")
		assert.Equal(t, defaultCommandLimit, journal.lastLimit())
		getJSON(t, env.srv.URL+"/api/v1/commands?limit=100000")
		assert.Equal(t, maxCommandLimit, journal.lastLimit())
	})

	t.Run("journal failure", func(t *testing.T) {
		env := newTestEnv(t, &fakeSimulator{}, &fakeJournal{err: errors.New("disk full")})
		resp, err := http.Get(env.srv.URL + "/api/v1/commands")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	})
}
