package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/yegors/fsuipc-bridge/internal/bridge"
	"github.com/yegors/fsuipc-bridge/internal/fsuipc"
	"github.com/yegors/fsuipc-bridge/internal/simdata"
	"github.com/yegors/fsuipc-bridge/internal/storage/sqlite"
	"github.com/yegors/fsuipc-bridge/internal/websocket"
	"github.com/yegors/fsuipc-bridge/pkg/logger"
)

const (
	defaultCommandLimit = 50
	maxCommandLimit     = 1000

	// ISO-8601 UTC with milliseconds
	timestampLayout = "2006-01-02T15:04:05.000Z"
)

// SimulatorStatus reports the simulator link
type SimulatorStatus interface {
	State() fsuipc.State
	Frames() uint64
	LastFrame() time.Time
}

// FlightState is the aggregated flight state
type FlightState interface {
	Render() *simdata.Snapshot
	LastUpdate() time.Time
}

// CommandLister reads the command journal
type CommandLister interface {
	Recent(ctx context.Context, limit int) ([]*sqlite.CommandRecord, error)
}

// Handler contains the API handlers
type Handler struct {
	hub          *websocket.Server
	simulator    SimulatorStatus
	state        FlightState
	capabilities *bridge.Capabilities
	journal      CommandLister
	wsPath       string
	started      time.Time
	logger       *logger.Logger
}

// NewHandler creates a new API handler. journal may be nil when the command
// journal is disabled.
func NewHandler(hub *websocket.Server, simulator SimulatorStatus, state FlightState, capabilities *bridge.Capabilities, journal CommandLister, wsPath string, log *logger.Logger) *Handler {
	return &Handler{
		hub:          hub,
		simulator:    simulator,
		state:        state,
		capabilities: capabilities,
		journal:      journal,
		wsPath:       NormalizePath(wsPath),
		started:      time.Now().UTC(),
		logger:       log.Named("api-handler"),
	}
}

// HandleWebSocket upgrades consumer connections. Plain HTTP requests on the
// WebSocket path get a short description of the endpoint.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !isUpgrade(r) {
		WriteJSON(w, http.StatusOK, map[string]any{
			"service":   "fsuipc-bridge",
			"websocket": h.wsPath,
		})
		return
	}
	h.hub.HandleConnection(w, r)
}

// NotFound rejects WebSocket upgrades on unknown paths with a policy
// violation close and answers everything else with 404
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	if isUpgrade(r) {
		h.hub.Reject(w, r, websocket.ReasonInvalidPath)
		return
	}
	WriteJSON(w, http.StatusNotFound, map[string]any{"error": "not found"})
}

// GetHealth returns the health status of the API
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"simulator": h.simulator.State().String(),
		"uptime":    time.Since(h.started).Round(time.Second).String(),
	})
}

// GetStatus returns the simulator link state, consumer count and the time of
// the last flight-state update
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"simulator": map[string]any{
			"state":      h.simulator.State().String(),
			"frames":     h.simulator.Frames(),
			"last_frame": formatTimestamp(h.simulator.LastFrame()),
		},
		"clients":     h.hub.ClientCount(),
		"last_update": formatTimestamp(h.state.LastUpdate()),
		"started":     formatTimestamp(h.started),
	}

	WriteJSON(w, http.StatusOK, response)
}

// GetSnapshot returns the snapshot consumers currently receive
func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.state.Render())
}

// GetCapabilities returns the capabilities manifest
func (h *Handler) GetCapabilities(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.capabilities)
}

// GetCommands returns the most recent journaled write commands
func (h *Handler) GetCommands(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		WriteJSON(w, http.StatusNotFound, map[string]any{"error": "command journal disabled"})
		return
	}

	limit := parseLimit(r)
	commands, err := h.journal.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to retrieve commands", logger.Error(err))
		http.Error(w, "Failed to retrieve commands", http.StatusInternalServerError)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"timestamp": formatTimestamp(time.Now()),
		"count":     len(commands),
		"commands":  commands,
	})
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func parseLimit(r *http.Request) int {
	limit := defaultCommandLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}
	if limit > maxCommandLimit {
		limit = maxCommandLimit
	}
	return limit
}

// formatTimestamp renders t as ISO-8601 UTC milliseconds, or nil when unset
func formatTimestamp(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(timestampLayout)
}
