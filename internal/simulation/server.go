package simulation

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/yegors/fsuipc-bridge/internal/fsuipc"
	"github.com/yegors/fsuipc-bridge/internal/signals"
	"github.com/yegors/fsuipc-bridge/pkg/logger"
)

// CommandStop cancels a periodic read
const CommandStop = "offsets.stop"

const (
	defaultReadInterval = 250 * time.Millisecond
	minReadInterval     = 10 * time.Millisecond
	writeWait           = 5 * time.Second
)

// request is the union of every command a client may send
type request struct {
	Command    string                `json:"command"`
	Name       string                `json:"name"`
	Offsets    []signals.Declaration `json:"offsets"`
	Interval   int                   `json:"interval"`
	IntervalMs int                   `json:"interval_ms"`
	Values     []fsuipc.WriteValue   `json:"values"`
}

type response struct {
	Command      string         `json:"command"`
	Name         string         `json:"name,omitempty"`
	Success      bool           `json:"success"`
	ErrorCode    string         `json:"errorCode,omitempty"`
	ErrorMessage string         `json:"errorMessage,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
}

// Server speaks the FSUIPC WebSocket offsets protocol on behalf of the simulated aircraft
type Server struct {
	sim      *Service
	upgrader websocket.Upgrader
	logger   *logger.Logger
	sessions atomic.Int64
}

// NewServer creates a protocol server backed by sim
func NewServer(sim *Service, log *logger.Logger) *Server {
	return &Server{
		sim: sim,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			Subprotocols:    []string{fsuipc.Subprotocol},
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: log.Named("mock-fsuipc"),
	}
}

// Sessions returns the number of connected clients
func (s *Server) Sessions() int {
	return int(s.sessions.Load())
}

// HandleConnection upgrades the request and serves it until the client disconnects
func (s *Server) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection",
			logger.Error(err),
			logger.String("remote_addr", r.RemoteAddr))
		return
	}

	sess := &session{
		id:      uuid.NewString(),
		conn:    conn,
		server:  s,
		groups:  make(map[string]map[string]int),
		readers: make(map[string]context.CancelFunc),
	}

	s.sessions.Add(1)
	defer s.sessions.Add(-1)

	s.logger.Info("Client connected",
		logger.String("session_id", sess.id),
		logger.String("remote_addr", r.RemoteAddr),
		logger.String("subprotocol", conn.Subprotocol()))

	sess.run()

	s.logger.Info("Client disconnected", logger.String("session_id", sess.id))
}

// session is one client connection and its declared offset groups
type session struct {
	id     string
	conn   *websocket.Conn
	server *Server

	writeMu sync.Mutex
	groups  map[string]map[string]int
	readers map[string]context.CancelFunc
	wg      sync.WaitGroup
}

func (s *session) run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		s.wg.Wait()
		s.conn.Close()
	}()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.server.logger.Warn("Read error", logger.String("session_id", s.id), logger.Error(err))
			}
			return
		}

		var req request
		if err := json.Unmarshal(data, &req); err != nil {
			s.fail("", "", "InvalidRequest", "invalid request")
			continue
		}
		s.handle(ctx, &req)
	}
}

func (s *session) handle(ctx context.Context, req *request) {
	switch req.Command {
	case fsuipc.CommandDeclare:
		if req.Name == "" {
			s.fail(req.Command, req.Name, "InvalidRequest", "name is required")
			return
		}
		addresses := make(map[string]int, len(req.Offsets))
		for _, o := range req.Offsets {
			addresses[o.Name] = o.Address
		}
		s.groups[req.Name] = addresses
		s.server.logger.Debug("Offsets declared",
			logger.String("session_id", s.id),
			logger.String("name", req.Name),
			logger.Int("count", len(addresses)))
		s.send(response{Command: req.Command, Name: req.Name, Success: true})

	case fsuipc.CommandRead:
		addresses, ok := s.groups[req.Name]
		if !ok {
			s.fail(req.Command, req.Name, "NotDeclared", "offsets not declared: "+req.Name)
			return
		}
		interval := readInterval(req)
		s.send(response{Command: req.Command, Name: req.Name, Success: true})
		s.startReader(ctx, req.Name, addresses, interval)

	case CommandStop:
		if stop, ok := s.readers[req.Name]; ok {
			stop()
			delete(s.readers, req.Name)
		}
		s.send(response{Command: req.Command, Name: req.Name, Success: true})

	case fsuipc.CommandWrite:
		for _, v := range req.Values {
			s.server.sim.WriteOffset(v.Address, v.Value)
		}
		s.send(response{Command: req.Command, Success: true})

	default:
		s.fail(req.Command, req.Name, "UnknownCommand", "unknown command: "+req.Command)
	}
}

func readInterval(req *request) time.Duration {
	ms := req.Interval
	if ms <= 0 {
		ms = req.IntervalMs
	}
	if ms <= 0 {
		return defaultReadInterval
	}
	return max(time.Duration(ms)*time.Millisecond, minReadInterval)
}

// startReader pushes the group's values every interval, replacing any reader of the same name
func (s *session) startReader(parent context.Context, name string, addresses map[string]int, interval time.Duration) {
	if stop, ok := s.readers[name]; ok {
		stop()
	}
	ctx, cancel := context.WithCancel(parent)
	s.readers[name] = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			frame := response{
				Command: fsuipc.CommandRead,
				Name:    name,
				Success: true,
				Data:    s.server.sim.ReadOffsets(addresses),
			}
			if err := s.send(frame); err != nil {
				return
			}

			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (s *session) fail(command, name, code, message string) {
	s.server.logger.Debug("Request failed",
		logger.String("session_id", s.id),
		logger.String("command", command),
		logger.String("error", message))
	s.send(response{Command: command, Name: name, Success: false, ErrorCode: code, ErrorMessage: message})
}

func (s *session) send(v response) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(v)
}
