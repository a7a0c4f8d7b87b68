package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/yegors/fsuipc-bridge/pkg/logger"
)

// Message types exchanged with consumers
const (
	MessageTypeCapabilities  = "Capabilities"
	MessageTypeSetSimData    = "SetSimData"
	MessageTypeSetSimDataAck = "SetSimDataAck"
)

// Close reason sent to consumers connecting on an unknown path
const ReasonInvalidPath = "Invalid path"

const (
	sendBufferSize = 256
	writeWait      = 5 * time.Second
)

// Handler reacts to consumer lifecycle events and messages
type Handler interface {
	HandleConnect(client *Client)
	HandleMessage(client *Client, messageType string, raw []byte) error
}

// Client is one connected consumer
type Client struct {
	ID         string
	RemoteAddr string

	conn      *websocket.Conn
	send      chan []byte
	server    *Server
	mu        sync.Mutex
	closed    bool
	closeChan chan struct{}
}

// Server is the consumer hub. Every registered client receives broadcasts
// through its own buffered channel.
type Server struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
	upgrader   websocket.Upgrader
	logger     *logger.Logger
	mu         sync.RWMutex
	handler    Handler
}

// NewServer creates a consumer hub
func NewServer(log *logger.Logger) *Server {
	return &Server{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: log.Named("web-socket"),
	}
}

// SetHandler sets the handler for connects and incoming messages
func (s *Server) SetHandler(handler Handler) {
	s.handler = handler
}

// Run runs the hub until ctx is cancelled, then closes every client
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("Starting WebSocket hub")
	defer close(s.done)

	for {
		select {
		case client := <-s.register:
			s.mu.Lock()
			s.clients[client] = true
			count := len(s.clients)
			s.mu.Unlock()
			s.logger.Info("Client connected",
				String("client_id", client.ID),
				String("remote_addr", client.RemoteAddr),
				Int("client_count", count))

		case client := <-s.unregister:
			s.mu.Lock()
			removed := s.remove(client)
			count := len(s.clients)
			s.mu.Unlock()
			if removed {
				s.logger.Info("Client disconnected",
					String("client_id", client.ID),
					Int("client_count", count))
			}

		case message := <-s.broadcast:
			s.fanOut(message)

		case <-ctx.Done():
			s.mu.Lock()
			for client := range s.clients {
				s.remove(client)
				client.Close()
			}
			s.mu.Unlock()
			s.logger.Info("WebSocket hub stopped")
			return nil
		}
	}
}

// fanOut attempts a non-blocking send to every client and drops the ones
// that are closed or not keeping up
func (s *Server) fanOut(message []byte) {
	s.mu.RLock()
	stale := make([]*Client, 0)
	for client := range s.clients {
		client.mu.Lock()
		if client.closed {
			stale = append(stale, client)
			client.mu.Unlock()
			continue
		}
		select {
		case client.send <- message:
		default:
			stale = append(stale, client)
		}
		client.mu.Unlock()
	}
	s.mu.RUnlock()

	if len(stale) == 0 {
		return
	}

	s.mu.Lock()
	for _, client := range stale {
		if s.remove(client) {
			s.logger.Warn("Dropping unresponsive client", String("client_id", client.ID))
		}
	}
	s.mu.Unlock()
}

// remove deletes client from the set and closes its send channel. Callers hold s.mu.
func (s *Server) remove(client *Client) bool {
	if _, ok := s.clients[client]; !ok {
		return false
	}
	delete(s.clients, client)
	client.mu.Lock()
	if !client.closed {
		client.closed = true
		close(client.send)
	}
	client.mu.Unlock()
	return true
}

// Broadcast sends raw JSON to every connected client. Slow clients are dropped
// rather than waited on.
func (s *Server) Broadcast(message []byte) {
	select {
	case s.broadcast <- message:
	case <-s.done:
	}
}

// ClientCount returns the number of connected clients
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// HandleConnection upgrades the request and registers the consumer
func (s *Server) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection",
			Error(err),
			String("remote_addr", r.RemoteAddr))
		return
	}

	client := &Client{
		ID:         uuid.NewString(),
		RemoteAddr: r.RemoteAddr,
		conn:       conn,
		send:       make(chan []byte, sendBufferSize),
		server:     s,
		closeChan:  make(chan struct{}),
	}

	// queued before registration so nothing is broadcast ahead of it
	if s.handler != nil {
		s.handler.HandleConnect(client)
	}

	select {
	case s.register <- client:
	case <-s.done:
		conn.Close()
		return
	}

	go client.readPump()
	go client.writePump()
}

// Reject upgrades the request and immediately closes it with a policy violation
func (s *Server) Reject(w http.ResponseWriter, r *http.Request, reason string) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))

	s.logger.Warn("Rejected client",
		String("path", r.URL.Path),
		String("remote_addr", r.RemoteAddr),
		String("reason", reason))
}

// readPump pumps messages from the WebSocket connection to the handler
func (c *Client) readPump() {
	defer func() {
		select {
		case c.server.unregister <- c:
		case <-c.server.done:
		}
		c.conn.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.server.logger.Warn("WebSocket read error", String("client_id", c.ID), Error(err))
			}
			return
		}

		var envelope struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			c.server.logger.Debug("Ignoring malformed message", String("client_id", c.ID))
			continue
		}

		if c.server.handler == nil {
			continue
		}
		if err := c.server.handler.HandleMessage(c, envelope.Type, data); err != nil {
			c.server.logger.Warn("Failed to handle message",
				Error(err),
				String("client_id", c.ID),
				String("type", envelope.Type))
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	defer c.conn.Close()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.server.logger.Debug("Write failed", String("client_id", c.ID), Error(err))
				return
			}

		case <-c.closeChan:
			return
		}
	}
}

// Close closes the client connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.closeChan:
		return
	default:
	}
	close(c.closeChan)
	c.conn.Close()
}

// Send marshals v and queues it for this client only. It reports false when
// the client is gone or its buffer is full.
func (c *Client) Send(v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		c.server.logger.Error("Failed to marshal message", Error(err), String("client_id", c.ID))
		return false
	}
	return c.SendRaw(data)
}

// SendRaw queues pre-encoded JSON for this client only
func (c *Client) SendRaw(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Import logger functions
var (
	String = logger.String
	Int    = logger.Int
	Error  = logger.Error
)
