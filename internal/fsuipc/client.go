package fsuipc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yegors/fsuipc-bridge/internal/signals"
	"github.com/yegors/fsuipc-bridge/pkg/logger"
)

// ErrNotConnected is returned by writes while there is no live simulator connection
var ErrNotConnected = errors.New("fsuipc: not connected")

// State of the simulator connection
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateSubscribed
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateStreaming:
		return "streaming"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

const (
	defaultRetryDelay       = 2 * time.Second
	defaultHandshakeTimeout = 4 * time.Second
	defaultWriteTimeout     = 2 * time.Second
	defaultGroupName        = "flightData"
)

// Config configures the simulator client
type Config struct {
	URL              string
	Interval         time.Duration
	RetryDelay       time.Duration
	HandshakeTimeout time.Duration
	GroupName        string
	IncludeParking   bool
	DebugMessages    bool
}

// Client streams offsets from the FSUIPC WebSocket server into a Merger and
// forwards raw writes back to it
type Client struct {
	cfg        Config
	table      *signals.Table
	dispatcher *Dispatcher
	merger     Merger
	logger     *logger.Logger
	dialer     *websocket.Dialer

	state        atomic.Int32
	lastFrame    atomic.Int64
	frames       atomic.Uint64
	firstPayload atomic.Bool
	connMu       sync.RWMutex
	conn         *websocket.Conn
	writeMu      sync.Mutex
}

// NewClient creates a simulator client
func NewClient(cfg Config, table *signals.Table, merger Merger, log *logger.Logger) *Client {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	if cfg.GroupName == "" {
		cfg.GroupName = defaultGroupName
	}

	return &Client{
		cfg:        cfg,
		table:      table,
		dispatcher: NewDispatcher(table, cfg.IncludeParking),
		merger:     merger,
		logger:     log.Named("fsuipc"),
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
			Subprotocols:     []string{Subprotocol},
		},
	}
}

// State returns the current connection state
func (c *Client) State() State {
	return State(c.state.Load())
}

// LastFrame returns when the last inbound frame was received
func (c *Client) LastFrame() time.Time {
	ns := c.lastFrame.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Frames returns the number of payload frames dispatched
func (c *Client) Frames() uint64 {
	return c.frames.Load()
}

// Run connects and streams until ctx is cancelled, reconnecting after a fixed delay
func (c *Client) Run(ctx context.Context) error {
	c.logger.Info("Starting simulator client",
		logger.String("url", c.cfg.URL),
		logger.Duration("interval", c.cfg.Interval),
		logger.Int("signals", c.table.Len()))

	defer c.setState(StateDisconnected)

	for {
		err := c.session(ctx)
		if ctx.Err() != nil {
			c.logger.Info("Simulator client stopped")
			return nil
		}

		c.logger.Warn("Simulator connection lost, reconnecting",
			logger.Error(err),
			logger.Duration("retry_in", c.cfg.RetryDelay))

		select {
		case <-ctx.Done():
			c.logger.Info("Simulator client stopped")
			return nil
		case <-time.After(c.cfg.RetryDelay):
		}
	}
}

func (c *Client) session(ctx context.Context) error {
	c.setState(StateConnecting)
	c.logger.Debug("Connecting to simulator", logger.String("url", c.cfg.URL))

	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		c.setState(StateDisconnected)
		return fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	done := make(chan struct{})
	defer func() {
		close(done)
		c.connMu.Lock()
		c.conn = nil
		c.connMu.Unlock()
		conn.Close()
		c.setState(StateDisconnected)
	}()

	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	c.logger.Info("Connected to simulator",
		logger.String("url", c.cfg.URL),
		logger.String("subprotocol", conn.Subprotocol()))

	if err := c.subscribe(conn); err != nil {
		return err
	}
	c.setState(StateSubscribed)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		c.HandleMessage(data)
	}
}

func (c *Client) subscribe(conn *websocket.Conn) error {
	declare := DeclareRequest{
		Command: CommandDeclare,
		Name:    c.cfg.GroupName,
		Offsets: c.table.Declarations(),
	}
	if err := c.send(conn, declare); err != nil {
		return fmt.Errorf("declare offsets: %w", err)
	}
	c.logger.Debug("Offsets declared", logger.Int("count", len(declare.Offsets)))

	ms := int(c.cfg.Interval / time.Millisecond)
	read := ReadRequest{
		Command:    CommandRead,
		Name:       c.cfg.GroupName,
		Interval:   ms,
		IntervalMs: ms,
	}
	if err := c.send(conn, read); err != nil {
		return fmt.Errorf("start read: %w", err)
	}
	c.logger.Info("Started reading offsets", logger.Int("interval_ms", ms))
	return nil
}

// HandleMessage processes one inbound frame. Malformed frames are dropped.
func (c *Client) HandleMessage(data []byte) {
	c.lastFrame.Store(time.Now().UnixNano())

	if c.cfg.DebugMessages {
		c.logger.Debug("Received simulator frame", logger.String("frame", string(data)))
	} else if c.firstPayload.CompareAndSwap(false, true) {
		c.logger.Info("First simulator frame", logger.String("frame", string(data)))
	}

	frame, err := DecodeFrame(data)
	if err != nil {
		return
	}

	if frame.Ack {
		if !frame.Success {
			c.logger.Warn("Simulator rejected command",
				logger.String("command", frame.Command),
				logger.String("error", frame.ErrorMessage))
		} else if c.cfg.DebugMessages {
			c.logger.Debug("Simulator acknowledged command", logger.String("command", frame.Command))
		}
		return
	}
	if frame.Payload == nil {
		return
	}

	groups := c.dispatcher.Dispatch(frame.Payload, c.merger)
	c.frames.Add(1)
	if c.state.CompareAndSwap(int32(StateSubscribed), int32(StateStreaming)) {
		c.logger.Info("Receiving simulator data", logger.Int("groups", groups))
	}
}

// WriteOffset sends a single raw offset write. Success means the request was
// handed to the transport.
func (c *Client) WriteOffset(ctx context.Context, address int, typ signals.Encoding, size int, value int64) error {
	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	req := WriteRequest{
		Command: CommandWrite,
		Values:  []WriteValue{{Address: address, Type: typ, Size: size, Value: value}},
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultWriteTimeout)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("write offset 0x%04X: %w", address, err)
	}
	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("write offset 0x%04X: %w", address, err)
	}

	if c.cfg.DebugMessages {
		c.logger.Debug("Offset written",
			logger.String("address", fmt.Sprintf("0x%04X", address)),
			logger.String("type", string(typ)),
			logger.Int("size", size),
			logger.Int64("value", value))
	}
	return nil
}

func (c *Client) send(conn *websocket.Conn, v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(defaultWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(v)
}

func (c *Client) setState(s State) {
	old := State(c.state.Swap(int32(s)))
	if old != s {
		c.logger.Debug("Simulator state changed",
			logger.String("from", old.String()),
			logger.String("to", s.String()))
	}
}
