package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yegors/fsuipc-bridge/internal/signals"
	"github.com/yegors/fsuipc-bridge/internal/storage/sqlite"
	"github.com/yegors/fsuipc-bridge/internal/websocket"
	"github.com/yegors/fsuipc-bridge/pkg/logger"
)

const (
	commandTimeout = 2 * time.Second
	journalTimeout = time.Second
)

// OffsetWriter sends one raw write to the simulator
type OffsetWriter interface {
	WriteOffset(ctx context.Context, address int, typ signals.Encoding, size int, value int64) error
}

// CommandRecorder journals handled commands
type CommandRecorder interface {
	Record(ctx context.Context, record *sqlite.CommandRecord) (int64, error)
}

// CommandResult is the outcome of one command inside a SetSimDataAck
type CommandResult struct {
	Name string `json:"name"`
	OK   bool   `json:"ok"`
}

// Ack answers one SetSimData message
type Ack struct {
	Type    string          `json:"type"`
	Results []CommandResult `json:"results"`
}

// Handler serves consumer connections: it greets them with the capabilities
// manifest and turns SetSimData messages into offset writes.
type Handler struct {
	capabilities *Capabilities
	commands     *signals.CommandTable
	writer       OffsetWriter
	recorder     CommandRecorder
	logger       *logger.Logger
}

// NewHandler creates a consumer message handler. recorder may be nil.
func NewHandler(capabilities *Capabilities, commands *signals.CommandTable, writer OffsetWriter, recorder CommandRecorder, log *logger.Logger) *Handler {
	return &Handler{
		capabilities: capabilities,
		commands:     commands,
		writer:       writer,
		recorder:     recorder,
		logger:       log.Named("bridge-handler"),
	}
}

// HandleConnect sends the capabilities manifest
func (h *Handler) HandleConnect(client *websocket.Client) {
	if !client.Send(h.capabilities) {
		h.logger.Warn("Failed to queue capabilities", logger.String("client_id", client.ID))
	}
}

// HandleMessage handles one consumer message
func (h *Handler) HandleMessage(client *websocket.Client, messageType string, raw []byte) error {
	switch messageType {
	case websocket.MessageTypeSetSimData:
		ack, err := h.Execute(context.Background(), client.ID, raw)
		if err != nil {
			return err
		}
		if !client.Send(ack) {
			h.logger.Warn("Client send channel full, dropping ack", logger.String("client_id", client.ID))
		}
		return nil
	default:
		h.logger.Debug("Unhandled message type", logger.String("type", messageType))
		return nil
	}
}

// Execute runs every command of a SetSimData message and returns the ack.
// A failing command never prevents the others from running.
func (h *Handler) Execute(ctx context.Context, clientID string, raw []byte) (*Ack, error) {
	commands, err := parseCommands(raw)
	if err != nil {
		return nil, err
	}

	ack := &Ack{Type: websocket.MessageTypeSetSimDataAck, Results: make([]CommandResult, 0, len(commands))}
	for _, cmd := range commands {
		ack.Results = append(ack.Results, h.execute(ctx, clientID, cmd))
	}
	return ack, nil
}

type command struct {
	name  string
	value any
}

// parseCommands accepts {"commands":[{name,value}]} and the legacy
// single-command form {"control":..., "value":...}
func parseCommands(raw []byte) ([]command, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var msg map[string]any
	if err := dec.Decode(&msg); err != nil {
		return nil, fmt.Errorf("decode SetSimData: %w", err)
	}

	list, ok := msg["commands"].([]any)
	if !ok {
		return []command{newCommand(msg)}, nil
	}

	out := make([]command, 0, len(list))
	for _, entry := range list {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, newCommand(m))
	}
	return out, nil
}

func newCommand(m map[string]any) command {
	name, _ := m["name"].(string)
	name = strings.TrimSpace(name)
	if name == "" {
		control, _ := m["control"].(string)
		name = strings.TrimSpace(control)
	}

	value, ok := m["value"]
	if !ok {
		value = json.Number("0")
	}
	return command{name: name, value: value}
}

func (h *Handler) execute(ctx context.Context, clientID string, cmd command) CommandResult {
	record := &sqlite.CommandRecord{
		ClientID: clientID,
		Name:     cmd.name,
		Value:    encodeValue(cmd.value),
	}

	err := h.run(ctx, cmd, record)
	record.OK = err == nil
	if err != nil {
		record.Error = err.Error()
		level := h.logger.Warn
		if errors.Is(err, signals.ErrUnknownCommand) {
			level = h.logger.Info
		}
		level("Command failed",
			logger.String("client_id", clientID),
			logger.String("name", cmd.name),
			logger.String("value", record.Value),
			logger.Error(err))
	} else {
		h.logger.Info("Command written",
			logger.String("client_id", clientID),
			logger.String("name", cmd.name),
			logger.String("value", record.Value),
			logger.Int64("raw", record.Raw))
	}

	h.journal(ctx, record)
	return CommandResult{Name: cmd.name, OK: record.OK}
}

func (h *Handler) run(ctx context.Context, cmd command, record *sqlite.CommandRecord) error {
	desc, err := h.commands.Lookup(cmd.name)
	if err != nil {
		return err
	}
	record.Address = desc.Address

	raw, err := desc.Encode(cmd.value)
	if err != nil {
		return err
	}
	record.Raw = raw

	writeCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	return h.writer.WriteOffset(writeCtx, desc.Address, desc.Encoding, desc.Size, raw)
}

func (h *Handler) journal(ctx context.Context, record *sqlite.CommandRecord) {
	if h.recorder == nil {
		return
	}
	journalCtx, cancel := context.WithTimeout(ctx, journalTimeout)
	defer cancel()
	if _, err := h.recorder.Record(journalCtx, record); err != nil {
		h.logger.Error("Failed to journal command", logger.String("name", record.Name), logger.Error(err))
	}
}

func encodeValue(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
