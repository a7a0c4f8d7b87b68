package fsuipc

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/yegors/fsuipc-bridge/internal/signals"
)

// Commands understood by the FSUIPC WebSocket server
const (
	CommandDeclare = "offsets.declare"
	CommandRead    = "offsets.read"
	CommandWrite   = "offsets.write"
)

// Subprotocol negotiated with the FSUIPC WebSocket server
const Subprotocol = "fsuipc"

// DeclareRequest declares every offset of a named group
type DeclareRequest struct {
	Command string                `json:"command"`
	Name    string                `json:"name"`
	Offsets []signals.Declaration `json:"offsets"`
}

// ReadRequest starts a periodic read of a declared group. The server reads
// "interval"; "interval_ms" is sent for older builds.
type ReadRequest struct {
	Command    string `json:"command"`
	Name       string `json:"name"`
	Interval   int    `json:"interval"`
	IntervalMs int    `json:"interval_ms"`
}

// WriteValue is one raw offset write
type WriteValue struct {
	Address int              `json:"address"`
	Type    signals.Encoding `json:"type"`
	Size    int              `json:"size"`
	Value   int64            `json:"value"`
}

// WriteRequest writes one or more raw offsets
type WriteRequest struct {
	Command string       `json:"command"`
	Values  []WriteValue `json:"values"`
}

// Frame is a decoded inbound message
type Frame struct {
	Command      string
	Success      bool
	ErrorMessage string
	Ack          bool
	Payload      map[string]any
}

// DecodeFrame parses one inbound message. Numbers are kept as json.Number so
// large integer offsets survive intact.
func DecodeFrame(raw []byte) (*Frame, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var msg map[string]any
	if err := dec.Decode(&msg); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if msg == nil {
		return nil, fmt.Errorf("decode frame: not an object")
	}

	f := &Frame{}
	f.Command, _ = msg["command"].(string)
	f.Success, _ = msg["success"].(bool)
	f.ErrorMessage, _ = msg["errorMessage"].(string)

	_, hasCommand := msg["command"]
	_, hasSuccess := msg["success"]
	if hasCommand && hasSuccess && !hasAny(msg, "data", "values", "offsets") {
		f.Ack = true
		return f, nil
	}

	f.Payload = extractPayload(msg)
	return f, nil
}

// extractPayload picks the named values out of a frame. Values may be carried
// under "data", under "values", or at the top level, either as an object or
// as a list of {name, value} pairs.
func extractPayload(msg map[string]any) map[string]any {
	var payload any = msg
	for _, key := range []string{"data", "values"} {
		if v, ok := msg[key]; ok && !isEmpty(v) {
			payload = v
			break
		}
	}

	switch p := payload.(type) {
	case map[string]any:
		return p
	case []any:
		out := make(map[string]any, len(p))
		for _, item := range p {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}
			name, ok := entry["name"].(string)
			if !ok {
				continue
			}
			out[name] = entry["value"]
		}
		return out
	}
	return nil
}

func hasAny(m map[string]any, keys ...string) bool {
	for _, k := range keys {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case map[string]any:
		return len(t) == 0
	case []any:
		return len(t) == 0
	case string:
		return t == ""
	case bool:
		return !t
	}
	return false
}
