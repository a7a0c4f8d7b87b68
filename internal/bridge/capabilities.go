package bridge

import (
	"github.com/yegors/fsuipc-bridge/internal/signals"
	"github.com/yegors/fsuipc-bridge/internal/websocket"
)

// Capabilities is sent once to every consumer right after it connects
type Capabilities struct {
	Type   string                   `json:"type"`
	Reads  []signals.ReadCapability `json:"reads"`
	Writes []string                 `json:"writes"`
}

// NewCapabilities builds the manifest from the signal and command tables
func NewCapabilities(table *signals.Table, commands *signals.CommandTable) *Capabilities {
	return &Capabilities{
		Type:   websocket.MessageTypeCapabilities,
		Reads:  table.Reads(),
		Writes: commands.Names(),
	}
}
