package protocol

import "encoding/json"

const Version = "1.0"

// Frame types on the observer stream.
const (
	TypeWelcome = "WELCOME"
	TypeEvent   = "EVENT"
	TypeTick    = "TICK"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

// WELCOME (server -> observer)
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	WorldID         string      `json:"world_id"`
	Tick            uint64      `json:"tick"`
	WorldParams     WorldParams `json:"world_params"`
}

type WorldParams struct {
	TickRateHz     int    `json:"tick_rate_hz"`
	InventorySlots int    `json:"inventory_slots"`
	StackSize      int    `json:"stack_size"`
	HubNodeID      string `json:"hub_node_id"`
	Seed           int64  `json:"seed"`
}

// EVENT (server -> observer): one simulation event wrapped in an envelope.
// Consumers must treat unknown future fields as additive.
type EventMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	Event           Event  `json:"event"`
}

// TICK (server -> observer): end-of-tick marker with the state digest.
type TickMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	Digest          string `json:"digest"`
}
