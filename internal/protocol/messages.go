package protocol

import "encoding/json"

// HELLO (client -> server). Binds the connection to one seat in one game.
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	GameID          string `json:"game_id"`
	PlayerID        string `json:"player_id"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`
	GameID          string `json:"game_id"`
	PlayerID        string `json:"player_id"`
	Turn            int    `json:"turn"`
	Digest          string `json:"digest,omitempty"`
}

// ACTION (client -> server). Payload is decoded by the game layer per kind.
type ActionMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version,omitempty"`
	ReqID           string          `json:"req_id,omitempty"`
	GameID          string          `json:"game_id"`
	PlayerID        string          `json:"player_id"`
	Kind            string          `json:"kind"`
	Payload         json.RawMessage `json:"payload,omitempty"`
}

// RESULT (server -> client)
type ResultMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id,omitempty"`
	OK              bool   `json:"ok"`
	Code            string `json:"code,omitempty"`
	Reason          string `json:"reason,omitempty"`
	Turn            int    `json:"turn"`

	FleetID uint64 `json:"fleet_id,omitempty"`
	OrderID uint64 `json:"order_id,omitempty"`
}

type Event struct {
	Type          string `json:"type"`
	Priority      int    `json:"priority"`
	Message       string `json:"message"`
	PlanetID      uint64 `json:"planet_id,omitempty"`
	OtherPlayerID string `json:"other_player_id,omitempty"`
	Amount        int    `json:"amount,omitempty"`
}

// TURN_EVENTS (server -> client), one per seated player after each resolution.
type TurnEventsMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	GameID          string   `json:"game_id"`
	Turn            int      `json:"turn"`
	Events          []Event  `json:"events"`
	Destroyed       []string `json:"destroyed,omitempty"`
}

// ERROR (server -> client) for messages that never reached the game layer.
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Reason          string `json:"reason"`
}
