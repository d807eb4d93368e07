package main

import "encoding/json"

// Vec is an x,y pair used for positions and movement directions.
type Vec struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Client -> Server message types. The values are part of the wire contract
// and must not be reordered.
type ClientMessageType int

const (
	ClientSetNickname ClientMessageType = iota
	ClientSetDirection
	ClientSetAngle
	ClientShoot
	ClientPing
	ClientDash
	ClientRespawn
)

// Server -> Client message types.
type ServerMessageType int

const (
	ServerStateUpdate ServerMessageType = iota
	ServerPingResponse
	ServerGameResult
)

// ClientMessage is the decoded form of one inbound command. The payload
// fields are a union keyed by Type; the JSON field names never collide, so
// a single struct decodes every variant.
type ClientMessage struct {
	Type      ClientMessageType `json:"type"`
	Nickname  string            `json:"nickname,omitempty"`
	Direction Vec               `json:"direction"`
	Angle     float64           `json:"angle"`
	ID        int               `json:"id"` // ping correlation id, opaque to the server
}

// DecodeClientMessage parses one inbound frame. Malformed or unknown
// payloads return ok=false and are dropped by the caller.
func DecodeClientMessage(raw []byte) (ClientMessage, bool) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return ClientMessage{}, false
	}
	if msg.Type < ClientSetNickname || msg.Type > ClientRespawn {
		return ClientMessage{}, false
	}
	return msg, true
}

// PlayerSnapshot is the per-player slice of a state update.
type PlayerSnapshot struct {
	ID           string  `json:"id"`
	Nickname     string  `json:"nickname"`
	Position     Vec     `json:"position"`
	AimAngle     float64 `json:"aimAngle"`
	IsDead       bool    `json:"isDead"`
	Bullets      int     `json:"bullets"`
	IsReloading  *int64  `json:"isReloading,omitempty"`  // reload deadline, unix millis
	DashCooldown *int64  `json:"dashCooldown,omitempty"` // dash-ready deadline, unix millis
	Score        int     `json:"score"`
	Sprite       int     `json:"sprite"`
}

// BulletSnapshot is the per-bullet slice of a state update.
type BulletSnapshot struct {
	ID       int `json:"id"`
	Position Vec `json:"position"`
}

// GameState is the room snapshot broadcast every tick.
type GameState struct {
	Players []PlayerSnapshot `json:"players"`
	Bullets []BulletSnapshot `json:"bullets"`
}

// StateUpdateMessage carries a snapshot and the server timestamp.
type StateUpdateMessage struct {
	Type  ServerMessageType `json:"type"`
	State GameState         `json:"state"`
	Ts    int64             `json:"ts"`
}

// PingResponseMessage echoes a ping id back to its sender.
type PingResponseMessage struct {
	Type ServerMessageType `json:"type"`
	ID   int               `json:"id"`
}

// GameResultMessage is sent exactly once when the match ends. The ranking
// payload is forwarded verbatim from the ranking service.
type GameResultMessage struct {
	Type                 ServerMessageType `json:"type"`
	WinningPlayerID      string            `json:"winningPlayerId"`
	MatchRankingResponse string            `json:"matchRankingResponse"`
}
