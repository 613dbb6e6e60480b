// Package wire defines the websocket envelope exchanged between the
// presence server and its clients. Both sides marshal these types; a
// client in another language only needs the JSON shapes.
package wire

import "encoding/json"

// Message kinds sent by clients.
const (
	TypeSubscribe = "subscribe"
	TypeTrack     = "track"
	TypeUntrack   = "untrack"
	TypeBroadcast = "broadcast"
	TypeLeave     = "leave"
	TypePing      = "ping"
)

// Message kinds sent by the server.
const (
	TypeSubscribed    = "subscribed"
	TypePresenceState = "presence_state"
	TypePresenceJoin  = "presence_join"
	TypePresenceLeave = "presence_leave"
	TypePong          = "pong"
)

// Envelope is the single frame format on the wire. Fields are populated
// per Type; absent fields are omitted. Payload stays raw so the server
// can relay broadcasts without decoding them.
type Envelope struct {
	Type    string          `json:"type"`
	Channel string          `json:"channel,omitempty"`
	Event   string          `json:"event,omitempty"`
	Key     string          `json:"key,omitempty"`
	Meta    PresenceMeta    `json:"meta,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`

	// Presence snapshot fields (presence_state only).
	Members map[string]PresenceMeta `json:"members,omitempty"`
	Count   int                     `json:"count,omitempty"`
}

// PresenceMeta is opaque per-member metadata (color, join timestamp,
// player number). The server relays it verbatim.
type PresenceMeta map[string]any

// GlobalCursor is the broadcast payload on the global cursor channel.
type GlobalCursor struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Color  string  `json:"color"`
	UserID string  `json:"userId"`
	Page   string  `json:"page"`
}

// DuoCursor is the broadcast payload inside a duo room.
type DuoCursor struct {
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	PlayerNumber int     `json:"playerNumber"`
	PlayerName   string  `json:"playerName"`
}

// Well-known channel names and events.
const (
	GlobalChannel   = "global-cursors"
	EventCursor     = "cursor"
	EventCursorMove = "cursor-move"
)

// DuoChannelName derives the channel for a duo room from its code.
// Codes must already be normalized (uppercase, trimmed).
func DuoChannelName(code string) string {
	return "duo-room-" + code
}
