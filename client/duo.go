package client

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/RzNDVy/dojo-presence/wire"
)

// Duo roles. The cap at two is advisory: the transport does not reject
// a third joiner, and colliding role keys resolve last-writer-wins.
const (
	RoleNone    = 0
	RoleCreator = 1
	RoleJoiner  = 2
)

// DuoSession is the two-party pairing state machine: NoRoom → InRoom →
// NoRoom. There is no intermediate connecting state; channel readiness
// is absorbed by the deferred presence track.
type DuoSession struct {
	client *Client

	mu      sync.Mutex
	channel *Channel
	feed    *CursorFeed
	gate    *throttleGate
	code    string
	role    int
	online  int
}

func NewDuoSession(c *Client) *DuoSession {
	return &DuoSession{client: c, online: 1}
}

// CreateRoom generates a fresh room code, takes role 1 and enters the
// room's channel. Any room held before is left first, so at most one
// duo channel is ever open.
func (d *DuoSession) CreateRoom() (string, error) {
	code := NewRoomCode()
	if err := d.enter(code, RoleCreator); err != nil {
		return "", err
	}
	return code, nil
}

// JoinRoom enters an existing room as role 2. The code is normalized
// case-insensitively; joining an empty or nonexistent room succeeds
// and simply waits for a peer.
func (d *DuoSession) JoinRoom(raw string) error {
	code, err := NormalizeRoomCode(raw)
	if err != nil {
		return err
	}
	return d.enter(code, RoleJoiner)
}

func (d *DuoSession) enter(code string, role int) error {
	d.mu.Lock()
	d.leaveLocked()

	ch := d.client.Channel(wire.DuoChannelName(code))
	feed := NewCursorFeed()
	d.channel = ch
	d.feed = feed
	d.gate = newThrottleGate(DefaultThrottle)
	d.code = code
	d.role = role
	d.mu.Unlock()

	ch.OnSync(func(count int, _ map[string]wire.PresenceMeta) {
		d.mu.Lock()
		d.online = count
		d.mu.Unlock()
	})
	ch.OnLeave(func(key string) {
		log.Info().Str("module", "client.duo").Str("key", key).Msg("peer left")
		feed.Remove(key)
	})
	ch.OnBroadcast(wire.EventCursorMove, func(payload json.RawMessage) {
		var cur wire.DuoCursor
		if err := json.Unmarshal(payload, &cur); err != nil {
			return
		}
		if cur.PlayerNumber == 0 || cur.PlayerNumber == role {
			return
		}
		feed.Update(roleKey(cur.PlayerNumber), RemoteCursor{
			X:          cur.X,
			Y:          cur.Y,
			PlayerName: cur.PlayerName,
		})
	})

	if err := ch.Subscribe(); err != nil {
		log.Warn().Err(err).Str("module", "client.duo").Str("code", code).Msg("subscribe failed, waiting inert")
	}
	return ch.Track(roleKey(role), wire.PresenceMeta{
		"player_number": role,
		"player_name":   fmt.Sprintf("Player %d", role),
		"online_at":     time.Now().Format(time.RFC3339),
	})
}

// LeaveRoom closes the channel and clears all room state. Safe to call
// when already out of a room.
func (d *DuoSession) LeaveRoom() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.leaveLocked()
}

// leaveLocked requires d.mu held.
func (d *DuoSession) leaveLocked() {
	if d.channel != nil {
		d.channel.Close()
		d.channel = nil
	}
	if d.feed != nil {
		d.feed.Stop()
		d.feed = nil
	}
	d.gate = nil
	d.code = ""
	d.role = RoleNone
	d.online = 1
}

// PointerMove broadcasts the local cursor to the peer, throttled the
// same way the global tracker is. No-op outside a room.
func (d *DuoSession) PointerMove(x, y float64) {
	d.mu.Lock()
	ch, gate, role := d.channel, d.gate, d.role
	d.mu.Unlock()
	if ch == nil || !gate.pass() {
		return
	}
	_ = ch.Send(wire.EventCursorMove, &wire.DuoCursor{
		X:            x,
		Y:            y,
		PlayerNumber: role,
		PlayerName:   fmt.Sprintf("Player %d", role),
	})
}

// Room reports the current room, if any.
func (d *DuoSession) Room() (code string, role int, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.code, d.role, d.code != ""
}

// OnlineCount is derived from presence snapshots only; 1 means alone.
func (d *DuoSession) OnlineCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.online
}

// Cursors returns the peer cursor state for rendering.
func (d *DuoSession) Cursors() map[string]RemoteCursor {
	d.mu.Lock()
	feed := d.feed
	d.mu.Unlock()
	if feed == nil {
		return nil
	}
	return feed.Snapshot()
}

func roleKey(role int) string {
	return fmt.Sprintf("player-%d", role)
}
