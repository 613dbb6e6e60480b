package client

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RzNDVy/dojo-presence/wire"
)

func TestTrackBeforeConfirmIsDeferred(t *testing.T) {
	c, sock := newFakeClient()
	defer c.Close()

	ch := c.Channel("global-cursors")
	require.NoError(t, ch.Subscribe())
	require.NoError(t, ch.Track("user_abc1234", wire.PresenceMeta{"color": "#3B82F6"}))

	assert.Empty(t, sock.sentOfType(wire.TypeTrack), "track must wait for the ack")

	ch.dispatch(&wire.Envelope{Type: wire.TypeSubscribed, Channel: "global-cursors"})

	tracks := sock.sentOfType(wire.TypeTrack)
	require.Len(t, tracks, 1)
	assert.Equal(t, "user_abc1234", tracks[0].Key)
	assert.Equal(t, "#3B82F6", tracks[0].Meta["color"])
}

func TestLatestDeferredTrackWins(t *testing.T) {
	c, sock := newFakeClient()
	defer c.Close()

	ch := c.Channel("global-cursors")
	require.NoError(t, ch.Subscribe())
	require.NoError(t, ch.Track("user_abc1234", wire.PresenceMeta{"page": "learning"}))
	require.NoError(t, ch.Track("user_abc1234", wire.PresenceMeta{"page": "quiz"}))

	ch.dispatch(&wire.Envelope{Type: wire.TypeSubscribed, Channel: "global-cursors"})

	tracks := sock.sentOfType(wire.TypeTrack)
	require.Len(t, tracks, 1)
	assert.Equal(t, "quiz", tracks[0].Meta["page"])
}

func TestTrackAfterConfirmSendsImmediately(t *testing.T) {
	c, sock := newFakeClient()
	defer c.Close()

	ch := c.Channel("global-cursors")
	require.NoError(t, ch.Subscribe())
	ch.dispatch(&wire.Envelope{Type: wire.TypeSubscribed, Channel: "global-cursors"})

	require.NoError(t, ch.Track("user_abc1234", nil))
	assert.Len(t, sock.sentOfType(wire.TypeTrack), 1)
}

func TestOnlineCountComesFromSnapshotsOnly(t *testing.T) {
	c, _ := newFakeClient()
	defer c.Close()

	var counts []int
	ch := c.Channel("global-cursors")
	ch.OnSync(func(count int, _ map[string]wire.PresenceMeta) {
		counts = append(counts, count)
	})

	ch.dispatch(&wire.Envelope{
		Type: wire.TypePresenceState, Channel: "global-cursors",
		Members: map[string]wire.PresenceMeta{"a": nil, "b": nil}, Count: 2,
	})
	// Deltas arrive too; they must not feed the counter.
	ch.dispatch(&wire.Envelope{Type: wire.TypePresenceJoin, Channel: "global-cursors", Key: "c"})
	ch.dispatch(&wire.Envelope{Type: wire.TypePresenceLeave, Channel: "global-cursors", Key: "a"})
	ch.dispatch(&wire.Envelope{
		Type: wire.TypePresenceState, Channel: "global-cursors",
		Members: map[string]wire.PresenceMeta{"b": nil, "c": nil, "d": nil}, Count: 3,
	})

	assert.Equal(t, []int{2, 3}, counts)
}

func TestBroadcastHandlerReceivesPayload(t *testing.T) {
	c, _ := newFakeClient()
	defer c.Close()

	var got wire.GlobalCursor
	ch := c.Channel("global-cursors")
	ch.OnBroadcast(wire.EventCursor, func(payload json.RawMessage) {
		_ = json.Unmarshal(payload, &got)
	})

	raw, _ := json.Marshal(wire.GlobalCursor{X: 100, Y: 200, UserID: "user_peer"})
	ch.dispatch(&wire.Envelope{Type: wire.TypeBroadcast, Channel: "global-cursors", Event: wire.EventCursor, Payload: raw})

	assert.Equal(t, float64(100), got.X)
	assert.Equal(t, "user_peer", got.UserID)
}

func TestCloseIsIdempotentAndDetaches(t *testing.T) {
	c, sock := newFakeClient()
	defer c.Close()

	ch := c.Channel("duo-room-X7K2PQ")
	require.NoError(t, ch.Subscribe())
	ch.Close()
	ch.Close()

	assert.Len(t, sock.sentOfType(wire.TypeLeave), 1)

	// A fresh handle replaces the closed one.
	again := c.Channel("duo-room-X7K2PQ")
	assert.NotSame(t, ch, again)
}

func TestCloseSafeBeforeSubscribed(t *testing.T) {
	c, _ := newFakeClient()
	defer c.Close()

	ch := c.Channel("duo-room-NEVER1")
	ch.Close() // never subscribed, must not panic
}

func TestDispatchAfterCloseIsDropped(t *testing.T) {
	c, _ := newFakeClient()
	defer c.Close()

	fired := false
	ch := c.Channel("global-cursors")
	ch.OnBroadcast(wire.EventCursor, func(json.RawMessage) { fired = true })
	ch.Close()

	ch.dispatch(&wire.Envelope{Type: wire.TypeBroadcast, Channel: "global-cursors", Event: wire.EventCursor, Payload: json.RawMessage(`{}`)})
	assert.False(t, fired)
}

func TestSendAfterClientCloseFails(t *testing.T) {
	c, _ := newFakeClient()
	ch := c.Channel("global-cursors")
	c.Close()

	err := ch.Send(wire.EventCursor, &wire.GlobalCursor{})
	assert.ErrorIs(t, err, ErrClientClosed)
}
