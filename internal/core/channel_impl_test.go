package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RzNDVy/dojo-presence/internal/domain"
	"github.com/RzNDVy/dojo-presence/wire"
)

type fakeConn struct {
	frames []Frame
	fail   bool
}

func (f *fakeConn) TrySend(data Frame) error {
	if f.fail {
		return errors.New("backpressure")
	}
	f.frames = append(f.frames, data)
	return nil
}

func (f *fakeConn) Close() {}

func newTestChannel() ChannelService {
	return NewChannelService(&domain.Channel{Name: "global-cursors"})
}

func subscribe(ch ChannelService, sid SessionID) *fakeConn {
	conn := &fakeConn{}
	ch.Subscribe(sid, NewMemberSession(conn))
	return conn
}

func TestPresenceSnapshotIsAuthoritative(t *testing.T) {
	ch := newTestChannel()
	subscribe(ch, "s1")
	subscribe(ch, "s2")

	_, count := ch.PresenceSnapshot()
	require.Equal(t, 0, count, "subscribing alone asserts no presence")

	ch.Track("s1", domain.NewPresenceRecord("user_aaa", wire.PresenceMeta{"color": "#EF4444"}))
	ch.Track("s2", domain.NewPresenceRecord("user_bbb", nil))

	members, count := ch.PresenceSnapshot()
	require.Equal(t, 2, count)
	assert.Contains(t, members, domain.PresenceKey("user_aaa"))
	assert.Contains(t, members, domain.PresenceKey("user_bbb"))

	key, had := ch.Untrack("s2")
	require.True(t, had)
	assert.Equal(t, domain.PresenceKey("user_bbb"), key)

	_, count = ch.PresenceSnapshot()
	assert.Equal(t, 1, count)
}

func TestRetrackReplacesRecord(t *testing.T) {
	ch := newTestChannel()
	subscribe(ch, "s1")

	ch.Track("s1", domain.NewPresenceRecord("user_aaa", wire.PresenceMeta{"page": "learning"}))
	ch.Track("s1", domain.NewPresenceRecord("user_aaa", wire.PresenceMeta{"page": "quiz"}))

	members, count := ch.PresenceSnapshot()
	require.Equal(t, 1, count)
	assert.Equal(t, "quiz", members["user_aaa"]["page"])
}

func TestTrackFromNonSubscriberIgnored(t *testing.T) {
	ch := newTestChannel()
	ch.Track("ghost", domain.NewPresenceRecord("user_x", nil))
	_, count := ch.PresenceSnapshot()
	assert.Equal(t, 0, count)
}

func TestUnsubscribeDropsPresence(t *testing.T) {
	ch := newTestChannel()
	subscribe(ch, "s1")
	ch.Track("s1", domain.NewPresenceRecord("user_aaa", nil))

	ch.Unsubscribe("s1")

	_, count := ch.PresenceSnapshot()
	assert.Equal(t, 0, count)
	assert.True(t, ch.Empty())
}

func TestBroadcastSkipsSender(t *testing.T) {
	ch := newTestChannel()
	sender := subscribe(ch, "s1")
	receiver := subscribe(ch, "s2")

	res := ch.Broadcast("s1", Frame(`{"type":"broadcast"}`))

	assert.Equal(t, 1, res.SentTo)
	assert.Empty(t, res.Dropped)
	assert.Empty(t, sender.frames, "no self-echo")
	require.Len(t, receiver.frames, 1)
}

func TestPublishReachesEveryone(t *testing.T) {
	ch := newTestChannel()
	a := subscribe(ch, "s1")
	b := subscribe(ch, "s2")

	res := ch.Publish(Frame(`{"type":"presence_state"}`))

	assert.Equal(t, 2, res.SentTo)
	assert.Len(t, a.frames, 1)
	assert.Len(t, b.frames, 1)
}

func TestBroadcastReportsBackpressure(t *testing.T) {
	ch := newTestChannel()
	subscribe(ch, "s1")
	slow := &fakeConn{fail: true}
	ch.Subscribe("s2", NewMemberSession(slow))

	res := ch.Broadcast("s1", Frame(`x`))

	assert.Equal(t, 0, res.SentTo)
	require.Len(t, res.Dropped, 1)
	assert.Equal(t, SessionID("s2"), res.Dropped[0])
}
