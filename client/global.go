package client

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/RzNDVy/dojo-presence/wire"
)

// GlobalTracker wires identity, the global cursor channel, the
// broadcaster and the feed into the component the app mounts once per
// tab: everyone sees everyone's cursor and the site-wide online count.
type GlobalTracker struct {
	client      *Client
	id          Identity
	channel     *Channel
	feed        *CursorFeed
	broadcaster *CursorBroadcaster

	mu      sync.Mutex
	online  int
	started bool
}

func NewGlobalTracker(c *Client) *GlobalTracker {
	return &GlobalTracker{
		client: c,
		id:     NewIdentity(),
		online: 1,
	}
}

func (t *GlobalTracker) Identity() Identity { return t.id }

// Start subscribes to the global channel and announces presence.
// Calling it twice is a no-op.
func (t *GlobalTracker) Start() error {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return nil
	}
	t.started = true

	ch := t.client.Channel(wire.GlobalChannel)
	feed := NewCursorFeed()
	t.channel = ch
	t.feed = feed
	t.broadcaster = NewCursorBroadcaster(ch, t.id)
	t.mu.Unlock()

	ch.OnSync(func(count int, _ map[string]wire.PresenceMeta) {
		t.mu.Lock()
		t.online = count
		t.mu.Unlock()
	})
	ch.OnLeave(func(key string) {
		feed.Remove(key)
	})
	ch.OnBroadcast(wire.EventCursor, func(payload json.RawMessage) {
		var cur wire.GlobalCursor
		if err := json.Unmarshal(payload, &cur); err != nil {
			return
		}
		if cur.UserID == "" || cur.UserID == t.id.ID {
			return
		}
		feed.Update(cur.UserID, RemoteCursor{
			X:     cur.X,
			Y:     cur.Y,
			Color: cur.Color,
			Page:  cur.Page,
		})
	})

	if err := ch.Subscribe(); err != nil {
		return err
	}
	return ch.Track(t.id.ID, wire.PresenceMeta{
		"color":     t.id.Color,
		"joined_at": time.Now().Format(time.RFC3339),
	})
}

// PointerMove forwards raw movement into the throttled broadcaster.
func (t *GlobalTracker) PointerMove(x, y float64) {
	t.mu.Lock()
	b := t.broadcaster
	t.mu.Unlock()
	if b != nil {
		b.PointerMove(x, y)
	}
}

// SetPage announces a page switch immediately.
func (t *GlobalTracker) SetPage(page string) {
	t.mu.Lock()
	b := t.broadcaster
	t.mu.Unlock()
	if b != nil {
		b.SetPage(page)
	}
}

// OnlineCount is the cardinality of the latest presence snapshot.
func (t *GlobalTracker) OnlineCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.online
}

// Cursors returns remote cursor state for rendering.
func (t *GlobalTracker) Cursors() map[string]RemoteCursor {
	t.mu.Lock()
	feed := t.feed
	t.mu.Unlock()
	if feed == nil {
		return nil
	}
	return feed.Snapshot()
}

// Stop tears the tracker down: sweep canceled, channel closed. Safe to
// call more than once.
func (t *GlobalTracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.started {
		return
	}
	t.started = false
	if t.feed != nil {
		t.feed.Stop()
		t.feed = nil
	}
	if t.channel != nil {
		t.channel.Close()
		t.channel = nil
	}
	t.broadcaster = nil
	t.online = 1
}
