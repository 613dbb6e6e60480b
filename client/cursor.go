package client

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/RzNDVy/dojo-presence/wire"
)

const (
	// DefaultThrottle caps cursor emission at 20 messages a second.
	DefaultThrottle = 50 * time.Millisecond

	// Trails keep at most trailAppendCap points on arrival; the sweep
	// trims them further to trailRetain even absent new messages.
	trailAppendCap = 15
	trailRetain    = 10
	sweepInterval  = 100 * time.Millisecond
)

// throttleGate enforces a minimum interval between sends. Movement
// inside the window is dropped, not queued.
type throttleGate struct {
	mu     sync.Mutex
	window time.Duration
	last   time.Time
	now    func() time.Time
}

func newThrottleGate(window time.Duration) *throttleGate {
	return &throttleGate{window: window, now: time.Now}
}

func (g *throttleGate) pass() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	t := g.now()
	if !g.last.IsZero() && t.Sub(g.last) < g.window {
		return false
	}
	g.last = t
	return true
}

// CursorBroadcaster samples local pointer movement and publishes it on
// the global cursor channel, throttled, tagged with the current page.
type CursorBroadcaster struct {
	channel *Channel
	id      Identity
	gate    *throttleGate

	mu           sync.Mutex
	page         string
	lastX, lastY float64
}

func NewCursorBroadcaster(ch *Channel, id Identity) *CursorBroadcaster {
	return &CursorBroadcaster{
		channel: ch,
		id:      id,
		gate:    newThrottleGate(DefaultThrottle),
	}
}

// PointerMove publishes the position unless the throttle window is
// still open. Dropped positions are never replayed; the next movement
// supersedes them.
func (b *CursorBroadcaster) PointerMove(x, y float64) {
	b.mu.Lock()
	b.lastX, b.lastY = x, y
	page := b.page
	b.mu.Unlock()
	if !b.gate.pass() {
		return
	}
	b.emit(x, y, page)
}

// SetPage records a context switch and emits one message immediately,
// outside the throttle window, so peers learn about it without waiting
// for the next movement.
func (b *CursorBroadcaster) SetPage(page string) {
	b.mu.Lock()
	b.page = page
	x, y := b.lastX, b.lastY
	b.mu.Unlock()
	b.emit(x, y, page)
}

func (b *CursorBroadcaster) emit(x, y float64, page string) {
	err := b.channel.Send(wire.EventCursor, &wire.GlobalCursor{
		X:      x,
		Y:      y,
		Color:  b.id.Color,
		UserID: b.id.ID,
		Page:   page,
	})
	if err != nil {
		// No retry; cursor frames are disposable.
		log.Debug().Err(err).Str("module", "client").Msg("cursor emit dropped")
	}
}

// TrailPoint is one position in a remote cursor's motion history.
type TrailPoint struct {
	X, Y float64
	ID   int
}

// RemoteCursor is the latest known state of one remote participant.
type RemoteCursor struct {
	X, Y       float64
	Color      string
	Page       string
	PlayerName string
	Trail      []TrailPoint
}

// CursorFeed keeps per-sender latest positions and bounded trail
// windows for rendering. Mutations come from channel handlers (one
// goroutine); Snapshot may be called from anywhere.
type CursorFeed struct {
	mu      sync.Mutex
	cursors map[string]*RemoteCursor
	nextID  int

	stopOnce sync.Once
	stop     chan struct{}
}

func NewCursorFeed() *CursorFeed {
	f := &CursorFeed{
		cursors: make(map[string]*RemoteCursor),
		stop:    make(chan struct{}),
	}
	go f.sweep()
	return f
}

// Update overwrites the sender's latest position (last writer wins) and
// appends a trail point, evicting the oldest past capacity.
func (f *CursorFeed) Update(key string, cur RemoteCursor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, ok := f.cursors[key]
	if !ok {
		prev = &RemoteCursor{}
		f.cursors[key] = prev
	}
	trail := append(prev.Trail, TrailPoint{X: cur.X, Y: cur.Y, ID: f.nextID})
	f.nextID++
	if len(trail) > trailAppendCap {
		trail = trail[len(trail)-trailAppendCap:]
	}
	cur.Trail = trail
	*prev = cur
}

// Remove drops all state for a departed sender. Called synchronously
// from the presence-leave handler so stale cursors never outlive their
// owner.
func (f *CursorFeed) Remove(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.cursors, key)
}

// Snapshot returns a render-safe copy of the feed.
func (f *CursorFeed) Snapshot() map[string]RemoteCursor {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]RemoteCursor, len(f.cursors))
	for key, cur := range f.cursors {
		cp := *cur
		cp.Trail = append([]TrailPoint(nil), cur.Trail...)
		out[key] = cp
	}
	return out
}

func (f *CursorFeed) sweep() {
	t := time.NewTicker(sweepInterval)
	defer t.Stop()
	for {
		select {
		case <-f.stop:
			return
		case <-t.C:
			f.trim()
		}
	}
}

// trim bounds every trail even when no new messages arrive.
func (f *CursorFeed) trim() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, cur := range f.cursors {
		if len(cur.Trail) > trailRetain {
			cur.Trail = cur.Trail[len(cur.Trail)-trailRetain:]
		}
	}
}

// Stop cancels the sweep. Must be called on teardown so the periodic
// callback does not outlive its owner.
func (f *CursorFeed) Stop() {
	f.stopOnce.Do(func() { close(f.stop) })
}
