package client

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/RzNDVy/dojo-presence/wire"
)

// SyncHandler receives the authoritative membership snapshot. The count
// argument is the only valid source of an online counter; join/leave
// deltas must never be summed into one.
type SyncHandler func(count int, members map[string]wire.PresenceMeta)

type JoinHandler func(key string, meta wire.PresenceMeta)

type LeaveHandler func(key string)

type BroadcastHandler func(payload json.RawMessage)

type pendingTrack struct {
	key  string
	meta wire.PresenceMeta
}

// Channel is a handle on one named channel of a Client. Register
// handlers, then Subscribe; Track before the subscription is confirmed
// is deferred and flushed automatically on the ack.
type Channel struct {
	client *Client
	name   string

	mu          sync.Mutex
	subscribed  bool // server confirmed
	closed      bool
	pending     *pendingTrack
	trackedKey  string
	onSync      SyncHandler
	onJoin      JoinHandler
	onLeave     LeaveHandler
	onBroadcast map[string][]BroadcastHandler
}

func newChannel(c *Client, name string) *Channel {
	return &Channel{
		client:      c,
		name:        name,
		onBroadcast: make(map[string][]BroadcastHandler),
	}
}

func (ch *Channel) Name() string { return ch.name }

func (ch *Channel) OnSync(fn SyncHandler) *Channel {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.onSync = fn
	return ch
}

func (ch *Channel) OnJoin(fn JoinHandler) *Channel {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.onJoin = fn
	return ch
}

func (ch *Channel) OnLeave(fn LeaveHandler) *Channel {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.onLeave = fn
	return ch
}

func (ch *Channel) OnBroadcast(event string, fn BroadcastHandler) *Channel {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.onBroadcast[event] = append(ch.onBroadcast[event], fn)
	return ch
}

// Subscribe asks the server to attach this channel. Completion is
// signaled by the subscribed ack, never by blocking the caller.
func (ch *Channel) Subscribe() error {
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return ErrClientClosed
	}
	ch.mu.Unlock()
	return ch.client.send(&wire.Envelope{Type: wire.TypeSubscribe, Channel: ch.name})
}

// Track announces presence under key with the given metadata. Before
// the subscription is confirmed the call is stashed (latest wins) and
// replayed on the ack, so presence never silently no-ops.
func (ch *Channel) Track(key string, meta wire.PresenceMeta) error {
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return ErrClientClosed
	}
	if !ch.subscribed {
		ch.pending = &pendingTrack{key: key, meta: meta}
		ch.mu.Unlock()
		return nil
	}
	ch.trackedKey = key
	ch.mu.Unlock()
	return ch.client.send(&wire.Envelope{Type: wire.TypeTrack, Channel: ch.name, Key: key, Meta: meta})
}

// Untrack withdraws this channel's presence record.
func (ch *Channel) Untrack() error {
	ch.mu.Lock()
	ch.pending = nil
	key := ch.trackedKey
	ch.trackedKey = ""
	closed := ch.closed
	ch.mu.Unlock()
	if closed || key == "" {
		return nil
	}
	return ch.client.send(&wire.Envelope{Type: wire.TypeUntrack, Channel: ch.name, Key: key})
}

// Send broadcasts a payload under an event tag. Fire-and-forget: no
// delivery confirmation, no retry, the next send supersedes it.
func (ch *Channel) Send(event string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return ErrClientClosed
	}
	ch.mu.Unlock()
	return ch.client.send(&wire.Envelope{
		Type:    wire.TypeBroadcast,
		Channel: ch.name,
		Event:   event,
		Payload: raw,
	})
}

// Close detaches the channel. Idempotent, and safe when the channel
// never reached a subscribed state.
func (ch *Channel) Close() {
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return
	}
	ch.closed = true
	ch.pending = nil
	ch.subscribed = false
	ch.mu.Unlock()

	// Best effort; the server also cleans up on disconnect.
	_ = ch.client.send(&wire.Envelope{Type: wire.TypeLeave, Channel: ch.name})
	ch.client.removeChannel(ch.name)
}

// dispatch runs on the client's read goroutine. Handler references are
// copied out so a handler may call back into the channel freely.
func (ch *Channel) dispatch(env *wire.Envelope) {
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return
	}

	switch env.Type {
	case wire.TypeSubscribed:
		ch.subscribed = true
		pending := ch.pending
		ch.pending = nil
		if pending != nil {
			ch.trackedKey = pending.key
		}
		ch.mu.Unlock()
		if pending != nil {
			err := ch.client.send(&wire.Envelope{
				Type:    wire.TypeTrack,
				Channel: ch.name,
				Key:     pending.key,
				Meta:    pending.meta,
			})
			if err != nil {
				log.Warn().Err(err).Str("module", "client").Str("channel", ch.name).Msg("deferred track failed")
			}
		}

	case wire.TypePresenceState:
		fn := ch.onSync
		ch.mu.Unlock()
		if fn != nil {
			fn(env.Count, env.Members)
		}

	case wire.TypePresenceJoin:
		fn := ch.onJoin
		ch.mu.Unlock()
		if fn != nil {
			fn(env.Key, env.Meta)
		}

	case wire.TypePresenceLeave:
		fn := ch.onLeave
		ch.mu.Unlock()
		if fn != nil {
			fn(env.Key)
		}

	case wire.TypeBroadcast:
		handlers := append([]BroadcastHandler(nil), ch.onBroadcast[env.Event]...)
		ch.mu.Unlock()
		for _, fn := range handlers {
			fn(env.Payload)
		}

	default:
		ch.mu.Unlock()
	}
}
