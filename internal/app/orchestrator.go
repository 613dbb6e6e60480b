package app

import (
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/RzNDVy/dojo-presence/internal/core"
	"github.com/RzNDVy/dojo-presence/internal/domain"
	"github.com/RzNDVy/dojo-presence/internal/metrics"
	"github.com/RzNDVy/dojo-presence/wire"
)

// Orchestrator coordinates registry, channels and backpressure policy.
// Adapters call into it; it never builds wire envelopes itself.
type Orchestrator struct {
	Registry *Registry
	Channels core.ChannelFactory
	Policy   Policy
}

// Departure describes a session leaving one channel, with the presence
// key it held there (if any) so the adapter can fan out the delta.
type Departure struct {
	Channel     core.ChannelService
	Key         domain.PresenceKey
	HadPresence bool
}

// Subscribe attaches sid to the named channel, creating it on first
// reference. Returns false for unknown sessions and duplicate
// subscriptions.
func (o *Orchestrator) Subscribe(sid core.SessionID, name domain.ChannelName) (core.ChannelService, bool) {
	sess, ok := o.Registry.GetSession(sid)
	if !ok {
		return nil, false
	}
	if !o.Registry.AddChannel(sid, name) {
		return nil, false
	}
	ch := o.Channels.GetOrCreate(name)
	ch.Subscribe(sid, sess)
	return ch, true
}

// Track asserts sid's presence record in a channel it is subscribed to.
func (o *Orchestrator) Track(sid core.SessionID, name domain.ChannelName, key domain.PresenceKey, meta wire.PresenceMeta) (core.ChannelService, bool) {
	if !o.Registry.HasChannel(sid, name) {
		return nil, false
	}
	ch, ok := o.Channels.Get(name)
	if !ok {
		return nil, false
	}
	if _, retrack := ch.Untrack(sid); !retrack {
		metrics.PresenceTracked.Inc()
	}
	ch.Track(sid, domain.NewPresenceRecord(key, meta))
	return ch, true
}

// Untrack withdraws sid's presence without detaching the subscription.
func (o *Orchestrator) Untrack(sid core.SessionID, name domain.ChannelName) (Departure, bool) {
	if !o.Registry.HasChannel(sid, name) {
		return Departure{}, false
	}
	ch, ok := o.Channels.Get(name)
	if !ok {
		return Departure{}, false
	}
	key, had := ch.Untrack(sid)
	if had {
		metrics.PresenceTracked.Dec()
	}
	return Departure{Channel: ch, Key: key, HadPresence: had}, true
}

// Leave detaches sid from one channel and garbage-collects it when it
// was the last subscriber.
func (o *Orchestrator) Leave(sid core.SessionID, name domain.ChannelName) (Departure, bool) {
	if !o.Registry.RemoveChannel(sid, name) {
		return Departure{}, false
	}
	ch, ok := o.Channels.Get(name)
	if !ok {
		return Departure{}, false
	}
	key, had := ch.Untrack(sid)
	if had {
		metrics.PresenceTracked.Dec()
	}
	ch.Unsubscribe(sid)
	o.Channels.StopIfEmpty(name)
	return Departure{Channel: ch, Key: key, HadPresence: had}, true
}

// OnDisconnect tears down every channel attachment of a dead session.
// The returned departures let the adapter fan presence deltas out to
// the survivors.
func (o *Orchestrator) OnDisconnect(sid core.SessionID) []Departure {
	names := o.Registry.ChannelsOf(sid)
	out := make([]Departure, 0, len(names))
	for _, name := range names {
		if dep, ok := o.Leave(sid, name); ok {
			out = append(out, dep)
		}
	}
	o.Registry.Unbind(sid)
	return out
}

// Broadcast relays a frame to every other subscriber of the channel.
// Backpressured receivers are handed to the policy; nothing is retried.
func (o *Orchestrator) Broadcast(sid core.SessionID, name domain.ChannelName, data core.Frame) (core.PublishResult, bool) {
	if !o.Registry.HasChannel(sid, name) {
		return core.PublishResult{}, false
	}
	ch, ok := o.Channels.Get(name)
	if !ok {
		return core.PublishResult{}, false
	}
	res := ch.Broadcast(sid, data)
	metrics.BroadcastsRelayed.WithLabelValues(ChannelKind(name)).Inc()
	o.handleBackpressure(ch, res)
	return res, true
}

// Publish relays a frame to every subscriber, sender included.
func (o *Orchestrator) Publish(ch core.ChannelService, data core.Frame) {
	res := ch.Publish(data)
	o.handleBackpressure(ch, res)
}

func (o *Orchestrator) handleBackpressure(ch core.ChannelService, res core.PublishResult) {
	if o.Policy == nil {
		return
	}
	for _, slow := range res.Dropped {
		switch o.Policy.OnBackPressure(ch, slow) {
		case KickMember:
			o.Registry.Cancel(slow)
		case DropFrame:
			metrics.FramesDropped.Inc()
		case NoAction:
		}
		log.Debug().Str("module", "app.orchestrator").Str("channel", string(ch.Channel().Name)).Str("sid", string(slow)).Msg("receiver backpressured")
	}
}

// ChannelKind buckets channel names for metrics labels.
func ChannelKind(name domain.ChannelName) string {
	switch {
	case string(name) == wire.GlobalChannel:
		return "global"
	case strings.HasPrefix(string(name), "duo-room-"):
		return "duo"
	default:
		return "other"
	}
}
