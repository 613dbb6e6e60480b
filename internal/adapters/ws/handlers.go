package ws

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/RzNDVy/dojo-presence/internal/app"
	"github.com/RzNDVy/dojo-presence/internal/core"
	"github.com/RzNDVy/dojo-presence/internal/domain"
	"github.com/RzNDVy/dojo-presence/internal/metrics"
	"github.com/RzNDVy/dojo-presence/wire"
)

func (ctl *Controller) handleSubscribe(sid core.SessionID, c *WsConn, env *wire.Envelope) {
	name, err := domain.ParseChannelName(env.Channel)
	if err != nil {
		log.Warn().Err(err).Str("module", "ws").Str("sid", string(sid)).Msg("bad subscribe")
		return
	}
	ch, ok := ctl.Orch.Subscribe(sid, name)
	if !ok {
		log.Warn().Str("module", "ws").Str("sid", string(sid)).Str("channel", env.Channel).Msg("subscribe rejected")
		return
	}
	ctl.sendEnvelope(c, &wire.Envelope{Type: wire.TypeSubscribed, Channel: env.Channel})
	// New subscribers get the current snapshot right away instead of
	// waiting for the next membership change.
	ctl.sendEnvelope(c, presenceState(ch))
}

func (ctl *Controller) handleTrack(sid core.SessionID, env *wire.Envelope) {
	if env.Key == "" {
		log.Warn().Str("module", "ws").Str("sid", string(sid)).Msg("track without key")
		return
	}
	name, err := domain.ParseChannelName(env.Channel)
	if err != nil {
		return
	}
	ch, ok := ctl.Orch.Track(sid, name, domain.PresenceKey(env.Key), env.Meta)
	if !ok {
		log.Warn().Str("module", "ws").Str("sid", string(sid)).Str("channel", env.Channel).Msg("track rejected")
		return
	}

	join, err := json.Marshal(&wire.Envelope{
		Type:    wire.TypePresenceJoin,
		Channel: env.Channel,
		Key:     env.Key,
		Meta:    env.Meta,
	})
	if err == nil {
		ch.Broadcast(sid, join)
	}
	ctl.publishState(ch)
}

func (ctl *Controller) handleUntrack(sid core.SessionID, env *wire.Envelope) {
	name, err := domain.ParseChannelName(env.Channel)
	if err != nil {
		return
	}
	dep, ok := ctl.Orch.Untrack(sid, name)
	if !ok || !dep.HadPresence {
		return
	}
	ctl.fanDeparture(dep, env.Channel)
}

func (ctl *Controller) handleBroadcast(sid core.SessionID, env *wire.Envelope) {
	if env.Event == "" || len(env.Payload) == 0 {
		log.Warn().Str("module", "ws").Str("sid", string(sid)).Msg("broadcast missing event or payload")
		return
	}
	if !ctl.limiter.Allow(sid) {
		metrics.RateLimited.Inc()
		return
	}
	name, err := domain.ParseChannelName(env.Channel)
	if err != nil {
		return
	}
	// Rebuild the relay frame rather than echoing client bytes; only
	// the fields the protocol defines survive.
	relay, err := json.Marshal(&wire.Envelope{
		Type:    wire.TypeBroadcast,
		Channel: env.Channel,
		Event:   env.Event,
		Payload: env.Payload,
	})
	if err != nil {
		return
	}
	if _, ok := ctl.Orch.Broadcast(sid, name, relay); !ok {
		log.Warn().Str("module", "ws").Str("sid", string(sid)).Str("channel", env.Channel).Msg("broadcast to unsubscribed channel")
	}
}

func (ctl *Controller) handleLeave(sid core.SessionID, env *wire.Envelope) {
	name, err := domain.ParseChannelName(env.Channel)
	if err != nil {
		return
	}
	dep, ok := ctl.Orch.Leave(sid, name)
	if !ok {
		return
	}
	log.Info().Str("module", "ws").Str("sid", string(sid)).Str("channel", env.Channel).Msg("leave")
	if dep.HadPresence {
		ctl.fanDeparture(dep, env.Channel)
	}
}

func (ctl *Controller) onDisconnect(sid core.SessionID) {
	ctl.limiter.Forget(sid)
	for _, dep := range ctl.Orch.OnDisconnect(sid) {
		if dep.HadPresence {
			ctl.fanDeparture(dep, string(dep.Channel.Channel().Name))
		}
	}
}

// fanDeparture tells the survivors who left, then gives them the fresh
// authoritative snapshot. The departed session is already untracked (and
// on leave/disconnect unsubscribed), so the delta cannot resurrect it.
func (ctl *Controller) fanDeparture(dep app.Departure, channel string) {
	leave, err := json.Marshal(&wire.Envelope{
		Type:    wire.TypePresenceLeave,
		Channel: channel,
		Key:     string(dep.Key),
	})
	if err == nil {
		ctl.Orch.Publish(dep.Channel, leave)
	}
	ctl.publishState(dep.Channel)
}

func presenceState(ch core.ChannelService) *wire.Envelope {
	members, count := ch.PresenceSnapshot()
	out := make(map[string]wire.PresenceMeta, len(members))
	for key, meta := range members {
		out[string(key)] = meta
	}
	return &wire.Envelope{
		Type:    wire.TypePresenceState,
		Channel: string(ch.Channel().Name),
		Members: out,
		Count:   count,
	}
}

func (ctl *Controller) publishState(ch core.ChannelService) {
	b, err := json.Marshal(presenceState(ch))
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("publishState marshal")
		return
	}
	ctl.Orch.Publish(ch, b)
}
