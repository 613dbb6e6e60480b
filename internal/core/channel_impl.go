package core

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/RzNDVy/dojo-presence/internal/domain"
	"github.com/RzNDVy/dojo-presence/wire"
)

// channelImpl is a threadsafe in-memory channel.
// It never closes adapter-owned resources.
type channelImpl struct {
	channel *domain.Channel

	mu       sync.RWMutex
	bySID    map[SessionID]MemberSession
	presence map[SessionID]*domain.PresenceRecord
}

func NewChannelService(channel *domain.Channel) ChannelService {
	return &channelImpl{
		channel:  channel,
		bySID:    make(map[SessionID]MemberSession),
		presence: make(map[SessionID]*domain.PresenceRecord),
	}
}

func (c *channelImpl) Channel() *domain.Channel { return c.channel }

func (c *channelImpl) SubscriberCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.bySID)
}

func (c *channelImpl) Empty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.bySID) == 0
}

func (c *channelImpl) Subscribe(sid SessionID, ms MemberSession) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bySID[sid] = ms
	log.Info().Str("module", "core.channel").Str("channel", string(c.channel.Name)).Str("sid", string(sid)).Msg("subscriber added")
}

func (c *channelImpl) Unsubscribe(sid SessionID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.bySID, sid)
	// A session that is gone can no longer assert presence.
	delete(c.presence, sid)
	log.Info().Str("module", "core.channel").Str("channel", string(c.channel.Name)).Str("sid", string(sid)).Msg("subscriber removed")
}

func (c *channelImpl) Track(sid SessionID, rec *domain.PresenceRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.bySID[sid]; !ok {
		// Presence belongs to subscribers only; a stray track from a
		// detached session is dropped.
		log.Warn().Str("module", "core.channel").Str("channel", string(c.channel.Name)).Str("sid", string(sid)).Msg("track from non-subscriber ignored")
		return
	}
	c.presence[sid] = rec
	log.Info().Str("module", "core.channel").Str("channel", string(c.channel.Name)).Str("sid", string(sid)).Str("key", string(rec.Key)).Msg("presence tracked")
}

func (c *channelImpl) Untrack(sid SessionID) (domain.PresenceKey, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.presence[sid]
	if !ok {
		return "", false
	}
	delete(c.presence, sid)
	log.Info().Str("module", "core.channel").Str("channel", string(c.channel.Name)).Str("sid", string(sid)).Str("key", string(rec.Key)).Msg("presence withdrawn")
	return rec.Key, true
}

func (c *channelImpl) PresenceSnapshot() (map[domain.PresenceKey]wire.PresenceMeta, int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[domain.PresenceKey]wire.PresenceMeta, len(c.presence))
	for _, rec := range c.presence {
		// Two sessions may assert the same key (duo role collisions);
		// the map keeps the last writer, matching broadcast semantics.
		out[rec.Key] = rec.Meta
	}
	return out, len(out)
}

func (c *channelImpl) Broadcast(from SessionID, data Frame) PublishResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fanout(from, data)
}

func (c *channelImpl) Publish(data Frame) PublishResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fanout("", data)
}

// fanout requires c.mu held for reading.
func (c *channelImpl) fanout(skip SessionID, data Frame) PublishResult {
	res := PublishResult{}
	for sid, m := range c.bySID {
		if sid == skip {
			continue
		}
		if err := m.Conn().TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, sid)
			continue
		}
		res.SentTo++
	}
	log.Debug().Str("module", "core.channel").Str("channel", string(c.channel.Name)).Str("from", string(skip)).Int("sent_to", res.SentTo).Int("dropped", len(res.Dropped)).Msg("fanout result")
	return res
}
