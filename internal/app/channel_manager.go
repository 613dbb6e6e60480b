package app

import (
	"sync"

	"github.com/RzNDVy/dojo-presence/internal/core"
	"github.com/RzNDVy/dojo-presence/internal/domain"
	"github.com/RzNDVy/dojo-presence/internal/metrics"
)

type ChannelManagerImpl struct {
	mu       sync.RWMutex
	channels map[domain.ChannelName]core.ChannelService
}

func NewChannelManager() core.ChannelFactory {
	return &ChannelManagerImpl{channels: make(map[domain.ChannelName]core.ChannelService)}
}

func (f *ChannelManagerImpl) GetOrCreate(name domain.ChannelName) core.ChannelService {
	f.mu.RLock()
	ch, ok := f.channels[name]
	f.mu.RUnlock()
	if ok {
		return ch
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if ch, ok = f.channels[name]; ok {
		return ch
	}
	ch = core.NewChannelService(&domain.Channel{Name: name})
	f.channels[name] = ch
	metrics.ChannelsActive.Inc()
	return ch
}

func (f *ChannelManagerImpl) Get(name domain.ChannelName) (core.ChannelService, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	ch, ok := f.channels[name]
	return ch, ok
}

func (f *ChannelManagerImpl) List() []core.ChannelInfo {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]core.ChannelInfo, 0, len(f.channels))
	for name, ch := range f.channels {
		_, tracked := ch.PresenceSnapshot()
		out = append(out, core.ChannelInfo{
			Name:        name,
			Subscribers: ch.SubscriberCount(),
			Tracked:     tracked,
		})
	}
	return out
}

// StopIfEmpty garbage-collects a channel once its last subscriber left.
// Presence data is ephemeral, so nothing needs flushing.
func (f *ChannelManagerImpl) StopIfEmpty(name domain.ChannelName) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[name]
	if !ok || !ch.Empty() {
		return
	}
	delete(f.channels, name)
	metrics.ChannelsActive.Dec()
}
