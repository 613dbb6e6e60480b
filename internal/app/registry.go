package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/RzNDVy/dojo-presence/internal/core"
	"github.com/RzNDVy/dojo-presence/internal/domain"
)

type sessionEntry struct {
	Session  core.MemberSession
	Channels map[domain.ChannelName]struct{}
	Cancel   context.CancelFunc
}

// Registry tracks which connection a session owns and which channels it
// is attached to. One entry per websocket.
type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*sessionEntry
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[core.SessionID]*sessionEntry)}
}

func (r *Registry) Bind(sid core.SessionID, sess core.MemberSession, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sid] = &sessionEntry{
		Session:  sess,
		Channels: make(map[domain.ChannelName]struct{}),
		Cancel:   cancel,
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("bound session")
}

func (r *Registry) GetSession(sid core.SessionID) (core.MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[sid]; ok {
		return e.Session, true
	}
	return nil, false
}

func (r *Registry) Unbind(sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sid)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unbind session")
}

// AddChannel records the attachment; reports false when the session is
// unknown or already attached.
func (r *Registry) AddChannel(sid core.SessionID, name domain.ChannelName) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return false
	}
	if _, dup := e.Channels[name]; dup {
		return false
	}
	e.Channels[name] = struct{}{}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("channel", string(name)).Msg("attached channel")
	return true
}

func (r *Registry) RemoveChannel(sid core.SessionID, name domain.ChannelName) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return false
	}
	if _, has := e.Channels[name]; !has {
		return false
	}
	delete(e.Channels, name)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("channel", string(name)).Msg("detached channel")
	return true
}

func (r *Registry) HasChannel(sid core.SessionID, name domain.ChannelName) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok {
		return false
	}
	_, has := e.Channels[name]
	return has
}

func (r *Registry) ChannelsOf(sid core.SessionID) []domain.ChannelName {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok {
		return nil
	}
	out := make([]domain.ChannelName, 0, len(e.Channels))
	for name := range e.Channels {
		out = append(out, name)
	}
	return out
}

func (r *Registry) Cancel(sid core.SessionID) bool {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("canceled session")
	return true
}
