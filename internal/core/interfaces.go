package core

import (
	"github.com/RzNDVy/dojo-presence/internal/domain"
	"github.com/RzNDVy/dojo-presence/wire"
)

// Frame is a marshaled wire envelope ready for the transport.
type Frame []byte

type SessionID string

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// MemberSession binds a connected participant to its transport endpoint.
// This is what a channel stores and fans out to.
type MemberSession interface {
	Conn() SignalConnection
}

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SentTo  int
	Dropped []SessionID
}

// ChannelService is the core-facing API of a channel.
// It owns the subscriber and presence sets but never touches transport
// resources.
type ChannelService interface {
	Channel() *domain.Channel
	SubscriberCount() int
	Empty() bool

	Subscribe(sid SessionID, ms MemberSession)
	Unsubscribe(sid SessionID)

	// Track upserts the presence record a session asserts for itself.
	// Re-tracking the same session replaces its record; the freshest
	// meta wins. Untrack withdraws it and reports which key was held.
	Track(sid SessionID, rec *domain.PresenceRecord)
	Untrack(sid SessionID) (domain.PresenceKey, bool)

	// PresenceSnapshot is the authoritative membership view. Consumers
	// derive counts from it, never from join/leave deltas.
	PresenceSnapshot() (map[domain.PresenceKey]wire.PresenceMeta, int)

	// Broadcast fans out to every subscriber except from. Publish fans
	// out to everyone, sender included (presence snapshots).
	Broadcast(from SessionID, data Frame) PublishResult
	Publish(data Frame) PublishResult
}

type ChannelInfo struct {
	Name        domain.ChannelName `json:"name"`
	Subscribers int                `json:"subscribers"`
	Tracked     int                `json:"tracked"`
}

type ChannelFactory interface {
	GetOrCreate(name domain.ChannelName) ChannelService
	Get(name domain.ChannelName) (ChannelService, bool)
	List() []ChannelInfo
	StopIfEmpty(name domain.ChannelName)
}
