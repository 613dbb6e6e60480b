package domain

import (
	"time"

	"github.com/RzNDVy/dojo-presence/wire"
)

// PresenceKey identifies a member inside a channel's presence set.
// Global channels key by participant ID, duo rooms by role key
// ("player-1", "player-2").
type PresenceKey string

// PresenceRecord is the per-member metadata a channel tracks. Meta is
// relayed to peers verbatim; JoinedAt is server-side bookkeeping.
type PresenceRecord struct {
	Key      PresenceKey
	Meta     wire.PresenceMeta
	JoinedAt time.Time
}

// NewPresenceRecord avoids raw literals in adapters and keeps construction obvious.
func NewPresenceRecord(key PresenceKey, meta wire.PresenceMeta) *PresenceRecord {
	return &PresenceRecord{Key: key, Meta: meta, JoinedAt: time.Now()}
}
