package app

import "github.com/RzNDVy/dojo-presence/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	KickMember
)

type Policy interface {
	OnBackPressure(ch core.ChannelService, sid core.SessionID) BackpressureAction
}

// DropPolicy sheds frames on slow receivers. Cursor traffic is
// superseded by the next movement anyway, so dropping costs nothing.
type DropPolicy struct{}

func (DropPolicy) OnBackPressure(ch core.ChannelService, sid core.SessionID) BackpressureAction {
	return DropFrame
}

// KickPolicy cancels the receiver's session instead. Useful when a full
// send buffer means the peer is gone rather than slow.
type KickPolicy struct{}

func (KickPolicy) OnBackPressure(ch core.ChannelService, sid core.SessionID) BackpressureAction {
	return KickMember
}
