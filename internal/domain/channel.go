// Package domain contains entity without logic, just meta-data
package domain

import "errors"

const MaxChannelNameLen = 64

var (
	ErrChannelNameEmpty   = errors.New("channel name empty")
	ErrChannelNameTooLong = errors.New("channel name too long")
)

type ChannelName string

// Channel is a named pub/sub topic. The transport does not know what a
// channel is for; global cursor rooms and duo rooms are naming policy
// of the clients.
type Channel struct {
	Name ChannelName
}

// ParseChannelName validates client-supplied channel names before a
// channel is materialized for them.
func ParseChannelName(raw string) (ChannelName, error) {
	if len(raw) == 0 {
		return "", ErrChannelNameEmpty
	}
	if len(raw) > MaxChannelNameLen {
		return "", ErrChannelNameTooLong
	}
	return ChannelName(raw), nil
}
