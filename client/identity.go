package client

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
)

// cursorPalette holds the bright colors remote cursors are drawn in.
var cursorPalette = []string{
	"#EF4444", // red
	"#F97316", // orange
	"#EAB308", // yellow
	"#22C55E", // green
	"#14B8A6", // teal
	"#06B6D4", // cyan
	"#3B82F6", // blue
	"#8B5CF6", // violet
	"#EC4899", // pink
	"#F43F5E", // rose
}

// Identity is the ephemeral per-tab participant: an opaque token plus
// a display color. Created once, never persisted, no uniqueness
// guarantee beyond the odds of the token space.
type Identity struct {
	ID    string
	Color string
}

func NewIdentity() Identity {
	return Identity{
		ID:    "user_" + randomToken(7, tokenCharset),
		Color: cursorPalette[randomIndex(len(cursorPalette))],
	}
}

const (
	tokenCharset    = "0123456789abcdefghijklmnopqrstuvwxyz"
	roomCodeCharset = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	roomCodeLen     = 6
)

var ErrEmptyRoomCode = errors.New("room code empty")

// NewRoomCode generates a short shareable room code. Collisions are not
// checked; the code space is large relative to concurrent duo rooms.
func NewRoomCode() string {
	return randomToken(roomCodeLen, roomCodeCharset)
}

// NormalizeRoomCode trims and uppercases user input so "x7k2pq" and
// "X7K2PQ" name the same room.
func NormalizeRoomCode(raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if code == "" {
		return "", ErrEmptyRoomCode
	}
	return code, nil
}

func randomToken(n int, charset string) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = charset[randomIndex(len(charset))]
	}
	return string(b)
}

func randomIndex(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		// crypto/rand failing means the platform is broken; fall back
		// to the first entry rather than panicking a UI feature.
		return 0
	}
	return int(v.Int64())
}
