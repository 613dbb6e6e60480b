package client_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/RzNDVy/dojo-presence/client"
	httpadapter "github.com/RzNDVy/dojo-presence/internal/adapters/http"
	"github.com/RzNDVy/dojo-presence/internal/app"
	"github.com/RzNDVy/dojo-presence/internal/config"
	"github.com/RzNDVy/dojo-presence/wire"
)

func startServer(t *testing.T) string {
	t.Helper()

	cfg := &config.Config{
		Mode:         "release",
		Secret:       "trail-test",
		ReadLimit:    32768,
		PingPeriod:   54 * time.Second,
		WriteTimeout: 5 * time.Second,
		SendBuffer:   32,
	}
	orch := &app.Orchestrator{
		Registry: app.NewRegistry(),
		Channels: app.NewChannelManager(),
		Policy:   app.DropPolicy{},
	}

	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(httpadapter.SetupRouter(ctx, cfg, orch))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/presence"
}

func dial(t *testing.T, url string) *client.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := client.Dial(ctx, url)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestDuoRoomPairing(t *testing.T) {
	url := startServer(t)

	creator := client.NewDuoSession(dial(t, url))
	code, err := creator.CreateRoom()
	require.NoError(t, err)
	require.Len(t, code, 6)

	joiner := client.NewDuoSession(dial(t, url))
	require.NoError(t, joiner.JoinRoom(strings.ToLower(code)))

	gotCode, role, ok := joiner.Room()
	require.True(t, ok)
	require.Equal(t, code, gotCode)
	require.Equal(t, client.RoleJoiner, role)

	require.Eventually(t, func() bool {
		return creator.OnlineCount() == 2 && joiner.OnlineCount() == 2
	}, 3*time.Second, 20*time.Millisecond, "both parties see the room fill")
}

func TestDuoCursorReachesPeer(t *testing.T) {
	url := startServer(t)

	creator := client.NewDuoSession(dial(t, url))
	code, err := creator.CreateRoom()
	require.NoError(t, err)

	joiner := client.NewDuoSession(dial(t, url))
	require.NoError(t, joiner.JoinRoom(code))

	require.Eventually(t, func() bool {
		return creator.OnlineCount() == 2 && joiner.OnlineCount() == 2
	}, 3*time.Second, 20*time.Millisecond)

	creator.PointerMove(120, 340)

	require.Eventually(t, func() bool {
		cur, ok := joiner.Cursors()["player-1"]
		return ok && cur.X == 120 && cur.Y == 340
	}, 3*time.Second, 20*time.Millisecond, "joiner renders creator's cursor")

	require.Empty(t, creator.Cursors(), "sender never sees its own echo")
}

func TestDuoLeaveDropsBackToOne(t *testing.T) {
	url := startServer(t)

	creator := client.NewDuoSession(dial(t, url))
	code, err := creator.CreateRoom()
	require.NoError(t, err)

	joiner := client.NewDuoSession(dial(t, url))
	require.NoError(t, joiner.JoinRoom(code))

	require.Eventually(t, func() bool {
		return creator.OnlineCount() == 2
	}, 3*time.Second, 20*time.Millisecond)

	joiner.LeaveRoom()
	require.Equal(t, 1, joiner.OnlineCount())

	require.Eventually(t, func() bool {
		return creator.OnlineCount() == 1
	}, 3*time.Second, 20*time.Millisecond, "creator sees the peer depart")
}

func TestGlobalTrackerAcrossClients(t *testing.T) {
	url := startServer(t)

	a := client.NewGlobalTracker(dial(t, url))
	require.NoError(t, a.Start())
	b := client.NewGlobalTracker(dial(t, url))
	require.NoError(t, b.Start())

	require.Eventually(t, func() bool {
		return a.OnlineCount() == 2 && b.OnlineCount() == 2
	}, 3*time.Second, 20*time.Millisecond, "site-wide count converges")

	a.PointerMove(42, 84)

	require.Eventually(t, func() bool {
		cur, ok := b.Cursors()[a.Identity().ID]
		return ok && cur.X == 42 && cur.Color == a.Identity().Color
	}, 3*time.Second, 20*time.Millisecond, "b renders a's cursor with a's color")

	require.Empty(t, a.Cursors(), "self echo filtered")

	b.Stop()
	require.Eventually(t, func() bool {
		return a.OnlineCount() == 1
	}, 3*time.Second, 20*time.Millisecond)
	require.Empty(t, a.Cursors(), "departed cursor removed")
}

func dialRaw(t *testing.T, url, cookie string) *websocket.Conn {
	t.Helper()
	hdr := http.Header{}
	hdr.Set("Cookie", cookie)
	conn, _, err := websocket.DefaultDialer.Dial(url, hdr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func awaitEnvelope(t *testing.T, conn *websocket.Conn, match func(*wire.Envelope) bool) *wire.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var env wire.Envelope
		require.NoError(t, conn.ReadJSON(&env))
		if match(&env) {
			return &env
		}
	}
}

// Browser tabs share the client-token cookie; each connection must
// still be its own session.
func TestTabsSharingCookieStayIndependent(t *testing.T) {
	url := startServer(t)
	const cookie = "ct=same-browser-token"

	tabA := dialRaw(t, url, cookie)
	tabB := dialRaw(t, url, cookie)

	require.NoError(t, tabA.WriteJSON(&wire.Envelope{Type: wire.TypeSubscribe, Channel: wire.GlobalChannel}))
	awaitEnvelope(t, tabA, func(e *wire.Envelope) bool { return e.Type == wire.TypeSubscribed })

	require.NoError(t, tabB.WriteJSON(&wire.Envelope{Type: wire.TypeSubscribe, Channel: wire.GlobalChannel}))
	awaitEnvelope(t, tabB, func(e *wire.Envelope) bool { return e.Type == wire.TypeSubscribed })
	require.NoError(t, tabB.WriteJSON(&wire.Envelope{
		Type:    wire.TypeTrack,
		Channel: wire.GlobalChannel,
		Key:     "user_tabbbbb",
		Meta:    wire.PresenceMeta{"color": "#3B82F6"},
	}))

	// The first tab keeps receiving fanout after the second connects.
	state := awaitEnvelope(t, tabA, func(e *wire.Envelope) bool {
		return e.Type == wire.TypePresenceState && e.Count == 1
	})
	require.Contains(t, state.Members, "user_tabbbbb")

	// Closing one tab must not tear the other's session down.
	require.NoError(t, tabA.Close())
	require.NoError(t, tabB.WriteJSON(&wire.Envelope{Type: wire.TypePing}))
	awaitEnvelope(t, tabB, func(e *wire.Envelope) bool { return e.Type == wire.TypePong })
}

func TestPageSwitchPropagates(t *testing.T) {
	url := startServer(t)

	a := client.NewGlobalTracker(dial(t, url))
	require.NoError(t, a.Start())
	b := client.NewGlobalTracker(dial(t, url))
	require.NoError(t, b.Start())

	require.Eventually(t, func() bool {
		return a.OnlineCount() == 2 && b.OnlineCount() == 2
	}, 3*time.Second, 20*time.Millisecond)

	a.PointerMove(10, 20)
	a.SetPage("quiz")

	require.Eventually(t, func() bool {
		cur, ok := b.Cursors()[a.Identity().ID]
		return ok && cur.Page == "quiz"
	}, 3*time.Second, 20*time.Millisecond, "page change is announced immediately")
}
