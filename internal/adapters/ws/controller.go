package ws

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/RzNDVy/dojo-presence/internal/app"
	"github.com/RzNDVy/dojo-presence/internal/config"
	"github.com/RzNDVy/dojo-presence/internal/core"
	"github.com/RzNDVy/dojo-presence/internal/metrics"
)

type Controller struct {
	Orch    *app.Orchestrator
	Cfg     *config.Config
	limiter *RateLimiter
}

func NewController(orch *app.Orchestrator, cfg *config.Config) *Controller {
	return &Controller{
		Orch:    orch,
		Cfg:     cfg,
		limiter: NewRateLimiter(cfg.BroadcastLimit, cfg.BroadcastWindow),
	}
}

// newSessionID combines the browser's client token with a fresh uuid
// so two tabs of one browser stay distinct sessions.
func newSessionID(token string) core.SessionID {
	return core.SessionID(token + "#" + uuid.NewString())
}

func (ctl *Controller) upgrader() websocket.Upgrader {
	allowed := ctl.Cfg.AllowedOrigins
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if len(allowed) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, o := range allowed {
				if o == origin {
					return true
				}
			}
			return false
		},
	}
}

// HandlePresence upgrades the request and runs the session until the
// connection dies or the server context is canceled.
func (ctl *Controller) HandlePresence(ctx context.Context, c *gin.Context) {
	// The client token is per browser, shared by every tab. Each
	// connection gets its own session ID so tabs never overwrite each
	// other in the registry.
	sid := newSessionID(c.GetString("client_token"))
	log.Info().Str("module", "ws").Str("sid", string(sid)).Msg("new WS connection")

	up := ctl.upgrader()
	conn, err := up.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("ws upgrade")
		return
	}

	wc := NewWsConn(conn, ctl.Cfg.SendBuffer)
	sess := core.NewMemberSession(wc)
	ctx, cancel := context.WithCancel(ctx)
	ctl.Orch.Registry.Bind(sid, sess, cancel)
	metrics.ConnectionsActive.Inc()

	go ctl.writePump(ctx, wc)
	go ctl.readPump(ctx, sid, wc)
}
