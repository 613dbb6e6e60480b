package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/RzNDVy/dojo-presence/internal/core"
	"github.com/RzNDVy/dojo-presence/internal/metrics"
	"github.com/RzNDVy/dojo-presence/wire"
)

func (ctl *Controller) writePump(ctx context.Context, c *WsConn) {
	ping := time.NewTicker(ctl.Cfg.PingPeriod)
	defer ping.Stop()
	// Closing here unblocks readPump, so a write error tears the whole
	// session down instead of leaving it half-dead.
	defer c.Close()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "ws").Msg("writePump ctx done")
			return
		case <-ping.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.Cfg.WriteTimeout)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Warn().Err(err).Str("module", "ws").Msg("writePump ping error")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "ws").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.Cfg.WriteTimeout)); err != nil {
				log.Error().Err(err).Str("module", "ws").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "ws").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, sid core.SessionID, c *WsConn) {
	defer func() {
		log.Info().Str("module", "ws").Str("sid", string(sid)).Msg("readPump closing")
		c.Close()
		ctl.onDisconnect(sid)
		metrics.ConnectionsActive.Dec()
	}()

	c.conn.SetReadLimit(ctl.Cfg.ReadLimit)

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "ws").Str("sid", string(sid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("module", "ws").Str("sid", string(sid)).Msg("readPump read error")
				return
			}
			ctl.handleMessage(sid, c, data)
		}
	}
}

func (ctl *Controller) handleMessage(sid core.SessionID, c *WsConn, data []byte) {
	var env wire.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("bad json")
		return
	}

	switch env.Type {
	case wire.TypeSubscribe:
		ctl.handleSubscribe(sid, c, &env)
	case wire.TypeTrack:
		ctl.handleTrack(sid, &env)
	case wire.TypeUntrack:
		ctl.handleUntrack(sid, &env)
	case wire.TypeBroadcast:
		ctl.handleBroadcast(sid, &env)
	case wire.TypeLeave:
		ctl.handleLeave(sid, &env)
	case wire.TypePing:
		ctl.sendEnvelope(c, &wire.Envelope{Type: wire.TypePong})
	default:
		log.Warn().Str("module", "ws").Str("type", env.Type).Msg("unknown message")
	}
}

func (ctl *Controller) sendEnvelope(c *WsConn, env *wire.Envelope) {
	b, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("sendEnvelope marshal")
		return
	}
	_ = c.TrySend(b)
}
