package ws

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/RzNDVy/dojo-presence/internal/core"
)

var ErrBackpressure = errors.New("backpressure")

type WsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func NewWsConn(conn *websocket.Conn, sendBuffer int) *WsConn {
	return &WsConn{
		conn: conn,
		send: make(chan core.Frame, sendBuffer),
	}
}

func (c *WsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}
