// Package client implements the participant side of the presence
// protocol: channel subscription, presence tracking with deferred
// announce, the throttled cursor broadcaster, the bounded cursor feed
// and the duo room lifecycle.
//
// All inbound handlers run serialized on one dispatch goroutine, so a
// handler never races another handler. Failure is absorbed: a client
// whose connection never becomes ready simply stops delivering events.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/RzNDVy/dojo-presence/wire"
)

var ErrClientClosed = errors.New("client closed")

// wsConn is the slice of *websocket.Conn the client needs.
type wsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v any) error
	Close() error
}

// Client owns one websocket connection and multiplexes any number of
// named channels over it.
type Client struct {
	conn wsConn

	writeMu sync.Mutex

	mu       sync.RWMutex
	channels map[string]*Channel
	closed   bool
}

// Dial connects to the presence endpoint (ws://host/api/ws/presence).
func Dial(ctx context.Context, rawURL string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		return nil, err
	}
	return newClient(conn), nil
}

func newClient(conn wsConn) *Client {
	c := &Client{
		conn:     conn,
		channels: make(map[string]*Channel),
	}
	go c.readLoop()
	return c
}

// Channel returns the handle for a named channel, creating it on first
// use. The handle is registered immediately so inbound frames find it;
// nothing goes on the wire until Subscribe.
func (c *Client) Channel(name string) *Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ch, ok := c.channels[name]; ok {
		return ch
	}
	ch := newChannel(c, name)
	c.channels[name] = ch
	return ch
}

func (c *Client) removeChannel(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.channels, name)
}

func (c *Client) channelFor(name string) (*Channel, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ch, ok := c.channels[name]
	return ch, ok
}

// send is fire-and-forget: a nil error means the frame was written,
// not that anyone received it.
func (c *Client) send(env *wire.Envelope) error {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return ErrClientClosed
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(env)
}

// readLoop is the event loop: every handler in every channel of this
// client is invoked from here, in arrival order.
func (c *Client) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			log.Debug().Err(err).Str("module", "client").Msg("read loop ended")
			c.markClosed()
			return
		}
		var env wire.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Warn().Err(err).Str("module", "client").Msg("malformed frame dropped")
			continue
		}
		if env.Channel == "" {
			continue // pong and friends
		}
		if ch, ok := c.channelFor(env.Channel); ok {
			ch.dispatch(&env)
		}
	}
}

func (c *Client) markClosed() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// Close tears the connection down. Idempotent; channel handles survive
// but never fire again.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	_ = c.conn.Close()
}
