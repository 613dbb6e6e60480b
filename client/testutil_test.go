package client

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/RzNDVy/dojo-presence/wire"
)

// fakeSocket satisfies wsConn without a network. Outbound envelopes are
// recorded decoded; inbound frames are fed through deliver or, for
// deterministic tests, handed straight to Channel.dispatch.
type fakeSocket struct {
	mu      sync.Mutex
	sent    []wire.Envelope
	inbound chan []byte
	closed  bool
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{inbound: make(chan []byte, 16)}
}

func (f *fakeSocket) WriteJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var env wire.Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.New("socket closed")
	}
	f.sent = append(f.sent, env)
	return nil
}

func (f *fakeSocket) ReadMessage() (int, []byte, error) {
	b, ok := <-f.inbound
	if !ok {
		return 0, nil, errors.New("socket closed")
	}
	return websocket.TextMessage, b, nil
}

func (f *fakeSocket) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.inbound)
	}
	return nil
}

func (f *fakeSocket) sentEnvelopes() []wire.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]wire.Envelope(nil), f.sent...)
}

func (f *fakeSocket) sentOfType(kind string) []wire.Envelope {
	var out []wire.Envelope
	for _, env := range f.sentEnvelopes() {
		if env.Type == kind {
			out = append(out, env)
		}
	}
	return out
}

func newFakeClient() (*Client, *fakeSocket) {
	sock := newFakeSocket()
	return newClient(sock), sock
}
