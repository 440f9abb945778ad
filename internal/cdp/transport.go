package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// Transport is the duplex channel to one debuggee. It knows nothing about
// command/event semantics; it only moves Messages across the wire.
type Transport struct {
	conn *websocket.Conn
}

// DialOption customizes Dial.
type DialOption func(*websocket.Dialer)

// WithHandshakeTimeout bounds how long the initial WebSocket upgrade may
// take.
func WithHandshakeTimeout(d time.Duration) DialOption {
	return func(dialer *websocket.Dialer) {
		dialer.HandshakeTimeout = d
	}
}

// Dial opens a WebSocket connection to a debuggee's CDP endpoint. The
// debuggee does not answer pings, so — unlike the server-side upgrader
// used elsewhere in this codebase — no ping handler or ping ticker is ever
// installed on the returned Transport.
func Dial(ctx context.Context, wsURL string, opts ...DialOption) (*Transport, error) {
	if _, err := url.Parse(wsURL); err != nil {
		return nil, &TransportError{Op: "dial", Err: fmt.Errorf("invalid websocket url: %w", err)}
	}

	dialer := &websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(dialer)
	}

	conn, _, err := dialer.DialContext(ctx, wsURL, http.Header{})
	if err != nil {
		return nil, &TransportError{Op: "dial", Err: err}
	}
	return &Transport{conn: conn}, nil
}

// Send marshals and writes msg as a single WebSocket text frame.
func (t *Transport) Send(msg *Message) error {
	buf, err := json.Marshal(msg)
	if err != nil {
		return &TransportError{Op: "marshal", Err: err}
	}
	if err := t.conn.WriteMessage(websocket.TextMessage, buf); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}

// Recv blocks for the next inbound frame and unmarshals it into a Message.
// It returns an error wrapping the underlying close/read failure when the
// connection has gone away; callers should treat any such error as session
// termination.
func (t *Transport) Recv() (*Message, error) {
	_, buf, err := t.conn.ReadMessage()
	if err != nil {
		return nil, &TransportError{Op: "read", Err: err}
	}
	var msg Message
	if err := json.Unmarshal(buf, &msg); err != nil {
		return nil, &TransportError{Op: "unmarshal", Err: err}
	}
	return &msg, nil
}

// Close closes the underlying connection.
func (t *Transport) Close() error {
	return t.conn.Close()
}
