package cdp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// scriptedServer is a single-connection WebSocket test double whose wire
// traffic the test fully controls: frames pushed onto outbound are
// written to the client in order, frames the client sends land on
// inbound. Unlike fakeDebuggee in session_test.go (which always answers
// immediately), a scriptedServer lets a test stay silent to exercise the
// timeout paths, or interleave events and responses to exercise ordering.
type scriptedServer struct {
	t        *testing.T
	server   *httptest.Server
	wsURL    string
	outbound chan []byte
	inbound  chan []byte
}

func newScriptedServer(t *testing.T) *scriptedServer {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	s := &scriptedServer{
		t:        t,
		outbound: make(chan []byte, 32),
		inbound:  make(chan []byte, 32),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		readerDone := make(chan struct{})
		go func() {
			defer close(readerDone)
			for {
				_, buf, err := conn.ReadMessage()
				if err != nil {
					return
				}
				select {
				case s.inbound <- buf:
				default:
				}
			}
		}()

		for {
			select {
			case frame, ok := <-s.outbound:
				if !ok {
					return
				}
				if conn.WriteMessage(websocket.TextMessage, frame) != nil {
					return
				}
			case <-readerDone:
				return
			}
		}
	})

	s.server = httptest.NewServer(mux)
	s.wsURL = "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws"
	return s
}

func (s *scriptedServer) sendEvent(method string) {
	buf, err := json.Marshal(Message{Method: method, Params: json.RawMessage(`{}`)})
	require.NoError(s.t, err)
	s.outbound <- buf
}

func (s *scriptedServer) sendResponse(id int64) {
	s.sendResponseWithResult(id, `{}`)
}

func (s *scriptedServer) sendResponseWithResult(id int64, resultJSON string) {
	buf, err := json.Marshal(Message{ID: id, Result: json.RawMessage(resultJSON)})
	require.NoError(s.t, err)
	s.outbound <- buf
}

func (s *scriptedServer) Close() {
	close(s.outbound)
	s.server.Close()
}

func (s *scriptedServer) dialTransport(t *testing.T) *Transport {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	transport, err := Dial(ctx, s.wsURL)
	require.NoError(t, err)
	return transport
}
