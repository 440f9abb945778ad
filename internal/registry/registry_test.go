package registry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"jstsdebug/internal/cdp"
)

// newTestSession dials a throwaway WebSocket server that reads and
// discards every frame without answering, and wraps it
// in a *cdp.Session, for exercising the registry without a real sandbox.
func newTestSession(t *testing.T, id string) (*cdp.Session, func()) {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	transport, err := cdp.Dial(ctx, wsURL)
	require.NoError(t, err)

	session := cdp.NewSession(id, transport, nil, time.Second, nil)
	return session, server.Close
}

func TestRegistryPutGetRemove(t *testing.T) {
	reg := New(nil)
	session, cleanup := newTestSession(t, "sess-1")
	defer cleanup()

	reg.Put(session)
	require.Equal(t, 1, reg.Len())

	got, ok := reg.Get("sess-1")
	require.True(t, ok)
	require.Same(t, session, got)

	reg.Remove("sess-1")
	require.Equal(t, 0, reg.Len())

	_, ok = reg.Get("sess-1")
	require.False(t, ok)
}

func TestRegistryCloseUnknownSession(t *testing.T) {
	reg := New(nil)
	err := reg.Close(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRegistryCloseRemovesAndClosesSession(t *testing.T) {
	reg := New(nil)
	session, cleanup := newTestSession(t, "sess-2")
	defer cleanup()
	reg.Put(session)

	require.NoError(t, reg.Close(context.Background(), "sess-2"))
	require.Equal(t, 0, reg.Len())
	require.Equal(t, cdp.StateDone, session.State())
}

func TestRegistryCloseAllClosesEverySession(t *testing.T) {
	reg := New(nil)
	s1, cleanup1 := newTestSession(t, "a")
	defer cleanup1()
	s2, cleanup2 := newTestSession(t, "b")
	defer cleanup2()
	reg.Put(s1)
	reg.Put(s2)

	reg.CloseAll(context.Background())

	require.Equal(t, 0, reg.Len())
	require.Equal(t, cdp.StateDone, s1.State())
	require.Equal(t, cdp.StateDone, s2.State())
}
