package cdp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDemuxDeliversResponseToAwaitingCaller(t *testing.T) {
	server := newScriptedServer(t)
	defer server.Close()

	demux := NewDemux(server.dialTransport(t), nil)
	demux.Start()
	defer demux.Close()

	respCh := demux.AwaitResponse(1)
	server.sendResponse(1)

	select {
	case msg := <-respCh:
		require.Equal(t, int64(1), msg.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("response never delivered")
	}
}

func TestDemuxDropsIgnorableEventsAndPreservesOrderOfTheRest(t *testing.T) {
	server := newScriptedServer(t)
	defer server.Close()

	demux := NewDemux(server.dialTransport(t), nil)
	demux.Start()
	defer demux.Close()

	server.sendEvent("Debugger.scriptParsed") // ignorable; must never reach the queue
	server.sendEvent("Runtime.consoleAPICalled")
	server.sendEvent("Debugger.paused")

	select {
	case first := <-demux.Events():
		require.Equal(t, "Runtime.consoleAPICalled", first.Method)
	case <-time.After(2 * time.Second):
		t.Fatal("first event never delivered")
	}
	select {
	case second := <-demux.Events():
		require.Equal(t, "Debugger.paused", second.Method)
	case <-time.After(2 * time.Second):
		t.Fatal("second event never delivered")
	}
}

// TestDemuxDeliversEventsAheadOfLaterResponses exercises the order
// preservation invariant: the single reader goroutine processes frames in
// wire order, so an event sent before a response is always observable
// before that response is delivered, regardless of which id the caller is
// awaiting.
func TestDemuxDeliversEventsAheadOfLaterResponses(t *testing.T) {
	server := newScriptedServer(t)
	defer server.Close()

	demux := NewDemux(server.dialTransport(t), nil)
	demux.Start()
	defer demux.Close()

	respCh := demux.AwaitResponse(5)
	server.sendEvent("Runtime.consoleAPICalled")
	server.sendResponse(5)

	select {
	case event := <-demux.Events():
		require.Equal(t, "Runtime.consoleAPICalled", event.Method)
	case <-time.After(2 * time.Second):
		t.Fatal("event never delivered")
	}

	select {
	case resp := <-respCh:
		require.Equal(t, int64(5), resp.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("response never delivered")
	}
}

func TestDemuxCancelAwaitStopsDeliveryWithoutPanicking(t *testing.T) {
	server := newScriptedServer(t)
	defer server.Close()

	demux := NewDemux(server.dialTransport(t), nil)
	demux.Start()
	defer demux.Close()

	respCh := demux.AwaitResponse(9)
	demux.CancelAwait(9)
	server.sendResponse(9) // arrives for an id nobody awaits any more

	select {
	case <-respCh:
		t.Fatal("a cancelled await must never receive a response")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestDemuxSignalsDoneWhenTransportCloses(t *testing.T) {
	server := newScriptedServer(t)
	defer server.Close()

	demux := NewDemux(server.dialTransport(t), nil)
	demux.Start()

	require.NoError(t, demux.Close())

	select {
	case <-demux.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("done channel never closed")
	}
	require.True(t, demux.IsDone())

	select {
	case msg := <-demux.Events():
		require.Nil(t, msg, "done sentinel should be a nil Message")
	case <-time.After(2 * time.Second):
		t.Fatal("done sentinel never delivered")
	}
}
