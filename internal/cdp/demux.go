package cdp

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// eventQueueCapacity bounds the event queue. Sized generously the way
// chromedp's handler sizes its own event channel: large enough that a
// well-behaved debuggee never fills it, with an overflow treated as a bug
// rather than silently dropped data.
const eventQueueCapacity = 1024

// Demux is the message demultiplexer (spec component C): it owns the
// single reader goroutine over a Transport and splits the inbound stream
// into per-id response deliveries and a single ordered event queue. There
// is exactly one producer (the reader goroutine) and, per id, exactly one
// consumer for responses; the event queue has exactly one consumer overall
// — the session engine's drain/wait loop.
type Demux struct {
	transport *Transport
	log       *zap.Logger

	mu      sync.Mutex
	pending map[int64]chan *Message

	events chan *Message // nil Message is the done sentinel

	doneOnce sync.Once
	done     chan struct{}
	closed   atomic.Bool
}

// NewDemux wraps transport with a demultiplexer. Call Start to begin
// reading.
func NewDemux(transport *Transport, log *zap.Logger) *Demux {
	if log == nil {
		log = zap.NewNop()
	}
	return &Demux{
		transport: transport,
		log:       log,
		pending:   make(map[int64]chan *Message),
		events:    make(chan *Message, eventQueueCapacity),
		done:      make(chan struct{}),
	}
}

// Start launches the reader goroutine. It returns immediately; the
// goroutine runs until the transport closes or Close is called.
func (d *Demux) Start() {
	go d.readLoop()
}

func (d *Demux) readLoop() {
	for {
		msg, err := d.transport.Recv()
		if err != nil {
			d.log.Debug("cdp transport closed", zap.Error(err))
			d.shutdown()
			return
		}
		if msg.IsResponse() {
			d.deliverResponse(msg)
			continue
		}
		if IsIgnorableEvent(msg.Method) {
			continue
		}
		d.enqueueEvent(msg)
	}
}

func (d *Demux) deliverResponse(msg *Message) {
	d.mu.Lock()
	ch, ok := d.pending[msg.ID]
	if ok {
		delete(d.pending, msg.ID)
	}
	d.mu.Unlock()
	if !ok {
		d.log.Warn("cdp response for unknown id", zap.Int64("id", msg.ID))
		return
	}
	ch <- msg
	close(ch)
}

func (d *Demux) enqueueEvent(msg *Message) {
	select {
	case d.events <- msg:
	default:
		panic("cdp: event queue overflow; debuggee produced events faster than the engine drained them")
	}
}

// AwaitResponse registers interest in the response to command id and
// returns a channel that receives exactly one Message (the response) and
// is then closed. Call this before sending the command so no response can
// race the registration.
func (d *Demux) AwaitResponse(id int64) <-chan *Message {
	ch := make(chan *Message, 1)
	d.mu.Lock()
	d.pending[id] = ch
	d.mu.Unlock()
	return ch
}

// CancelAwait removes a registered response channel, used when a wait
// times out and the caller gives up on ever seeing the response.
func (d *Demux) CancelAwait(id int64) {
	d.mu.Lock()
	delete(d.pending, id)
	d.mu.Unlock()
}

// Events returns the event queue. A nil value read from it is the done
// sentinel: the transport has closed and no further events will arrive.
func (d *Demux) Events() <-chan *Message {
	return d.events
}

// Done returns a channel closed once the transport has shut down.
func (d *Demux) Done() <-chan struct{} {
	return d.done
}

// IsDone reports whether the transport has shut down.
func (d *Demux) IsDone() bool {
	return d.closed.Load()
}

func (d *Demux) shutdown() {
	d.doneOnce.Do(func() {
		d.closed.Store(true)
		select {
		case d.events <- nil:
		default:
			panic("cdp: event queue overflow delivering done sentinel")
		}
		close(d.done)
	})
}

// Close closes the underlying transport, which causes the reader goroutine
// to observe an error and shut down on its own.
func (d *Demux) Close() error {
	return d.transport.Close()
}
