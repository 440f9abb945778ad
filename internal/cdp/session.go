package cdp

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"jstsdebug/internal/metrics"
)

// State is a session's position in its one-way lifecycle:
// Attached -> Armed -> Done.
type State int32

const (
	// StateAttached is the session immediately after the transport comes
	// up, before Initialize has completed.
	StateAttached State = iota
	// StateArmed is the session after Initialize has enabled the CDP
	// domains and run the debuggee past its initial breakpoint-wait.
	StateArmed
	// StateDone is the session after Close, or after the transport has
	// gone away on its own. No further commands are accepted.
	StateDone
)

// DefaultTimeout is the session-scoped timeout applied to every
// send_and_await and wait_for_quiescence call when the caller does not
// override it.
const DefaultTimeout = 30 * time.Second

// Closer stops whatever external resource backs a session's debuggee (a
// container, typically) once the session is done with it.
type Closer interface {
	Close(ctx context.Context) error
}

// Session is the session engine (spec component D): the single logical
// owner of one CDP conversation. All public methods are safe to call from
// one goroutine at a time per session — the engine is cooperatively
// single-flight, not internally parallel, matching the "one suspension
// point per call" concurrency model.
type Session struct {
	ID string

	demux     *Demux
	transport *Transport
	sandbox   Closer // optional; nil in tests that dial a bare fake debuggee
	timeout   time.Duration
	log       *zap.Logger

	nextID int64
	state  atomic.Int32

	mu sync.Mutex // serializes Execute/ExecuteBatch/Close against each other
}

// NewSession wires a Session around an already-dialed transport. The demux
// must not have been started yet; NewSession starts it.
func NewSession(id string, transport *Transport, sandbox Closer, timeout time.Duration, log *zap.Logger) *Session {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	demux := NewDemux(transport, log)
	demux.Start()
	return &Session{
		ID:        id,
		demux:     demux,
		transport: transport,
		sandbox:   sandbox,
		timeout:   timeout,
		log:       log.With(zap.String("session_id", id)),
	}
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// IsDone reports whether the session is in its terminal state.
func (s *Session) IsDone() bool {
	return s.State() == StateDone || s.demux.IsDone()
}

func (s *Session) markDone() {
	s.state.Store(int32(StateDone))
}

// 4.D.1 send_and_await: the low-level primitive. Allocates a fresh command
// id, registers interest in its response before sending so no response can
// race the registration, writes the command, and blocks until either the
// response arrives, the session timeout elapses, or ctx is cancelled.
func (s *Session) sendAndAwait(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	if s.IsDone() {
		return nil, ErrSessionClosed
	}

	id := atomic.AddInt64(&s.nextID, 1)
	respCh := s.demux.AwaitResponse(id)

	cmd := &Message{ID: id, Method: method, Params: params}
	if err := s.transport.Send(cmd); err != nil {
		s.demux.CancelAwait(id)
		s.markDone()
		return nil, err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	select {
	case resp := <-respCh:
		if resp.Error != nil {
			return nil, &ProtocolError{Method: method, Code: resp.Error.Code, Message: resp.Error.Message}
		}
		return resp.Result, nil
	case <-timeoutCtx.Done():
		s.demux.CancelAwait(id)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrTimeout
	case <-s.demux.Done():
		s.markDone()
		return nil, ErrSessionClosed
	}
}

// 4.D.2 drain_pending_events: a non-blocking flush of every event already
// queued. Used at the start of execute so a command never observes a
// stale backlog of events as if they happened concurrently with it.
func (s *Session) drainPendingEvents() []ResultItem {
	var items []ResultItem
	for {
		select {
		case msg := <-s.demux.Events():
			if msg == nil {
				s.markDone()
				return items
			}
			items = append(items, eventItem(msg))
		default:
			return items
		}
	}
}

// 4.D.3 wait_for_quiescence: blocks consuming events until a pause or
// termination marker arrives, the done sentinel arrives, or the session
// timeout elapses. A timeout here is benign — it returns whatever was
// collected without error, because silence from a running debuggee is not
// a protocol failure.
func (s *Session) waitForQuiescence(ctx context.Context) []ResultItem {
	var items []ResultItem

	start := time.Now()
	defer func() { metrics.ObserveQuiescenceWait(time.Since(start).Seconds()) }()

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	for {
		select {
		case msg := <-s.demux.Events():
			if msg == nil {
				s.markDone()
				return items
			}
			items = append(items, eventItem(msg))
			if IsQuiescencePoint(msg.Method) {
				return items
			}
		case <-timeoutCtx.Done():
			return items
		}
	}
}

// 4.D.4 execute runs one command through the full pipeline: drain any
// backlog, validate the method against the allowed set, send it, and — if
// the command is a resuming or may-run command — wait for the debuggee to
// quiesce again before returning.
func (s *Session) Execute(ctx context.Context, method string, params json.RawMessage, allowUnknownCommand bool) ([]ResultItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.executeLocked(ctx, method, params, allowUnknownCommand)
}

func (s *Session) executeLocked(ctx context.Context, method string, params json.RawMessage, allowUnknownCommand bool) ([]ResultItem, error) {
	if s.IsDone() {
		return nil, ErrSessionClosed
	}

	items := s.drainPendingEvents()
	if s.IsDone() {
		return items, ErrSessionClosed
	}

	if !allowUnknownCommand && !IsAllowedCommand(method) {
		return items, &UnknownCommandError{Method: method}
	}

	result, err := s.sendAndAwait(ctx, method, params)
	if err != nil {
		return items, err
	}
	if len(result) > 0 {
		items = append(items, commandResultItem(result))
	}

	if TriggersQuiescenceWait(method) {
		items = append(items, s.waitForQuiescence(ctx)...)
	}
	return items, nil
}

// 4.D.5 execute_batch runs commands sequentially, concatenating their
// result streams in causal order. It stops and propagates the first error,
// returning whatever results were already collected alongside it — there
// is no rollback.
func (s *Session) ExecuteBatch(ctx context.Context, commands []Command, allowUnknownCommand bool) ([]ResultItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []ResultItem
	for _, cmd := range commands {
		items, err := s.executeLocked(ctx, cmd.Method, cmd.Params, allowUnknownCommand)
		all = append(all, items...)
		if err != nil {
			return all, err
		}
	}
	return all, nil
}

// initCommands are the domains enabled on every session before user
// commands run, in the order the original implementation enables them.
var initCommands = []string{
	"Runtime.enable",
	"Debugger.enable",
	"HeapProfiler.enable",
	"Profiler.enable",
	"Network.enable",
}

// 4.D.6 initialize enables the CDP domains a session needs and then runs
// the debuggee past its initial wait-for-debugger pause, collecting
// whatever the debuggee emits along the way. On success the session
// transitions from Attached to Armed.
func (s *Session) Initialize(ctx context.Context) ([]ResultItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() != StateAttached {
		return nil, ErrSessionClosed
	}

	var all []ResultItem
	for _, method := range initCommands {
		items, err := s.executeLocked(ctx, method, nil, false)
		all = append(all, items...)
		if err != nil {
			return all, err
		}
	}

	items, err := s.executeLocked(ctx, "Runtime.runIfWaitingForDebugger", nil, false)
	all = append(all, items...)
	if err != nil {
		return all, err
	}

	s.state.CompareAndSwap(int32(StateAttached), int32(StateArmed))
	return all, nil
}

// Close tears the session down: it marks the session Done so no further
// commands are accepted, closes the transport (which stops the demux's
// reader goroutine), and — if the session owns a sandboxed debuggee —
// stops it. Close is idempotent.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	alreadyDone := s.State() == StateDone
	s.markDone()

	var firstErr error
	if !alreadyDone {
		if err := s.demux.Close(); err != nil {
			firstErr = err
		}
	}
	if s.sandbox != nil {
		if err := s.sandbox.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
