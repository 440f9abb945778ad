// Package registry holds the process-wide map of live CDP sessions (spec
// component F) and coordinates their orderly shutdown.
package registry

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"jstsdebug/internal/cdp"
)

// ErrNotFound is returned when a session id has no corresponding entry.
var ErrNotFound = fmt.Errorf("registry: session not found")

// Registry is a concurrency-safe map of session id to *cdp.Session, the
// single place the tool façade and the CLI consult to find a session.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*cdp.Session
	log      *zap.Logger
}

// New returns an empty Registry.
func New(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		sessions: make(map[string]*cdp.Session),
		log:      log,
	}
}

// Put registers session under its own ID. It overwrites any prior entry
// with the same ID without closing it — callers are expected to generate
// unique IDs (see internal/mcp's createSession, which uses google/uuid).
func (r *Registry) Put(session *cdp.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID] = session
}

// Get returns the session registered under id, if any.
func (r *Registry) Get(id string) (*cdp.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove drops id from the map without closing the session. Close should
// be preferred for normal teardown; Remove exists for callers that have
// already closed the session themselves.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Close closes and unregisters the session with the given id.
func (r *Registry) Close(ctx context.Context, id string) error {
	r.mu.Lock()
	session, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	return session.Close(ctx)
}

// CloseAll closes every registered session concurrently and empties the
// registry. A single session's close failure is logged and does not stop
// the others from closing, and is not propagated to the caller — shutdown
// must make progress regardless of one stuck debuggee.
func (r *Registry) CloseAll(ctx context.Context) {
	r.mu.Lock()
	sessions := make([]*cdp.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[string]*cdp.Session)
	r.mu.Unlock()

	var group errgroup.Group
	for _, s := range sessions {
		s := s
		group.Go(func() error {
			if err := s.Close(ctx); err != nil {
				r.log.Warn("session close failed during shutdown",
					zap.String("session_id", s.ID), zap.Error(err))
			}
			return nil
		})
	}
	_ = group.Wait()
}
