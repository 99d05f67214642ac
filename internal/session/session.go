// Package session owns the process-wide registry of browsing sessions. A
// session is created lazily on its first event and destroyed, with all
// pending work abandoned, when the browsing context goes away.
package session

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/streamlens/streamlens/internal/har"
	"github.com/streamlens/streamlens/internal/store"
)

// Session bundles the per-session state: the stream record set, the HAR
// transcript, the live badge counter, and the advanced-capture toggle for
// the page-context extractor.
type Session struct {
	ID      string
	Records *store.Store
	HAR     *har.Recorder

	counter  atomic.Int64
	advanced atomic.Bool
}

// BumpCounter increments the badge counter and returns the new value.
func (s *Session) BumpCounter() int64 { return s.counter.Add(1) }

// Counter reads the badge counter.
func (s *Session) Counter() int64 { return s.counter.Load() }

// ResetCounter zeroes the badge counter.
func (s *Session) ResetCounter() { s.counter.Store(0) }

// SetAdvancedCapture flips the advanced-capture toggle.
func (s *Session) SetAdvancedCapture(enabled bool) { s.advanced.Store(enabled) }

// AdvancedCapture reads the advanced-capture toggle.
func (s *Session) AdvancedCapture() bool { return s.advanced.Load() }

// Registry is the process-wide session store.
type Registry struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	recordCap int
	harCap    int
	advanced  bool
	log       zerolog.Logger
}

// NewRegistry creates a registry; caps <= 0 use the package defaults.
func NewRegistry(recordCap, harCap int, log zerolog.Logger) *Registry {
	return &Registry{
		sessions:  make(map[string]*Session),
		recordCap: recordCap,
		harCap:    harCap,
		log:       log,
	}
}

// SetAdvancedDefault controls whether new sessions start with advanced
// capture enabled. Existing sessions keep their own toggle.
func (r *Registry) SetAdvancedDefault(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advanced = enabled
}

// GetOrCreate returns the session for id, creating it on first use.
func (r *Registry) GetOrCreate(id string) *Session {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if ok {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok = r.sessions[id]; ok {
		return s
	}
	s = &Session{
		ID:      id,
		Records: store.New(r.recordCap),
		HAR:     har.NewRecorder(r.harCap),
	}
	s.advanced.Store(r.advanced)
	r.sessions[id] = s
	r.log.Info().Str("session", id).Msg("session created")
	return s
}

// Get returns the session for id, or nil.
func (r *Registry) Get(id string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[id]
}

// End destroys the session. Pending validations for it become stale lookups
// and are dropped by the queue.
func (r *Registry) End(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return
	}
	delete(r.sessions, id)
	r.log.Info().Str("session", id).Msg("session destroyed")
}

// List returns all active sessions.
func (r *Registry) List() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}
