package har

import (
	"sync"
	"time"

	"github.com/streamlens/streamlens/internal/event"
)

// DefaultCapacity bounds the transcript per session.
const DefaultCapacity = 300

// entry is the internal transcript row. The request id is a join key only;
// exports never carry it.
type entry struct {
	requestID string
	started   time.Time
	elapsed   time.Duration

	method      string
	url         string
	reqHeaders  event.Headers
	status      int
	respHeaders event.Headers
	mimeType    string
	size        int64
	hasResponse bool
}

// Recorder is the append-only, capacity-bounded transcript for one session.
// Entries are keyed by request id; a later response event mutates the
// existing entry and never creates a second one.
type Recorder struct {
	mu       sync.Mutex
	capacity int
	order    []string
	byID     map[string]*entry
}

// NewRecorder creates a recorder; capacity <= 0 falls back to
// DefaultCapacity.
func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Recorder{
		capacity: capacity,
		byID:     make(map[string]*entry),
	}
}

// RecordRequest creates the entry on first sight of the request id and, on
// every call, replaces the header list with the latest known headers. The
// host delivers full request headers at a later lifecycle point than the
// request line, so later events carry better data.
func (r *Recorder) RecordRequest(ev event.RequestEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byID[ev.RequestID]
	if !ok {
		if len(r.order) >= r.capacity {
			oldest := r.order[0]
			r.order = r.order[1:]
			delete(r.byID, oldest)
		}
		e = &entry{
			requestID: ev.RequestID,
			started:   ev.Timestamp,
		}
		r.order = append(r.order, ev.RequestID)
		r.byID[ev.RequestID] = e
	}

	if ev.Method != "" {
		e.method = ev.Method
	}
	if ev.URL != "" {
		e.url = ev.URL
	}
	if len(ev.Headers) > 0 {
		e.reqHeaders = ev.Headers.Clone()
	}
}

// RecordResponse fills in status, response headers, content metadata and
// timing. A response for an unknown request id is silently dropped; an entry
// is never fabricated from a response alone.
func (r *Recorder) RecordResponse(ev event.RequestEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byID[ev.RequestID]
	if !ok {
		return
	}

	e.status = ev.Status
	e.respHeaders = ev.ResponseHeaders.Clone()
	e.mimeType = ev.MimeType
	e.size = ev.Size
	e.hasResponse = true
	if !ev.Timestamp.IsZero() && !e.started.IsZero() {
		e.elapsed = ev.Timestamp.Sub(e.started)
	}
}

// Len reports the current entry count.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// Has reports whether a request id is present; used by tests and the
// recorder's own export paths.
func (r *Recorder) Has(requestID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byID[requestID]
	return ok
}
