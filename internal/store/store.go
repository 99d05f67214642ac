package store

import (
	"sync"
)

// DefaultCapacity bounds the record set per session.
const DefaultCapacity = 150

// Store is a capacity-bounded, insertion-ordered record set for one session.
// A URL is unique within the store; re-observations mutate in place.
type Store struct {
	mu       sync.Mutex
	capacity int
	order    []string // insertion order, oldest first
	byURL    map[string]*Record
}

// New creates a store with the given capacity; values <= 0 fall back to
// DefaultCapacity.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity: capacity,
		byURL:    make(map[string]*Record),
	}
}

// Insert adds a record if its URL is new and returns (rec, evicted, true).
// If the URL already exists, the existing record is returned with inserted
// false and nothing is evicted. Eviction is strictly oldest-insertion-first.
func (s *Store) Insert(rec *Record) (current *Record, evicted *Record, inserted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byURL[rec.URL]; ok {
		return existing.Clone(), nil, false
	}

	if len(s.order) >= s.capacity {
		oldest := s.order[0]
		s.order = s.order[1:]
		evicted = s.byURL[oldest]
		delete(s.byURL, oldest)
	}

	// The store keeps its own copy; the caller's record never aliases it.
	s.order = append(s.order, rec.URL)
	s.byURL[rec.URL] = rec.Clone()
	return rec, evicted, true
}

// Get returns a snapshot of the record for url, or nil. Snapshots never
// alias store-owned state, so callers may marshal or retain them freely.
func (s *Store) Get(url string) *Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byURL[url].Clone()
}

// Update runs fn against the record for url under the store lock. It returns
// false when the record does not exist. fn must not retain the record.
func (s *Store) Update(url string, fn func(*Record)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byURL[url]
	if !ok {
		return false
	}
	fn(rec)
	return true
}

// MarkPending transitions the record back to pending and returns the new
// validation generation. ok is false when the URL is unknown.
func (s *Store) MarkPending(url string) (gen uint64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, found := s.byURL[url]
	if !found {
		return 0, false
	}
	rec.Validation.Generation++
	gen = rec.Validation.Generation
	rec.Validation = Validation{Status: StatusPending, Generation: gen}
	return gen, true
}

// ApplyValidation installs v on the record for url only when gen still
// matches the record's current validation generation. Stale completions from
// superseded probes are dropped. The generation itself is preserved.
func (s *Store) ApplyValidation(url string, gen uint64, v Validation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byURL[url]
	if !ok || rec.Validation.Generation != gen {
		return false
	}
	v.Generation = gen
	rec.Validation = v
	return true
}

// List returns record snapshots in insertion order.
func (s *Store) List() []*Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Record, 0, len(s.order))
	for _, url := range s.order {
		out = append(out, s.byURL[url].Clone())
	}
	return out
}

// Len reports the current record count.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Clear removes every record.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = nil
	s.byURL = make(map[string]*Record)
}
