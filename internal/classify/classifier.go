package classify

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/streamlens/streamlens/internal/event"
	"github.com/streamlens/streamlens/internal/session"
	"github.com/streamlens/streamlens/internal/store"
)

// Enqueuer hands a freshly created record to the validation queue.
type Enqueuer interface {
	Enqueue(sessionID, url string, generation uint64)
}

// Persister serializes a session's record set to durable storage; called
// after every mutation.
type Persister interface {
	SaveSession(sessionID string, records []*store.Record) error
}

// Notifier is told about record creation and mutation so live consumers
// (the UI feed) can follow along. Best effort.
type Notifier interface {
	RecordChanged(sessionID string, rec *store.Record)
}

// Classifier applies the pattern taxonomy to normalized events and keeps the
// per-session record set. It owns every record field except the validation
// sub-record, which belongs to the queue.
type Classifier struct {
	reg     *session.Registry
	queue   Enqueuer
	persist Persister
	notify  Notifier
	log     zerolog.Logger
}

// New wires a classifier. queue, persist and notify may be nil in tests.
func New(reg *session.Registry, queue Enqueuer, persist Persister, notify Notifier, log zerolog.Logger) *Classifier {
	return &Classifier{reg: reg, queue: queue, persist: persist, notify: notify, log: log}
}

// Observe ingests one lifecycle event. A new URL creates a record (returned
// to the caller); a re-observation mutates the existing record in place and
// returns nil. Creation synchronously decides validation: records worth
// probing are enqueued, everything else is terminally marked unsupported.
func (c *Classifier) Observe(ev event.RequestEvent) *store.Record {
	if ev.URL == "" {
		return nil
	}

	sess := c.reg.GetOrCreate(ev.Session)

	if existing := sess.Records.Get(ev.URL); existing != nil {
		c.enrich(sess, existing.URL, ev)
		return nil
	}
	if ev.IsResponse() {
		// Response data for a URL that was never observed as a request;
		// without request headers the record would be unusable for probing.
		return nil
	}

	mediaType := MediaTypeOf(ev.URL)
	isDRM := IsDRM(ev.URL, ev.Headers)
	if mediaType == store.MediaUnknown && !isDRM {
		return nil
	}

	rec := &store.Record{
		URL:            ev.URL,
		MediaType:      mediaType,
		IsDRM:          isDRM,
		Session:        ev.Session,
		FirstSeenAt:    ev.Timestamp,
		Method:         ev.Method,
		RequestHeaders: ev.Headers.Clone(),
		Initiator:      ev.Initiator,
		Metadata:       ev.Metadata,
	}
	if rec.FirstSeenAt.IsZero() {
		rec.FirstSeenAt = time.Now()
	}
	if rec.IsDRM && rec.MediaType == store.MediaUnknown {
		rec.MediaType = store.MediaDRM
	}

	current, evicted, inserted := sess.Records.Insert(rec)
	if !inserted {
		// Lost a race with a concurrent observation of the same URL.
		c.enrich(sess, current.URL, ev)
		return nil
	}
	if evicted != nil {
		c.log.Debug().Str("session", sess.ID).Str("url", evicted.URL).Msg("record evicted at capacity")
	}

	if ok, reason := ShouldValidate(rec); ok {
		gen, _ := sess.Records.MarkPending(rec.URL)
		if c.queue != nil {
			c.queue.Enqueue(sess.ID, rec.URL, gen)
		}
	} else {
		sess.Records.Update(rec.URL, func(r *store.Record) {
			r.Validation = store.Validation{Status: store.StatusUnsupported, FailureReason: reason}
		})
	}

	sess.BumpCounter()
	c.log.Debug().
		Str("session", sess.ID).
		Str("url", rec.URL).
		Str("mediaType", string(rec.MediaType)).
		Bool("drm", rec.IsDRM).
		Msg("stream candidate observed")

	c.afterMutation(sess, rec.URL)
	if current := sess.Records.Get(rec.URL); current != nil {
		return current
	}
	return rec
}

// enrich merges later lifecycle data into an existing record: fuller request
// headers, response content type and size. Events delivered out of order
// never regress existing fields.
func (c *Classifier) enrich(sess *session.Session, url string, ev event.RequestEvent) {
	changed := false
	sess.Records.Update(url, func(r *store.Record) {
		// Later observations win as long as they carry at least as much
		// header data; sparser ones are treated as out of order and dropped.
		if len(ev.Headers) > 0 && len(ev.Headers) >= len(r.RequestHeaders) {
			r.RequestHeaders = ev.Headers.Clone()
			changed = true
		}
		if ev.IsResponse() {
			if r.Validation.ContentType == "" && ev.MimeType != "" {
				r.Validation.ContentType = ev.MimeType
				changed = true
			}
			if r.Validation.SizeBytes == 0 && ev.Size > 0 {
				r.Validation.SizeBytes = ev.Size
				changed = true
			}
			if !r.IsDRM && IsDRM(ev.URL, ev.ResponseHeaders) {
				r.IsDRM = true
				changed = true
			}
		}
	})
	if changed {
		c.afterMutation(sess, url)
	}
}

func (c *Classifier) afterMutation(sess *session.Session, url string) {
	if c.persist != nil {
		if err := c.persist.SaveSession(sess.ID, sess.Records.List()); err != nil {
			c.log.Warn().Err(err).Str("session", sess.ID).Msg("persist failed")
		}
	}
	if c.notify != nil {
		if rec := sess.Records.Get(url); rec != nil {
			c.notify.RecordChanged(sess.ID, rec)
		}
	}
}
