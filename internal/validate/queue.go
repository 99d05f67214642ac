package validate

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/streamlens/streamlens/internal/session"
	"github.com/streamlens/streamlens/internal/store"
)

// DefaultPause is the mandatory gap between consecutive probes.
const DefaultPause = 250 * time.Millisecond

// healInterval is how often the worker re-checks the backlog on its own,
// independent of wake signals.
const healInterval = time.Second

var (
	// ErrNoSession is returned when a revalidation names an unknown session.
	ErrNoSession = errors.New("session not found")
	// ErrNotFound is returned when a revalidation names a URL with no record.
	ErrNotFound = errors.New("record not found")
)

// Persister mirrors classify.Persister so the queue can flush a session
// after applying a probe result.
type Persister interface {
	SaveSession(sessionID string, records []*store.Record) error
}

// Notifier receives record mutations caused by applied probe results.
type Notifier interface {
	RecordChanged(sessionID string, rec *store.Record)
}

// Metrics receives one observation per finished probe.
type Metrics interface {
	ObserveProbe(status store.Status, elapsed time.Duration)
}

type item struct {
	session string
	url     string
	gen     uint64
	done    chan store.Validation
}

// Queue serializes probes: exactly one in flight, a fixed pause between
// items, a periodic self-heal tick so a lost wake signal never strands the
// backlog. Results carry the generation under which they were requested and
// are discarded by the store when a newer request superseded them.
type Queue struct {
	reg     *session.Registry
	prober  *Prober
	persist Persister
	notify  Notifier
	metrics Metrics
	log     zerolog.Logger

	limiter *rate.Limiter

	mu    sync.Mutex
	items []item

	wake chan struct{}
}

// Options tunes a Queue. Zero values use the defaults above.
type Options struct {
	Pause   time.Duration
	Persist Persister
	Notify  Notifier
	Metrics Metrics
}

// NewQueue builds a queue around an existing prober. Call Run to start the
// worker.
func NewQueue(reg *session.Registry, prober *Prober, opt Options, log zerolog.Logger) *Queue {
	pause := opt.Pause
	if pause <= 0 {
		pause = DefaultPause
	}
	return &Queue{
		reg:     reg,
		prober:  prober,
		persist: opt.Persist,
		notify:  opt.Notify,
		metrics: opt.Metrics,
		log:     log,
		limiter: rate.NewLimiter(rate.Every(pause), 1),
		wake:    make(chan struct{}, 1),
	}
}

// Enqueue appends a probe request. Never blocks; duplicate URLs are allowed
// because each carries its own generation and stale results are dropped on
// apply.
func (q *Queue) Enqueue(sessionID, url string, gen uint64) {
	q.push(item{session: sessionID, url: url, gen: gen})
}

// Revalidate re-marks an existing record pending, queues a fresh probe and
// blocks until that probe's result is applied or ctx expires. The returned
// validation is the one produced by this call's probe, even if a concurrent
// revalidation superseded it in the store.
func (q *Queue) Revalidate(ctx context.Context, sessionID, url string) (store.Validation, error) {
	sess := q.reg.Get(sessionID)
	if sess == nil {
		return store.Validation{}, ErrNoSession
	}
	gen, ok := sess.Records.MarkPending(url)
	if !ok {
		return store.Validation{}, ErrNotFound
	}
	if q.notify != nil {
		if rec := sess.Records.Get(url); rec != nil {
			q.notify.RecordChanged(sessionID, rec)
		}
	}

	done := make(chan store.Validation, 1)
	q.push(item{session: sessionID, url: url, gen: gen, done: done})

	select {
	case v := <-done:
		return v, nil
	case <-ctx.Done():
		return store.Validation{}, ctx.Err()
	}
}

// Backlog reports the number of queued, not-yet-probed items.
func (q *Queue) Backlog() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Run processes the queue until ctx is cancelled. It is the only goroutine
// that issues probes.
func (q *Queue) Run(ctx context.Context) {
	ticker := time.NewTicker(healInterval)
	defer ticker.Stop()

	for {
		it, ok := q.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-q.wake:
			case <-ticker.C:
			}
			continue
		}
		if err := q.limiter.Wait(ctx); err != nil {
			return
		}
		q.process(ctx, it)
	}
}

func (q *Queue) push(it item) {
	q.mu.Lock()
	q.items = append(q.items, it)
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) pop() (item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return item{}, false
	}
	it := q.items[0]
	q.items = q.items[1:]
	return it, true
}

func (q *Queue) process(ctx context.Context, it item) {
	sess := q.reg.Get(it.session)
	if sess == nil {
		q.deliver(it, store.Validation{Status: store.StatusError, FailureReason: "session ended"})
		return
	}
	rec := sess.Records.Get(it.url)
	if rec == nil {
		// Evicted while queued.
		q.deliver(it, store.Validation{Status: store.StatusError, FailureReason: "record evicted"})
		return
	}

	start := time.Now()
	v := q.prober.Probe(ctx, rec)
	elapsed := time.Since(start)

	if q.metrics != nil {
		q.metrics.ObserveProbe(v.Status, elapsed)
	}

	applied := sess.Records.ApplyValidation(it.url, it.gen, v)
	q.log.Debug().
		Str("session", it.session).
		Str("url", it.url).
		Str("status", string(v.Status)).
		Dur("elapsed", elapsed).
		Bool("applied", applied).
		Msg("probe finished")

	if applied {
		if q.persist != nil {
			if err := q.persist.SaveSession(sess.ID, sess.Records.List()); err != nil {
				q.log.Warn().Err(err).Str("session", sess.ID).Msg("persist failed")
			}
		}
		if q.notify != nil {
			if updated := sess.Records.Get(it.url); updated != nil {
				q.notify.RecordChanged(sess.ID, updated)
			}
		}
	}
	q.deliver(it, v)
}

func (q *Queue) deliver(it item, v store.Validation) {
	if it.done != nil {
		it.done <- v
	}
}
