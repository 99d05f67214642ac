package validate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/streamlens/streamlens/internal/event"
	"github.com/streamlens/streamlens/internal/session"
	"github.com/streamlens/streamlens/internal/store"
)

func newTestQueue(t *testing.T, opt Options) (*Queue, *session.Registry, context.CancelFunc) {
	t.Helper()
	reg := session.NewRegistry(0, 0, zerolog.Nop())
	q := NewQueue(reg, newTestProber(2*time.Second), opt, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go q.Run(ctx)
	return q, reg, cancel
}

func seedRecord(reg *session.Registry, sessionID, url string, mt store.MediaType) (uint64, *session.Session) {
	sess := reg.GetOrCreate(sessionID)
	sess.Records.Insert(&store.Record{
		URL:       url,
		MediaType: mt,
		Method:    "GET",
		Session:   sessionID,
		RequestHeaders: event.Headers{
			{Name: "User-Agent", Value: "Mozilla/5.0 (test)"},
		},
	})
	gen, _ := sess.Records.MarkPending(url)
	return gen, sess
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestQueue_SerializesProbes(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cur := inFlight.Add(1)
		for {
			prev := maxInFlight.Load()
			if cur <= prev || maxInFlight.CompareAndSwap(prev, cur) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		inFlight.Add(-1)
		w.Write([]byte(variantPlaylist))
	}))
	defer srv.Close()

	q, reg, cancel := newTestQueue(t, Options{Pause: time.Millisecond})
	defer cancel()

	urls := []string{srv.URL + "/a.m3u8", srv.URL + "/b.m3u8", srv.URL + "/c.m3u8"}
	for _, u := range urls {
		gen, _ := seedRecord(reg, "tab-1", u, store.MediaHLSPlaylist)
		q.Enqueue("tab-1", u, gen)
	}

	sess := reg.Get("tab-1")
	waitFor(t, 5*time.Second, func() bool {
		for _, u := range urls {
			if sess.Records.Get(u).Validation.Status == store.StatusPending {
				return false
			}
		}
		return true
	})

	if got := maxInFlight.Load(); got != 1 {
		t.Errorf("max concurrent probes = %d, want 1", got)
	}
}

func TestQueue_PausesBetweenItems(t *testing.T) {
	var mu sync.Mutex
	var hits []time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits = append(hits, time.Now())
		mu.Unlock()
		w.Write([]byte(variantPlaylist))
	}))
	defer srv.Close()

	q, reg, cancel := newTestQueue(t, Options{Pause: 100 * time.Millisecond})
	defer cancel()

	for _, u := range []string{srv.URL + "/a.m3u8", srv.URL + "/b.m3u8"} {
		gen, _ := seedRecord(reg, "tab-1", u, store.MediaHLSPlaylist)
		q.Enqueue("tab-1", u, gen)
	}

	waitFor(t, 5*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(hits) == 2
	})

	mu.Lock()
	gap := hits[1].Sub(hits[0])
	mu.Unlock()
	if gap < 80*time.Millisecond {
		t.Errorf("inter-probe gap = %s, want >= pause", gap)
	}
}

func TestQueue_StaleGenerationDiscarded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(variantPlaylist))
	}))
	defer srv.Close()

	q, reg, cancel := newTestQueue(t, Options{Pause: time.Millisecond})
	defer cancel()

	url := srv.URL + "/index.m3u8"
	staleGen, sess := seedRecord(reg, "tab-1", url, store.MediaHLSPlaylist)
	// A newer request supersedes the queued one before it runs.
	freshGen, _ := sess.Records.MarkPending(url)
	if freshGen <= staleGen {
		t.Fatal("MarkPending must advance the generation")
	}

	q.Enqueue("tab-1", url, staleGen)
	time.Sleep(200 * time.Millisecond)
	if got := sess.Records.Get(url).Validation.Status; got != store.StatusPending {
		t.Errorf("stale probe result was applied: status = %s", got)
	}

	q.Enqueue("tab-1", url, freshGen)
	waitFor(t, 5*time.Second, func() bool {
		return sess.Records.Get(url).Validation.Status == store.StatusOK
	})
}

func TestQueue_Revalidate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(masterPlaylist))
	}))
	defer srv.Close()

	q, reg, cancel := newTestQueue(t, Options{Pause: time.Millisecond})
	defer cancel()

	url := srv.URL + "/master.m3u8"
	seedRecord(reg, "tab-1", url, store.MediaHLSPlaylist)

	first, err := q.Revalidate(context.Background(), "tab-1", url)
	if err != nil {
		t.Fatalf("Revalidate: %v", err)
	}
	second, err := q.Revalidate(context.Background(), "tab-1", url)
	if err != nil {
		t.Fatalf("Revalidate: %v", err)
	}

	if first.Status != store.StatusOK || second.Status != store.StatusOK {
		t.Fatalf("statuses = %s, %s", first.Status, second.Status)
	}
	if first.Structure != second.Structure || first.Resolution != second.Resolution ||
		first.Bandwidth != second.Bandwidth || len(first.Variants) != len(second.Variants) {
		t.Error("repeated revalidation of an unchanged resource must converge")
	}
}

func TestQueue_RevalidateUnknown(t *testing.T) {
	q, reg, cancel := newTestQueue(t, Options{})
	defer cancel()

	if _, err := q.Revalidate(context.Background(), "no-such-session", "https://x.example.com/a.m3u8"); err != ErrNoSession {
		t.Errorf("err = %v, want ErrNoSession", err)
	}

	reg.GetOrCreate("tab-1")
	if _, err := q.Revalidate(context.Background(), "tab-1", "https://x.example.com/a.m3u8"); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestQueue_EvictedRecordFailsFast(t *testing.T) {
	q, reg, cancel := newTestQueue(t, Options{Pause: time.Millisecond})
	defer cancel()

	reg.GetOrCreate("tab-1")
	// Enqueued URL has no backing record.
	done := make(chan store.Validation, 1)
	q.push(item{session: "tab-1", url: "https://x.example.com/gone.m3u8", gen: 1, done: done})

	select {
	case v := <-done:
		if v.Status != store.StatusError {
			t.Errorf("status = %s", v.Status)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no result delivered")
	}
}
