package pipeline

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/streamlens/streamlens/internal/classify"
	"github.com/streamlens/streamlens/internal/event"
	"github.com/streamlens/streamlens/internal/inject"
	"github.com/streamlens/streamlens/internal/metrics"
	"github.com/streamlens/streamlens/internal/session"
	"github.com/streamlens/streamlens/internal/store"
)

type nopEnqueuer struct{}

func (nopEnqueuer) Enqueue(string, string, uint64) {}

func newTestPipeline() (*Pipeline, *session.Registry, *metrics.Collector) {
	reg := session.NewRegistry(0, 0, zerolog.Nop())
	classifier := classify.New(reg, nopEnqueuer{}, nil, nil, zerolog.Nop())
	collector := metrics.NewCollector()
	return New(reg, classifier, collector, zerolog.Nop()), reg, collector
}

func TestPipeline_EventFeedsHARAndStore(t *testing.T) {
	p, reg, collector := newTestPipeline()

	p.OnEvent(event.RequestEvent{
		RequestID: "req-1",
		Session:   "tab-1",
		Kind:      event.KindRequestWillBeSent,
		URL:       "https://cdn.example.com/master.m3u8",
		Method:    "GET",
		Timestamp: time.Now(),
	})
	p.OnEvent(event.RequestEvent{
		RequestID: "req-2",
		Session:   "tab-1",
		Kind:      event.KindRequestWillBeSent,
		URL:       "https://img.example.com/poster.jpg",
		Method:    "GET",
		Timestamp: time.Now(),
	})

	sess := reg.Get("tab-1")
	if sess.HAR.Len() != 2 {
		t.Errorf("har entries = %d, want every request", sess.HAR.Len())
	}
	if sess.Records.Len() != 1 {
		t.Errorf("records = %d, want only the media candidate", sess.Records.Len())
	}
	if collector.Snapshot().EventsObserved != 2 {
		t.Errorf("events observed = %d", collector.Snapshot().EventsObserved)
	}
}

func TestPipeline_ResponseUpdatesExistingEntry(t *testing.T) {
	p, reg, _ := newTestPipeline()

	p.OnEvent(event.RequestEvent{
		RequestID: "req-1", Session: "tab-1", Kind: event.KindRequestWillBeSent,
		URL: "https://cdn.example.com/master.m3u8", Method: "GET", Timestamp: time.Now(),
	})
	p.OnEvent(event.RequestEvent{
		RequestID: "req-1", Session: "tab-1", Kind: event.KindHeadersReceived,
		URL: "https://cdn.example.com/master.m3u8", Status: 200,
		MimeType: "application/vnd.apple.mpegurl", Size: 1024,
	})

	sess := reg.Get("tab-1")
	if sess.HAR.Len() != 1 {
		t.Errorf("har entries = %d, response must not add an entry", sess.HAR.Len())
	}
	rec := sess.Records.Get("https://cdn.example.com/master.m3u8")
	if rec.Validation.ContentType != "application/vnd.apple.mpegurl" {
		t.Errorf("contentType = %q", rec.Validation.ContentType)
	}
}

func TestPipeline_DiscoveryRespectsAdvancedCapture(t *testing.T) {
	p, reg, collector := newTestPipeline()

	d := inject.Discovery{URL: "https://cdn.example.com/hidden.m3u8", Kind: "video"}
	p.OnDiscovery("tab-1", d)

	sess := reg.Get("tab-1")
	if sess.Records.Len() != 0 {
		t.Fatal("discovery processed with advanced capture off")
	}

	sess.SetAdvancedCapture(true)
	p.OnDiscovery("tab-1", d)
	if sess.Records.Len() != 1 {
		t.Fatal("discovery dropped with advanced capture on")
	}
	rec := sess.Records.Get("https://cdn.example.com/hidden.m3u8")
	if rec.MediaType != store.MediaHLSPlaylist {
		t.Errorf("mediaType = %s", rec.MediaType)
	}
	if collector.Snapshot().Discovered != 1 {
		t.Errorf("discovered = %d", collector.Snapshot().Discovered)
	}
}

func TestPipeline_ManualDiscoveryBypassesToggle(t *testing.T) {
	p, reg, _ := newTestPipeline()

	p.OnDiscovery("tab-1", inject.Discovery{URL: "https://cdn.example.com/manual.mpd", Kind: "manual"})
	if reg.Get("tab-1").Records.Len() != 1 {
		t.Error("manual discovery must not require advanced capture")
	}
}

func TestPipeline_EMEWithoutURL(t *testing.T) {
	p, reg, _ := newTestPipeline()
	reg.GetOrCreate("tab-1").SetAdvancedCapture(true)

	p.OnDiscovery("tab-1", inject.Discovery{Kind: "eme", KeySystem: "com.widevine.alpha"})
	if reg.Get("tab-1").Records.Len() != 0 {
		t.Error("URL-less EME report must not create a record")
	}
}
