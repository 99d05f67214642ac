package har

import (
	"fmt"
	"testing"
	"time"

	"github.com/streamlens/streamlens/internal/event"
)

func requestEvent(id, url string) event.RequestEvent {
	return event.RequestEvent{
		RequestID: id,
		Kind:      event.KindRequestWillBeSent,
		URL:       url,
		Method:    "GET",
		Headers: event.Headers{
			{Name: "User-Agent", Value: "Mozilla/5.0"},
		},
		Timestamp: time.Now(),
	}
}

func responseEvent(id string, status int) event.RequestEvent {
	return event.RequestEvent{
		RequestID: id,
		Kind:      event.KindHeadersReceived,
		Status:    status,
		ResponseHeaders: event.Headers{
			{Name: "Content-Type", Value: "application/vnd.apple.mpegurl"},
		},
		MimeType:  "application/vnd.apple.mpegurl",
		Size:      1024,
		Timestamp: time.Now().Add(30 * time.Millisecond),
	}
}

func TestRecorder_ResponseForUnknownIDIsIgnored(t *testing.T) {
	r := NewRecorder(10)

	r.RecordResponse(responseEvent("ghost", 200))

	if r.Len() != 0 {
		t.Errorf("Len = %d, want 0 after orphan response", r.Len())
	}
	if r.Has("ghost") {
		t.Error("orphan response must not fabricate an entry")
	}
}

func TestRecorder_RequestThenResponseMutatesSameEntry(t *testing.T) {
	r := NewRecorder(10)

	r.RecordRequest(requestEvent("req-1", "https://cdn.example.com/master.m3u8"))
	r.RecordResponse(responseEvent("req-1", 200))

	if r.Len() != 1 {
		t.Fatalf("Len = %d, want 1", r.Len())
	}

	entries := r.Export("test").Log.Entries
	if len(entries) != 1 {
		t.Fatalf("export has %d entries, want 1", len(entries))
	}
	if entries[0].Response.Status != 200 {
		t.Errorf("status = %d, want 200", entries[0].Response.Status)
	}
	if entries[0].Response.Content.MimeType != "application/vnd.apple.mpegurl" {
		t.Errorf("mimeType = %q", entries[0].Response.Content.MimeType)
	}
	if entries[0].Time <= 0 {
		t.Errorf("elapsed time = %v, want > 0", entries[0].Time)
	}
}

func TestRecorder_LaterRequestEventReplacesHeaders(t *testing.T) {
	r := NewRecorder(10)

	r.RecordRequest(requestEvent("req-1", "https://cdn.example.com/master.m3u8"))

	followUp := event.RequestEvent{
		RequestID: "req-1",
		Kind:      event.KindHeadersSent,
		Headers: event.Headers{
			{Name: "User-Agent", Value: "Mozilla/5.0"},
			{Name: "Referer", Value: "https://www.example.com/watch"},
			{Name: "Cookie", Value: "sid=abc123; region=eu"},
		},
		Timestamp: time.Now(),
	}
	r.RecordRequest(followUp)

	if r.Len() != 1 {
		t.Fatalf("Len = %d, want 1 (follow-up must not duplicate)", r.Len())
	}

	req := r.Export("test").Log.Entries[0].Request
	if len(req.Headers) != 3 {
		t.Fatalf("got %d headers, want the 3 from the follow-up event", len(req.Headers))
	}
	if len(req.Cookies) != 2 {
		t.Fatalf("got %d cookies, want 2", len(req.Cookies))
	}
	if req.Cookies[0].Name != "sid" || req.Cookies[0].Value != "abc123" {
		t.Errorf("cookie[0] = %+v", req.Cookies[0])
	}
}

func TestRecorder_CapacityFIFO(t *testing.T) {
	r := NewRecorder(3)
	for i := 0; i < 5; i++ {
		r.RecordRequest(requestEvent(fmt.Sprintf("req-%d", i), "https://example.com/a.ts"))
	}
	if r.Len() != 3 {
		t.Errorf("Len = %d, want 3", r.Len())
	}
	if r.Has("req-0") || r.Has("req-1") {
		t.Error("oldest entries should have been evicted")
	}
	if !r.Has("req-4") {
		t.Error("newest entry missing")
	}
}

func TestRecorder_ExportFiltered(t *testing.T) {
	r := NewRecorder(10)
	r.RecordRequest(requestEvent("req-1", "https://cdn.example.com/master.m3u8?auth=tok"))
	r.RecordRequest(requestEvent("req-2", "https://www.example.com/index.html"))
	r.RecordRequest(requestEvent("req-3", "https://cdn.example.com/chunk-001.m4s"))

	h := r.ExportFiltered("session-1")
	if len(h.Log.Entries) != 2 {
		t.Fatalf("filtered export has %d entries, want 2", len(h.Log.Entries))
	}
	for _, e := range h.Log.Entries {
		if e.Request.URL == "https://www.example.com/index.html" {
			t.Error("non-media entry leaked into filtered export")
		}
	}
	if len(h.Log.Pages) != 1 || h.Log.Pages[0].ID != "page_1" {
		t.Error("filtered export must carry a synthesized page header")
	}
	if h.Log.Creator == nil || h.Log.Creator.Name != "streamlens" {
		t.Error("missing creator block")
	}
}

func TestParseSetCookie(t *testing.T) {
	c := ParseSetCookie("sid=abc123; Path=/; Domain=.example.com; Expires=Wed, 01 Jan 2027 00:00:00 GMT; Secure; HttpOnly")
	if c == nil {
		t.Fatal("ParseSetCookie returned nil")
	}
	if c.Name != "sid" || c.Value != "abc123" {
		t.Errorf("name/value = %s/%s", c.Name, c.Value)
	}
	if c.Path != "/" || c.Domain != ".example.com" {
		t.Errorf("path/domain = %s/%s", c.Path, c.Domain)
	}
	if c.Expires == "" || !c.Secure || !c.HTTPOnly {
		t.Errorf("attributes not parsed: %+v", c)
	}

	if ParseSetCookie("no-equals-sign") != nil {
		t.Error("value without name=value should yield nil")
	}
}

func TestParseQueryPreservesOrder(t *testing.T) {
	r := NewRecorder(10)
	r.RecordRequest(requestEvent("req-1", "https://cdn.example.com/v.mp4?b=2&a=1&b=3"))

	qs := r.Export("test").Log.Entries[0].Request.QueryString
	if len(qs) != 3 {
		t.Fatalf("got %d params, want 3", len(qs))
	}
	if qs[0].Name != "b" || qs[1].Name != "a" || qs[2].Name != "b" {
		t.Errorf("order/duplicates not preserved: %+v", qs)
	}
}
