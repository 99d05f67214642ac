package har

import (
	"net/url"
	"strings"
	"time"

	"github.com/streamlens/streamlens/internal/event"
)

// Version reported in export creator blocks.
const Version = "1.0.0"

// mediaSuffixes restricts the filtered export to media-relevant entries.
var mediaSuffixes = []string{".m3u8", ".mpd", ".ts", ".m4s", ".mp4", ".webm", ".mkv"}

// Empty builds a well-formed transcript with no entries, for sessions that
// never recorded anything.
func Empty(title string) *HAR {
	return &HAR{Log: &Log{
		Version: "1.2",
		Creator: &Creator{Name: "streamlens", Version: Version},
		Entries: []*Entry{},
		Pages: []*Page{{
			ID:              "page_1",
			StartedDateTime: formatTime(time.Time{}),
			Title:           title,
			PageTimings:     &PageTimings{OnContentLoad: -1, OnLoad: -1},
		}},
	}}
}

// Export builds the full HAR transcript for the session, in insertion order.
func (r *Recorder) Export(title string) *HAR {
	return r.export(title, nil)
}

// ExportFiltered builds a transcript restricted to media-relevant entries.
// Internal join keys are stripped (the HAR shape never carries them) and a
// synthesized page header is attached.
func (r *Recorder) ExportFiltered(title string) *HAR {
	return r.export(title, isMediaURL)
}

func (r *Recorder) export(title string, include func(string) bool) *HAR {
	r.mu.Lock()
	defer r.mu.Unlock()

	log := &Log{
		Version: "1.2",
		Creator: &Creator{Name: "streamlens", Version: Version},
		Entries: []*Entry{},
	}

	var pageStart time.Time
	for _, id := range r.order {
		e := r.byID[id]
		if include != nil && !include(e.url) {
			continue
		}
		if pageStart.IsZero() || (!e.started.IsZero() && e.started.Before(pageStart)) {
			pageStart = e.started
		}
		log.Entries = append(log.Entries, e.toHAR())
	}

	log.Pages = []*Page{{
		ID:              "page_1",
		StartedDateTime: formatTime(pageStart),
		Title:           title,
		PageTimings:     &PageTimings{OnContentLoad: -1, OnLoad: -1},
	}}

	return &HAR{Log: log}
}

func (e *entry) toHAR() *Entry {
	req := &Request{
		Method:      e.method,
		URL:         e.url,
		HTTPVersion: "HTTP/1.1",
		Headers:     toHeaderList(e.reqHeaders),
		QueryString: parseQuery(e.url),
		Cookies:     []*Cookie{},
		HeadersSize: -1,
		BodySize:    -1,
	}
	if cookieHeader := e.reqHeaders.Get("Cookie"); cookieHeader != "" {
		req.Cookies = ParseCookieHeader(cookieHeader)
	}

	resp := &Response{
		HTTPVersion: "HTTP/1.1",
		Headers:     []*Header{},
		Cookies:     []*Cookie{},
		Content:     &Content{},
		HeadersSize: -1,
		BodySize:    -1,
	}
	if e.hasResponse {
		resp.Status = e.status
		resp.Headers = toHeaderList(e.respHeaders)
		resp.Content = &Content{Size: e.size, MimeType: e.mimeType}
		for _, h := range e.respHeaders {
			if strings.EqualFold(h.Name, "Set-Cookie") {
				if c := ParseSetCookie(h.Value); c != nil {
					resp.Cookies = append(resp.Cookies, c)
				}
			}
		}
	}

	wait := -1.0
	if e.elapsed > 0 {
		wait = float64(e.elapsed) / float64(time.Millisecond)
	}

	return &Entry{
		PageRef:         "page_1",
		StartedDateTime: formatTime(e.started),
		Time:            wait,
		Request:         req,
		Response:        resp,
		Timings: &Timings{
			Blocked: -1, DNS: -1, Connect: -1, Send: -1,
			Wait: wait, Receive: -1,
		},
	}
}

func toHeaderList(headers event.Headers) []*Header {
	out := make([]*Header, 0, len(headers))
	for _, h := range headers {
		out = append(out, &Header{Name: h.Name, Value: h.Value})
	}
	return out
}

// parseQuery splits the raw query preserving parameter order and duplicates,
// which url.Values would lose.
func parseQuery(raw string) []*QueryString {
	out := []*QueryString{}
	u, err := url.Parse(raw)
	if err != nil || u.RawQuery == "" {
		return out
	}
	for _, pair := range strings.Split(u.RawQuery, "&") {
		if pair == "" {
			continue
		}
		name, value, _ := strings.Cut(pair, "=")
		if decoded, err := url.QueryUnescape(name); err == nil {
			name = decoded
		}
		if decoded, err := url.QueryUnescape(value); err == nil {
			value = decoded
		}
		out = append(out, &QueryString{Name: name, Value: value})
	}
	return out
}

func isMediaURL(raw string) bool {
	u, err := url.Parse(raw)
	path := strings.ToLower(raw)
	if err == nil {
		path = strings.ToLower(u.Path)
	}
	for _, suffix := range mediaSuffixes {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
