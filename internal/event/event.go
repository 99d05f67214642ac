// Package event defines the normalized request lifecycle events consumed by
// the classification pipeline and the HAR recorder. The upstream network
// source (CDP or otherwise) converts its native notifications into these
// shapes; nothing downstream assumes a particular transport.
package event

import (
	"strings"
	"time"
)

// Kind identifies the lifecycle point an event was observed at.
type Kind string

const (
	// KindRequestWillBeSent is the first notification for a request. Method,
	// URL and headers are available opportunistically.
	KindRequestWillBeSent Kind = "request-will-be-sent"

	// KindHeadersSent carries the full request header list, which is only
	// fully known after the initial request line.
	KindHeadersSent Kind = "headers-sent"

	// KindHeadersReceived carries the response status and headers.
	KindHeadersReceived Kind = "headers-received"
)

// Header is a single name/value pair. Order and duplicates are preserved
// across a header list.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Headers is an ordered header list.
type Headers []Header

// Get returns the first value for name, case-insensitively.
func (h Headers) Get(name string) string {
	for _, hdr := range h {
		if strings.EqualFold(hdr.Name, name) {
			return hdr.Value
		}
	}
	return ""
}

// Clone returns a copy so callers can retain a list past the event's lifetime.
func (h Headers) Clone() Headers {
	if h == nil {
		return nil
	}
	out := make(Headers, len(h))
	copy(out, h)
	return out
}

// RequestEvent is one normalized lifecycle notification. The same RequestID
// appears once per lifecycle point; consumers join on it.
type RequestEvent struct {
	RequestID string
	Session   string
	Kind      Kind
	URL       string
	Method    string
	Headers   Headers // request headers known at this point
	Initiator string  // originating page URL, or "injected"
	Metadata  []byte  // opaque caller-supplied provenance, JSON

	// Response fields, set only for KindHeadersReceived.
	Status          int
	ResponseHeaders Headers
	MimeType        string
	Size            int64

	Timestamp time.Time
}

// IsResponse reports whether the event carries response data.
func (e RequestEvent) IsResponse() bool {
	return e.Kind == KindHeadersReceived
}
