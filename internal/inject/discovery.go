package inject

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/streamlens/streamlens/internal/event"
)

// Discovery is one candidate surfaced outside the normal request lifecycle:
// by the page script, by body scanning, or handed in over the API.
type Discovery struct {
	URL       string
	Kind      string // fetch, xhr, video, eme, embedded, manual
	KeySystem string // eme only
	Page      string // page URL at report time, or the embedding parent URL
	Metadata  []byte // opaque caller-supplied provenance, JSON
}

// ErrEmptyPayload is returned for binding payloads carrying no usable URL.
var ErrEmptyPayload = errors.New("payload carries no url or key system")

// DecodePayload parses a binding payload emitted by PageScript.
func DecodePayload(payload string) (Discovery, error) {
	if !gjson.Valid(payload) {
		return Discovery{}, errors.New("payload is not valid JSON")
	}
	parsed := gjson.Parse(payload)
	d := Discovery{
		URL:       parsed.Get("url").String(),
		Kind:      parsed.Get("kind").String(),
		KeySystem: parsed.Get("keySystem").String(),
		Page:      parsed.Get("page").String(),
	}
	if d.URL == "" && d.KeySystem == "" {
		return Discovery{}, ErrEmptyPayload
	}
	if d.Kind == "" {
		d.Kind = "manual"
	}
	return d, nil
}

// ToEvent converts a discovery into a synthetic lifecycle event so it flows
// through the same classification path as real traffic. EME discoveries
// without a URL produce a zero event and false.
func (d Discovery) ToEvent(sessionID string) (event.RequestEvent, bool) {
	if d.URL == "" {
		return event.RequestEvent{}, false
	}
	ev := event.RequestEvent{
		RequestID: "inj-" + uuid.NewString(),
		Session:   sessionID,
		Kind:      event.KindRequestWillBeSent,
		URL:       d.URL,
		Method:    "GET",
		Initiator: d.Page,
		Metadata:  d.Metadata,
		Timestamp: time.Now(),
	}
	if ev.Initiator == "" {
		ev.Initiator = "injected:" + d.Kind
	}
	return ev, true
}
