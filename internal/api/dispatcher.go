// Package api exposes the capture pipeline over a small command surface:
// JSON commands over HTTP plus a websocket feed of record changes.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/streamlens/streamlens/internal/classify"
	"github.com/streamlens/streamlens/internal/har"
	"github.com/streamlens/streamlens/internal/inject"
	"github.com/streamlens/streamlens/internal/session"
	"github.com/streamlens/streamlens/internal/store"
	"github.com/streamlens/streamlens/internal/validate"
)

// Command names accepted by Dispatch.
const (
	ActionGetStreams            = "get-streams"
	ActionGetHAR                = "get-har"
	ActionGetStreamHAR          = "get-stream-har"
	ActionRevalidateStream      = "revalidate-stream"
	ActionClearStreams          = "clear-streams"
	ActionExportStreams         = "export-streams"
	ActionCaptureInjectedStream = "capture-injected-stream"
	ActionToggleAdvancedCapture = "toggle-advanced-capture"
)

// Request is one command envelope.
type Request struct {
	Action    string          `json:"action"`
	SessionID string          `json:"sessionId"`
	URL       string          `json:"url,omitempty"`
	Type      string          `json:"type,omitempty"`     // capture-injected-stream
	Origin    string          `json:"origin,omitempty"`   // capture-injected-stream
	Metadata  json.RawMessage `json:"metadata,omitempty"` // capture-injected-stream
	Enabled   *bool           `json:"enabled,omitempty"`
}

// Response is the uniform reply envelope.
type Response struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// Export is the payload of export-streams.
type Export struct {
	SessionID  string          `json:"sessionId"`
	ExportedAt time.Time       `json:"exportedAt"`
	Records    []*store.Record `json:"records"`
}

// Persister lets clear-streams drop the durable copy too.
type Persister interface {
	DeleteSession(sessionID string) error
}

// Revalidator is the slice of the validation queue the dispatcher needs.
type Revalidator interface {
	Revalidate(ctx context.Context, sessionID, url string) (store.Validation, error)
}

// PagePropagator pushes the advanced-capture flag into page context, so a
// disabled session stops paying the interception cost inside the page too.
type PagePropagator interface {
	SetAdvancedCapture(enabled bool)
}

// Dispatcher executes commands against the live registry.
type Dispatcher struct {
	reg        *session.Registry
	classifier *classify.Classifier
	queue      Revalidator
	persist    Persister
	pages      PagePropagator
	log        zerolog.Logger
}

func NewDispatcher(reg *session.Registry, classifier *classify.Classifier, queue Revalidator, persist Persister, pages PagePropagator, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{reg: reg, classifier: classifier, queue: queue, persist: persist, pages: pages, log: log}
}

var errUnknownAction = errors.New("unknown action")

// Dispatch executes one command. Unknown sessions are an error for commands
// that read state and a no-op session creation for commands that write it.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Response {
	if req.SessionID == "" {
		return fail("sessionId is required")
	}

	switch req.Action {
	case ActionGetStreams:
		return d.getStreams(req)
	case ActionGetHAR:
		return d.getHAR(req, false)
	case ActionGetStreamHAR:
		return d.getHAR(req, true)
	case ActionRevalidateStream:
		return d.revalidate(ctx, req)
	case ActionClearStreams:
		return d.clearStreams(req)
	case ActionExportStreams:
		return d.exportStreams(req)
	case ActionCaptureInjectedStream:
		return d.captureInjected(req)
	case ActionToggleAdvancedCapture:
		return d.toggleAdvanced(req)
	default:
		return fail(errUnknownAction.Error() + ": " + req.Action)
	}
}

func (d *Dispatcher) getStreams(req Request) Response {
	sess := d.reg.Get(req.SessionID)
	if sess == nil {
		return ok([]*store.Record{})
	}
	return ok(sess.Records.List())
}

func (d *Dispatcher) getHAR(req Request, mediaOnly bool) Response {
	sess := d.reg.Get(req.SessionID)
	if sess == nil {
		return ok(har.Empty("streamlens capture"))
	}
	title := "streamlens capture " + req.SessionID
	if mediaOnly {
		return ok(sess.HAR.ExportFiltered(title))
	}
	return ok(sess.HAR.Export(title))
}

func (d *Dispatcher) revalidate(ctx context.Context, req Request) Response {
	if req.URL == "" {
		return fail("url is required")
	}
	if _, err := d.queue.Revalidate(ctx, req.SessionID, req.URL); err != nil {
		switch {
		case errors.Is(err, validate.ErrNoSession):
			return fail("unknown session: " + req.SessionID)
		case errors.Is(err, validate.ErrNotFound):
			return fail("no record for url: " + req.URL)
		}
		return fail(err.Error())
	}
	// Return the applied record, which a concurrent revalidation may have
	// advanced past our own probe's result.
	sess := d.reg.Get(req.SessionID)
	if sess == nil {
		return fail("session ended during revalidation")
	}
	rec := sess.Records.Get(req.URL)
	if rec == nil {
		return fail("record evicted during revalidation")
	}
	return ok(rec)
}

func (d *Dispatcher) clearStreams(req Request) Response {
	sess := d.reg.Get(req.SessionID)
	if sess != nil {
		sess.Records.Clear()
		sess.ResetCounter()
	}
	if d.persist != nil {
		if err := d.persist.DeleteSession(req.SessionID); err != nil {
			d.log.Warn().Err(err).Str("session", req.SessionID).Msg("clearing durable copy failed")
		}
	}
	return ok(nil)
}

func (d *Dispatcher) exportStreams(req Request) Response {
	sess := d.reg.Get(req.SessionID)
	export := Export{SessionID: req.SessionID, ExportedAt: time.Now()}
	if sess != nil {
		export.Records = sess.Records.List()
	}
	if export.Records == nil {
		export.Records = []*store.Record{}
	}
	return ok(export)
}

func (d *Dispatcher) captureInjected(req Request) Response {
	if req.URL == "" {
		return fail("url is required")
	}
	kind := req.Type
	if kind == "" {
		kind = "manual"
	}
	discovery := inject.Discovery{URL: req.URL, Kind: kind, Page: req.Origin, Metadata: req.Metadata}
	ev, okEv := discovery.ToEvent(req.SessionID)
	if !okEv {
		return fail("url is required")
	}
	rec := d.classifier.Observe(ev)
	if rec == nil {
		// Already known; hand back the existing record.
		if sess := d.reg.Get(req.SessionID); sess != nil {
			rec = sess.Records.Get(req.URL)
		}
	}
	return ok(rec)
}

func (d *Dispatcher) toggleAdvanced(req Request) Response {
	sess := d.reg.GetOrCreate(req.SessionID)
	enabled := !sess.AdvancedCapture()
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	sess.SetAdvancedCapture(enabled)
	if d.pages != nil {
		d.pages.SetAdvancedCapture(enabled)
	}
	return ok(map[string]bool{"enabled": enabled})
}

func ok(data any) Response     { return Response{OK: true, Data: data} }
func fail(msg string) Response { return Response{OK: false, Error: msg} }
