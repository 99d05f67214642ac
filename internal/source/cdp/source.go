// Package cdp attaches to a running Chrome over the DevTools protocol and
// turns its network lifecycle events into the normalized form the rest of
// the pipeline consumes. One Source handles one browser target; its target
// id doubles as the capture session id.
package cdp

import (
	"context"
	"fmt"
	neturl "net/url"
	"strings"
	"sync"
	"time"

	cdplib "github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"

	"github.com/streamlens/streamlens/internal/event"
	"github.com/streamlens/streamlens/internal/inject"
)

// Sink receives everything the browser produces.
type Sink interface {
	OnEvent(ev event.RequestEvent)
	OnDiscovery(sessionID string, d inject.Discovery)
}

// Source is one attached browser target.
type Source struct {
	devtoolsURL string
	sink        Sink
	log         zerolog.Logger

	// fetchBody retrieves a response body over the protocol; replaced in
	// tests.
	fetchBody func(id network.RequestID) ([]byte, error)

	mu         sync.Mutex
	urlByID    map[network.RequestID]string
	browserCtx context.Context
}

// urlCacheLimit bounds the request-id to URL map; lifecycle events for a
// request arrive close together so old entries are safe to shed.
const urlCacheLimit = 4096

func New(devtoolsURL string, sink Sink, log zerolog.Logger) *Source {
	return &Source{
		devtoolsURL: devtoolsURL,
		sink:        sink,
		log:         log.With().Str("component", "cdp").Logger(),
	}
}

// Run connects, instruments the target and pumps events until ctx ends.
func (s *Source) Run(ctx context.Context) error {
	allocCtx, cancelAlloc := chromedp.NewRemoteAllocator(ctx, s.devtoolsURL)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	s.mu.Lock()
	s.browserCtx = browserCtx
	if s.fetchBody == nil {
		s.fetchBody = s.cdpResponseBody
	}
	s.mu.Unlock()

	if err := chromedp.Run(browserCtx,
		network.Enable(),
		runtime.Enable(),
		runtime.AddBinding(inject.BindingName),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(inject.PageScript).Do(ctx)
			return err
		}),
	); err != nil {
		return fmt.Errorf("instrument target: %w", err)
	}

	target := chromedp.FromContext(browserCtx).Target
	if target == nil {
		return fmt.Errorf("no target attached")
	}
	sessionID := string(target.TargetID)
	s.log.Info().Str("session", sessionID).Msg("attached to browser target")

	chromedp.ListenTarget(browserCtx, func(ev any) {
		s.dispatch(sessionID, ev)
	})

	<-ctx.Done()
	return ctx.Err()
}

// dispatch converts one raw protocol event. Runs on chromedp's event
// goroutine, so it must not block.
func (s *Source) dispatch(sessionID string, raw any) {
	switch ev := raw.(type) {
	case *network.EventRequestWillBeSent:
		s.rememberURL(ev.RequestID, ev.Request.URL)
		s.sink.OnEvent(event.RequestEvent{
			RequestID: string(ev.RequestID),
			Session:   sessionID,
			Kind:      event.KindRequestWillBeSent,
			URL:       ev.Request.URL,
			Method:    ev.Request.Method,
			Headers:   headersFrom(ev.Request.Headers),
			Initiator: initiatorURL(ev),
			Timestamp: wallTime(ev),
		})

	case *network.EventRequestWillBeSentExtraInfo:
		// Carries the headers actually put on the wire, cookies included,
		// but no URL of its own.
		url := s.lookupURL(ev.RequestID)
		if url == "" {
			return
		}
		s.sink.OnEvent(event.RequestEvent{
			RequestID: string(ev.RequestID),
			Session:   sessionID,
			Kind:      event.KindHeadersSent,
			URL:       url,
			Headers:   headersFrom(ev.Headers),
		})

	case *network.EventResponseReceived:
		s.sink.OnEvent(event.RequestEvent{
			RequestID:       string(ev.RequestID),
			Session:         sessionID,
			Kind:            event.KindHeadersReceived,
			URL:             ev.Response.URL,
			Status:          int(ev.Response.Status),
			ResponseHeaders: headersFrom(ev.Response.Headers),
			MimeType:        ev.Response.MimeType,
			Size:            int64(ev.Response.EncodedDataLength),
		})
		if textLike(ev.Response.MimeType) {
			// Body retrieval is a protocol round trip; it must leave the
			// event goroutine.
			go s.scanResponse(sessionID, ev.RequestID, ev.Response.URL)
		}

	case *runtime.EventBindingCalled:
		if ev.Name != inject.BindingName {
			return
		}
		d, err := inject.DecodePayload(ev.Payload)
		if err != nil {
			s.log.Debug().Err(err).Msg("discarding malformed binding payload")
			return
		}
		s.sink.OnDiscovery(sessionID, d)
	}
}

func (s *Source) rememberURL(id network.RequestID, url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.urlByID == nil || len(s.urlByID) >= urlCacheLimit {
		s.urlByID = make(map[network.RequestID]string, 256)
	}
	s.urlByID[id] = url
}

func (s *Source) lookupURL(id network.RequestID) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.urlByID[id]
}

// scanResponse pulls the finished response body and surfaces any embedded
// media or license URLs it carries as discoveries.
func (s *Source) scanResponse(sessionID string, id network.RequestID, respURL string) {
	s.mu.Lock()
	fetch := s.fetchBody
	s.mu.Unlock()
	if fetch == nil {
		return
	}

	body, err := fetch(id)
	if err != nil {
		// Bodies evaporate once the browser drops them; not an error worth
		// more than a debug line.
		s.log.Debug().Err(err).Str("url", respURL).Msg("response body unavailable")
		return
	}

	base, err := neturl.Parse(respURL)
	if err != nil {
		base = nil
	}
	for _, d := range inject.ScanBody(body, base) {
		s.sink.OnDiscovery(sessionID, d)
	}
}

func (s *Source) cdpResponseBody(id network.RequestID) ([]byte, error) {
	s.mu.Lock()
	ctx := s.browserCtx
	s.mu.Unlock()
	if ctx == nil {
		return nil, fmt.Errorf("no browser attached")
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	c := chromedp.FromContext(ctx)
	return network.GetResponseBody(id).Do(cdplib.WithExecutor(ctx, c.Target))
}

// SetAdvancedCapture pushes the capture flag into page context so a disabled
// session's script stops reporting at the source. Best effort.
func (s *Source) SetAdvancedCapture(enabled bool) {
	s.mu.Lock()
	ctx := s.browserCtx
	s.mu.Unlock()
	if ctx == nil {
		return
	}
	expr := fmt.Sprintf("window.%s = %t;", inject.CaptureFlagName, enabled)
	go func() {
		if err := chromedp.Run(ctx, chromedp.Evaluate(expr, nil)); err != nil {
			s.log.Debug().Err(err).Bool("enabled", enabled).Msg("propagating capture flag failed")
		}
	}()
}

// textLike reports whether a mime type is worth scanning for embedded links.
func textLike(mime string) bool {
	mime = strings.ToLower(mime)
	if strings.HasPrefix(mime, "text/") {
		return true
	}
	if !strings.HasPrefix(mime, "application/") {
		return false
	}
	for _, hint := range []string{"json", "xml", "mpegurl", "dash"} {
		if strings.Contains(mime, hint) {
			return true
		}
	}
	return false
}

func headersFrom(h network.Headers) event.Headers {
	if len(h) == 0 {
		return nil
	}
	out := make(event.Headers, 0, len(h))
	for name, value := range h {
		if str, ok := value.(string); ok {
			out = append(out, event.Header{Name: name, Value: str})
		}
	}
	return out
}

func wallTime(ev *network.EventRequestWillBeSent) time.Time {
	if ev.WallTime == nil {
		return time.Now()
	}
	return ev.WallTime.Time()
}

func initiatorURL(ev *network.EventRequestWillBeSent) string {
	if ev.Initiator != nil && ev.Initiator.URL != "" {
		return ev.Initiator.URL
	}
	if ev.DocumentURL != "" {
		return ev.DocumentURL
	}
	return ""
}
