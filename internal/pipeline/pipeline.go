// Package pipeline fans normalized browser events into the classifier, the
// HAR transcript and the metrics collector, and feeds page-script
// discoveries back through the same classification path.
package pipeline

import (
	"github.com/rs/zerolog"

	"github.com/streamlens/streamlens/internal/classify"
	"github.com/streamlens/streamlens/internal/event"
	"github.com/streamlens/streamlens/internal/inject"
	"github.com/streamlens/streamlens/internal/metrics"
	"github.com/streamlens/streamlens/internal/session"
)

// Pipeline is the sink the CDP source feeds.
type Pipeline struct {
	reg        *session.Registry
	classifier *classify.Classifier
	collector  *metrics.Collector
	log        zerolog.Logger
}

func New(reg *session.Registry, classifier *classify.Classifier, collector *metrics.Collector, log zerolog.Logger) *Pipeline {
	return &Pipeline{reg: reg, classifier: classifier, collector: collector, log: log}
}

// OnEvent routes one lifecycle event: every request lands in the HAR
// transcript, and the classifier decides whether it is a stream candidate.
func (p *Pipeline) OnEvent(ev event.RequestEvent) {
	if p.collector != nil {
		p.collector.ObserveEvent()
	}

	sess := p.reg.GetOrCreate(ev.Session)
	if ev.IsResponse() {
		sess.HAR.RecordResponse(ev)
	} else {
		sess.HAR.RecordRequest(ev)
	}

	p.classifier.Observe(ev)
}

// OnDiscovery handles a page-script report. Discoveries require the
// session's advanced-capture toggle; manually injected URLs bypass it.
func (p *Pipeline) OnDiscovery(sessionID string, d inject.Discovery) {
	sess := p.reg.GetOrCreate(sessionID)
	if !sess.AdvancedCapture() && d.Kind != "manual" {
		p.log.Debug().Str("session", sessionID).Str("kind", d.Kind).Msg("discovery dropped, advanced capture off")
		return
	}

	if p.collector != nil {
		p.collector.ObserveDiscovery()
	}

	if d.Kind == "eme" && d.URL == "" {
		// A key-system probe without a URL still tells us the page uses DRM;
		// flag it on records as their license traffic shows up instead.
		p.log.Info().Str("session", sessionID).Str("keySystem", d.KeySystem).Msg("EME use detected")
		return
	}

	ev, ok := d.ToEvent(sessionID)
	if !ok {
		return
	}
	p.classifier.Observe(ev)
}
