package validate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/streamlens/streamlens/internal/container"
	"github.com/streamlens/streamlens/internal/manifest"
	"github.com/streamlens/streamlens/internal/store"
)

const (
	// DefaultProbeTimeout bounds a single probe end to end, headers and body.
	DefaultProbeTimeout = 6 * time.Second

	// textSampleLimit caps how much of a manifest body is fetched.
	textSampleLimit = 8 << 10
	// containerRangeLimit is the byte range requested from binary containers;
	// track headers sit near the front of well-formed files.
	containerRangeLimit = 64 << 10
)

// Prober issues a single bounded HTTP fetch per candidate and classifies
// the response structurally. It holds no per-session state.
type Prober struct {
	client  *http.Client
	timeout time.Duration
	log     zerolog.Logger
}

// NewProber builds a prober with a tuned transport. A non-positive timeout
// falls back to DefaultProbeTimeout.
func NewProber(timeout time.Duration, log zerolog.Logger) *Prober {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &Prober{
		client:  newProbeClient(timeout),
		timeout: timeout,
		log:     log,
	}
}

func newProbeClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          8,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// Probe fetches rec.URL and returns a terminal validation (ok, unsupported
// or error). Only the User-Agent and Referer headers from the original
// request are replayed; everything else, cookies included, is left to the
// transport so the probe stays distinguishable from playback traffic.
func (p *Prober) Probe(ctx context.Context, rec *store.Record) store.Validation {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rec.URL, nil)
	if err != nil {
		return store.Validation{
			Status:        store.StatusError,
			FailureReason: fmt.Sprintf("build request: %v", err),
		}
	}
	if ua := rec.RequestHeaders.Get("User-Agent"); ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	if ref := rec.RequestHeaders.Get("Referer"); ref != "" {
		req.Header.Set("Referer", ref)
	}

	binary := isBinaryProbe(rec.MediaType)
	if binary {
		req.Header.Set("Range", fmt.Sprintf("bytes=0-%d", containerRangeLimit-1))
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return store.Validation{
			Status:        store.StatusError,
			FailureReason: failureReason(err, p.timeout),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return store.Validation{
			Status:        store.StatusError,
			ContentType:   contentType(resp),
			FailureReason: fmt.Sprintf("server returned %d", resp.StatusCode),
		}
	}

	limit := int64(textSampleLimit)
	if binary {
		limit = containerRangeLimit
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return store.Validation{
			Status:        store.StatusError,
			ContentType:   contentType(resp),
			FailureReason: failureReason(err, p.timeout),
		}
	}

	v := store.Validation{
		Status:      store.StatusOK,
		ContentType: contentType(resp),
		SizeBytes:   resourceSize(resp),
	}
	p.classify(rec, body, &v)
	return v
}

// classify fills the structural fields of v from the sampled body. It never
// demotes Status below what the fetch established: structural surprises
// degrade to the coarsest classification instead of failing the record.
func (p *Prober) classify(rec *store.Record, body []byte, v *store.Validation) {
	switch rec.MediaType {
	case store.MediaHLSPlaylist:
		p.classifyHLS(rec, body, v)
	case store.MediaDASHManifest:
		p.classifyDASH(rec, body, v)
	case store.MediaMP4:
		classifyContainer(body, v, container.BMFFDimensions)
	case store.MediaWebM, store.MediaMKV:
		classifyContainer(body, v, container.EBMLDimensions)
	case store.MediaDRM:
		v.Structure = store.StructureDRM
	case store.MediaPlatform:
		p.classifySniffed(rec, body, v)
	default:
		v.Structure = store.StructureFile
	}
	if rec.IsDRM && v.Structure == "" {
		v.Structure = store.StructureDRM
	}
}

func (p *Prober) classifyHLS(rec *store.Record, body []byte, v *store.Validation) {
	switch manifest.ClassifyHLS(body) {
	case manifest.PlaylistMaster:
		base, _ := url.Parse(rec.URL)
		variants, err := manifest.ParseMaster(body, base)
		if err != nil {
			// Malformed manifest: fall back to the coarsest classification
			// rather than failing the record.
			v.Structure = store.StructureSegment
			return
		}
		v.Structure = store.StructureMaster
		v.Variants = toStoreVariants(variants)
		if best := manifest.Best(variants); best != nil {
			v.Resolution = best.Resolution
			v.Width = best.Width
			v.Height = best.Height
			v.Bandwidth = best.Bandwidth
		}
	case manifest.PlaylistVariant:
		v.Structure = store.StructureVariant
	default:
		// Neither stream-info nor segment durations: coarsest classification.
		v.Structure = store.StructureSegment
	}
}

func (p *Prober) classifyDASH(rec *store.Record, body []byte, v *store.Validation) {
	mpd, err := manifest.ParseMPD(body)
	if err != nil {
		// Malformed or sample-truncated XML degrades to segment, never to a
		// failed record.
		v.Structure = store.StructureSegment
		return
	}
	if !mpd.IsManifest() {
		v.Structure = store.StructureSegment
		return
	}
	v.Structure = store.StructureManifest
	v.Variants = repsToStoreVariants(mpd.Representations)
	if len(mpd.Representations) > 0 {
		top := mpd.Representations[0]
		v.Width = top.Width
		v.Height = top.Height
		v.Resolution = fmt.Sprintf("%dx%d", top.Width, top.Height)
		v.Bandwidth = top.Bandwidth
	}
}

// classifySniffed handles platform URLs where only the body can tell us what
// the resource actually is.
func (p *Prober) classifySniffed(rec *store.Record, body []byte, v *store.Validation) {
	switch {
	case bytes.HasPrefix(bytes.TrimSpace(body), []byte("#EXTM3U")):
		p.classifyHLS(rec, body, v)
	case bytes.Contains(body[:min(len(body), 512)], []byte("<MPD")):
		p.classifyDASH(rec, body, v)
	case looksLikeBMFF(body):
		classifyContainer(body, v, container.BMFFDimensions)
	case looksLikeEBML(body):
		classifyContainer(body, v, container.EBMLDimensions)
	default:
		v.Structure = store.StructureFile
	}
}

func classifyContainer(body []byte, v *store.Validation, dims func([]byte) (int, int, bool)) {
	v.Structure = store.StructureFile
	if w, h, ok := dims(body); ok {
		v.Width = w
		v.Height = h
		v.Resolution = fmt.Sprintf("%dx%d", w, h)
	}
}

func looksLikeBMFF(body []byte) bool {
	return len(body) >= 12 && bytes.Equal(body[4:8], []byte("ftyp"))
}

func looksLikeEBML(body []byte) bool {
	return len(body) >= 4 && bytes.Equal(body[:4], []byte{0x1A, 0x45, 0xDF, 0xA3})
}

func toStoreVariants(variants []manifest.Variant) []store.Variant {
	out := make([]store.Variant, 0, len(variants))
	for _, v := range variants {
		out = append(out, store.Variant{
			Resolution:    v.Resolution,
			BandwidthKbps: v.Bandwidth / 1000,
			URL:           v.URI,
			Codecs:        v.Codecs,
			FrameRate:     v.FrameRate,
		})
	}
	return out
}

func repsToStoreVariants(reps []manifest.Representation) []store.Variant {
	out := make([]store.Variant, 0, len(reps))
	for _, r := range reps {
		out = append(out, store.Variant{
			Resolution:    fmt.Sprintf("%dx%d", r.Width, r.Height),
			BandwidthKbps: r.Bandwidth / 1000,
		})
	}
	return out
}

func isBinaryProbe(mt store.MediaType) bool {
	switch mt {
	case store.MediaMP4, store.MediaWebM, store.MediaMKV, store.MediaPlatform:
		return true
	}
	return false
}

func contentType(resp *http.Response) string {
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		return ""
	}
	if parsed, _, err := mime.ParseMediaType(ct); err == nil {
		return parsed
	}
	return ct
}

// resourceSize prefers the full length advertised by Content-Range on
// partial responses; Content-Length on a 206 only covers the slice.
func resourceSize(resp *http.Response) int64 {
	if cr := resp.Header.Get("Content-Range"); cr != "" {
		if idx := strings.LastIndex(cr, "/"); idx >= 0 {
			if total, err := strconv.ParseInt(cr[idx+1:], 10, 64); err == nil {
				return total
			}
		}
	}
	if resp.ContentLength > 0 {
		return resp.ContentLength
	}
	return 0
}

// failureReason folds transport errors into the two reasons callers care
// about: a deadline hit or everything else.
func failureReason(err error, timeout time.Duration) string {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Sprintf("timed out after %s", timeout)
	}
	return fmt.Sprintf("request failed: %v", err)
}
