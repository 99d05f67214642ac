// Package store holds the per-session stream record set: one record per
// distinct URL, capacity bounded, evicted strictly in insertion order.
package store

import (
	"encoding/json"
	"time"

	"github.com/streamlens/streamlens/internal/event"
)

// MediaType is the coarse classification assigned from the URL taxonomy.
type MediaType string

const (
	MediaHLSPlaylist  MediaType = "hls-playlist"
	MediaDASHManifest MediaType = "dash-manifest"
	MediaTransportSeg MediaType = "transport-segment"
	MediaFragment     MediaType = "fragment"
	MediaMP4          MediaType = "mp4"
	MediaWebM         MediaType = "webm"
	MediaMKV          MediaType = "mkv"
	MediaPlatform     MediaType = "platform"
	MediaDRM          MediaType = "drm"
	MediaUnknown      MediaType = "unknown"
)

// Status is the validation state machine. Terminal states are OK,
// Unsupported and Error; Revalidate is the only way back to Pending.
type Status string

const (
	StatusPending     Status = "pending"
	StatusOK          Status = "ok"
	StatusUnsupported Status = "unsupported"
	StatusError       Status = "error"
)

// StructureType tags what the probe found the resource to be.
type StructureType string

const (
	StructureMaster   StructureType = "master"
	StructureVariant  StructureType = "variant"
	StructureManifest StructureType = "manifest"
	StructureSegment  StructureType = "segment"
	StructureFile     StructureType = "file"
	StructureDRM      StructureType = "drm"
)

// Variant is one rendition parsed out of a master playlist or DASH manifest.
// Bandwidth is rounded to kbps; lists are ordered by descending bandwidth.
type Variant struct {
	Resolution    string  `json:"resolution"`
	BandwidthKbps int     `json:"bandwidthKbps"`
	URL           string  `json:"url,omitempty"`
	Codecs        string  `json:"codecs,omitempty"`
	FrameRate     float64 `json:"frameRate,omitempty"`
}

// Validation is the enrichment sub-record owned exclusively by the
// validation queue. Variants is only populated for master/manifest
// structures; dimension fields only when a probe actually found them.
type Validation struct {
	Status        Status        `json:"status"`
	ContentType   string        `json:"contentType,omitempty"`
	SizeBytes     int64         `json:"sizeBytes,omitempty"`
	Structure     StructureType `json:"structureType,omitempty"`
	Resolution    string        `json:"resolution,omitempty"`
	Width         int           `json:"width,omitempty"`
	Height        int           `json:"height,omitempty"`
	Bandwidth     int           `json:"bandwidth,omitempty"` // bits per second
	Variants      []Variant     `json:"variants,omitempty"`
	FailureReason string        `json:"failureReason,omitempty"`

	// Generation increments on every transition back to pending. A probe
	// completion carrying a stale generation is discarded.
	Generation uint64 `json:"-"`
}

// Record is one observed stream candidate, keyed by URL within a session.
type Record struct {
	URL            string          `json:"url"`
	MediaType      MediaType       `json:"mediaType"`
	IsDRM          bool            `json:"isDRM"`
	Session        string          `json:"sessionScope"`
	FirstSeenAt    time.Time       `json:"firstSeenAt"`
	Method         string          `json:"method"`
	RequestHeaders event.Headers   `json:"requestHeaders"`
	Initiator      string          `json:"initiator"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	Validation     Validation      `json:"validation"`
}

// Clone returns a deep copy that is safe to read, marshal or send to another
// goroutine while the store keeps mutating its own copy.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.RequestHeaders = r.RequestHeaders.Clone()
	if r.Metadata != nil {
		out.Metadata = append(json.RawMessage(nil), r.Metadata...)
	}
	if r.Validation.Variants != nil {
		out.Validation.Variants = append([]Variant(nil), r.Validation.Variants...)
	}
	return &out
}
