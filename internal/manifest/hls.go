// Package manifest implements small, strict parsers for the two streaming
// manifest formats the probe needs to understand: HLS playlists (line and
// attribute grammar) and DASH manifests (token-based element scan).
package manifest

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// PlaylistKind is the structural classification of an HLS playlist body.
type PlaylistKind string

const (
	PlaylistMaster  PlaylistKind = "master"
	PlaylistVariant PlaylistKind = "variant"
	PlaylistSegment PlaylistKind = "segment"
)

const (
	tagHeader         = "#EXTM3U"
	tagStreamInf      = "#EXT-X-STREAM-INF:"
	tagInf            = "#EXTINF:"
	tagTargetDuration = "#EXT-X-TARGETDURATION:"
)

// Variant is one rendition advertised by a master playlist.
type Variant struct {
	URI        string
	Resolution string
	Width      int
	Height     int
	Bandwidth  int // bits per second
	Codecs     string
	FrameRate  float64
}

// ClassifyHLS inspects a playlist body: a stream-info tag makes it a master
// playlist, segment-duration tags (or the bare header alone) a variant
// playlist, anything else a segment.
func ClassifyHLS(body []byte) PlaylistKind {
	text := string(body)
	if strings.Contains(text, tagStreamInf) {
		return PlaylistMaster
	}
	if strings.Contains(text, tagInf) || strings.Contains(text, tagTargetDuration) {
		return PlaylistVariant
	}
	if strings.Contains(text, tagHeader) {
		return PlaylistVariant
	}
	return PlaylistSegment
}

// ParseMaster extracts the variant list from a master playlist. base, when
// non-nil, resolves relative variant URIs against the playlist's own URL.
// Variants are returned sorted by descending bandwidth.
func ParseMaster(body []byte, base *url.URL) ([]Variant, error) {
	lines := strings.Split(string(body), "\n")
	var variants []Variant

	for i, line := range lines {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, tagStreamInf) {
			continue
		}

		attrs, err := ParseAttributes(strings.TrimPrefix(line, tagStreamInf))
		if err != nil {
			return nil, fmt.Errorf("stream-info line %d: %w", i+1, err)
		}

		v := Variant{
			Resolution: attrs["RESOLUTION"],
			Codecs:     attrs["CODECS"],
		}
		if bw := attrs["BANDWIDTH"]; bw != "" {
			n, err := strconv.Atoi(bw)
			if err != nil {
				return nil, fmt.Errorf("stream-info line %d: bad BANDWIDTH %q", i+1, bw)
			}
			v.Bandwidth = n
		}
		if fr := attrs["FRAME-RATE"]; fr != "" {
			if f, err := strconv.ParseFloat(fr, 64); err == nil {
				v.FrameRate = f
			}
		}
		v.Width, v.Height = splitResolution(v.Resolution)

		// The URI is the next non-comment, non-blank line.
		for j := i + 1; j < len(lines); j++ {
			next := strings.TrimSpace(lines[j])
			if next == "" || strings.HasPrefix(next, "#") {
				continue
			}
			v.URI = resolveURI(next, base)
			break
		}

		variants = append(variants, v)
	}

	sortVariants(variants)
	return variants, nil
}

// ParseAttributes parses an HLS attribute list: comma-separated KEY=value
// pairs where quoted values may contain commas. Malformed input (a pair with
// no '=', an unterminated quote) is an error rather than a silent skip.
func ParseAttributes(s string) (map[string]string, error) {
	attrs := make(map[string]string)
	rest := s
	for rest != "" {
		eq := strings.IndexByte(rest, '=')
		if eq <= 0 {
			return nil, fmt.Errorf("malformed attribute list near %q", rest)
		}
		key := strings.TrimSpace(rest[:eq])
		rest = rest[eq+1:]

		var value string
		if strings.HasPrefix(rest, `"`) {
			end := strings.IndexByte(rest[1:], '"')
			if end < 0 {
				return nil, fmt.Errorf("unterminated quoted value for %s", key)
			}
			value = rest[1 : end+1]
			rest = rest[end+2:]
			rest = strings.TrimPrefix(rest, ",")
		} else {
			comma := strings.IndexByte(rest, ',')
			if comma < 0 {
				value = rest
				rest = ""
			} else {
				value = rest[:comma]
				rest = rest[comma+1:]
			}
		}
		attrs[key] = strings.TrimSpace(value)
	}
	return attrs, nil
}

// Best returns the highest-bandwidth variant of a sorted list, or nil.
func Best(variants []Variant) *Variant {
	if len(variants) == 0 {
		return nil
	}
	return &variants[0]
}

func sortVariants(variants []Variant) {
	sort.SliceStable(variants, func(i, j int) bool {
		return variants[i].Bandwidth > variants[j].Bandwidth
	})
}

func splitResolution(res string) (w, h int) {
	parts := strings.SplitN(strings.ToLower(res), "x", 2)
	if len(parts) != 2 {
		return 0, 0
	}
	w, errW := atoiSafe(parts[0])
	h, errH := atoiSafe(parts[1])
	if errW != nil || errH != nil {
		return 0, 0
	}
	return w, h
}

func atoiSafe(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}

func resolveURI(raw string, base *url.URL) string {
	if base == nil {
		return raw
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return base.ResolveReference(ref).String()
}
