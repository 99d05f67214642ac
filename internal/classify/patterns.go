// Package classify matches observed URLs against the media pattern taxonomy
// and maintains the per-session stream record set.
package classify

import (
	"net/url"
	"strings"

	"github.com/streamlens/streamlens/internal/event"
	"github.com/streamlens/streamlens/internal/store"
)

// pattern is one entry in the ordered taxonomy table; first match wins.
type pattern struct {
	name  string
	media store.MediaType
	match func(raw string, u *url.URL) bool
}

func suffixPattern(ext string) func(string, *url.URL) bool {
	return func(raw string, u *url.URL) bool {
		if u != nil && strings.HasSuffix(strings.ToLower(u.Path), ext) {
			return true
		}
		return strings.HasSuffix(strings.ToLower(raw), ext)
	}
}

func hostPattern(fragment string) func(string, *url.URL) bool {
	return func(_ string, u *url.URL) bool {
		return u != nil && strings.Contains(strings.ToLower(u.Host), fragment)
	}
}

// platformHosts are hostname fragments of known streaming services.
var platformHosts = []string{
	"hotstar.com",
	"googlevideo.com",
	"youtube.com",
	"netflix.com",
	"nflxvideo.net",
	"primevideo.com",
	"twitch.tv",
	"ttvnw.net",
	"vimeo.com",
	"vimeocdn.com",
	"dailymotion.com",
	"dmcdn.net",
	"jiocinema.com",
}

// mediaPatterns is the ordered classification table: explicit suffixes
// first, then platform hostnames, then player-surface URI schemes.
var mediaPatterns = buildMediaPatterns()

func buildMediaPatterns() []pattern {
	patterns := []pattern{
		{"hls-playlist", store.MediaHLSPlaylist, suffixPattern(".m3u8")},
		{"dash-manifest", store.MediaDASHManifest, suffixPattern(".mpd")},
		{"transport-segment", store.MediaTransportSeg, suffixPattern(".ts")},
		{"fragment", store.MediaFragment, suffixPattern(".m4s")},
		{"mp4", store.MediaMP4, suffixPattern(".mp4")},
		{"webm", store.MediaWebM, suffixPattern(".webm")},
		{"mkv", store.MediaMKV, suffixPattern(".mkv")},
	}
	for _, host := range platformHosts {
		patterns = append(patterns, pattern{"platform:" + host, store.MediaPlatform, hostPattern(host)})
	}
	patterns = append(patterns,
		pattern{"blob-url", store.MediaPlatform, func(raw string, _ *url.URL) bool {
			return strings.HasPrefix(raw, "blob:")
		}},
		pattern{"data-video", store.MediaPlatform, func(raw string, _ *url.URL) bool {
			return strings.HasPrefix(raw, "data:video")
		}},
	)
	return patterns
}

// drmVocabulary matches DRM-related endpoints: vendor key systems, license
// servers, and pssh box references.
var drmVocabulary = []string{
	"widevine",
	"playready",
	"fairplay",
	"license",
	"licence",
	"pssh",
	"drmtoday",
	"keydelivery",
	"acquirelicense",
}

// MediaTypeOf runs the ordered taxonomy table over a URL. Falling through
// every pattern yields MediaUnknown.
func MediaTypeOf(raw string) store.MediaType {
	u, err := url.Parse(raw)
	if err != nil {
		u = nil
	}
	for _, p := range mediaPatterns {
		if p.match(raw, u) {
			return p.media
		}
	}
	return store.MediaUnknown
}

// IsDRM evaluates the DRM vocabulary against the URL and the request
// headers. The flag is orthogonal to the media type.
func IsDRM(raw string, headers event.Headers) bool {
	lower := strings.ToLower(raw)
	for _, word := range drmVocabulary {
		if strings.Contains(lower, word) {
			return true
		}
	}
	for _, h := range headers {
		value := strings.ToLower(h.Value)
		for _, word := range drmVocabulary {
			if strings.Contains(value, word) {
				return true
			}
		}
	}
	return false
}

// mediaQueryParams are query parameter names whose presence on a platform
// host marks the request as carrying media.
var mediaQueryParams = []string{"mime", "type", "content_type", "mimetype"}

// ShouldValidate decides synchronously, at record creation, whether a probe
// is worthwhile. Bare transport segments are expected to be referenced by a
// parent playlist and are never probed independently.
func ShouldValidate(rec *store.Record) (bool, string) {
	if rec.IsDRM {
		return true, ""
	}
	switch rec.MediaType {
	case store.MediaHLSPlaylist, store.MediaDASHManifest:
		return true, ""
	case store.MediaMP4, store.MediaWebM, store.MediaMKV:
		return true, ""
	case store.MediaTransportSeg, store.MediaFragment:
		return false, "segment is validated through its parent playlist"
	case store.MediaPlatform:
		if hasMediaQueryParam(rec.URL) {
			return true, ""
		}
		return false, "platform URL without a media-type parameter"
	default:
		return false, "URL matched no media pattern"
	}
}

func hasMediaQueryParam(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	query := u.Query()
	for _, name := range mediaQueryParams {
		if v := query.Get(name); v != "" && strings.Contains(strings.ToLower(v), "video") {
			return true
		}
	}
	return false
}
