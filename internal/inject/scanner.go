package inject

import (
	"net/url"
	"regexp"
)

// scanLimit caps how much of a body is scanned for embedded links.
const scanLimit = 64 << 10

var (
	// Absolute URLs ending in a media suffix, query string allowed.
	mediaURLRe = regexp.MustCompile(`https?://[^\s"'<>\\]+?\.(?:m3u8|mpd|mp4|webm|mkv|ts|m4s)(?:\?[^\s"'<>\\]*)?`)
	// Relative candidates with the same suffixes: a path at the start of the
	// buffer or right after a delimiter, so fragments of absolute URLs never
	// re-match.
	relativeURLRe = regexp.MustCompile(`(?:^|[\s"'=(,])((?:[A-Za-z0-9_~%.-]+/)*[A-Za-z0-9_~%.-]+\.(?:m3u8|mpd|mp4|webm|mkv|ts|m4s)(?:\?[^\s"'<>\\]*)?)`)
	// Absolute URLs whose path smells like license acquisition.
	licenseURLRe = regexp.MustCompile(`https?://[^\s"'<>\\]*(?:license|licence|widevine|playready|fairplay|acquirelicense|keydelivery|drmtoday)[^\s"'<>\\]*`)
)

// ScanBody extracts embedded media and license URLs from a response body.
// base is the response's own URL: relative candidates are resolved against
// it (and skipped when it is nil), and it is recorded as each discovery's
// parent page. Results are deduplicated in first-seen order.
func ScanBody(body []byte, base *url.URL) []Discovery {
	if len(body) > scanLimit {
		body = body[:scanLimit]
	}

	page := ""
	if base != nil {
		page = base.String()
	}

	seen := make(map[string]bool)
	var out []Discovery
	add := func(raw string) {
		if raw == "" || raw == page || seen[raw] {
			return
		}
		seen[raw] = true
		out = append(out, Discovery{URL: raw, Kind: "embedded", Page: page})
	}

	for _, m := range mediaURLRe.FindAll(body, -1) {
		add(string(m))
	}
	if base != nil {
		for _, m := range relativeURLRe.FindAllSubmatch(body, -1) {
			ref, err := url.Parse(string(m[1]))
			if err != nil {
				continue
			}
			add(base.ResolveReference(ref).String())
		}
	}
	for _, m := range licenseURLRe.FindAll(body, -1) {
		add(string(m))
	}
	return out
}
