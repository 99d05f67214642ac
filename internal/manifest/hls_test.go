package manifest

import (
	"net/url"
	"testing"
)

const masterPlaylist = `#EXTM3U
#EXT-X-VERSION:6
#EXT-X-STREAM-INF:BANDWIDTH=500000,RESOLUTION=640x360,CODECS="avc1.4d401e,mp4a.40.2"
low/index.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=1200000,RESOLUTION=1280x720,FRAME-RATE=25.000
mid/index.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=3000000,RESOLUTION=1920x1080
high/index.m3u8
`

const variantPlaylist = `#EXTM3U
#EXT-X-TARGETDURATION:6
#EXTINF:5.960,
seg-1.ts
#EXTINF:6.000,
seg-2.ts
`

func TestClassifyHLS(t *testing.T) {
	tests := []struct {
		name string
		body string
		want PlaylistKind
	}{
		{"master", masterPlaylist, PlaylistMaster},
		{"variant with segments", variantPlaylist, PlaylistVariant},
		{"bare header", "#EXTM3U\n", PlaylistVariant},
		{"not a playlist", "binary junk", PlaylistSegment},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyHLS([]byte(tt.body)); got != tt.want {
				t.Errorf("ClassifyHLS = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseMaster_SortsByBandwidthDescending(t *testing.T) {
	base, _ := url.Parse("https://cdn.example.com/vod/master.m3u8")
	variants, err := ParseMaster([]byte(masterPlaylist), base)
	if err != nil {
		t.Fatalf("ParseMaster: %v", err)
	}
	if len(variants) != 3 {
		t.Fatalf("got %d variants, want 3", len(variants))
	}

	wantBandwidths := []int{3000000, 1200000, 500000}
	for i, want := range wantBandwidths {
		if variants[i].Bandwidth != want {
			t.Errorf("variants[%d].Bandwidth = %d, want %d", i, variants[i].Bandwidth, want)
		}
	}

	best := Best(variants)
	if best.Resolution != "1920x1080" {
		t.Errorf("best resolution = %s, want 1920x1080", best.Resolution)
	}
	if best.Width != 1920 || best.Height != 1080 {
		t.Errorf("best dimensions = %dx%d, want 1920x1080", best.Width, best.Height)
	}
	if best.URI != "https://cdn.example.com/vod/high/index.m3u8" {
		t.Errorf("relative URI not resolved: %s", best.URI)
	}
}

func TestParseMaster_CapturesCodecsAndFrameRate(t *testing.T) {
	variants, err := ParseMaster([]byte(masterPlaylist), nil)
	if err != nil {
		t.Fatalf("ParseMaster: %v", err)
	}

	// Sorted descending, so the 1200000 entry is second.
	if variants[1].FrameRate != 25.0 {
		t.Errorf("FrameRate = %v, want 25.0", variants[1].FrameRate)
	}
	if variants[2].Codecs != "avc1.4d401e,mp4a.40.2" {
		t.Errorf("Codecs = %q, quoted comma value mishandled", variants[2].Codecs)
	}
}

func TestParseAttributes(t *testing.T) {
	attrs, err := ParseAttributes(`BANDWIDTH=800000,CODECS="avc1,mp4a",RESOLUTION=640x360`)
	if err != nil {
		t.Fatalf("ParseAttributes: %v", err)
	}
	if attrs["BANDWIDTH"] != "800000" {
		t.Errorf("BANDWIDTH = %q", attrs["BANDWIDTH"])
	}
	if attrs["CODECS"] != "avc1,mp4a" {
		t.Errorf("CODECS = %q, commas inside quotes must be preserved", attrs["CODECS"])
	}
	if attrs["RESOLUTION"] != "640x360" {
		t.Errorf("RESOLUTION = %q", attrs["RESOLUTION"])
	}
}

func TestParseAttributes_Malformed(t *testing.T) {
	if _, err := ParseAttributes(`BANDWIDTH=800000,JUNK`); err == nil {
		t.Error("expected error for pair without '='")
	}
	if _, err := ParseAttributes(`CODECS="unterminated`); err == nil {
		t.Error("expected error for unterminated quote")
	}
}

func TestParseMaster_BadBandwidthIsError(t *testing.T) {
	body := "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=abc,RESOLUTION=640x360\nlow.m3u8\n"
	if _, err := ParseMaster([]byte(body), nil); err == nil {
		t.Error("expected error for non-numeric bandwidth")
	}
}
