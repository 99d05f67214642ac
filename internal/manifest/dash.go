package manifest

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"
)

// Representation is one encoded rendition inside a DASH AdaptationSet. Only
// representations carrying both pixel dimensions are eligible for selection.
type Representation struct {
	ID        string
	Width     int
	Height    int
	Bandwidth int // bits per second
}

// MPD is the result of a token scan over a DASH manifest body.
type MPD struct {
	HasPeriod        bool
	HasAdaptationSet bool
	Representations  []Representation
}

// IsManifest reports whether the body carried the structure of a full
// manifest (both a Period and an AdaptationSet element).
func (m *MPD) IsManifest() bool {
	return m != nil && m.HasPeriod && m.HasAdaptationSet
}

// ParseMPD scans a DASH manifest with a streaming XML tokenizer, collecting
// Representation elements. Representations missing width or height are
// dropped; the result is sorted by descending bandwidth. Malformed XML is an
// error.
func ParseMPD(body []byte) (*MPD, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	out := &MPD{}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("scan manifest: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch start.Name.Local {
		case "Period":
			out.HasPeriod = true
		case "AdaptationSet":
			out.HasAdaptationSet = true
		case "Representation":
			rep := representationFromAttrs(start.Attr)
			if rep.Width > 0 && rep.Height > 0 {
				out.Representations = append(out.Representations, rep)
			}
		}
	}

	sort.SliceStable(out.Representations, func(i, j int) bool {
		return out.Representations[i].Bandwidth > out.Representations[j].Bandwidth
	})
	return out, nil
}

func representationFromAttrs(attrs []xml.Attr) Representation {
	var rep Representation
	for _, attr := range attrs {
		switch attr.Name.Local {
		case "id":
			rep.ID = attr.Value
		case "width":
			rep.Width = atoiOrZero(attr.Value)
		case "height":
			rep.Height = atoiOrZero(attr.Value)
		case "bandwidth":
			rep.Bandwidth = atoiOrZero(attr.Value)
		}
	}
	return rep
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
