// Package har builds a per-session HAR 1.2 transcript of request/response
// pairs with structured header, cookie and timing extraction.
package har

// HAR is the top-level HTTP Archive document.
type HAR struct {
	Log *Log `json:"log"`
}

// Log contains the archive data.
type Log struct {
	Version string   `json:"version"`
	Creator *Creator `json:"creator"`
	Pages   []*Page  `json:"pages,omitempty"`
	Entries []*Entry `json:"entries"`
}

// Creator describes the application that produced the archive.
type Creator struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Page is the synthesized page header attached to exports.
type Page struct {
	ID              string       `json:"id"`
	StartedDateTime string       `json:"startedDateTime"`
	Title           string       `json:"title"`
	PageTimings     *PageTimings `json:"pageTimings"`
}

// PageTimings carries page-level timing; -1 marks values that were never measured.
type PageTimings struct {
	OnContentLoad float64 `json:"onContentLoad"`
	OnLoad        float64 `json:"onLoad"`
}

// Entry is a single request/response pair.
type Entry struct {
	PageRef         string    `json:"pageref,omitempty"`
	StartedDateTime string    `json:"startedDateTime"`
	Time            float64   `json:"time"` // elapsed milliseconds
	Request         *Request  `json:"request"`
	Response        *Response `json:"response"`
	Timings         *Timings  `json:"timings"`
}

// Request describes the request half of an entry.
type Request struct {
	Method      string         `json:"method"`
	URL         string         `json:"url"`
	HTTPVersion string         `json:"httpVersion"`
	Headers     []*Header      `json:"headers"`
	QueryString []*QueryString `json:"queryString"`
	Cookies     []*Cookie      `json:"cookies"`
	HeadersSize int            `json:"headersSize"`
	BodySize    int            `json:"bodySize"`
}

// Response describes the response half of an entry.
type Response struct {
	Status      int       `json:"status"`
	StatusText  string    `json:"statusText"`
	HTTPVersion string    `json:"httpVersion"`
	Headers     []*Header `json:"headers"`
	Cookies     []*Cookie `json:"cookies"`
	Content     *Content  `json:"content"`
	RedirectURL string    `json:"redirectURL"`
	HeadersSize int       `json:"headersSize"`
	BodySize    int       `json:"bodySize"`
}

// Header is a name/value pair; order and duplicates are preserved.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// QueryString is one URL query parameter, in URL order.
type QueryString struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Cookie is a cookie parsed from Cookie or Set-Cookie headers.
type Cookie struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Path     string `json:"path,omitempty"`
	Domain   string `json:"domain,omitempty"`
	Expires  string `json:"expires,omitempty"`
	HTTPOnly bool   `json:"httpOnly,omitempty"`
	Secure   bool   `json:"secure,omitempty"`
}

// Content describes the response body as far as headers reveal it; bodies
// themselves are never captured here.
type Content struct {
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
}

// Timings is the per-entry timing breakdown; unmeasured phases are -1.
type Timings struct {
	Blocked float64 `json:"blocked"`
	DNS     float64 `json:"dns"`
	Connect float64 `json:"connect"`
	Send    float64 `json:"send"`
	Wait    float64 `json:"wait"`
	Receive float64 `json:"receive"`
}
