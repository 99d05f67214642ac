package har

import "strings"

// ParseCookieHeader splits a request Cookie header into name/value pairs:
// pairs are separated by "; ", the name ends at the first "=".
func ParseCookieHeader(value string) []*Cookie {
	var cookies []*Cookie
	for _, pair := range strings.Split(value, "; ") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, val, found := strings.Cut(pair, "=")
		if !found || name == "" {
			continue
		}
		cookies = append(cookies, &Cookie{Name: name, Value: val})
	}
	return cookies
}

// ParseSetCookie parses a single Set-Cookie header value including its
// expires/path/domain/secure/httpOnly attributes. A value with no name=value
// part yields nil.
func ParseSetCookie(value string) *Cookie {
	parts := strings.Split(value, ";")
	if len(parts) == 0 {
		return nil
	}

	name, val, found := strings.Cut(strings.TrimSpace(parts[0]), "=")
	if !found || name == "" {
		return nil
	}
	cookie := &Cookie{Name: name, Value: val}

	for _, attr := range parts[1:] {
		attr = strings.TrimSpace(attr)
		key, attrVal, _ := strings.Cut(attr, "=")
		switch strings.ToLower(key) {
		case "expires":
			cookie.Expires = attrVal
		case "path":
			cookie.Path = attrVal
		case "domain":
			cookie.Domain = attrVal
		case "secure":
			cookie.Secure = true
		case "httponly":
			cookie.HTTPOnly = true
		}
	}
	return cookie
}
