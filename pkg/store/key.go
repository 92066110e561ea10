package store

import (
	"net/http"
	"net/url"
	"strings"
)

// Key identifies a stored response by request method and URL.
type Key struct {
	// Method is the request method (empty means GET)
	Method string

	// URL is the absolute request URL
	URL string
}

// KeyFor returns the key of a request. A relative request URL, as seen by a
// server, is resolved against base; base may be nil for absolute URLs.
func KeyFor(base *url.URL, req *http.Request) Key {
	u := req.URL
	if !u.IsAbs() && base != nil {
		u = base.ResolveReference(u)
	}
	return Key{Method: req.Method, URL: u.String()}
}

// String generates a deterministic key string.
// Format: METHOD url, with the fragment removed and query parameters sorted.
//
// Example:
//
//	GET https://app.example.com/static/app.js?a=1&b=2
func (k Key) String() string {
	method := strings.ToUpper(strings.TrimSpace(k.Method))
	if method == "" {
		method = http.MethodGet
	}
	return method + " " + normalizeURL(k.URL)
}

func normalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Fragment = ""
	u.RawFragment = ""
	if u.RawQuery != "" {
		// Encode sorts by key
		u.RawQuery = u.Query().Encode()
	}
	if u.Path == "" && u.Host != "" {
		u.Path = "/"
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	return u.String()
}
