package store

import (
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestKey_String(t *testing.T) {
	tests := []struct {
		name     string
		key      Key
		expected string
	}{
		{
			name:     "simple path",
			key:      Key{Method: "GET", URL: "https://app.example.com/app.js"},
			expected: "GET https://app.example.com/app.js",
		},
		{
			name:     "empty method defaults to GET",
			key:      Key{URL: "https://app.example.com/"},
			expected: "GET https://app.example.com/",
		},
		{
			name:     "lowercase method",
			key:      Key{Method: "head", URL: "https://app.example.com/"},
			expected: "HEAD https://app.example.com/",
		},
		{
			name:     "query params sorted",
			key:      Key{Method: "GET", URL: "https://app.example.com/search?z=1&a=2"},
			expected: "GET https://app.example.com/search?a=2&z=1",
		},
		{
			name:     "fragment stripped",
			key:      Key{Method: "GET", URL: "https://app.example.com/index.html#top"},
			expected: "GET https://app.example.com/index.html",
		},
		{
			name:     "host lowercased and root path added",
			key:      Key{Method: "GET", URL: "HTTPS://App.Example.com"},
			expected: "GET https://app.example.com/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.expected {
				t.Errorf("String() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestKey_Deterministic(t *testing.T) {
	a := Key{Method: "GET", URL: "https://app.example.com/x?b=2&a=1"}
	b := Key{Method: "GET", URL: "https://app.example.com/x?a=1&b=2"}

	if a.String() != b.String() {
		t.Errorf("keys differ: %q vs %q", a.String(), b.String())
	}
}

func TestKeyFor(t *testing.T) {
	base, _ := url.Parse("https://app.example.com")

	tests := []struct {
		name     string
		base     *url.URL
		target   string
		expected string
	}{
		{
			name:     "absolute URL",
			base:     nil,
			target:   "https://app.example.com/logo.png",
			expected: "GET https://app.example.com/logo.png",
		},
		{
			name:     "server-side relative URL",
			base:     base,
			target:   "/logo.png?b=2&a=1",
			expected: "GET https://app.example.com/logo.png?a=1&b=2",
		},
		{
			name:     "absolute URL ignores base",
			base:     base,
			target:   "https://cdn.example.com/lib.js",
			expected: "GET https://cdn.example.com/lib.js",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.target, nil)
			key := KeyFor(tt.base, req)

			if key.Method != "GET" {
				t.Errorf("Method = %q, want GET", key.Method)
			}
			if key.String() != tt.expected {
				t.Errorf("String() = %q, want %q", key.String(), tt.expected)
			}
		})
	}

	// Relative keys without a base are not absolute and never match stored keys
	req := httptest.NewRequest("GET", "/logo.png", nil)
	if got := KeyFor(nil, req).String(); got != "GET /logo.png" {
		t.Errorf("String() without base = %q", got)
	}
}
