package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/Sternrassler/offline-cache/internal/testutil"
	"github.com/Sternrassler/offline-cache/pkg/store"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid config",
			config:      DefaultConfig("https://app.example.com"),
			expectError: false,
		},
		{
			name:        "empty origin",
			config:      Config{},
			expectError: true,
			errorMsg:    "origin is required",
		},
		{
			name:        "relative origin",
			config:      Config{Origin: "/app"},
			expectError: true,
			errorMsg:    `origin must be an absolute http(s) URL (got "/app")`,
		},
		{
			name:        "unsupported scheme",
			config:      Config{Origin: "ftp://app.example.com"},
			expectError: true,
			errorMsg:    `origin must be an absolute http(s) URL (got "ftp://app.example.com")`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.config)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got nil")
					return
				}
				if tt.errorMsg != "" && err.Error() != tt.errorMsg {
					t.Errorf("Error message = %q, want %q", err.Error(), tt.errorMsg)
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
					return
				}
				if client == nil {
					t.Error("Client is nil")
				}
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("https://app.example.com")

	if cfg.Origin != "https://app.example.com" {
		t.Errorf("Origin = %q", cfg.Origin)
	}
	if cfg.Timeout <= 0 {
		t.Errorf("Timeout = %v, should be > 0", cfg.Timeout)
	}
	if cfg.Retry.MaxAttempts != 1 {
		t.Errorf("Retry.MaxAttempts = %d, want 1", cfg.Retry.MaxAttempts)
	}
}

func TestClient_OriginAndResolve(t *testing.T) {
	client, err := New(DefaultConfig("https://app.example.com"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	origin := client.Origin()
	if origin.String() != "https://app.example.com" {
		t.Errorf("Origin() = %q", origin.String())
	}

	// Origin returns a copy
	origin.Host = "evil.example.com"
	if client.Origin().Host != "app.example.com" {
		t.Errorf("Origin() host = %q after mutating copy", client.Origin().Host)
	}

	rel, _ := url.Parse("/static/app.js")
	if got := client.Resolve(rel).String(); got != "https://app.example.com/static/app.js" {
		t.Errorf("Resolve() = %q", got)
	}
}

func TestFetch_ResolvesRelativeURL(t *testing.T) {
	origin := testutil.NewMockOrigin()
	defer origin.Close()
	origin.SetResponse("/app.js", testutil.NewAssetResponse("console.log(1)"))

	client, err := New(DefaultConfig(origin.URL()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// Server-side request as received by the proxy
	req := httptest.NewRequest("GET", "/app.js", nil)
	resp, err := client.Fetch(context.Background(), req)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "console.log(1)" {
		t.Errorf("body = %q", body)
	}
	if origin.PathCount("/app.js") != 1 {
		t.Errorf("origin requests = %d, want 1", origin.PathCount("/app.js"))
	}
	if got := client.ResponseType(resp); got != store.TypeBasic {
		t.Errorf("ResponseType() = %q, want %q", got, store.TypeBasic)
	}
}

func TestFetch_UserAgentSet(t *testing.T) {
	userAgentReceived := ""
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgentReceived = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := DefaultConfig(server.URL)
	cfg.UserAgent = "offline-cache/test"
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	req, _ := http.NewRequest("GET", server.URL+"/test", nil)
	resp, err := client.Fetch(context.Background(), req)
	if err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}
	resp.Body.Close()

	if userAgentReceived != cfg.UserAgent {
		t.Errorf("User-Agent = %q, want %q", userAgentReceived, cfg.UserAgent)
	}
}

func TestFetch_HopHeadersRemoved(t *testing.T) {
	var received http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, _ := New(DefaultConfig(server.URL))

	req := httptest.NewRequest("GET", "/x", nil)
	req.Header.Set("Proxy-Authorization", "secret")
	req.Header.Set("X-Keep", "yes")
	resp, err := client.Fetch(context.Background(), req)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	resp.Body.Close()

	if received.Get("Proxy-Authorization") != "" {
		t.Error("Proxy-Authorization was forwarded")
	}
	if received.Get("X-Keep") != "yes" {
		t.Error("X-Keep was not forwarded")
	}
	if req.Header.Get("Proxy-Authorization") != "secret" {
		t.Error("caller's request headers were modified")
	}
}

func TestFetch_HTTPErrorIsNotNetworkError(t *testing.T) {
	origin := testutil.NewMockOrigin()
	defer origin.Close()
	origin.SetResponse("/broken", testutil.NewServerErrorResponse())

	client, _ := New(DefaultConfig(origin.URL()))

	resp, err := client.Fetch(context.Background(), httptest.NewRequest("GET", "/broken", nil))
	if err != nil {
		t.Fatalf("Fetch() error = %v, want nil for HTTP 500", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", resp.StatusCode)
	}
}

func TestFetch_NetworkError(t *testing.T) {
	client, _ := New(DefaultConfig(testutil.UnreachableURL()))

	_, err := client.Fetch(context.Background(), httptest.NewRequest("GET", "/", nil))
	if err == nil {
		t.Fatal("Fetch() should fail for an unreachable origin")
	}

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("error = %T, want *NetworkError", err)
	}
	if netErr.Method != "GET" {
		t.Errorf("Method = %q, want GET", netErr.Method)
	}
	if netErr.ErrorClass != ErrorClassNetwork {
		t.Errorf("ErrorClass = %q, want %q", netErr.ErrorClass, ErrorClassNetwork)
	}
	if !IsNetworkError(err) {
		t.Error("IsNetworkError() = false, want true")
	}
}

func TestFetch_RetriesNetworkErrors(t *testing.T) {
	cfg := DefaultConfig(testutil.UnreachableURL())
	cfg.Retry = RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2,
	}
	client, _ := New(cfg)

	_, err := client.Fetch(context.Background(), httptest.NewRequest("GET", "/", nil))
	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("error = %v, want ErrRetryExhausted", err)
	}
	if !IsNetworkError(err) {
		t.Error("exhausted retries should still be a NetworkError")
	}
}

func TestFetch_CancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	client, _ := New(DefaultConfig(server.URL))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Fetch(ctx, httptest.NewRequest("GET", "/slow", nil))
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("error = %v, want *NetworkError", err)
	}
	if netErr.ErrorClass != ErrorClassTimeout {
		t.Errorf("ErrorClass = %q, want %q", netErr.ErrorClass, ErrorClassTimeout)
	}
}

func TestClassifyResponse(t *testing.T) {
	origin, _ := url.Parse("https://app.example.com")

	tests := []struct {
		name     string
		url      string
		headers  http.Header
		expected store.ResponseType
	}{
		{
			name:     "same origin",
			url:      "https://app.example.com/app.js",
			expected: store.TypeBasic,
		},
		{
			name:     "same origin explicit default port",
			url:      "https://app.example.com:443/app.js",
			expected: store.TypeBasic,
		},
		{
			name:     "cross origin with CORS",
			url:      "https://cdn.example.com/lib.js",
			headers:  http.Header{"Access-Control-Allow-Origin": []string{"*"}},
			expected: store.TypeCORS,
		},
		{
			name:     "cross origin without CORS",
			url:      "https://cdn.example.com/lib.js",
			expected: store.TypeOpaque,
		},
		{
			name:     "scheme differs",
			url:      "http://app.example.com/app.js",
			expected: store.TypeOpaque,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, _ := url.Parse(tt.url)
			resp := &http.Response{
				Header:  tt.headers,
				Request: &http.Request{URL: u},
			}
			if resp.Header == nil {
				resp.Header = http.Header{}
			}
			if got := ClassifyResponse(origin, resp); got != tt.expected {
				t.Errorf("ClassifyResponse() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestClassifyResponse_NoRequest(t *testing.T) {
	origin, _ := url.Parse("https://app.example.com")
	if got := ClassifyResponse(origin, &http.Response{}); got != store.TypeOpaque {
		t.Errorf("ClassifyResponse() = %q, want opaque", got)
	}
}
