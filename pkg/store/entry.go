package store

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cespare/xxhash/v2"
)

// ResponseType classifies a response by its origin relationship to the application.
type ResponseType string

const (
	// TypeBasic is a same-origin response.
	TypeBasic ResponseType = "basic"

	// TypeCORS is a cross-origin response that was shared via CORS headers.
	TypeCORS ResponseType = "cors"

	// TypeOpaque is a cross-origin response without CORS sharing.
	TypeOpaque ResponseType = "opaque"
)

// Entry is an immutable snapshot of a response held in a store.
type Entry struct {
	// StatusCode is the HTTP status code of the stored response
	StatusCode int `json:"status_code"`

	// Headers are the response headers
	Headers http.Header `json:"headers"`

	// Body is the complete response body
	Body []byte `json:"body"`

	// Type is the response type at the time it was captured
	Type ResponseType `json:"type"`

	// URL is the final URL the response was served from
	URL string `json:"url"`

	// CachedAt is when the response was captured
	CachedAt time.Time `json:"cached_at"`

	// Checksum is the xxhash64 of Body, verified on decode
	Checksum uint64 `json:"checksum"`
}

// Verify checks the body against the recorded checksum.
func (e *Entry) Verify() error {
	if sum := xxhash.Sum64(e.Body); sum != e.Checksum {
		return fmt.Errorf("%w: checksum %x, want %x", ErrInvalidEntry, sum, e.Checksum)
	}
	return nil
}

// Clone returns a deep copy of the entry.
func (e *Entry) Clone() *Entry {
	c := *e
	c.Headers = e.Headers.Clone()
	if e.Body != nil {
		c.Body = append([]byte(nil), e.Body...)
	}
	return &c
}

func encodeEntry(e *Entry) ([]byte, error) {
	if e == nil {
		return nil, fmt.Errorf("entry cannot be nil")
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal entry: %w", err)
	}
	return data, nil
}

func decodeEntry(data []byte) (*Entry, error) {
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	if err := e.Verify(); err != nil {
		return nil, err
	}
	return &e, nil
}
