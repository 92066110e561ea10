package store

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cespare/xxhash/v2"
)

// ResponseToEntry converts an HTTP response to an Entry.
// The response body is read completely and restored, so both the caller
// and the entry hold independent copies of the body.
func ResponseToEntry(resp *http.Response, typ ResponseType) (*Entry, error) {
	if resp == nil {
		return nil, fmt.Errorf("response cannot be nil")
	}

	var body []byte
	if resp.Body != nil {
		var err error
		body, err = io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read response body: %w", err)
		}
	}

	// Restore body for caller
	resp.Body = io.NopCloser(bytes.NewReader(body))

	entry := &Entry{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header.Clone(),
		Body:       body,
		Type:       typ,
		CachedAt:   time.Now(),
		Checksum:   xxhash.Sum64(body),
	}
	if entry.Headers == nil {
		entry.Headers = http.Header{}
	}
	if resp.Request != nil && resp.Request.URL != nil {
		entry.URL = resp.Request.URL.String()
	}

	return entry, nil
}

// Response builds a fresh HTTP response from the entry.
// Every call returns a new body reader over a private copy of the body.
func (e *Entry) Response(req *http.Request) *http.Response {
	body := append([]byte(nil), e.Body...)
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode)),
		StatusCode:    e.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        e.Headers.Clone(),
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}
