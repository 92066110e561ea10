package lifecycle

import (
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	// HeaderSource names where a proxied response came from.
	HeaderSource = "X-Offline-Cache"

	// HeaderRequestID carries the request id.
	HeaderRequestID = "X-Request-ID"
)

// hopHeaders are not copied from routed responses to the client.
var hopHeaders = map[string]bool{
	"Connection":        true,
	"Keep-Alive":        true,
	"Proxy-Connection":  true,
	"Transfer-Encoding": true,
	"Upgrade":           true,
	"Trailer":           true,
}

// ServeHTTP adapts OnIntercept to net/http. A request that produces no
// response is answered with 502 Bad Gateway.
func (w *Worker) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	start := time.Now()

	reqID := r.Header.Get(HeaderRequestID)
	if reqID == "" {
		reqID = uuid.NewString()
		r.Header.Set(HeaderRequestID, reqID)
	}
	rw.Header().Set(HeaderRequestID, reqID)

	resp, err := w.OnIntercept(r.Context(), r)
	if err != nil {
		w.logger.Warn().
			Err(err).
			Str("request_id", reqID).
			Str("method", r.Method).
			Str("path", r.URL.RequestURI()).
			Dur("duration", time.Since(start)).
			Msg("No response available")
		http.Error(rw, "offline-cache: resource unavailable", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	header := rw.Header()
	for key, values := range resp.Header {
		if hopHeaders[http.CanonicalHeaderKey(key)] {
			continue
		}
		for _, value := range values {
			header.Add(key, value)
		}
	}
	header.Set(HeaderSource, string(resp.Source))

	rw.WriteHeader(resp.StatusCode)
	if r.Method != http.MethodHead {
		if _, err := io.Copy(rw, resp.Body); err != nil {
			w.logger.Debug().Err(err).Str("request_id", reqID).Msg("Failed to write response body")
		}
	}

	w.logger.Info().
		Str("request_id", reqID).
		Str("method", r.Method).
		Str("path", r.URL.RequestURI()).
		Str("category", string(resp.Category)).
		Str("source", string(resp.Source)).
		Int("status_code", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Request served")
}
