package router

import (
	"mime"
	"net/http"
	"strconv"
	"strings"
)

// Category is the routing policy class of a request.
type Category string

const (
	// CategoryNavigation is a top-level document load; routed network-first.
	CategoryNavigation Category = "navigation"

	// CategorySubordinate is any other GET (scripts, styles, images, data); routed cache-first.
	CategorySubordinate Category = "subordinate"

	// CategoryBypass is a request that is never stored (non-GET); sent to the network.
	CategoryBypass Category = "bypass"
)

// Classify determines the category of a request.
//
// A request is a navigation when Sec-Fetch-Mode is "navigate". Clients that
// send no fetch metadata are treated as navigating when their Accept header
// lists text/html.
func Classify(req *http.Request) Category {
	if req.Method != http.MethodGet {
		return CategoryBypass
	}

	if mode := req.Header.Get("Sec-Fetch-Mode"); mode != "" {
		if strings.EqualFold(mode, "navigate") {
			return CategoryNavigation
		}
		return CategorySubordinate
	}

	if acceptsHTML(req.Header.Values("Accept")) {
		return CategoryNavigation
	}
	return CategorySubordinate
}

// acceptsHTML reports whether any Accept value names text/html with q > 0.
func acceptsHTML(values []string) bool {
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			mediaType, params, err := mime.ParseMediaType(strings.TrimSpace(part))
			if err != nil || mediaType != "text/html" {
				continue
			}
			if q, ok := params["q"]; ok {
				if f, err := strconv.ParseFloat(q, 64); err == nil && f <= 0 {
					continue
				}
			}
			return true
		}
	}
	return false
}
