package service

import (
	"net/http"
	"strings"
)

// hopByHopHeaders apply to a single connection and are never forwarded
// in either direction.
var hopByHopHeaders = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Proxy-Connection":    true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
}

// isHopByHop reports whether the canonical header key k is connection-scoped,
// either by name or because the Connection header lists it.
func isHopByHop(k string, listed map[string]bool) bool {
	return hopByHopHeaders[k] || strings.HasPrefix(k, "Proxy-") || listed[k]
}

// connectionTokens returns the header names listed in Connection.
func connectionTokens(h http.Header) map[string]bool {
	var out map[string]bool
	for _, v := range h.Values("Connection") {
		for _, tok := range strings.Split(v, ",") {
			tok = strings.TrimSpace(tok)
			if tok == "" {
				continue
			}
			if out == nil {
				out = make(map[string]bool)
			}
			out[http.CanonicalHeaderKey(tok)] = true
		}
	}
	return out
}

// StripHopByHop removes connection-scoped headers from h in place, including
// every header the Connection header names.
func StripHopByHop(h http.Header) {
	listed := connectionTokens(h)
	for k := range h {
		if isHopByHop(http.CanonicalHeaderKey(k), listed) {
			delete(h, k)
		}
	}
}

func isCORSHeader(k string) bool {
	return strings.HasPrefix(k, "Access-Control-")
}

// setCORS writes the CORS headers shared by preflight and proxied responses.
func setCORS(dst, req http.Header) {
	origin := req.Get("Origin")
	if origin == "" {
		origin = "*"
	}
	dst.Set("Access-Control-Allow-Origin", origin)
	dst.Set("Access-Control-Allow-Credentials", "true")
	dst.Add("Vary", "Origin")
}
