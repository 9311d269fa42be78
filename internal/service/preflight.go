package service

import (
	"net/http"
	"strings"

	"edgemask/internal/model"
)

const (
	preflightMethods = "GET, POST, PUT, DELETE, OPTIONS"
	preflightMaxAge  = "86400"
)

var baseAllowHeaders = []string{"Content-Type", "Authorization", "Cookie", "X-Requested-With"}

func allowHeaderList(extra []string) string {
	seen := make(map[string]bool)
	var out []string
	for _, h := range append(append([]string(nil), baseAllowHeaders...), extra...) {
		h = strings.TrimSpace(h)
		if h == "" || seen[strings.ToLower(h)] {
			continue
		}
		seen[strings.ToLower(h)] = true
		out = append(out, h)
	}
	return strings.Join(out, ", ")
}

// preflight answers a CORS preflight locally. The origin is never contacted.
func (s *ProxyService) preflight(req http.Header) *model.FinalResponse {
	h := make(http.Header)
	setCORS(h, req)
	h.Set("Access-Control-Allow-Methods", preflightMethods)
	h.Set("Access-Control-Allow-Headers", s.preflightAllowHeaders(req))
	h.Set("Access-Control-Max-Age", preflightMaxAge)

	return &model.FinalResponse{
		StatusCode: http.StatusNoContent,
		Header:     h,
	}
}

// preflightAllowHeaders extends the fixed list with the requested headers
// that carry one of the platform prefixes.
func (s *ProxyService) preflightAllowHeaders(req http.Header) string {
	if len(s.allowPrefix) == 0 {
		return s.allowHeaders
	}

	var b strings.Builder
	b.WriteString(s.allowHeaders)
	for _, v := range req.Values("Access-Control-Request-Headers") {
		for _, name := range strings.Split(v, ",") {
			name = strings.ToLower(strings.TrimSpace(name))
			if name == "" {
				continue
			}
			for _, prefix := range s.allowPrefix {
				if strings.HasPrefix(name, prefix) {
					b.WriteString(", ")
					b.WriteString(name)
					break
				}
			}
		}
	}
	return b.String()
}
